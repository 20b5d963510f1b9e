package domain

// transitions lists, for each status, the statuses it may move to.
// Re-entering processing from a settled pre-payment state is how an operator
// re-runs the pipeline.
var transitions = map[InvoiceStatus][]InvoiceStatus{
	StatusSubmitted: {StatusProcessing, StatusRejected, StatusCancelled},
	StatusProcessing: {
		StatusProcessing, StatusExtracted, StatusMatching, StatusMatched, StatusNoMatch,
		StatusPendingReview, StatusPendingApproval, StatusApproved, StatusException,
	},
	StatusExtracted: {
		StatusProcessing, StatusMatching, StatusPendingReview, StatusPendingApproval,
		StatusApproved, StatusException,
	},
	StatusMatching: {StatusProcessing, StatusMatched, StatusNoMatch, StatusException},
	StatusMatched: {
		StatusProcessing, StatusPendingReview, StatusPendingApproval, StatusApproved, StatusException,
	},
	StatusNoMatch: {
		StatusProcessing, StatusPendingReview, StatusPendingApproval, StatusApproved, StatusException,
	},
	StatusPendingReview: {
		StatusProcessing, StatusPendingApproval, StatusApproved, StatusException,
		StatusRejected, StatusCancelled, StatusDisputed,
	},
	StatusPendingApproval: {
		StatusProcessing, StatusPendingReview, StatusApproved, StatusException,
		StatusRejected, StatusCancelled, StatusDisputed,
	},
	StatusApproved: {StatusPaid, StatusDisputed, StatusCancelled},
	StatusException: {
		StatusProcessing, StatusPendingReview, StatusPendingApproval,
		StatusRejected, StatusCancelled, StatusDisputed,
	},
	StatusPaid:      {StatusDisputed, StatusArchived},
	StatusRejected:  {StatusProcessing, StatusArchived},
	StatusCancelled: {StatusArchived},
	StatusDisputed:  {StatusPendingReview, StatusRejected, StatusPaid, StatusArchived},
	StatusArchived:  nil,
}

// CanTransition reports whether the status machine allows from -> to.
func CanTransition(from, to InvoiceStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s InvoiceStatus) bool {
	return len(transitions[s]) == 0
}

// IsFinalDisposition reports whether a pipeline run may end in s.
func IsFinalDisposition(s InvoiceStatus) bool {
	switch s {
	case StatusPendingReview, StatusPendingApproval, StatusApproved, StatusException:
		return true
	}
	return false
}
