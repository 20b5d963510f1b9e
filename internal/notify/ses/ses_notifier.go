package ses

import (
	"context"
	"fmt"
	"html"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"ivms/internal/config"
	"ivms/internal/domain"
	"ivms/internal/port"
)

// emailAPI is the subset of the SES client used here.
type emailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client      emailAPI
	fromAddress string
	fromName    string
	recipients  []string
}

// NewSESNotifier creates an SES-backed ExceptionNotifier that mails the AP team.
func NewSESNotifier(cfg *config.NotifyConfig) (port.ExceptionNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(awsCfg), cfg), nil
}

// NewSESNotifierWithClient creates a notifier on an explicit client (for testing).
func NewSESNotifierWithClient(client emailAPI, cfg *config.NotifyConfig) port.ExceptionNotifier {
	return &sesNotifier{
		client:      client,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		recipients:  cfg.Recipients,
	}
}

func (s *sesNotifier) NotifyException(ctx context.Context, exc *domain.InvoiceException, inv *domain.Invoice) error {
	if len(s.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("[%s] %s: invoice %s", strings.ToUpper(string(exc.Severity)), exc.Title, inv.InvoiceNumber)
	textBody := buildExceptionText(exc, inv)
	htmlBody := buildExceptionHTML(exc, inv)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildExceptionText(exc *domain.InvoiceException, inv *domain.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", exc.Description)
	fmt.Fprintf(&b, "Invoice:   %s (%s)\n", inv.InvoiceNumber, inv.ID)
	fmt.Fprintf(&b, "Vendor:    %s\n", inv.VendorName)
	fmt.Fprintf(&b, "Amount:    %s %s\n", inv.TotalAmount.StringFixed(2), inv.Currency)
	fmt.Fprintf(&b, "Priority:  %d\n", exc.Priority)
	fmt.Fprintf(&b, "Respond by %s, resolve by %s\n",
		exc.ResponseDueAt.UTC().Format("2006-01-02 15:04 MST"),
		exc.ResolutionDueAt.UTC().Format("2006-01-02 15:04 MST"))
	if len(exc.SuggestedActions) > 0 {
		b.WriteString("\nSuggested actions:\n")
		for _, a := range exc.SuggestedActions {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}
	return b.String()
}

func buildExceptionHTML(exc *domain.InvoiceException, inv *domain.Invoice) string {
	var actions strings.Builder
	for _, a := range exc.SuggestedActions {
		fmt.Fprintf(&actions, "<li>%s</li>", html.EscapeString(a))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">%s</h2>
  <p>%s</p>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Invoice</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Vendor</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Amount</td><td>%s %s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Priority</td><td>%d</td></tr>
  </table>
  <ul>%s</ul>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Resolve by %s</p>
</body>
</html>`,
		html.EscapeString(exc.Title),
		html.EscapeString(exc.Description),
		html.EscapeString(inv.InvoiceNumber),
		html.EscapeString(inv.VendorName),
		inv.TotalAmount.StringFixed(2), html.EscapeString(inv.Currency),
		exc.Priority,
		actions.String(),
		exc.ResolutionDueAt.UTC().Format("2006-01-02 15:04 MST"),
	)
}
