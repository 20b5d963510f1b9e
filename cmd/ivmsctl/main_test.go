package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := parseIDs([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = parseIDs([]string{a.String(), "INV-1"})
	assert.ErrorContains(t, err, `invalid invoice id "INV-1"`)
}

func TestReadAttachment(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "Invoice.PDF")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7\n"), 0o600))
	xml := filepath.Join(dir, "order.xml")
	require.NoError(t, os.WriteFile(xml, []byte("<Invoice/>"), 0o600))
	noExt := filepath.Join(dir, "scan")
	require.NoError(t, os.WriteFile(noExt, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0o600))

	f, err := readAttachment(pdf)
	require.NoError(t, err)
	assert.Equal(t, "Invoice.PDF", f.Name)
	assert.Equal(t, "application/pdf", f.ContentType)

	f, err = readAttachment(xml)
	require.NoError(t, err)
	assert.Contains(t, []string{"text/xml", "application/xml"}, f.ContentType)

	f, err = readAttachment(noExt)
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType)

	_, err = readAttachment(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	want := []string{
		"migrate", "process", "analyze-fraud", "sweep-anomalies", "seed-vendors",
		"submit", "show", "resolve-exception", "dismiss-exception", "export",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, sub := range []string{"up", "down", "steps", "version"} {
		cmd, _, err := rootCmd.Find([]string{"migrate", sub})
		require.NoError(t, err, sub)
		assert.Equal(t, sub, cmd.Name())
	}
}

func TestProcess_RejectsBadIDsBeforeConnecting(t *testing.T) {
	cmd := processCmd()
	cmd.SetArgs([]string{"not-a-uuid"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()

	assert.ErrorContains(t, err, "invalid invoice id")
}
