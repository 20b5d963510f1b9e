package s3_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivms/internal/config"
	"ivms/internal/port"
	"ivms/internal/storage/s3"
)

func TestObjectKey(t *testing.T) {
	inv := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	file := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "invoice.pdf", "invoice.pdf"},
		{"strips directories", "../../etc/passwd", "passwd"},
		{"windows path", `C:\scans\inv 7.png`, "inv 7.png"},
		{"empty", "", "document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s3.ObjectKey(inv, file, tt.in)
			assert.Equal(t, "invoices/"+inv.String()+"/"+file.String()+"/"+tt.want, got)
		})
	}
}

func TestUpload_RejectsOversizedFiles(t *testing.T) {
	store, err := s3.NewS3Client(&config.S3Config{
		Region:        "us-east-1",
		Endpoint:      "http://127.0.0.1:1",
		AccessKey:     "test",
		SecretKey:     "test",
		MaxFileSizeMB: 1,
	})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), port.UploadInput{
		Bucket: "b",
		Key:    "k",
		Body:   strings.NewReader("x"),
		Size:   2 * 1024 * 1024,
	})

	assert.ErrorIs(t, err, s3.ErrFileTooLarge)
}
