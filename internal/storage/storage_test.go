package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcela/internal/config"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		size     int64
		wantType string
		wantErr  error
	}{
		{"pdf", "passport.pdf", 1024, "application/pdf", nil},
		{"upper case jpeg", "ID.JPEG", 2048, "image/jpeg", nil},
		{"png", "proof.png", MaxUploadBytes, "image/png", nil},
		{"too large", "big.pdf", MaxUploadBytes + 1, "", ErrTooLarge},
		{"word doc", "letter.docx", 10, "", ErrUnsupportedType},
		{"no extension", "scan", 10, "", ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := ValidateUpload(tt.file, tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ct)
		})
	}
}

func TestObjectKey(t *testing.T) {
	a := ObjectKey("user-1", "id", "Passport.PDF")
	b := ObjectKey("user-1", "id", "Passport.PDF")
	assert.True(t, strings.HasPrefix(a, "kyc/user-1/id/"))
	assert.True(t, strings.HasSuffix(a, ".pdf"))
	assert.NotEqual(t, a, b)
}

func TestNew_DisabledWithoutBucket(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "k", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewS3Store_BaseURL(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Bucket: "docs", Region: "us-west-2", AccessKeyID: "k", SecretAccessKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://docs.s3.us-west-2.amazonaws.com", store.baseURL)

	custom, err := NewS3Store(context.Background(), config.StorageConfig{
		Bucket: "docs", Region: "us-east-1", Endpoint: "http://localhost:9000", ForcePathStyle: true,
		AccessKeyID: "k", SecretAccessKey: "s", PublicBaseURL: "http://localhost:9000/docs/",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/docs", custom.baseURL)
}
