package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository/memory"
	"github.com/stwalsh4118/parcela/internal/storage"
	"github.com/stwalsh4118/parcela/internal/subdivision"
)

// MockBlobStore is a mock implementation of storage.BlobStore for testing.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	args := m.Called(ctx, key, contentType, body)
	return args.String(0), args.Error(1)
}

func TestDocumentService_Upload(t *testing.T) {
	store := memory.New().Store()
	blobs := new(MockBlobStore)
	svc := NewDocumentService(store.Documents, blobs, logger.Nop())
	ctx := context.Background()

	blobs.On("Put", ctx, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "kyc/buyer/id/") && strings.HasSuffix(key, ".pdf")
	}), "application/pdf", mock.Anything).Return("https://cdn.example.com/kyc/buyer/id/x.pdf", nil).Once()

	doc, err := svc.Upload(ctx, Upload{UserID: "buyer", Type: "id", FileName: "passport.pdf", Size: 1024, Body: strings.NewReader("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentPending, doc.Status)
	assert.Equal(t, "https://cdn.example.com/kyc/buyer/id/x.pdf", doc.FileURL)

	docs, err := svc.List(ctx, "buyer")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	blobs.AssertExpectations(t)
}

func TestDocumentService_UploadRejectedBeforeStorage(t *testing.T) {
	store := memory.New().Store()
	blobs := new(MockBlobStore)
	svc := NewDocumentService(store.Documents, blobs, logger.Nop())
	ctx := context.Background()

	tests := []struct {
		name    string
		upload  Upload
		wantErr error
	}{
		{"too large", Upload{UserID: "u", Type: "id", FileName: "a.pdf", Size: storage.MaxUploadBytes + 1}, storage.ErrTooLarge},
		{"bad type", Upload{UserID: "u", Type: "id", FileName: "a.exe", Size: 10}, storage.ErrUnsupportedType},
		{"missing type", Upload{UserID: "u", Type: " ", FileName: "a.pdf", Size: 10}, ErrInvalidDocumentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.upload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	blobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_StorageDisabled(t *testing.T) {
	store := memory.New().Store()
	svc := NewDocumentService(store.Documents, storage.DisabledStore{}, logger.Nop())

	_, err := svc.Upload(context.Background(), Upload{UserID: "u", Type: "id", FileName: "a.png", Size: 10, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, storage.ErrDisabled)
}

func TestDocumentService_Review(t *testing.T) {
	store := memory.New().Store()
	svc := NewDocumentService(store.Documents, storage.DisabledStore{}, logger.Nop())
	ctx := context.Background()

	doc, err := store.Documents.Create(ctx, models.Document{UserID: "u", Type: "id", FileName: "a.pdf"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, doc.ID, models.DocumentPending, "")
	assert.ErrorIs(t, err, ErrInvalidReview)

	reviewed, err := svc.Review(ctx, doc.ID, models.DocumentRejected, "blurry")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentRejected, reviewed.Status)
	assert.Equal(t, "blurry", reviewed.ReviewNotes)

	_, err = svc.Review(ctx, "missing", models.DocumentApproved, "")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSeedService(t *testing.T) {
	store := memory.New().Store()
	svc := NewSeedService(store.Catalog, store.Lots, logger.Nop())

	summary, err := svc.Seed(context.Background(), subdivision.Catalog(), subdivision.DefaultGrid())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Zones)
	assert.Equal(t, 120, summary.Lots)
	total := 0
	for _, n := range summary.ByStatus {
		total += n
	}
	assert.Equal(t, 120, total)

	_, err = svc.Seed(context.Background(), subdivision.Catalog(), subdivision.Grid{})
	assert.Error(t, err)
}
