package gcsuploader

import (
	"context"
)

// StorageService stores and fetches receipt photos.
// This interface enables mocking and testing of storage functionality.
// Consumers usually declare the subset they need.
type StorageService interface {
	// UploadReceipt stores a receipt photo for a user and returns its gs:// URI.
	UploadReceipt(ctx context.Context, userID string, data []byte, contentType string) (string, error)

	// UploadFile uploads a local file under objectName and returns its gs:// URI.
	UploadFile(ctx context.Context, objectName, filePath, contentType string) (string, error)

	// FetchFromGCS downloads object bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

var _ StorageService = (*Client)(nil)
