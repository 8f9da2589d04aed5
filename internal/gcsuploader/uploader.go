package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single upload.
const uploadTimeout = 2 * time.Minute

// Client uploads and downloads receipt photos. It assumes Application
// Default Credentials are configured (gcloud auth application-default login).
type Client struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewClient creates a Client writing receipts to bucket.
func NewClient(ctx context.Context, bucket string) (*Client, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewClient: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create storage client: %w", err)
	}
	return &Client{client: client, bucket: bucket, now: time.Now}, nil
}

// Close closes the storage client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// UploadReceipt stores a receipt photo under a fresh object name and returns
// its gs:// URI.
func (c *Client) UploadReceipt(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("UploadReceipt: user id is required")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("UploadReceipt: empty upload")
	}

	object := ReceiptObjectName(userID, c.now(), contentType)
	if err := c.upload(ctx, object, contentType, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("UploadReceipt: %w", err)
	}
	return URI(c.bucket, object), nil
}

// UploadFile uploads a local file under the given object name and returns
// its gs:// URI.
func (c *Client) UploadFile(ctx context.Context, objectName, filePath, contentType string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	if err := c.upload(ctx, objectName, contentType, f); err != nil {
		return "", fmt.Errorf("UploadFile: %w", err)
	}
	return URI(c.bucket, objectName), nil
}

func (c *Client) upload(ctx context.Context, objectName, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := c.client.Bucket(c.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// FetchFromGCS downloads the object bytes from the given GCS URI.
func (c *Client) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: %w", err)
	}

	rc, err := c.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}
