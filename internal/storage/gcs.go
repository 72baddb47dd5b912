package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// GCSStore implements BlobStore on a Google Cloud Storage bucket. Locators are
// object names within the configured bucket.
type GCSStore struct {
	client     *storage.Client
	bucketName string
}

func NewGCSStore(ctx context.Context, bucketName, credentialsPath string) (*GCSStore, error) {
	var client *storage.Client
	var err error

	if credentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (g *GCSStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	obj := g.client.Bucket(g.bucketName).Object(key)
	writer := obj.NewWriter(ctx)
	writer.ContentType = docxMimeType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to copy data to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return key, nil
}

func (g *GCSStore) Read(ctx context.Context, locator string) ([]byte, error) {
	reader, err := g.client.Bucket(g.bucketName).Object(locator).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %s: %w", locator, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", locator, err)
	}
	return data, nil
}

func (g *GCSStore) Delete(ctx context.Context, locator string) error {
	return g.client.Bucket(g.bucketName).Object(locator).Delete(ctx)
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}
