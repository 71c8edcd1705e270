package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

var ErrBlobNotFound = errors.New("blob not found")

type BlobStorage interface {
	GetImage(ctx context.Context, container, blobName string) (image.Image, error)
	PutObject(ctx context.Context, container, blobName, contentType string, data []byte) (string, error)
}

type azureStorage struct {
	client     *azblob.Client
	serviceURL string
}

// NewAzureStorage connects with a shared key. An empty serviceURL uses the
// public endpoint of the account.
func NewAzureStorage(accountName, accountKey, serviceURL string) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage credential: %w", err)
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return &azureStorage{client: client, serviceURL: serviceURL}, nil
}

func (s *azureStorage) GetImage(ctx context.Context, container, blobName string) (image.Image, error) {
	resp, err := s.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrBlobNotFound, container, blobName)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	img, _, err := Decode(data)
	return img, err
}

// PutObject uploads data and returns the blob URL.
func (s *azureStorage) PutObject(ctx context.Context, container, blobName, contentType string, data []byte) (string, error) {
	_, err := s.client.UploadStream(ctx, container, blobName, bytes.NewReader(data), &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.serviceURL, container, blobName), nil
}
