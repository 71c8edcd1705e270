package repository

import (
	"context"
	"errors"
	"image"
	"os"

	apperrors "github.com/anime-shed/face-inspector-go/internal/errors"
	"github.com/anime-shed/face-inspector-go/internal/storage"
	"github.com/anime-shed/face-inspector-go/pkg/validation"
)

// ErrBlobStorageDisabled is returned by FromBlob when no account is configured.
var ErrBlobStorageDisabled = errors.New("blob storage not configured")

type imageRepository struct {
	fetcher   storage.ImageFetcher
	blobs     storage.BlobStorage
	validator *validation.SourceValidator
}

// NewImageRepository wires the image sources. blobs may be nil.
func NewImageRepository(fetcher storage.ImageFetcher, blobs storage.BlobStorage, validator *validation.SourceValidator) ImageRepository {
	return &imageRepository{
		fetcher:   fetcher,
		blobs:     blobs,
		validator: validator,
	}
}

func (r *imageRepository) ValidateImageURL(imageURL string) error {
	return r.validator.ValidateImageURL(imageURL)
}

func (r *imageRepository) FromURL(ctx context.Context, imageURL string) (image.Image, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	img, err := r.fetcher.FetchImage(ctx, imageURL)
	if err != nil {
		return nil, classify("Failed to fetch image", err, apperrors.NewNetworkError)
	}
	return img, nil
}

func (r *imageRepository) FromBase64(ctx context.Context, payload string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("Request cancelled", err)
	}
	img, err := storage.DecodeBase64(payload)
	if err != nil {
		return nil, classify("Invalid image payload", err, apperrors.NewValidationError)
	}
	return img, nil
}

func (r *imageRepository) FromBlob(ctx context.Context, container, blob string) (image.Image, error) {
	if r.blobs == nil {
		return nil, apperrors.NewConfigurationError("Blob storage is not configured", ErrBlobStorageDisabled)
	}
	if err := r.validator.ValidateBlobRef(container, blob); err != nil {
		return nil, err
	}
	img, err := r.blobs.GetImage(ctx, container, blob)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, apperrors.NewNotFoundError("Blob not found", err)
		}
		return nil, classify("Failed to download blob", err, apperrors.NewNetworkError)
	}
	return img, nil
}

func (r *imageRepository) FromFile(_ context.Context, path string) (image.Image, error) {
	img, err := storage.LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("Image file not found", err)
		}
		return nil, classify("Failed to read image file", err, apperrors.NewInternalError)
	}
	return img, nil
}

// classify maps storage failures onto the error taxonomy. Errors it does not
// recognise are built with fallback.
func classify(message string, err error, fallback func(string, error) *apperrors.AppError) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Image fetch timeout", err)
	case errors.Is(err, storage.ErrUnsupportedFormat):
		return apperrors.NewProcessingError("Unsupported image format", err)
	case errors.Is(err, storage.ErrImageTooLarge):
		return apperrors.NewValidationError("Image is too large", err)
	case errors.Is(err, storage.ErrEmptyImage):
		return apperrors.NewValidationError("Image payload is empty", err)
	}
	return fallback(message, err)
}
