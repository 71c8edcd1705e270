package repository

import (
	"context"
	"image"
)

// ImageRepository resolves every supported image source into a decoded
// image. Errors are AppErrors carrying the HTTP status of the failure.
type ImageRepository interface {
	// FromURL fetches an image over HTTP(S)
	FromURL(ctx context.Context, imageURL string) (image.Image, error)

	// FromBase64 decodes an inline image, with or without a data URI header
	FromBase64(ctx context.Context, payload string) (image.Image, error)

	// FromBlob downloads an image from the configured blob account
	FromBlob(ctx context.Context, container, blob string) (image.Image, error)

	// FromFile reads an image from local disk
	FromFile(ctx context.Context, path string) (image.Image, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}
