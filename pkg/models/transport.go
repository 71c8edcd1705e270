package models

// Base64Request carries an inline image, optionally prefixed with a data URI header.
type Base64Request struct {
	Image   string `json:"image" binding:"required"`
	Version int    `json:"version,omitempty" binding:"omitempty,oneof=1 2"`
}

// URLRequest points at an image reachable over HTTP(S).
type URLRequest struct {
	URL     string `json:"url" binding:"required"`
	Version int    `json:"version,omitempty" binding:"omitempty,oneof=1 2"`
}

// BlobRequest points at an image stored in an Azure blob container.
type BlobRequest struct {
	Container string `json:"container" binding:"required"`
	Blob      string `json:"blob" binding:"required"`
	Version   int    `json:"version,omitempty" binding:"omitempty,oneof=1 2"`
}

// DetailedRequest accepts either an inline image or a URL.
type DetailedRequest struct {
	Image   string `json:"image,omitempty"`
	URL     string `json:"url,omitempty"`
	Version int    `json:"version,omitempty" binding:"omitempty,oneof=1 2"`
}

// ThresholdsPatch updates named thresholds of the tuning store.
type ThresholdsPatch map[string]float64

// ErrorResponse is the {"error": ...} body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
