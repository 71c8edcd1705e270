package validation

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	apperrors "github.com/anime-shed/face-inspector-go/internal/errors"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
)

// maxURLLength bounds image URLs accepted by the API.
const maxURLLength = 2048

// Azure container names: 3-63 chars, lowercase letters, digits and single hyphens.
var containerName = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9]){2,62}$`)

// SourceValidator checks where an image comes from before anything is fetched.
type SourceValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewSourceValidator allows http and https URLs on any host.
func NewSourceValidator() *SourceValidator {
	return &SourceValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// NewSourceValidatorWithOptions restricts URLs to the given schemes and hosts.
// An empty host list allows every host.
func NewSourceValidatorWithOptions(schemes []string, hosts []string) *SourceValidator {
	return &SourceValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateImageURL validates if the provided URL can be fetched for a check
func (v *SourceValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}
	if len(imageURL) > maxURLLength {
		return apperrors.NewValidationError("URL is too long", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !slices.Contains(v.allowedSchemes, parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !slices.Contains(v.allowedHosts, parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// ValidateBlobRef checks an Azure container/blob pair.
func (v *SourceValidator) ValidateBlobRef(container, blob string) error {
	if !containerName.MatchString(container) {
		return apperrors.NewValidationError("Invalid container name", nil)
	}
	blob = strings.TrimSpace(blob)
	if blob == "" || len(blob) > 1024 {
		return apperrors.NewValidationError("Invalid blob name", nil)
	}
	if strings.HasSuffix(blob, "/") {
		return apperrors.NewValidationError("Blob name must not end with a slash", nil)
	}
	return nil
}

// ValidateThresholdsPatch rejects empty patches and unknown keys before the
// store applies its own range checks.
func ValidateThresholdsPatch(patch map[string]float64) error {
	if len(patch) == 0 {
		return apperrors.NewValidationError("No thresholds to update", nil)
	}
	known := thresholds.Defaults().ToMap()
	for key := range patch {
		if _, ok := known[key]; !ok {
			err := apperrors.NewValidationError("Unknown threshold", nil)
			err.Details = key
			return err
		}
	}
	return nil
}
