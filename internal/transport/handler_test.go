package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anime-shed/face-inspector-go/internal/config"
	apperrors "github.com/anime-shed/face-inspector-go/internal/errors"
	"github.com/anime-shed/face-inspector-go/internal/service"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

type fakeService struct {
	result  models.QualityResult
	err     error
	lastRef service.ImageRef
	version int
	store   *thresholds.Store
}

func (f *fakeService) check(ref service.ImageRef, version int) (models.QualityResult, error) {
	f.lastRef, f.version = ref, version
	return f.result, f.err
}

func (f *fakeService) Check(_ context.Context, ref service.ImageRef, v int) (models.QualityResult, error) {
	return f.check(ref, v)
}

func (f *fakeService) CheckDetailed(_ context.Context, ref service.ImageRef, v int) (*models.DetailedReport, error) {
	res, err := f.check(ref, v)
	if err != nil {
		return nil, err
	}
	return &models.DetailedReport{InvocationID: "inv", Result: res, Acceptable: res.Acceptable()}, nil
}

func (f *fakeService) CheckBase64(_ context.Context, p string, v int) (models.QualityResult, error) {
	return f.check(service.ImageRef{Base64: p}, v)
}

func (f *fakeService) CheckURL(_ context.Context, u string, v int) (models.QualityResult, error) {
	return f.check(service.ImageRef{URL: u}, v)
}

func (f *fakeService) CheckBlob(_ context.Context, c, b string, v int) (models.QualityResult, error) {
	return f.check(service.ImageRef{Container: c, Blob: b}, v)
}

func (f *fakeService) CheckFile(_ context.Context, p string, v int) (models.QualityResult, error) {
	return f.check(service.ImageRef{Path: p}, v)
}

func (f *fakeService) Thresholds() thresholds.Thresholds { return f.store.Get() }

func (f *fakeService) UpdateThresholds(_ context.Context, patch map[string]float64) (thresholds.Thresholds, error) {
	next, err := f.store.Update(patch)
	if err != nil {
		return next, apperrors.NewValidationError("Invalid thresholds", err)
	}
	return next, nil
}

type staticMetrics map[string]interface{}

func (m staticMetrics) GetMetrics() map[string]interface{} { return m }

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(svc *fakeService) http.Handler {
	if svc.store == nil {
		svc.store = thresholds.NewStore("", thresholds.Defaults())
	}
	cfg := &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		CORSOrigins:        []string{"*"},
	}
	return NewHandler(svc, staticMetrics{"total_checks": 3}, cfg)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCheckEndpoints(t *testing.T) {
	face := models.QualityResult{FaceDetected: true, EyesIsGood: true}

	tests := []struct {
		name        string
		path        string
		body        string
		wantStatus  int
		wantRef     service.ImageRef
		wantVersion int
	}{
		{"base64", "/base64", `{"image":"data:image/jpeg;base64,AAAA","version":2}`, http.StatusOK,
			service.ImageRef{Base64: "data:image/jpeg;base64,AAAA"}, 2},
		{"url", "/url", `{"url":"https://example.com/a.jpg"}`, http.StatusOK,
			service.ImageRef{URL: "https://example.com/a.jpg"}, 0},
		{"blob", "/blob", `{"container":"photos","blob":"a.jpg","version":1}`, http.StatusOK,
			service.ImageRef{Container: "photos", Blob: "a.jpg"}, 1},
		{"missing image", "/base64", `{}`, http.StatusBadRequest, service.ImageRef{}, 0},
		{"missing url", "/url", `{"version":1}`, http.StatusBadRequest, service.ImageRef{}, 0},
		{"bad version", "/url", `{"url":"https://example.com/a.jpg","version":3}`, http.StatusBadRequest, service.ImageRef{}, 0},
		{"malformed json", "/base64", `{"image":`, http.StatusBadRequest, service.ImageRef{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: face}
			w := do(newTestHandler(svc), http.MethodPost, tt.path, tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				var resp models.ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
					t.Errorf("error body = %s", w.Body.String())
				}
				return
			}
			if svc.lastRef != tt.wantRef || svc.version != tt.wantVersion {
				t.Errorf("service saw %+v v%d, want %+v v%d", svc.lastRef, svc.version, tt.wantRef, tt.wantVersion)
			}
			var got models.QualityResult
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != face {
				t.Errorf("result = %+v", got)
			}
		})
	}
}

func TestCheckResponseIsFlat(t *testing.T) {
	w := do(newTestHandler(&fakeService{}), http.MethodPost, "/url", `{"url":"https://example.com/a.jpg"}`)
	var raw map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	keys := []string{"face_detected", "more_than_one_face", "eyes_is_good", "is_smiling",
		"contrast_is_good", "brightness_is_good", "face_is_centralized"}
	if len(raw) != len(keys) {
		t.Errorf("got %d fields, want %d: %v", len(raw), len(keys), raw)
	}
	for _, k := range keys {
		if v, ok := raw[k].(bool); !ok || v {
			t.Errorf("%s = %v, want false", k, raw[k])
		}
	}
}

func TestCheckServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"fetch", apperrors.NewNetworkError("Failed to fetch image", nil), http.StatusBadGateway},
		{"timeout", apperrors.NewTimeoutError("Image fetch timeout", nil), http.StatusGatewayTimeout},
		{"decode", apperrors.NewProcessingError("Unsupported image format", nil), http.StatusUnprocessableEntity},
		{"plain", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestHandler(&fakeService{err: tt.err}), http.MethodPost, "/url", `{"url":"https://example.com/a.jpg"}`)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	w := do(newTestHandler(&fakeService{err: apperrors.NewValidationError("No image provided", nil)}),
		http.MethodPost, "/base64", `{"image":"x"}`)
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "No image provided" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestCheckDetailedEndpoint(t *testing.T) {
	svc := &fakeService{result: models.QualityResult{FaceDetected: true}}
	h := newTestHandler(svc)

	w := do(h, http.MethodPost, "/check/detailed", `{"url":"https://example.com/a.jpg","version":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var report models.DetailedReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.InvocationID != "inv" || !report.Result.FaceDetected || svc.version != 2 {
		t.Errorf("report = %+v", report)
	}

	if w := do(h, http.MethodPost, "/check/detailed", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty detailed request status = %d", w.Code)
	}
}

func TestConfigEndpoints(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc)

	w := do(h, http.MethodGet, "/config", "")
	var values map[string]float64
	if err := json.Unmarshal(w.Body.Bytes(), &values); err != nil {
		t.Fatal(err)
	}
	if values[thresholds.KeyBrightnessThreshold] != thresholds.Defaults().BrightnessThreshold {
		t.Errorf("GET /config = %v", values)
	}

	w = do(h, http.MethodPatch, "/config", `{"brightness_threshold": 100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d: %s", w.Code, w.Body.String())
	}
	if svc.store.Get().BrightnessThreshold != 100 {
		t.Errorf("brightness = %v", svc.store.Get().BrightnessThreshold)
	}

	if w := do(h, http.MethodPatch, "/config", `{"face_center_threshold": 5}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid patch status = %d", w.Code)
	}
	if w := do(h, http.MethodPatch, "/config", `[1,2]`); w.Code != http.StatusBadRequest {
		t.Errorf("non-object patch status = %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestHandler(&fakeService{})

	w := do(h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"available"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}

	w = do(h, http.MethodGet, "/metrics", "")
	if !strings.Contains(w.Body.String(), `"total_checks":3`) {
		t.Errorf("metrics = %s", w.Body.String())
	}
}

func TestRequestSizeLimit(t *testing.T) {
	svc := &fakeService{store: thresholds.NewStore("", thresholds.Defaults())}
	cfg := &config.Config{RequestTimeout: time.Second, MaxRequestBodySize: 16}
	h := NewHandler(svc, nil, cfg)

	w := do(h, http.MethodPost, "/base64", `{"image":"`+strings.Repeat("A", 64)+`"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(&fakeService{})
	req := httptest.NewRequest(http.MethodOptions, "/config", nil)
	req.Header.Set("Origin", "http://tuning.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
