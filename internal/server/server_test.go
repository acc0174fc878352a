package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArunBabu98/sellist-server/internal/ebay"
	"github.com/ArunBabu98/sellist-server/internal/listing"
	"github.com/ArunBabu98/sellist-server/internal/pipeline"
	"github.com/ArunBabu98/sellist-server/internal/storage"
)

type fakeGenerator struct {
	outcome pipeline.Outcome
	images  []pipeline.ImageInput
	opts    pipeline.Options
}

func (f *fakeGenerator) Run(_ context.Context, images []pipeline.ImageInput, opts pipeline.Options) pipeline.Outcome {
	f.images = images
	f.opts = opts
	return f.outcome
}

type fakeRunLogger struct {
	records []storage.RunRecord
}

func (f *fakeRunLogger) LogRun(rec storage.RunRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func multipartBody(t *testing.T, options string, images ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, img := range images {
		part, err := mw.CreateFormFile("images", "photo.jpg")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	if options != "" {
		require.NoError(t, mw.WriteField("options", options))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestGenerateSuccess(t *testing.T) {
	payload := &listing.Payload{Title: "Nike Air Max 90 Size 10"}
	gen := &fakeGenerator{outcome: pipeline.Outcome{
		Status:  pipeline.StatusSuccess,
		Payload: payload,
		Meta: pipeline.Meta{
			CorrelationID:  "corr-1",
			ProcessingTime: 4200 * time.Millisecond,
		},
	}}
	runLog := &fakeRunLogger{}
	srv := New(gen, runLog, false)

	body, contentType := multipartBody(t, `{"userProvidedCondition": "Like New"}`, []byte("fake-jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/api/listings/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.NotNil(t, resp["listing"])
	meta := resp["metadata"].(map[string]any)
	assert.Equal(t, "corr-1", meta["correlationId"])
	assert.Equal(t, float64(4200), meta["processingTime"])

	// Images and options reached the pipeline
	require.Len(t, gen.images, 1)
	assert.Equal(t, []byte("fake-jpeg"), gen.images[0].Data)
	assert.Equal(t, "Like New", gen.opts.UserProvidedCondition)

	// Outcome was logged
	require.Len(t, runLog.records, 1)
	assert.Equal(t, "corr-1", runLog.records[0].CorrelationID)
	assert.Equal(t, "success", runLog.records[0].Status)
	assert.Equal(t, "Nike Air Max 90 Size 10", runLog.records[0].Title)
}

func TestGenerateRejected(t *testing.T) {
	gen := &fakeGenerator{outcome: pipeline.Outcome{
		Status:  pipeline.StatusRejected,
		Reason:  pipeline.ReasonPolicyViolation,
		Details: "item appears to be a prohibited weapon",
		Meta:    pipeline.Meta{CorrelationID: "corr-2"},
	}}
	srv := New(gen, nil, false)

	body, contentType := multipartBody(t, "", []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/api/listings/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, true, resp["rejected"])
	assert.Equal(t, "EBAY_POLICY_VIOLATION", resp["reason"])
	assert.Equal(t, "item appears to be a prohibited weapon", resp["details"])
}

func TestGenerateRequiresReview(t *testing.T) {
	gen := &fakeGenerator{outcome: pipeline.Outcome{
		Status:  pipeline.StatusRequiresReview,
		Reason:  pipeline.ReasonManualReview,
		Details: "identification confidence 0.40 below threshold",
		Meta:    pipeline.Meta{CorrelationID: "corr-3"},
	}}
	srv := New(gen, nil, false)

	body, contentType := multipartBody(t, "", []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/api/listings/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, true, resp["requiresReview"])
	assert.Nil(t, resp["rejected"])
	assert.Equal(t, "MANUAL_REVIEW_REQUIRED", resp["reason"])
}

func TestGenerateInvalidInputIs400(t *testing.T) {
	gen := &fakeGenerator{outcome: pipeline.Outcome{
		Status:  pipeline.StatusInvalid,
		Reason:  pipeline.ReasonInvalidInput,
		Details: "no images provided",
		Meta:    pipeline.Meta{CorrelationID: "corr-4"},
	}}
	srv := New(gen, nil, false)

	body, contentType := multipartBody(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/listings/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineErrorDetailsSuppressedOutsideDevMode(t *testing.T) {
	outcome := pipeline.Outcome{
		Status:  pipeline.StatusRejected,
		Reason:  pipeline.ReasonPipelineError,
		Details: "grounding phase failed: connection reset by peer",
		Meta:    pipeline.Meta{CorrelationID: "corr-5"},
	}

	for _, tc := range []struct {
		name    string
		devMode bool
		wantRaw bool
	}{
		{name: "production hides internals", devMode: false, wantRaw: false},
		{name: "dev mode passes internals through", devMode: true, wantRaw: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := New(&fakeGenerator{outcome: outcome}, nil, tc.devMode)

			body, contentType := multipartBody(t, "", []byte("img"))
			req := httptest.NewRequest(http.MethodPost, "/api/listings/generate", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadGateway, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tc.wantRaw {
				assert.Contains(t, resp["details"], "connection reset")
			} else {
				assert.NotContains(t, resp["details"], "connection reset")
			}
		})
	}
}

func TestGenerateUnsupportedContentType(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, false)

	req := httptest.NewRequest(http.MethodPost, "/api/listings/generate", bytes.NewBufferString("hello"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDownloadJSONBody(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("remote-jpeg-bytes"))
	}))
	defer imageServer.Close()

	gen := &fakeGenerator{outcome: pipeline.Outcome{Status: pipeline.StatusSuccess, Payload: &listing.Payload{}}}
	srv := New(gen, nil, false)

	reqBody, err := json.Marshal(map[string]any{
		"imageUrls": []string{imageServer.URL + "/a.jpg", imageServer.URL + "/b.jpg"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/listings/generate", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.images, 2)
	assert.Equal(t, []byte("remote-jpeg-bytes"), gen.images[0].Data)
	assert.Equal(t, "image/jpeg", gen.images[0].MIMEType)
	assert.Equal(t, 1, gen.images[1].Index)
}

type fakePublisher struct {
	result    *ebay.PublishResult
	err       error
	published *publishRequest
	uploads   int
}

func (f *fakePublisher) UploadImage(_ context.Context, data []byte, mimeType string) (string, error) {
	f.uploads++
	return fmt.Sprintf("https://i.ebayimg.com/%d", f.uploads), nil
}

func (f *fakePublisher) PublishPayload(_ context.Context, sku string, p *listing.Payload, imageURLs []string, postalCode string) (*ebay.PublishResult, error) {
	f.published = &publishRequest{SKU: sku, Payload: p, ImageURLs: imageURLs, PostalCode: postalCode}
	return f.result, f.err
}

func TestPublishUnavailableWithoutCredentials(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, false)

	req := httptest.NewRequest(http.MethodPost, "/api/listings/publish", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPublishJSON(t *testing.T) {
	pub := &fakePublisher{result: &ebay.PublishResult{SKU: "sku-1", ListingID: "110123456"}}
	srv := New(&fakeGenerator{}, nil, false).WithPublisher(pub)

	body, err := json.Marshal(map[string]any{
		"sku":        "sku-1",
		"payload":    listing.Payload{Title: "Nike Air Max 90"},
		"imageUrls":  []string{"https://i.ebayimg.com/1"},
		"postalCode": "98101",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/listings/publish", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, pub.published)
	assert.Equal(t, "sku-1", pub.published.SKU)
	assert.Equal(t, "Nike Air Max 90", pub.published.Payload.Title)
	assert.Equal(t, "98101", pub.published.PostalCode)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	result := resp["result"].(map[string]any)
	assert.Equal(t, "110123456", result["listingId"])
}

func TestPublishMissingSKU(t *testing.T) {
	pub := &fakePublisher{result: &ebay.PublishResult{}}
	srv := New(&fakeGenerator{}, nil, false).WithPublisher(pub)

	req := httptest.NewRequest(http.MethodPost, "/api/listings/publish", bytes.NewBufferString(`{"payload": {}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, pub.published)
}
