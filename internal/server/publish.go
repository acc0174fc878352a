package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ArunBabu98/sellist-server/internal/listing"
)

// publishRequest is the JSON body variant of the publish endpoint: a
// generated payload plus already-hosted image URLs.
type publishRequest struct {
	SKU        string           `json:"sku"`
	Payload    *listing.Payload `json:"payload"`
	ImageURLs  []string         `json:"imageUrls"`
	PostalCode string           `json:"postalCode"`
}

type publishResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  any    `json:"result,omitempty"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, publishResponse{
			Success: false,
			Error:   "publishing is not configured; set eBay credentials",
		})
		return
	}

	ctx := r.Context()

	var req publishRequest
	var err error
	contentType := r.Header.Get("Content-Type")
	switch {
	case hasMediaType(contentType, "application/json"):
		err = json.NewDecoder(r.Body).Decode(&req)
	case hasMediaType(contentType, "multipart/form-data"):
		req, err = s.parsePublishMultipart(w, r)
	default:
		err = fmt.Errorf("unsupported content type %q", contentType)
	}
	if err == nil && (req.SKU == "" || req.Payload == nil) {
		err = fmt.Errorf("sku and payload are required")
	}
	if err != nil {
		log.Warn().Err(err).Msg("rejecting malformed publish request")
		writeJSON(w, http.StatusBadRequest, publishResponse{Success: false, Error: err.Error()})
		return
	}

	result, err := s.publisher.PublishPayload(ctx, req.SKU, req.Payload, req.ImageURLs, req.PostalCode)
	if err != nil {
		log.Error().Err(err).Str("sku", req.SKU).Msg("publish failed")
		msg := err.Error()
		if !s.devMode {
			msg = "publish failed; see server logs"
		}
		writeJSON(w, http.StatusBadGateway, publishResponse{Success: false, Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{Success: true, Result: result})
}

// parsePublishMultipart accepts raw image files alongside the payload and
// hosts them via the marketplace media service before publishing.
func (s *Server) parsePublishMultipart(w http.ResponseWriter, r *http.Request) (publishRequest, error) {
	var req publishRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return req, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	req.SKU = r.FormValue("sku")
	req.PostalCode = r.FormValue("postalCode")
	if raw := r.FormValue("payload"); raw != "" {
		req.Payload = &listing.Payload{}
		if err := json.Unmarshal([]byte(raw), req.Payload); err != nil {
			return req, fmt.Errorf("failed to parse payload: %w", err)
		}
	}

	if r.MultipartForm == nil {
		return req, nil
	}
	for i, fh := range r.MultipartForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			return req, fmt.Errorf("failed to open image part %d: %w", i, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return req, fmt.Errorf("failed to read image part %d: %w", i, err)
		}
		url, err := s.publisher.UploadImage(r.Context(), data, fh.Header.Get("Content-Type"))
		if err != nil {
			return req, fmt.Errorf("failed to upload image %d: %w", i, err)
		}
		req.ImageURLs = append(req.ImageURLs, url)
	}

	return req, nil
}
