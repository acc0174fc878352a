package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ArunBabu98/sellist-server/internal/ebay"
	"github.com/ArunBabu98/sellist-server/internal/listing"
	"github.com/ArunBabu98/sellist-server/internal/pipeline"
	"github.com/ArunBabu98/sellist-server/internal/storage"
)

// maxRequestBytes bounds a whole multipart request body.
const maxRequestBytes = 256 * 1024 * 1024

// Generator runs the listing pipeline. Satisfied by *pipeline.Pipeline.
type Generator interface {
	Run(ctx context.Context, images []pipeline.ImageInput, opts pipeline.Options) pipeline.Outcome
}

// RunLogger records pipeline outcomes. Satisfied by storage.Store.
type RunLogger interface {
	LogRun(rec storage.RunRecord) error
}

// Publisher pushes a generated payload to the marketplace. Satisfied by
// *ebay.Client.
type Publisher interface {
	UploadImage(ctx context.Context, data []byte, mimeType string) (string, error)
	PublishPayload(ctx context.Context, sku string, p *listing.Payload, imageURLs []string, postalCode string) (*ebay.PublishResult, error)
}

// Server is the HTTP boundary in front of the pipeline.
type Server struct {
	generator  Generator
	runLog     RunLogger
	publisher  Publisher
	downloader *ImageDownloader
	devMode    bool
}

// New creates a Server. runLog may be nil to disable run logging.
func New(generator Generator, runLog RunLogger, devMode bool) *Server {
	return &Server{
		generator:  generator,
		runLog:     runLog,
		downloader: NewImageDownloader(),
		devMode:    devMode,
	}
}

// WithPublisher enables the publish endpoint.
func (s *Server) WithPublisher(p Publisher) *Server {
	s.publisher = p
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/listings/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/listings/publish", s.handlePublish)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestOptions is the wire form of the caller's options bag.
type requestOptions struct {
	MarketData            []pipeline.SoldComp    `json:"marketData"`
	SellerConfig          *pipeline.SellerConfig `json:"sellerConfig"`
	UserProvidedCondition string                 `json:"userProvidedCondition"`
}

func (o requestOptions) toPipeline() pipeline.Options {
	return pipeline.Options{
		MarketData:            o.MarketData,
		SellerConfig:          o.SellerConfig,
		UserProvidedCondition: o.UserProvidedCondition,
	}
}

// generateRequest is the JSON body variant: images by URL.
type generateRequest struct {
	ImageURLs []string       `json:"imageUrls"`
	Options   requestOptions `json:"options"`
}

type responseMetadata struct {
	CorrelationID    string `json:"correlationId"`
	ProcessingTimeMs int64  `json:"processingTime"`
}

type generateResponse struct {
	Success        bool             `json:"success"`
	Rejected       bool             `json:"rejected,omitempty"`
	RequiresReview bool             `json:"requiresReview,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Details        string           `json:"details,omitempty"`
	Listing        any              `json:"listing,omitempty"`
	Metadata       responseMetadata `json:"metadata"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		images []pipeline.ImageInput
		opts   pipeline.Options
		err    error
	)

	contentType := r.Header.Get("Content-Type")
	switch {
	case hasMediaType(contentType, "multipart/form-data"):
		images, opts, err = s.parseMultipart(w, r)
	case hasMediaType(contentType, "application/json"):
		images, opts, err = s.parseJSON(ctx, r)
	default:
		err = fmt.Errorf("unsupported content type %q", contentType)
	}
	if err != nil {
		log.Warn().Err(err).Msg("rejecting malformed generate request")
		writeJSON(w, http.StatusBadRequest, generateResponse{
			Success:  false,
			Rejected: true,
			Reason:   pipeline.ReasonInvalidInput,
			Details:  err.Error(),
		})
		return
	}

	outcome := s.generator.Run(ctx, images, opts)
	s.logRun(outcome)
	s.writeOutcome(w, outcome)
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) ([]pipeline.ImageInput, pipeline.Options, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, pipeline.Options{}, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	var opts requestOptions
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return nil, pipeline.Options{}, fmt.Errorf("failed to parse options: %w", err)
		}
	}

	var images []pipeline.ImageInput
	if r.MultipartForm != nil {
		for i, fh := range r.MultipartForm.File["images"] {
			f, err := fh.Open()
			if err != nil {
				return nil, pipeline.Options{}, fmt.Errorf("failed to open image part %d: %w", i, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, pipeline.Options{}, fmt.Errorf("failed to read image part %d: %w", i, err)
			}
			images = append(images, pipeline.ImageInput{
				Data:     data,
				MIMEType: fh.Header.Get("Content-Type"),
				Index:    i,
			})
		}
	}

	return images, opts.toPipeline(), nil
}

func (s *Server) parseJSON(ctx context.Context, r *http.Request) ([]pipeline.ImageInput, pipeline.Options, error) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, pipeline.Options{}, fmt.Errorf("failed to decode request body: %w", err)
	}

	images := make([]pipeline.ImageInput, len(req.ImageURLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range req.ImageURLs {
		g.Go(func() error {
			data, mimeType, err := s.downloader.DownloadFromURL(gctx, url)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			images[i] = pipeline.ImageInput{Data: data, MIMEType: mimeType, Index: i}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pipeline.Options{}, err
	}

	return images, req.Options.toPipeline(), nil
}

func (s *Server) writeOutcome(w http.ResponseWriter, outcome pipeline.Outcome) {
	meta := responseMetadata{
		CorrelationID:    outcome.Meta.CorrelationID,
		ProcessingTimeMs: outcome.Meta.ProcessingTime.Milliseconds(),
	}

	switch outcome.Status {
	case pipeline.StatusSuccess:
		writeJSON(w, http.StatusOK, generateResponse{
			Success:  true,
			Listing:  outcome.Payload,
			Metadata: meta,
		})
	case pipeline.StatusRequiresReview:
		writeJSON(w, http.StatusOK, generateResponse{
			Success:        false,
			RequiresReview: true,
			Reason:         outcome.Reason,
			Details:        outcome.Details,
			Metadata:       meta,
		})
	case pipeline.StatusInvalid:
		writeJSON(w, http.StatusBadRequest, generateResponse{
			Success:  false,
			Rejected: true,
			Reason:   outcome.Reason,
			Details:  outcome.Details,
			Metadata: meta,
		})
	default:
		details := outcome.Details
		if outcome.Reason == pipeline.ReasonPipelineError && !s.devMode {
			// Internal failure details stay in the logs outside dev mode.
			details = "listing generation failed; please try again"
		}
		status := http.StatusOK
		if outcome.Reason == pipeline.ReasonPipelineError {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, generateResponse{
			Success:  false,
			Rejected: true,
			Reason:   outcome.Reason,
			Details:  details,
			Metadata: meta,
		})
	}
}

func (s *Server) logRun(outcome pipeline.Outcome) {
	if s.runLog == nil {
		return
	}
	rec := storage.RunRecord{
		CorrelationID: outcome.Meta.CorrelationID,
		Status:        string(outcome.Status),
		Reason:        outcome.Reason,
		ModelVersion:  outcome.Meta.ModelVersion,
		ProcessingMs:  outcome.Meta.ProcessingTime.Milliseconds(),
	}
	if outcome.Payload != nil {
		rec.Title = outcome.Payload.Title
	}
	if err := s.runLog.LogRun(rec); err != nil {
		log.Warn().Err(err).Str("correlationId", rec.CorrelationID).Msg("failed to log run")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func hasMediaType(contentType, mediaType string) bool {
	return strings.HasPrefix(contentType, mediaType)
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
