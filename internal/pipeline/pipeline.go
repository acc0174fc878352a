// Package pipeline orchestrates the multi-phase AI listing generation flow:
// image triage, grounding and compliance screening, physical-attribute
// extraction, pricing, and content generation, or a condensed two-call
// variant. Each phase's structured output feeds the next phase's prompt; the
// merged result is normalized into the canonical listing payload.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ArunBabu98/sellist-server/internal/jsonutil"
	"github.com/ArunBabu98/sellist-server/internal/listing"
	"github.com/ArunBabu98/sellist-server/internal/llm"
	"github.com/ArunBabu98/sellist-server/internal/retry"
)

// Per-phase generation parameters. Extraction phases run at low temperature
// with tight token ceilings; content generation gets creative headroom.
var (
	triageParams    = llm.Params{MaxOutputTokens: 1024, Temperature: 0.2, ForceJSON: true}
	groundingParams = llm.Params{MaxOutputTokens: 2048, Temperature: 0.3, ForceJSON: true}
	attributeParams = llm.Params{MaxOutputTokens: 2048, Temperature: 0.3, ForceJSON: true}
	pricingParams   = llm.Params{MaxOutputTokens: 1024, Temperature: 0.3, ForceJSON: true}
	contentParams   = llm.Params{MaxOutputTokens: 4096, Temperature: 0.6, ForceJSON: true}
	snapshotParams  = llm.Params{MaxOutputTokens: 2048, Temperature: 0.3, ForceJSON: true}
	condensedParams = llm.Params{MaxOutputTokens: 4096, Temperature: 0.6, ForceJSON: true}
)

// Config tunes one Pipeline instance. A Pipeline is constructed once at
// process start and shared across requests; it holds no per-request state.
type Config struct {
	// Condensed collapses the run to two model calls: visual snapshot, then
	// listing-from-snapshot.
	Condensed bool
	// SkipTriage bypasses the image-quality triage phase and sends all
	// images to grounding.
	SkipTriage bool
	// MinConfidence is the grounding-confidence floor; below it the run is
	// routed to manual review. Zero means DefaultMinConfidence.
	MinConfidence float64
	// Retry overrides the per-phase retry policy. Zero values mean the
	// defaults from the retry package.
	Retry retry.Config
}

// Pipeline runs the listing-generation flow against a vision model.
type Pipeline struct {
	model llm.Model
	cfg   Config
}

// New creates a Pipeline. The model is typically a CachedModel wrapping a
// provider-backed one.
func New(model llm.Model, cfg Config) *Pipeline {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig("")
	}
	return &Pipeline{model: model, cfg: cfg}
}

// Run executes one pipeline run over the supplied images. It always returns
// an Outcome; domain rejections (policy violations, low confidence) are
// outcome variants, not errors.
func (p *Pipeline) Run(ctx context.Context, images []ImageInput, opts Options) Outcome {
	started := time.Now()
	meta := Meta{
		CorrelationID: uuid.New().String(),
		ModelVersion:  p.model.Name(),
	}
	logger := log.With().Str("correlationId", meta.CorrelationID).Logger()

	if err := validateImages(images); err != nil {
		meta.ProcessingTime = time.Since(started)
		logger.Warn().Err(err).Msg("rejected pipeline input")
		return p.invalid(err.Error(), meta)
	}

	logger.Info().
		Int("images", len(images)).
		Bool("condensed", p.cfg.Condensed).
		Int("marketComps", len(opts.MarketData)).
		Msg("pipeline run started")

	var outcome Outcome
	if p.cfg.Condensed {
		outcome = p.runCondensed(ctx, logger, images, opts, meta)
	} else {
		outcome = p.runFull(ctx, logger, images, opts, meta)
	}
	outcome.Meta.ProcessingTime = time.Since(started)
	if outcome.Payload != nil {
		outcome.Payload.Metadata.ProcessingTimeMs = outcome.Meta.ProcessingTime.Milliseconds()
	}

	logger.Info().
		Str("status", string(outcome.Status)).
		Str("reason", outcome.Reason).
		Dur("processingTime", outcome.Meta.ProcessingTime).
		Msg("pipeline run finished")
	return outcome
}

func (p *Pipeline) runFull(ctx context.Context, logger zerolog.Logger, images []ImageInput, opts Options, meta Meta) Outcome {
	selected := images
	if !p.cfg.SkipTriage {
		selected = p.triageImages(ctx, logger, images)
	}

	grounding, err := runPhase[groundingResult](ctx, p, "grounding", buildGroundingPrompt(opts), toLLMImages(selected), groundingParams)
	if err != nil {
		return p.phaseFailure(logger, "grounding", err, meta)
	}
	pctx := &phaseContext{Grounding: grounding}

	if outcome, halted := p.gate(logger, grounding.Product, grounding.Compliance, meta); halted {
		return outcome
	}

	attrs, err := runPhase[attributesResult](ctx, p, "attributes", buildAttributesPrompt(pctx, opts), toLLMImages(selected), attributeParams)
	if err != nil {
		return p.phaseFailure(logger, "attributes", err, meta)
	}
	if attrs.Weight != nil {
		attrs.Weight.Value = packagedWeight(attrs.Weight.Value)
	}
	pctx.Attributes = attrs

	// Pricing works from accumulated structured context; the pixels add
	// nothing here.
	pricing, err := runPhase[pricingResult](ctx, p, "pricing", buildPricingPrompt(pctx, opts), nil, pricingParams)
	if err != nil {
		return p.phaseFailure(logger, "pricing", err, meta)
	}
	pctx.Pricing = pricing

	content, err := runPhase[contentResult](ctx, p, "content", buildContentPrompt(pctx, opts), toLLMImages(selected), contentParams)
	if err != nil {
		return p.phaseFailure(logger, "content", err, meta)
	}

	draft := mergeFull(pctx, content, opts, len(images))
	return p.assemble(logger, draft, meta)
}

// triageImages scores the images and selects the recommended subset. Triage
// is advisory: on failure or total rejection the pipeline falls back to the
// supplied images rather than failing the run.
func (p *Pipeline) triageImages(ctx context.Context, logger zerolog.Logger, images []ImageInput) []ImageInput {
	result, err := runPhase[triageResult](ctx, p, "triage", buildTriagePrompt(len(images)), toLLMImages(images), triageParams)
	if err != nil {
		logger.Warn().Err(err).Msg("image triage failed, using all images")
		return images
	}

	var selected []ImageInput
	for _, idx := range result.RecommendedIndexes {
		if idx >= 0 && idx < len(images) {
			selected = append(selected, images[idx])
		}
	}
	if len(selected) == 0 {
		logger.Warn().Msg("triage rejected every image, falling back to first")
		return images[:1]
	}

	logger.Info().Int("selected", len(selected)).Int("supplied", len(images)).Msg("image triage complete")
	return selected
}

// gate applies the grounding phase's compliance and confidence checks.
// Returns halted=true with the early-exit outcome when the run must stop.
func (p *Pipeline) gate(logger zerolog.Logger, product *productIdentification, compliance *complianceCheck, meta Meta) (Outcome, bool) {
	if !*compliance.IsEbayCompliant {
		details := compliance.Reason
		if compliance.ProhibitedCategory != "" {
			details = fmt.Sprintf("%s (prohibited category: %s)", details, compliance.ProhibitedCategory)
		}
		logger.Warn().Str("details", details).Msg("listing rejected for policy violation")
		return p.rejected(ReasonPolicyViolation, details, meta), true
	}
	if compliance.RestrictedCategory {
		logger.Info().Msg("restricted category, routing to manual review")
		return p.requiresReview("item is in a restricted category: "+product.Category, meta), true
	}
	if product.Confidence < p.cfg.MinConfidence {
		details := fmt.Sprintf("identification confidence %.2f below threshold %.2f", product.Confidence, p.cfg.MinConfidence)
		logger.Info().Str("details", details).Msg("low confidence, routing to manual review")
		return p.requiresReview(details, meta), true
	}
	return Outcome{}, false
}

func (p *Pipeline) phaseFailure(logger zerolog.Logger, phase string, err error, meta Meta) Outcome {
	logger.Error().Str("phase", phase).Err(err).Msg("pipeline phase failed")
	return Outcome{
		Status:  StatusRejected,
		Reason:  ReasonPipelineError,
		Details: fmt.Sprintf("%s phase failed: %v", phase, err),
		Meta:    meta,
	}
}

// assemble normalizes the merged draft and runs the final schema gate.
func (p *Pipeline) assemble(logger zerolog.Logger, draft listing.Draft, meta Meta) Outcome {
	payload := listing.Normalize(draft, listing.Metadata{
		CorrelationID: meta.CorrelationID,
		GeneratedAt:   time.Now().UTC(),
		ModelVersion:  meta.ModelVersion,
	})

	// A schema failure here means a normalizer bug, not bad model output.
	// Log loudly but do not fail the run over it.
	if err := listing.ValidateSchema(payload); err != nil {
		logger.Error().Err(err).Msg("normalized payload failed schema validation")
	}

	return p.success(&payload, meta)
}

// runPhase executes one phase: model call through the retry policy, sanitize
// and parse, then required-field validation. Parse failures are retryable;
// validation failures are not.
func runPhase[T any, PT interface {
	*T
	validate() error
}](ctx context.Context, p *Pipeline, label, prompt string, images []llm.Image, params llm.Params) (*T, error) {
	cfg := p.cfg.Retry
	cfg.Label = label
	return retry.Do(ctx, cfg, func(ctx context.Context) (*T, error) {
		text, err := p.model.Generate(ctx, llm.Request{
			Prompt: prompt,
			Images: images,
			Params: params,
		})
		if err != nil {
			return nil, err
		}
		result := new(T)
		if err := jsonutil.ParseObject(text, result); err != nil {
			return nil, err
		}
		if err := PT(result).validate(); err != nil {
			return nil, err
		}
		return result, nil
	})
}

func toLLMImages(images []ImageInput) []llm.Image {
	out := make([]llm.Image, len(images))
	for i, img := range images {
		out[i] = llm.Image{Data: img.Data, MIMEType: img.MIMEType}
	}
	return out
}

// validateImages checks caller input before any model call.
func validateImages(images []ImageInput) error {
	if len(images) == 0 {
		return fmt.Errorf("at least one image is required")
	}
	if len(images) > MaxImages {
		return fmt.Errorf("too many images: %d (maximum %d)", len(images), MaxImages)
	}
	for i, img := range images {
		if len(img.Data) == 0 {
			return fmt.Errorf("image %d is empty", i)
		}
		if int64(len(img.Data)) > MaxImageBytes {
			return fmt.Errorf("image %d exceeds the %dMB size limit", i, MaxImageBytes/(1024*1024))
		}
		if !allowedMIMETypes[img.MIMEType] {
			return fmt.Errorf("image %d has unsupported MIME type %q", i, img.MIMEType)
		}
	}
	return nil
}

// mergeFull maps the full-variant phase outputs onto a normalizer draft.
func mergeFull(pctx *phaseContext, content *contentResult, opts Options, photosAnalyzed int) listing.Draft {
	d := listing.Draft{PhotosAnalyzed: photosAnalyzed}

	if prod := pctx.Grounding.Product; prod != nil {
		d.Brand = prod.Brand
		d.Model = prod.Model
		d.Category = prod.Category
		d.UPC = prod.UPC
		d.MPN = prod.MPN
		d.IdentificationConfidence = prod.Confidence
	}
	if comp := pctx.Grounding.Compliance; comp != nil {
		d.Compliant = comp.IsEbayCompliant
		d.ComplianceReason = comp.Reason
		d.RestrictedCategory = comp.RestrictedCategory
	}

	if attrs := pctx.Attributes; attrs != nil {
		if attrs.Weight != nil {
			d.WeightValue = attrs.Weight.Value
			d.WeightUnit = attrs.Weight.Unit
			d.WeightConfidence = attrs.Weight.Confidence
		}
		if attrs.Dimensions != nil {
			d.DimLength = attrs.Dimensions.Length
			d.DimWidth = attrs.Dimensions.Width
			d.DimHeight = attrs.Dimensions.Height
			d.DimUnit = attrs.Dimensions.Unit
			d.DimConfidence = attrs.Dimensions.Confidence
		}
		if attrs.Condition != nil {
			d.ConditionGrade = attrs.Condition.Grade
			d.ConditionScore = attrs.Condition.Score
			d.Flaws = attrs.Condition.Flaws
			d.ConditionNotes = attrs.Condition.Notes
		}
	}
	if opts.UserProvidedCondition != "" {
		d.ConditionGrade = opts.UserProvidedCondition
	}

	if pricing := pctx.Pricing; pricing != nil {
		d.SuggestedPrice = pricing.SuggestedPrice
		if pricing.PriceRange != nil {
			d.MinPrice = pricing.PriceRange.Min
			d.MaxPrice = pricing.PriceRange.Max
		}
		d.Currency = pricing.Currency
		if pricing.Strategy != nil {
			d.Format = pricing.Strategy.Format
			d.AcceptBestOffer = pricing.Strategy.AcceptBestOffer
			d.MinOfferPercent = pricing.Strategy.MinOfferPercent
			d.ShippingAllocation = pricing.Strategy.ShippingAllocation
		}
		if pricing.MarketDataUsed != nil {
			d.MarketDataUsed = *pricing.MarketDataUsed
		} else {
			d.MarketDataUsed = len(opts.MarketData) > 0
		}
		d.PriceRationale = pricing.Rationale
	}

	d.Title = content.Title
	d.Subtitle = content.Subtitle
	d.Description = content.Description
	d.ItemSpecifics = content.ItemSpecifics
	d.SEOKeywords = content.SEOKeywords
	applyContentExtras(&d, content.Recommendations, content.Shipping, opts.SellerConfig)

	return d
}

// applyContentExtras fills recommendation and shipping fields, preferring
// explicit seller configuration over model suggestions.
func applyContentExtras(d *listing.Draft, recs *contentRecommendations, ship *shippingRecommendation, seller *SellerConfig) {
	if recs != nil {
		d.ReturnsAccepted = recs.ReturnsAccepted
		d.ReturnPeriodDays = recs.ReturnPeriodDays
		d.PromotedListings = recs.PromotedListings
		d.ListingDuration = recs.ListingDuration
	}
	if ship != nil {
		d.ShippingService = ship.RecommendedService
		d.HandlingDays = ship.HandlingDays
		d.PackageType = ship.PackageType
	}
	if seller != nil {
		if seller.ReturnsAccepted != nil {
			d.ReturnsAccepted = seller.ReturnsAccepted
		}
		if seller.ReturnPeriodDays > 0 {
			d.ReturnPeriodDays = seller.ReturnPeriodDays
		}
		if seller.FreeShipping != nil && *seller.FreeShipping {
			d.ShippingAllocation = "FREE_SHIPPING"
		}
	}
}
