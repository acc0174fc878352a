package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ArunBabu98/sellist-server/internal/listing"
)

// runCondensed is the two-call variant: one visual snapshot covering
// identity, compliance and physical attributes, then one listing-generation
// call grounded on that snapshot. Same early exits as the full variant.
func (p *Pipeline) runCondensed(ctx context.Context, logger zerolog.Logger, images []ImageInput, opts Options, meta Meta) Outcome {
	snap, err := runPhase[snapshotResult](ctx, p, "snapshot", buildSnapshotPrompt(opts), toLLMImages(images), snapshotParams)
	if err != nil {
		return p.phaseFailure(logger, "snapshot", err, meta)
	}

	if outcome, halted := p.gate(logger, snap.Product, snap.Compliance, meta); halted {
		return outcome
	}

	if snap.Weight != nil {
		snap.Weight.Value = packagedWeight(snap.Weight.Value)
	}

	content, err := runPhase[snapshotListing](ctx, p, "listing", buildSnapshotListingPrompt(snap, opts), toLLMImages(images), condensedParams)
	if err != nil {
		return p.phaseFailure(logger, "listing", err, meta)
	}

	draft := mergeCondensed(snap, content, opts, len(images))
	return p.assemble(logger, draft, meta)
}

// mergeCondensed maps the two condensed-variant results onto a draft.
func mergeCondensed(snap *snapshotResult, content *snapshotListing, opts Options, photosAnalyzed int) listing.Draft {
	d := listing.Draft{PhotosAnalyzed: photosAnalyzed}

	if prod := snap.Product; prod != nil {
		d.Brand = prod.Brand
		d.Model = prod.Model
		d.Category = prod.Category
		d.UPC = prod.UPC
		d.MPN = prod.MPN
		d.IdentificationConfidence = prod.Confidence
	}
	if comp := snap.Compliance; comp != nil {
		d.Compliant = comp.IsEbayCompliant
		d.ComplianceReason = comp.Reason
		d.RestrictedCategory = comp.RestrictedCategory
	}
	if snap.Weight != nil {
		d.WeightValue = snap.Weight.Value
		d.WeightUnit = snap.Weight.Unit
		d.WeightConfidence = snap.Weight.Confidence
	}
	if snap.Dimensions != nil {
		d.DimLength = snap.Dimensions.Length
		d.DimWidth = snap.Dimensions.Width
		d.DimHeight = snap.Dimensions.Height
		d.DimUnit = snap.Dimensions.Unit
		d.DimConfidence = snap.Dimensions.Confidence
	}
	if snap.Condition != nil {
		d.ConditionGrade = snap.Condition.Grade
		d.ConditionScore = snap.Condition.Score
		d.Flaws = snap.Condition.Flaws
		d.ConditionNotes = snap.Condition.Notes
	}
	if opts.UserProvidedCondition != "" {
		d.ConditionGrade = opts.UserProvidedCondition
	}

	d.Title = content.Title
	d.Subtitle = content.Subtitle
	d.Description = content.Description
	d.SuggestedPrice = content.SuggestedPrice
	if content.PriceRange != nil {
		d.MinPrice = content.PriceRange.Min
		d.MaxPrice = content.PriceRange.Max
	}
	d.Currency = content.Currency
	if content.Strategy != nil {
		d.Format = content.Strategy.Format
		d.AcceptBestOffer = content.Strategy.AcceptBestOffer
		d.MinOfferPercent = content.Strategy.MinOfferPercent
		d.ShippingAllocation = content.Strategy.ShippingAllocation
	}
	if content.MarketDataUsed != nil {
		d.MarketDataUsed = *content.MarketDataUsed
	} else {
		d.MarketDataUsed = len(opts.MarketData) > 0
	}
	d.PriceRationale = content.Rationale
	d.ItemSpecifics = content.ItemSpecifics
	d.SEOKeywords = content.SEOKeywords
	applyContentExtras(&d, content.Recommendations, content.Shipping, opts.SellerConfig)

	return d
}
