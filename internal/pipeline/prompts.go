package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/ArunBabu98/sellist-server/internal/listing"
)

// Prompt templates for each phase. Templates state the output schema and end
// with the bare-JSON instruction; the sanitizer still handles models that
// disobey.

const triagePrompt = `You are screening product photos for a marketplace listing. There are %d images, numbered from 0 in the order given.

For each image, assess whether it is usable for a listing and what role it plays.

Respond in JSON format:
{
  "images": [
    {"index": 0, "role": "primary", "usabilityScore": 0.9, "usable": true}
  ],
  "recommendedIndexes": [0]
}

Roles: "primary" (best overall shot), "detail" (closeup of label, flaw or feature), "duplicate" (adds nothing over another image), "unclear" (blurry, dark, or not showing the item).
usabilityScore is 0.0-1.0. recommendedIndexes lists the images worth sending to further analysis, best first.

Respond ONLY with the JSON object, no markdown or other text.`

const groundingPromptTemplate = `Identify the product in these images for an eBay listing. Base every claim on visible evidence only.

Rules:
- Never invent a brand, model or identifier you cannot see or directly infer from what is visible. If no brand is identifiable, use "Unbranded".
- upc and mpn: only if actually readable in the images, otherwise empty string.
- confidence is 0.0-1.0 and reflects how certain the identification is.
%s
Also screen the item against eBay policy. Prohibited: %s. Set isEbayCompliant to false with a reason if the item falls in a prohibited area. Set restrictedCategory to true for items that are sellable but restricted (e.g. used cosmetics, recalled-model goods).

Respond in JSON format:
{
  "productIdentification": {"brand": "Nike", "model": "Air Max 90", "category": "Athletic Shoes", "upc": "", "mpn": "", "confidence": 0.9},
  "compliance": {"isEbayCompliant": true, "reason": "", "prohibitedCategory": "", "restrictedCategory": false},
  "visualEvidence": ["swoosh logo on side panel", "Air Max 90 printed on tongue label"]
}

Respond ONLY with the JSON object, no markdown or other text.`

const attributesPromptTemplate = `Estimate the physical attributes and grade the condition of this item from the images.

Product context from prior analysis:
%s

Weight: estimate the bare item weight (packaging allowance is added separately).%s
Dimensions: bounding-box length, width, height.
For both, set confidence to "high", "medium" or "low". Use "low" whenever you are guessing from the category rather than visual cues.

Condition: grade on this scale: New, Like New, Very Good, Good, Acceptable, For parts or not working. Add a 1-10 score and list EVERY visible flaw, no matter how minor. An honest flaw list protects the seller; do not soften it.%s

Respond in JSON format:
{
  "weight": {"value": 2.0, "unit": "lb", "confidence": "medium"},
  "dimensions": {"length": 13, "width": 9, "height": 5, "unit": "in", "confidence": "medium"},
  "condition": {"grade": "Good", "score": 7, "flaws": ["scuff on left toe"], "notes": "Overall clean with normal wear"}
}

Respond ONLY with the JSON object, no markdown or other text.`

const pricingPromptTemplate = `Propose pricing for this eBay listing.

Item:
%s

Comparable sold listings:
%s

Guidance:
- Suggested format for this item: %s.
- With no comparable data, give a conservative estimate and set marketDataUsed to false. Do not fabricate market confidence.
- priceRange.min is a realistic floor, priceRange.max an optimistic but defensible ceiling.
- minOfferPercent is the Best Offer auto-decline threshold as a percent of the suggested price.

Respond in JSON format:
{
  "suggestedPrice": 79.99,
  "priceRange": {"min": 65, "max": 95},
  "currency": "USD",
  "strategy": {"format": "FIXED_PRICE", "acceptBestOffer": true, "minOfferPercent": 80, "shippingAllocation": "BUYER_PAYS"},
  "marketDataUsed": true,
  "rationale": "Three recent comps sold between $70 and $90 in similar condition."
}

Respond ONLY with the JSON object, no markdown or other text.`

const contentPromptTemplate = `Write the listing content for this eBay item.

Item details from prior analysis:
%s
%s
Rules:
- Title: at most %d characters, front-load brand, model and the most-searched attributes. Use the brand, model and condition above VERBATIM; never substitute a placeholder.
- Description: structured and honest. Mention every flaw from the condition assessment.
- itemSpecifics: key-value product attributes (Brand, Model, Color, Size, ...). Use real values only; omit a key entirely rather than sending "null" or an empty value.
- seoKeywords: search terms a buyer would actually type.

Respond in JSON format:
{
  "title": "Nike Air Max 90 White Leather Sneakers Men's Size 10",
  "subtitle": "",
  "description": "...",
  "itemSpecifics": {"Brand": "Nike", "Model": "Air Max 90", "Color": "White", "US Shoe Size": "10"},
  "seoKeywords": ["nike air max 90", "white sneakers"],
  "recommendations": {"returnsAccepted": true, "returnPeriodDays": 30, "promotedListings": false, "listingDuration": "GTC"},
  "shipping": {"recommendedService": "USPS Ground Advantage", "handlingDays": 2, "packageType": "PACKAGE"}
}

Respond ONLY with the JSON object, no markdown or other text.`

const snapshotPromptTemplate = `Analyze these product images for an eBay listing: identify the item, screen it against policy, and assess its physical attributes, all in one pass.

Identification rules:
- Base every claim on visible evidence only. Use "Unbranded" when no brand is identifiable.
- confidence is 0.0-1.0.
%s
Policy: prohibited areas are %s. Set isEbayCompliant accordingly.

Attributes: bare item weight (packaging is added separately), bounding dimensions, each with "high"/"medium"/"low" confidence. Condition graded New through For parts or not working, with a 1-10 score and an exhaustive flaw list.

Respond in JSON format:
{
  "productIdentification": {"brand": "Nike", "model": "Air Max 90", "category": "Athletic Shoes", "upc": "", "mpn": "", "confidence": 0.9},
  "compliance": {"isEbayCompliant": true, "reason": "", "prohibitedCategory": "", "restrictedCategory": false},
  "weight": {"value": 2.0, "unit": "lb", "confidence": "medium"},
  "dimensions": {"length": 13, "width": 9, "height": 5, "unit": "in", "confidence": "medium"},
  "condition": {"grade": "Good", "score": 7, "flaws": ["scuff on left toe"], "notes": ""}
}

Respond ONLY with the JSON object, no markdown or other text.`

const snapshotListingPromptTemplate = `Generate the complete eBay listing for this item from its visual snapshot.

Snapshot:
%s

Comparable sold listings:
%s
%s
Rules:
- Title at most %d characters; use the snapshot's brand, model and condition VERBATIM, never a placeholder.
- Suggested format for this item: %s. With no comparable data, price conservatively and set marketDataUsed to false.
- Description must mention every flaw from the snapshot.
- itemSpecifics: real values only; omit unknown keys rather than sending "null".

Respond in JSON format:
{
  "title": "Nike Air Max 90 White Leather Sneakers Men's Size 10",
  "subtitle": "",
  "description": "...",
  "suggestedPrice": 79.99,
  "priceRange": {"min": 65, "max": 95},
  "currency": "USD",
  "strategy": {"format": "FIXED_PRICE", "acceptBestOffer": true, "minOfferPercent": 80, "shippingAllocation": "BUYER_PAYS"},
  "marketDataUsed": true,
  "rationale": "...",
  "itemSpecifics": {"Brand": "Nike", "Model": "Air Max 90"},
  "seoKeywords": ["nike air max 90"],
  "recommendations": {"returnsAccepted": true, "returnPeriodDays": 30, "promotedListings": false, "listingDuration": "GTC"},
  "shipping": {"recommendedService": "USPS Ground Advantage", "handlingDays": 2, "packageType": "PACKAGE"}
}

Respond ONLY with the JSON object, no markdown or other text.`

func buildTriagePrompt(imageCount int) string {
	return fmt.Sprintf(triagePrompt, imageCount)
}

func buildGroundingPrompt(opts Options) string {
	return fmt.Sprintf(groundingPromptTemplate, conditionHint(opts), strings.Join(prohibitedCategories, ", "))
}

func buildAttributesPrompt(ctx *phaseContext, opts Options) string {
	return fmt.Sprintf(attributesPromptTemplate,
		contextJSON(ctx.Grounding.Product),
		weightPriorHint(ctx.Grounding.Product.Category),
		conditionHint(opts),
	)
}

func buildPricingPrompt(ctx *phaseContext, opts Options) string {
	item := map[string]any{
		"productIdentification": ctx.Grounding.Product,
		"condition":             ctx.Attributes.Condition,
	}
	return fmt.Sprintf(pricingPromptTemplate,
		contextJSON(item),
		marketDataBlock(opts.MarketData),
		recommendFormat(opts.MarketData),
	)
}

func buildContentPrompt(ctx *phaseContext, opts Options) string {
	item := map[string]any{
		"productIdentification": ctx.Grounding.Product,
		"condition":             ctx.Attributes.Condition,
		"weight":                ctx.Attributes.Weight,
		"dimensions":            ctx.Attributes.Dimensions,
		"pricing":               ctx.Pricing,
	}
	return fmt.Sprintf(contentPromptTemplate, contextJSON(item), sellerConfigBlock(opts.SellerConfig), listing.TitleMaxLen)
}

func buildSnapshotPrompt(opts Options) string {
	return fmt.Sprintf(snapshotPromptTemplate, conditionHint(opts), strings.Join(prohibitedCategories, ", "))
}

func buildSnapshotListingPrompt(snap *snapshotResult, opts Options) string {
	return fmt.Sprintf(snapshotListingPromptTemplate,
		contextJSON(snap),
		marketDataBlock(opts.MarketData),
		sellerConfigBlock(opts.SellerConfig),
		listing.TitleMaxLen,
		recommendFormat(opts.MarketData),
	)
}

// contextJSON marshals prior-phase output for inclusion in a prompt.
func contextJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func conditionHint(opts Options) string {
	if opts.UserProvidedCondition == "" {
		return ""
	}
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(`
		The seller describes the condition as: %q. Treat this as ground truth
		unless the images clearly contradict it.
	`))+"\n", opts.UserProvidedCondition)
}

func weightPriorHint(category string) string {
	prior, ok := categoryWeightPriors[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return ""
	}
	return fmt.Sprintf(" Typical items in this category weigh around %.1f lb; deviate when the images justify it.", prior)
}

func marketDataBlock(comps []SoldComp) string {
	if len(comps) == 0 {
		return "None available."
	}
	var b strings.Builder
	for _, c := range comps {
		fmt.Fprintf(&b, "- $%.2f (%s): %s\n", c.Price, c.Condition, c.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sellerConfigBlock(cfg *SellerConfig) string {
	if cfg == nil {
		return ""
	}
	return "Seller preferences:\n" + contextJSON(cfg) + "\n"
}
