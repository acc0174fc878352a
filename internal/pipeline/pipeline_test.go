package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArunBabu98/sellist-server/internal/llm"
	"github.com/ArunBabu98/sellist-server/internal/retry"
)

// fakeModel returns canned responses in order and records every request.
type fakeModel struct {
	responses []string
	requests  []llm.Request
}

func (f *fakeModel) Name() string { return "fake-vision-model" }

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return "", llm.ErrEmptyResponse
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next, nil
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, Factor: 2.0}
}

func testImages(n int) []ImageInput {
	images := make([]ImageInput, n)
	for i := range images {
		images[i] = ImageInput{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg", Index: i}
	}
	return images
}

const groundingSneaker = `{
	"productIdentification": {"brand": "Nike", "model": "Air Max 90", "category": "shoes", "upc": "", "mpn": "", "confidence": 0.92},
	"compliance": {"isEbayCompliant": true, "reason": "", "prohibitedCategory": "", "restrictedCategory": false},
	"visualEvidence": ["swoosh on side panel"]
}`

const attributesSneaker = `{
	"weight": {"value": 2.0, "unit": "lb", "confidence": "medium"},
	"dimensions": {"length": 13, "width": 9, "height": 5, "unit": "in", "confidence": "medium"},
	"condition": {"grade": "Good", "score": 7, "flaws": ["scuff on left toe"], "notes": ""}
}`

const pricingSneaker = `{
	"suggestedPrice": 79.99,
	"priceRange": {"min": 65, "max": 95},
	"currency": "USD",
	"strategy": {"format": "FIXED_PRICE", "acceptBestOffer": true, "minOfferPercent": 80, "shippingAllocation": "BUYER_PAYS"},
	"marketDataUsed": false,
	"rationale": "Conservative estimate"
}`

const contentSneaker = `{
	"title": "Nike Air Max 90 White Leather Sneakers Men's Size 10",
	"subtitle": "",
	"description": "Lightly worn Nike Air Max 90. Scuff on left toe, otherwise clean.",
	"itemSpecifics": {"Brand": "Nike", "Model": "Air Max 90", "Color": "White", "US Shoe Size": "10"},
	"seoKeywords": ["nike air max 90", "white sneakers"],
	"recommendations": {"returnsAccepted": true, "returnPeriodDays": 30, "promotedListings": false, "listingDuration": "GTC"},
	"shipping": {"recommendedService": "USPS Ground Advantage", "handlingDays": 2, "packageType": "PACKAGE"}
}`

func TestRunFullSuccess(t *testing.T) {
	model := &fakeModel{responses: []string{groundingSneaker, attributesSneaker, pricingSneaker, contentSneaker}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(3), Options{})

	require.Equal(t, StatusSuccess, outcome.Status)
	require.NotNil(t, outcome.Payload)
	payload := outcome.Payload

	assert.Equal(t, "Nike", payload.ProductIdentification.Brand)
	assert.NotEqual(t, "Unbranded", payload.ProductIdentification.Brand)
	assert.Greater(t, payload.Pricing.SuggestedPrice, 0.0)
	assert.Equal(t, "Nike", payload.ItemSpecifics["Brand"])
	assert.Equal(t, "Air Max 90", payload.ItemSpecifics["Model"])
	assert.NotEmpty(t, payload.ItemSpecifics["Condition"])
	assert.Equal(t, []string{"scuff on left toe"}, payload.Condition.Flaws)
	assert.Equal(t, 3, payload.QualityChecks.PhotosAnalyzed)
	assert.NotEmpty(t, payload.Metadata.CorrelationID)
	assert.Equal(t, "fake-vision-model", payload.Metadata.ModelVersion)

	// Packaging allowance applied to the model's bare-item estimate.
	assert.InDelta(t, 2.0*PackagingWeightFactor, payload.Weight.Value, 0.001)

	// grounding, attributes, pricing, content
	require.Len(t, model.requests, 4)
	// Pricing is a text-only call.
	assert.Empty(t, model.requests[2].Images)
	assert.Len(t, model.requests[3].Images, 3)
}

func TestRunComplianceShortCircuit(t *testing.T) {
	model := &fakeModel{responses: []string{`{
		"productIdentification": {"brand": "Unbranded", "model": "", "category": "weapons", "upc": "", "mpn": "", "confidence": 0.95},
		"compliance": {"isEbayCompliant": false, "reason": "weapon", "prohibitedCategory": "weapons and firearms", "restrictedCategory": false}
	}`}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{})

	assert.Equal(t, StatusRejected, outcome.Status)
	assert.Equal(t, ReasonPolicyViolation, outcome.Reason)
	assert.Contains(t, outcome.Details, "weapon")
	assert.Nil(t, outcome.Payload)
	// No phase after grounding executed.
	assert.Len(t, model.requests, 1)
}

func TestRunLowConfidenceRequiresReview(t *testing.T) {
	model := &fakeModel{responses: []string{`{
		"productIdentification": {"brand": "Unbranded", "model": "", "category": "Other", "upc": "", "mpn": "", "confidence": 0.3},
		"compliance": {"isEbayCompliant": true, "reason": "", "prohibitedCategory": "", "restrictedCategory": false}
	}`}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{})

	assert.Equal(t, StatusRequiresReview, outcome.Status)
	assert.Equal(t, ReasonManualReview, outcome.Reason)
	assert.Len(t, model.requests, 1)
}

func TestRunRestrictedCategoryRequiresReview(t *testing.T) {
	model := &fakeModel{responses: []string{`{
		"productIdentification": {"brand": "Acme", "model": "X", "category": "cosmetics", "upc": "", "mpn": "", "confidence": 0.9},
		"compliance": {"isEbayCompliant": true, "reason": "", "prohibitedCategory": "", "restrictedCategory": true}
	}`}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{})
	assert.Equal(t, StatusRequiresReview, outcome.Status)
}

func TestRunRetriesMalformedJSON(t *testing.T) {
	model := &fakeModel{responses: []string{
		"I'm sorry, something went wrong and no braces here",
		groundingSneaker, attributesSneaker, pricingSneaker, contentSneaker,
	}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{})

	// A response with no JSON at all is ErrNoJSONFound, which is fatal for
	// the phase: more attempts are unlikely to fix a systemic mismatch.
	assert.Equal(t, StatusRejected, outcome.Status)
	assert.Equal(t, ReasonPipelineError, outcome.Reason)
	assert.Len(t, model.requests, 1)
}

func TestRunRetriesInvalidJSONOnce(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"productIdentification": {"brand": "Nike", truncated garbage`,
		groundingSneaker, attributesSneaker, pricingSneaker, contentSneaker,
	}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{})

	require.Equal(t, StatusSuccess, outcome.Status)
	// 5 calls total: grounding twice (parse failure then success), then the
	// remaining three phases.
	assert.Len(t, model.requests, 5)
}

func TestRunValidationErrorNotRetried(t *testing.T) {
	// Parses fine but misses the compliance block entirely.
	model := &fakeModel{responses: []string{
		`{"productIdentification": {"brand": "Nike", "model": "X", "category": "shoes", "confidence": 0.9}}`,
		groundingSneaker,
	}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{})

	assert.Equal(t, StatusRejected, outcome.Status)
	assert.Equal(t, ReasonPipelineError, outcome.Reason)
	assert.Contains(t, outcome.Details, "compliance")
	assert.Len(t, model.requests, 1)
}

func TestRunTriageSelectsSubset(t *testing.T) {
	triage := `{
		"images": [
			{"index": 0, "role": "primary", "usabilityScore": 0.9, "usable": true},
			{"index": 1, "role": "duplicate", "usabilityScore": 0.4, "usable": false},
			{"index": 2, "role": "detail", "usabilityScore": 0.8, "usable": true}
		],
		"recommendedIndexes": [0, 2]
	}`
	model := &fakeModel{responses: []string{triage, groundingSneaker, attributesSneaker, pricingSneaker, contentSneaker}}
	p := New(model, Config{Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(3), Options{})

	require.Equal(t, StatusSuccess, outcome.Status)
	require.Len(t, model.requests, 5)
	// Grounding received only the recommended subset.
	assert.Len(t, model.requests[1].Images, 2)
}

func TestRunTriageTotalRejectionFallsBack(t *testing.T) {
	triage := `{
		"images": [{"index": 0, "role": "unclear", "usabilityScore": 0.1, "usable": false}],
		"recommendedIndexes": []
	}`
	model := &fakeModel{responses: []string{triage, groundingSneaker, attributesSneaker, pricingSneaker, contentSneaker}}
	p := New(model, Config{Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(3), Options{})

	require.Equal(t, StatusSuccess, outcome.Status)
	// Fallback sends the first supplied image instead of failing the run.
	assert.Len(t, model.requests[1].Images, 1)
}

func TestRunCondensedSuccess(t *testing.T) {
	snapshot := `{
		"productIdentification": {"brand": "Nike", "model": "Air Max 90", "category": "shoes", "upc": "", "mpn": "", "confidence": 0.9},
		"compliance": {"isEbayCompliant": true, "reason": "", "prohibitedCategory": "", "restrictedCategory": false},
		"weight": {"value": 2.0, "unit": "lb", "confidence": "medium"},
		"dimensions": {"length": 13, "width": 9, "height": 5, "unit": "in", "confidence": "medium"},
		"condition": {"grade": "Good", "score": 7, "flaws": [], "notes": ""}
	}`
	content := `{
		"title": "Nike Air Max 90 Sneakers",
		"description": "Clean pair of Air Max 90s.",
		"suggestedPrice": 75,
		"priceRange": {"min": 60, "max": 90},
		"currency": "USD",
		"strategy": {"format": "FIXED_PRICE", "acceptBestOffer": true, "minOfferPercent": 80, "shippingAllocation": "BUYER_PAYS"},
		"marketDataUsed": false,
		"itemSpecifics": {"Brand": "Nike", "Model": "Air Max 90"}
	}`
	model := &fakeModel{responses: []string{snapshot, content}}
	p := New(model, Config{Condensed: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(2), Options{})

	require.Equal(t, StatusSuccess, outcome.Status)
	assert.Len(t, model.requests, 2)
	assert.Equal(t, "Nike", outcome.Payload.ProductIdentification.Brand)
	assert.Equal(t, 75.0, outcome.Payload.Pricing.SuggestedPrice)
	assert.InDelta(t, 2.0*PackagingWeightFactor, outcome.Payload.Weight.Value, 0.001)
}

func TestRunCondensedComplianceShortCircuit(t *testing.T) {
	snapshot := `{
		"productIdentification": {"brand": "Unbranded", "model": "", "category": "knives", "upc": "", "mpn": "", "confidence": 0.9},
		"compliance": {"isEbayCompliant": false, "reason": "weapon", "prohibitedCategory": "weapons and firearms", "restrictedCategory": false},
		"condition": {"grade": "Used", "score": 5, "flaws": [], "notes": ""}
	}`
	model := &fakeModel{responses: []string{snapshot}}
	p := New(model, Config{Condensed: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{})

	assert.Equal(t, StatusRejected, outcome.Status)
	assert.Equal(t, ReasonPolicyViolation, outcome.Reason)
	assert.Len(t, model.requests, 1)
}

func TestRunInputValidation(t *testing.T) {
	p := New(&fakeModel{}, Config{Retry: fastRetry()})

	tests := map[string]struct {
		images  []ImageInput
		details string
	}{
		"no images": {
			images:  nil,
			details: "at least one image",
		},
		"too many images": {
			images:  testImages(MaxImages + 1),
			details: "too many images",
		},
		"empty image": {
			images:  []ImageInput{{Data: nil, MIMEType: "image/jpeg"}},
			details: "empty",
		},
		"oversized image": {
			images:  []ImageInput{{Data: make([]byte, MaxImageBytes+1), MIMEType: "image/jpeg"}},
			details: "size limit",
		},
		"bad mime type": {
			images:  []ImageInput{{Data: []byte("x"), MIMEType: "application/pdf"}},
			details: "unsupported MIME type",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			outcome := p.Run(context.Background(), tc.images, Options{})
			assert.Equal(t, StatusInvalid, outcome.Status)
			assert.Equal(t, ReasonInvalidInput, outcome.Reason)
			assert.Contains(t, outcome.Details, tc.details)
		})
	}
}

func TestUserProvidedConditionOverrides(t *testing.T) {
	model := &fakeModel{responses: []string{groundingSneaker, attributesSneaker, pricingSneaker, contentSneaker}}
	p := New(model, Config{SkipTriage: true, Retry: fastRetry()})

	outcome := p.Run(context.Background(), testImages(1), Options{UserProvidedCondition: "Like New"})

	require.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, "Like New", outcome.Payload.Condition.Grade)
}
