package pipeline

import (
	"errors"
	"fmt"
)

// ImageInput is one caller-supplied product photo. Images live only for the
// duration of a run; they are never persisted.
type ImageInput struct {
	Data     []byte
	MIMEType string
	// Index is the caller's ordinal position, preserved through triage.
	Index int
}

// SoldComp is one comparable sold listing supplied by the caller as market
// grounding for the pricing phase.
type SoldComp struct {
	Price     float64 `json:"price"`
	Condition string  `json:"condition"`
	Title     string  `json:"title"`
}

// SellerConfig carries seller shipping/returns preferences into content
// generation.
type SellerConfig struct {
	ReturnsAccepted  *bool  `json:"returnsAccepted,omitempty"`
	ReturnPeriodDays int    `json:"returnPeriodDays,omitempty"`
	ShipsFrom        string `json:"shipsFrom,omitempty"`
	FreeShipping     *bool  `json:"freeShipping,omitempty"`
}

// Options is the caller's options bag for one run.
type Options struct {
	MarketData            []SoldComp
	SellerConfig          *SellerConfig
	UserProvidedCondition string
}

// phaseContext accumulates structured output from prior phases, passed
// forward as grounding input to later ones. Owned by exactly one run.
type phaseContext struct {
	Grounding  *groundingResult
	Attributes *attributesResult
	Pricing    *pricingResult
}

// --- phase result schemas ---
//
// Each phase's response is validated for the presence of its required
// top-level fields immediately after parsing. Booleans the model must state
// explicitly are pointers so absence is distinguishable from false. A
// validation failure is fatal for the attempt and, unlike a parse failure,
// is not retried.

type triageImage struct {
	Index          int     `json:"index"`
	Role           string  `json:"role"` // primary | detail | duplicate | unclear
	UsabilityScore float64 `json:"usabilityScore"`
	Usable         bool    `json:"usable"`
}

type triageResult struct {
	Images             []triageImage `json:"images"`
	RecommendedIndexes []int         `json:"recommendedIndexes"`
}

func (r *triageResult) validate() error {
	if len(r.Images) == 0 {
		return errors.New("triage response missing required field: images")
	}
	return nil
}

type productIdentification struct {
	Brand      string  `json:"brand"`
	Model      string  `json:"model"`
	Category   string  `json:"category"`
	UPC        string  `json:"upc"`
	MPN        string  `json:"mpn"`
	Confidence float64 `json:"confidence"`
}

type complianceCheck struct {
	IsEbayCompliant    *bool  `json:"isEbayCompliant"`
	Reason             string `json:"reason"`
	ProhibitedCategory string `json:"prohibitedCategory"`
	RestrictedCategory bool   `json:"restrictedCategory"`
}

type groundingResult struct {
	Product        *productIdentification `json:"productIdentification"`
	Compliance     *complianceCheck       `json:"compliance"`
	VisualEvidence []string               `json:"visualEvidence"`
}

func (r *groundingResult) validate() error {
	if r.Product == nil {
		return errors.New("grounding response missing required field: productIdentification")
	}
	if r.Compliance == nil {
		return errors.New("grounding response missing required field: compliance")
	}
	if r.Compliance.IsEbayCompliant == nil {
		return errors.New("grounding response missing required field: compliance.isEbayCompliant")
	}
	return nil
}

type weightEstimate struct {
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Confidence string  `json:"confidence"`
}

type dimensionEstimate struct {
	Length     float64 `json:"length"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Unit       string  `json:"unit"`
	Confidence string  `json:"confidence"`
}

type conditionAssessment struct {
	Grade string   `json:"grade"`
	Score int      `json:"score"`
	Flaws []string `json:"flaws"`
	Notes string   `json:"notes"`
}

type attributesResult struct {
	Weight     *weightEstimate      `json:"weight"`
	Dimensions *dimensionEstimate   `json:"dimensions"`
	Condition  *conditionAssessment `json:"condition"`
}

func (r *attributesResult) validate() error {
	switch {
	case r.Weight == nil:
		return errors.New("attributes response missing required field: weight")
	case r.Dimensions == nil:
		return errors.New("attributes response missing required field: dimensions")
	case r.Condition == nil:
		return errors.New("attributes response missing required field: condition")
	case r.Condition.Grade == "":
		return errors.New("attributes response missing required field: condition.grade")
	}
	return nil
}

type pricingStrategy struct {
	Format             string  `json:"format"`
	AcceptBestOffer    *bool   `json:"acceptBestOffer"`
	MinOfferPercent    float64 `json:"minOfferPercent"`
	ShippingAllocation string  `json:"shippingAllocation"`
}

type priceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type pricingResult struct {
	SuggestedPrice float64          `json:"suggestedPrice"`
	PriceRange     *priceRange      `json:"priceRange"`
	Currency       string           `json:"currency"`
	Strategy       *pricingStrategy `json:"strategy"`
	MarketDataUsed *bool            `json:"marketDataUsed"`
	Rationale      string           `json:"rationale"`
}

func (r *pricingResult) validate() error {
	if r.SuggestedPrice <= 0 {
		return fmt.Errorf("pricing response missing or invalid required field: suggestedPrice (%v)", r.SuggestedPrice)
	}
	if r.PriceRange == nil {
		return errors.New("pricing response missing required field: priceRange")
	}
	if r.Strategy == nil {
		return errors.New("pricing response missing required field: strategy")
	}
	return nil
}

type contentRecommendations struct {
	ReturnsAccepted  *bool  `json:"returnsAccepted"`
	ReturnPeriodDays int    `json:"returnPeriodDays"`
	PromotedListings bool   `json:"promotedListings"`
	ListingDuration  string `json:"listingDuration"`
}

type shippingRecommendation struct {
	RecommendedService string `json:"recommendedService"`
	HandlingDays       int    `json:"handlingDays"`
	PackageType        string `json:"packageType"`
}

type contentResult struct {
	Title           string                  `json:"title"`
	Subtitle        string                  `json:"subtitle"`
	Description     string                  `json:"description"`
	ItemSpecifics   map[string]any          `json:"itemSpecifics"`
	SEOKeywords     []string                `json:"seoKeywords"`
	Recommendations *contentRecommendations `json:"recommendations"`
	Shipping        *shippingRecommendation `json:"shipping"`
}

func (r *contentResult) validate() error {
	switch {
	case r.Title == "":
		return errors.New("content response missing required field: title")
	case r.Description == "":
		return errors.New("content response missing required field: description")
	case r.ItemSpecifics == nil:
		return errors.New("content response missing required field: itemSpecifics")
	}
	return nil
}

// snapshotResult is the condensed variant's first call: identity, compliance
// and physical attributes in one pass.
type snapshotResult struct {
	Product    *productIdentification `json:"productIdentification"`
	Compliance *complianceCheck       `json:"compliance"`
	Weight     *weightEstimate        `json:"weight"`
	Dimensions *dimensionEstimate     `json:"dimensions"`
	Condition  *conditionAssessment   `json:"condition"`
}

func (r *snapshotResult) validate() error {
	switch {
	case r.Product == nil:
		return errors.New("snapshot response missing required field: productIdentification")
	case r.Compliance == nil:
		return errors.New("snapshot response missing required field: compliance")
	case r.Compliance.IsEbayCompliant == nil:
		return errors.New("snapshot response missing required field: compliance.isEbayCompliant")
	case r.Condition == nil:
		return errors.New("snapshot response missing required field: condition")
	}
	return nil
}

// snapshotListing is the condensed variant's second call: pricing plus full
// listing content generated from the snapshot.
type snapshotListing struct {
	Title           string                  `json:"title"`
	Subtitle        string                  `json:"subtitle"`
	Description     string                  `json:"description"`
	SuggestedPrice  float64                 `json:"suggestedPrice"`
	PriceRange      *priceRange             `json:"priceRange"`
	Currency        string                  `json:"currency"`
	Strategy        *pricingStrategy        `json:"strategy"`
	MarketDataUsed  *bool                   `json:"marketDataUsed"`
	Rationale       string                  `json:"rationale"`
	ItemSpecifics   map[string]any          `json:"itemSpecifics"`
	SEOKeywords     []string                `json:"seoKeywords"`
	Recommendations *contentRecommendations `json:"recommendations"`
	Shipping        *shippingRecommendation `json:"shipping"`
}

func (r *snapshotListing) validate() error {
	switch {
	case r.Title == "":
		return errors.New("listing response missing required field: title")
	case r.Description == "":
		return errors.New("listing response missing required field: description")
	case r.SuggestedPrice <= 0:
		return errors.New("listing response missing or invalid required field: suggestedPrice")
	case r.ItemSpecifics == nil:
		return errors.New("listing response missing required field: itemSpecifics")
	}
	return nil
}
