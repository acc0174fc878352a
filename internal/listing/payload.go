// Package listing defines the canonical listing payload schema and the total
// normalization from partial AI phase output into that schema.
package listing

import "time"

// ConfidenceTier grades how much an estimate should be trusted.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// ProductIdentification anchors the listing to visually verifiable claims.
type ProductIdentification struct {
	Brand      string  `json:"brand"`
	Model      string  `json:"model"`
	Category   string  `json:"category"`
	UPC        string  `json:"upc"`
	MPN        string  `json:"mpn"`
	Confidence float64 `json:"confidence"`
}

// Condition describes the item's state honestly, flaws included.
type Condition struct {
	Grade string `json:"grade"`
	// Score is a 1-10 numeric grade, 0 when the model did not provide one.
	Score int      `json:"score"`
	Flaws []string `json:"flaws"`
	Notes string   `json:"notes"`
}

// Weight is an estimated shipping weight including packaging.
type Weight struct {
	Value      float64        `json:"value"`
	Unit       string         `json:"unit"`
	Confidence ConfidenceTier `json:"confidence"`
	// RequiresVerification forces manual confirmation before publish when the
	// estimate confidence is low.
	RequiresVerification bool `json:"requiresVerification"`
}

// Dimensions are estimated bounding-box dimensions.
type Dimensions struct {
	Length               float64        `json:"length"`
	Width                float64        `json:"width"`
	Height               float64        `json:"height"`
	Unit                 string         `json:"unit"`
	Confidence           ConfidenceTier `json:"confidence"`
	RequiresVerification bool           `json:"requiresVerification"`
}

// PricingStrategy recommends a listing format and negotiation posture.
type PricingStrategy struct {
	// Format is FIXED_PRICE or AUCTION.
	Format          string  `json:"format"`
	AcceptBestOffer bool    `json:"acceptBestOffer"`
	MinOfferPercent float64 `json:"minOfferPercent"`
	// ShippingAllocation is FREE_SHIPPING (cost baked into price) or
	// BUYER_PAYS.
	ShippingAllocation string `json:"shippingAllocation"`
}

// Pricing holds the suggested price and its grounding.
type Pricing struct {
	SuggestedPrice float64         `json:"suggestedPrice"`
	MinPrice       float64         `json:"minPrice"`
	MaxPrice       float64         `json:"maxPrice"`
	Currency       string          `json:"currency"`
	Strategy       PricingStrategy `json:"strategy"`
	// MarketDataUsed is false when no comparable sold listings grounded the
	// estimate; the price is then a conservative guess, not market evidence.
	MarketDataUsed bool   `json:"marketDataUsed"`
	Rationale      string `json:"rationale"`
}

// Shipping recommends a service based on estimated weight and size.
type Shipping struct {
	RecommendedService string `json:"recommendedService"`
	HandlingDays       int    `json:"handlingDays"`
	PackageType        string `json:"packageType"`
}

// Recommendations are listing-configuration suggestions.
type Recommendations struct {
	ReturnsAccepted  bool   `json:"returnsAccepted"`
	ReturnPeriodDays int    `json:"returnPeriodDays"`
	PromotedListings bool   `json:"promotedListings"`
	ListingDuration  string `json:"listingDuration"`
}

// QualityChecks summarizes automated checks on the generated content.
type QualityChecks struct {
	TitleWithinLimit   bool `json:"titleWithinLimit"`
	HasDescription     bool `json:"hasDescription"`
	ItemSpecificsCount int  `json:"itemSpecificsCount"`
	PhotosAnalyzed     int  `json:"photosAnalyzed"`
}

// Compliance carries the policy screening verdict from the grounding phase.
type Compliance struct {
	IsCompliant        bool   `json:"isCompliant"`
	Reason             string `json:"reason"`
	RestrictedCategory bool   `json:"restrictedCategory"`
}

// Legal holds liability-relevant disclaimer texts. These must never be blank;
// the normalizer substitutes standard boilerplate when the model omits them.
type Legal struct {
	ConditionDisclaimer string `json:"conditionDisclaimer"`
	AuthenticityNote    string `json:"authenticityNote"`
	AsIsStatement       string `json:"asIsStatement"`
}

// Metadata identifies one pipeline run.
type Metadata struct {
	CorrelationID    string    `json:"correlationId"`
	GeneratedAt      time.Time `json:"generatedAt"`
	ModelVersion     string    `json:"modelVersion"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
}

// Payload is the canonical listing schema. Every field is always present
// with either a model-derived value or a documented default; it is created
// once per pipeline run by Normalize and treated as immutable after return.
type Payload struct {
	ProductIdentification ProductIdentification `json:"productIdentification"`
	Title                 string                `json:"title"`
	Subtitle              string                `json:"subtitle"`
	Description           string                `json:"description"`
	Condition             Condition             `json:"condition"`
	Weight                Weight                `json:"weight"`
	Dimensions            Dimensions            `json:"dimensions"`
	Pricing               Pricing               `json:"pricing"`
	Shipping              Shipping              `json:"shipping"`
	ItemSpecifics         map[string]string     `json:"itemSpecifics"`
	SEOKeywords           []string              `json:"seoKeywords"`
	Recommendations       Recommendations       `json:"recommendations"`
	QualityChecks         QualityChecks         `json:"qualityChecks"`
	Compliance            Compliance            `json:"compliance"`
	Legal                 Legal                 `json:"legal"`
	Metadata              Metadata              `json:"metadata"`
}
