package listing

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// TitleMaxLen is the marketplace's hard cap on listing titles.
const TitleMaxLen = 80

// Documented defaults used when the model output omits a field or echoes a
// placeholder back.
const (
	DefaultBrand          = "Unbranded"
	DefaultModel          = "Does Not Apply"
	DefaultCategory       = "Other"
	DefaultConditionGrade = "Used"
	DefaultCurrency       = "USD"
	DefaultConfidence     = 0.5
	DefaultWeightValue    = 1.0
	DefaultWeightUnit     = "lb"
	DefaultDimensionUnit  = "in"
	DefaultPrice          = 9.99
	DefaultFormat         = "FIXED_PRICE"
	DefaultShippingAlloc  = "BUYER_PAYS"
	DefaultShippingSvc    = "USPS Ground Advantage"
	DefaultHandlingDays   = 2
	DefaultReturnDays     = 30
	DefaultDuration       = "GTC"
)

// Standard liability boilerplate. These texts ship on every listing unless
// the model supplied its own; they are never left blank.
const (
	defaultConditionDisclaimer = "Please review all photos carefully as they form part of the item description. Condition is graded to the best of the seller's ability."
	defaultAuthenticityNote    = "Item is described based on visible markings and characteristics. Buyers should verify authenticity details that matter to them before purchase."
	defaultAsIsStatement       = "Item is sold as described and pictured. Contact the seller with any questions before purchasing."
)

// placeholderSentinels are values the model may echo back in place of real
// data. They are treated the same as an absent field.
var placeholderSentinels = map[string]bool{
	"":          true,
	"null":      true,
	"string":    true,
	"undefined": true,
}

// isPlaceholder reports whether a string value carries no real information.
func isPlaceholder(s string) bool {
	return placeholderSentinels[strings.ToLower(strings.TrimSpace(s))]
}

func orDefault(v, def string) string {
	if isPlaceholder(v) {
		return def
	}
	return strings.TrimSpace(v)
}

// Draft is the merged, possibly partial output of all pipeline phases.
// Pointer fields distinguish "model said false" from "model said nothing".
type Draft struct {
	Brand                    string
	Model                    string
	Category                 string
	UPC                      string
	MPN                      string
	IdentificationConfidence float64

	Title       string
	Subtitle    string
	Description string

	ConditionGrade string
	ConditionScore int
	Flaws          []string
	ConditionNotes string

	WeightValue      float64
	WeightUnit       string
	WeightConfidence string

	DimLength     float64
	DimWidth      float64
	DimHeight     float64
	DimUnit       string
	DimConfidence string

	SuggestedPrice     float64
	MinPrice           float64
	MaxPrice           float64
	Currency           string
	Format             string
	AcceptBestOffer    *bool
	MinOfferPercent    float64
	ShippingAllocation string
	MarketDataUsed     bool
	PriceRationale     string

	ShippingService string
	HandlingDays    int
	PackageType     string

	ItemSpecifics map[string]any
	SEOKeywords   []string

	ReturnsAccepted  *bool
	ReturnPeriodDays int
	PromotedListings bool
	ListingDuration  string

	Compliant          *bool
	ComplianceReason   string
	RestrictedCategory bool

	ConditionDisclaimer string
	AuthenticityNote    string
	AsIsStatement       string

	PhotosAnalyzed int
}

// Normalize maps a partial draft into the canonical payload. It is total:
// every field of the result carries either a draft value that passed the
// placeholder check or its documented default. Item-specifics entries failing
// the check are dropped outright, except Brand, Model and Condition which
// always receive a fallback so the map is never empty.
func Normalize(d Draft, meta Metadata) Payload {
	brand := orDefault(d.Brand, DefaultBrand)
	model := orDefault(d.Model, DefaultModel)
	grade := orDefault(d.ConditionGrade, DefaultConditionGrade)

	confidence := d.IdentificationConfidence
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultConfidence
	}

	title := normalizeTitle(d.Title, brand, model)
	description := orDefault(d.Description, fallbackDescription(title, grade))

	weightTier := normalizeTier(d.WeightConfidence)
	dimTier := normalizeTier(d.DimConfidence)

	weight := Weight{
		Value:                d.WeightValue,
		Unit:                 orDefault(d.WeightUnit, DefaultWeightUnit),
		Confidence:           weightTier,
		RequiresVerification: weightTier == ConfidenceLow,
	}
	if weight.Value <= 0 {
		weight.Value = DefaultWeightValue
		weight.Confidence = ConfidenceLow
		weight.RequiresVerification = true
	}

	dims := Dimensions{
		Length:               d.DimLength,
		Width:                d.DimWidth,
		Height:               d.DimHeight,
		Unit:                 orDefault(d.DimUnit, DefaultDimensionUnit),
		Confidence:           dimTier,
		RequiresVerification: dimTier == ConfidenceLow,
	}
	if dims.Length <= 0 || dims.Width <= 0 || dims.Height <= 0 {
		dims.Length, dims.Width, dims.Height = 12, 9, 4
		dims.Confidence = ConfidenceLow
		dims.RequiresVerification = true
	}

	pricing := normalizePricing(d)
	specifics := normalizeSpecifics(d.ItemSpecifics, brand, model, grade)

	compliant := true
	if d.Compliant != nil {
		compliant = *d.Compliant
	}

	returnsAccepted := true
	if d.ReturnsAccepted != nil {
		returnsAccepted = *d.ReturnsAccepted
	}
	returnDays := d.ReturnPeriodDays
	if returnDays <= 0 {
		returnDays = DefaultReturnDays
	}

	handlingDays := d.HandlingDays
	if handlingDays <= 0 {
		handlingDays = DefaultHandlingDays
	}

	score := d.ConditionScore
	if score < 0 || score > 10 {
		score = 0
	}

	flaws := d.Flaws
	if flaws == nil {
		flaws = []string{}
	}
	keywords := normalizeKeywords(d.SEOKeywords)

	return Payload{
		ProductIdentification: ProductIdentification{
			Brand:      brand,
			Model:      model,
			Category:   orDefault(d.Category, DefaultCategory),
			UPC:        orDefault(d.UPC, DefaultModel),
			MPN:        orDefault(d.MPN, DefaultModel),
			Confidence: confidence,
		},
		Title:       title,
		Subtitle:    orDefault(d.Subtitle, ""),
		Description: description,
		Condition: Condition{
			Grade: grade,
			Score: score,
			Flaws: flaws,
			Notes: orDefault(d.ConditionNotes, ""),
		},
		Weight:     weight,
		Dimensions: dims,
		Pricing:    pricing,
		Shipping: Shipping{
			RecommendedService: orDefault(d.ShippingService, DefaultShippingSvc),
			HandlingDays:       handlingDays,
			PackageType:        orDefault(d.PackageType, "PACKAGE"),
		},
		ItemSpecifics: specifics,
		SEOKeywords:   keywords,
		Recommendations: Recommendations{
			ReturnsAccepted:  returnsAccepted,
			ReturnPeriodDays: returnDays,
			PromotedListings: d.PromotedListings,
			ListingDuration:  orDefault(d.ListingDuration, DefaultDuration),
		},
		QualityChecks: QualityChecks{
			TitleWithinLimit:   utf8.RuneCountInString(title) <= TitleMaxLen,
			HasDescription:     description != "",
			ItemSpecificsCount: len(specifics),
			PhotosAnalyzed:     d.PhotosAnalyzed,
		},
		Compliance: Compliance{
			IsCompliant:        compliant,
			Reason:             orDefault(d.ComplianceReason, ""),
			RestrictedCategory: d.RestrictedCategory,
		},
		Legal: Legal{
			ConditionDisclaimer: orDefault(d.ConditionDisclaimer, defaultConditionDisclaimer),
			AuthenticityNote:    orDefault(d.AuthenticityNote, defaultAuthenticityNote),
			AsIsStatement:       orDefault(d.AsIsStatement, defaultAsIsStatement),
		},
		Metadata: meta,
	}
}

func normalizeTitle(title, brand, model string) string {
	title = orDefault(title, "")
	if title == "" {
		if brand != DefaultBrand && model != DefaultModel {
			title = brand + " " + model
		} else if brand != DefaultBrand {
			title = brand + " item"
		} else {
			title = "Item for sale, see photos"
		}
	}
	// The marketplace cap counts characters, so truncate on runes to keep
	// multibyte titles valid UTF-8.
	if runes := []rune(title); len(runes) > TitleMaxLen {
		title = strings.TrimSpace(string(runes[:TitleMaxLen]))
	}
	return title
}

func fallbackDescription(title, grade string) string {
	return title + ". Condition: " + grade + ". See photos for details."
}

func normalizeTier(tier string) ConfidenceTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "high":
		return ConfidenceHigh
	case "medium", "med":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func normalizePricing(d Draft) Pricing {
	suggested := d.SuggestedPrice
	if suggested <= 0 {
		suggested = DefaultPrice
	}
	minPrice := d.MinPrice
	maxPrice := d.MaxPrice
	if minPrice <= 0 || minPrice > suggested {
		minPrice = roundPrice(suggested * 0.8)
	}
	if maxPrice < suggested {
		maxPrice = roundPrice(suggested * 1.2)
	}

	format := strings.ToUpper(orDefault(d.Format, DefaultFormat))
	if format != "AUCTION" {
		format = "FIXED_PRICE"
	}

	acceptBestOffer := suggested >= 20
	if d.AcceptBestOffer != nil {
		acceptBestOffer = *d.AcceptBestOffer
	}
	minOfferPct := d.MinOfferPercent
	if minOfferPct <= 0 || minOfferPct >= 100 {
		minOfferPct = 80
	}

	return Pricing{
		SuggestedPrice: roundPrice(suggested),
		MinPrice:       minPrice,
		MaxPrice:       maxPrice,
		Currency:       orDefault(d.Currency, DefaultCurrency),
		Strategy: PricingStrategy{
			Format:             format,
			AcceptBestOffer:    acceptBestOffer,
			MinOfferPercent:    minOfferPct,
			ShippingAllocation: strings.ToUpper(orDefault(d.ShippingAllocation, DefaultShippingAlloc)),
		},
		MarketDataUsed: d.MarketDataUsed,
		Rationale:      orDefault(d.PriceRationale, "Conservative estimate; no comparable sold listings were available."),
	}
}

// normalizeSpecifics drops placeholder entries and guarantees the
// Brand/Model/Condition triad is always present. Scalar values are kept
// regardless of JSON type; models often emit numbers for numeric specifics.
func normalizeSpecifics(raw map[string]any, brand, model, grade string) map[string]string {
	out := make(map[string]string)
	for k, v := range raw {
		if isPlaceholder(k) {
			continue
		}
		s, ok := stringifySpecific(v)
		if !ok || isPlaceholder(s) {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(s)
	}
	if isPlaceholder(out["Brand"]) {
		out["Brand"] = brand
	}
	if isPlaceholder(out["Model"]) {
		out["Model"] = model
	}
	if isPlaceholder(out["Condition"]) {
		out["Condition"] = grade
	}
	return out
}

func stringifySpecific(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

func normalizeKeywords(raw []string) []string {
	out := []string{}
	for _, k := range raw {
		if !isPlaceholder(k) {
			out = append(out, strings.TrimSpace(k))
		}
	}
	return out
}

func roundPrice(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
