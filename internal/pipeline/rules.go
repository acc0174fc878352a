package pipeline

// Business rules for the listing pipeline. These used to live only as prose
// inside prompt text; keeping them as named constants lets rule changes avoid
// prompt-string surgery and makes them unit-testable independently of model
// behavior.

// PackagingWeightFactor is applied to the model's bare-item weight estimate
// to account for box and padding.
const PackagingWeightFactor = 1.15

// DefaultMinConfidence is the grounding-confidence floor below which a run is
// routed to manual review instead of continuing.
const DefaultMinConfidence = 0.60

// BestOfferMinPrice is the suggested price above which enabling Best Offer
// is recommended.
const BestOfferMinPrice = 20.0

// AuctionSpreadThreshold: when comparable sold prices spread wider than this
// fraction of their mean, an auction format is suggested over fixed price.
const AuctionSpreadThreshold = 0.5

// Image intake limits. Model-call images accept up to 20MB; publish-time
// uploads to the marketplace are capped lower (see internal/ebay).
const (
	MaxImages     = 12
	MaxImageBytes = 20 * 1024 * 1024
)

// allowedMIMETypes is the subset of image types the vision model accepts.
var allowedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/heic": true,
	"image/avif": true,
}

// prohibitedCategories are eBay policy areas that reject a listing outright.
var prohibitedCategories = []string{
	"adult content",
	"weapons and firearms",
	"drugs and drug paraphernalia",
	"counterfeit or replica items",
	"prescription medical devices",
	"live animals",
	"government IDs and licenses",
}

// categoryWeightPriors are rough item-weight priors (lb) by broad category,
// fed to the attribute-extraction prompt as grounding for its estimate.
var categoryWeightPriors = map[string]float64{
	"electronics":      2.0,
	"clothing":         0.8,
	"shoes":            2.5,
	"books and media":  1.2,
	"toys and games":   1.5,
	"home and kitchen": 3.0,
	"sporting goods":   4.0,
	"furniture":        25.0,
}

// packagedWeight applies the packaging allowance to a bare-item estimate.
func packagedWeight(itemWeight float64) float64 {
	return itemWeight * PackagingWeightFactor
}

// recommendFormat suggests a listing format from comparable sold prices.
// With no comps, fixed price is the conservative default. A wide spread
// among comps suggests demand is hard to price and an auction may find the
// market better.
func recommendFormat(comps []SoldComp) string {
	if len(comps) < 3 {
		return "FIXED_PRICE"
	}
	var min, max, sum float64
	min = comps[0].Price
	for _, c := range comps {
		if c.Price < min {
			min = c.Price
		}
		if c.Price > max {
			max = c.Price
		}
		sum += c.Price
	}
	mean := sum / float64(len(comps))
	if mean > 0 && (max-min)/mean > AuctionSpreadThreshold {
		return "AUCTION"
	}
	return "FIXED_PRICE"
}
