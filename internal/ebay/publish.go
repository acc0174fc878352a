package ebay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ArunBabu98/sellist-server/internal/listing"
)

// DefaultLocationKey identifies the merchant location created on first
// publish.
const DefaultLocationKey = "sellist-default"

// PublishResult reports the identifiers produced by a publish flow.
type PublishResult struct {
	SKU        string `json:"sku"`
	OfferID    string `json:"offerId"`
	ListingID  string `json:"listingId"`
	CategoryID string `json:"categoryId"`
}

// PublishPayload runs the full publish flow for one generated payload:
// category suggestion, policy lookup, inventory upsert, offer create and
// publish. imageURLs must already be hosted (UploadImage). postalCode is the
// seller's ship-from location; empty falls back to a placeholder.
func (c *Client) PublishPayload(ctx context.Context, sku string, p *listing.Payload, imageURLs []string, postalCode string) (*PublishResult, error) {
	category, err := c.SuggestLeafCategory(ctx, p.Title)
	if err != nil {
		return nil, fmt.Errorf("category suggestion failed: %w", err)
	}

	aspects, err := c.GetCategoryAspects(ctx, category.Category.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("aspect lookup failed: %w", err)
	}
	if missing := MissingRequiredAspects(aspects, p.ItemSpecifics); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Str("categoryId", category.Category.CategoryID).
			Msg("payload missing required aspects for category")
	}

	policies, err := c.GetDefaultPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy lookup failed: %w", err)
	}

	if postalCode == "" {
		postalCode = "00000"
	}
	if err := c.EnsureLocation(ctx, DefaultLocationKey, postalCode, "US"); err != nil {
		return nil, fmt.Errorf("location setup failed: %w", err)
	}

	if err := c.UpsertInventoryItem(ctx, sku, InventoryItemFromPayload(p, imageURLs)); err != nil {
		return nil, fmt.Errorf("inventory upsert failed: %w", err)
	}

	offer := Offer{
		SKU:                sku,
		MarketplaceID:      c.marketplaceID,
		Format:             formatEnum(p.Pricing.Strategy.Format),
		AvailableQuantity:  1,
		CategoryID:         category.Category.CategoryID,
		ListingDescription: p.Description,
		ListingPolicies: ListingPolicies{
			FulfillmentPolicyID: policies.FulfillmentPolicyID,
			PaymentPolicyID:     policies.PaymentPolicyID,
			ReturnPolicyID:      policies.ReturnPolicyID,
		},
		PricingSummary: PricingSummary{
			Price: Amount{
				Currency: p.Pricing.Currency,
				Value:    fmt.Sprintf("%.2f", p.Pricing.SuggestedPrice),
			},
		},
		MerchantLocationKey: DefaultLocationKey,
	}
	if p.Pricing.Strategy.AcceptBestOffer {
		minOffer := p.Pricing.SuggestedPrice * p.Pricing.Strategy.MinOfferPercent / 100
		offer.ListingPolicies.BestOfferTerms = &BestOfferTerms{
			BestOfferEnabled: true,
			AutoDeclinePrice: &Amount{
				Currency: p.Pricing.Currency,
				Value:    fmt.Sprintf("%.2f", minOffer),
			},
		}
	}

	offerID, err := c.CreateOffer(ctx, offer)
	if err != nil {
		return nil, fmt.Errorf("offer creation failed: %w", err)
	}

	listingID, err := c.PublishOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("offer publish failed: %w", err)
	}

	log.Info().Str("sku", sku).Str("listingId", listingID).
		Str("categoryId", category.Category.CategoryID).Msg("listing published")

	return &PublishResult{
		SKU:        sku,
		OfferID:    offerID,
		ListingID:  listingID,
		CategoryID: category.Category.CategoryID,
	}, nil
}

func formatEnum(format string) string {
	if format == "AUCTION" {
		return "AUCTION"
	}
	return "FIXED_PRICE"
}
