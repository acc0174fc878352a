package ebay

import (
	"context"
	"fmt"

	"github.com/ArunBabu98/sellist-server/internal/listing"
)

// BulkBatchSize is eBay's hard cap on items per bulk inventory/offer call.
const BulkBatchSize = 25

// InventoryItem is the Sell Inventory API's item shape.
type InventoryItem struct {
	Product              Product               `json:"product"`
	Condition            string                `json:"condition"`
	ConditionDescription string                `json:"conditionDescription,omitempty"`
	PackageWeightAndSize *PackageWeightAndSize `json:"packageWeightAndSize,omitempty"`
	Availability         Availability          `json:"availability"`
}

type Product struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Description string `json:"description"`
	// Aspects are the item specifics; eBay requires string-array values.
	Aspects   map[string][]string `json:"aspects"`
	Brand     string              `json:"brand"`
	MPN       string              `json:"mpn,omitempty"`
	UPC       []string            `json:"upc,omitempty"`
	ImageURLs []string            `json:"imageUrls"`
}

type PackageWeightAndSize struct {
	Weight     Measure  `json:"weight"`
	Dimensions *BoxDims `json:"dimensions,omitempty"`
}

type Measure struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type BoxDims struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

type Availability struct {
	ShipToLocationAvailability ShipToLocationAvailability `json:"shipToLocationAvailability"`
}

type ShipToLocationAvailability struct {
	Quantity int `json:"quantity"`
}

// Offer is the Sell Inventory API's offer shape.
type Offer struct {
	SKU                 string          `json:"sku"`
	MarketplaceID       string          `json:"marketplaceId"`
	Format              string          `json:"format"`
	AvailableQuantity   int             `json:"availableQuantity"`
	CategoryID          string          `json:"categoryId"`
	ListingDescription  string          `json:"listingDescription"`
	ListingPolicies     ListingPolicies `json:"listingPolicies"`
	PricingSummary      PricingSummary  `json:"pricingSummary"`
	MerchantLocationKey string          `json:"merchantLocationKey"`
}

type ListingPolicies struct {
	FulfillmentPolicyID string          `json:"fulfillmentPolicyId"`
	PaymentPolicyID     string          `json:"paymentPolicyId"`
	ReturnPolicyID      string          `json:"returnPolicyId"`
	BestOfferTerms      *BestOfferTerms `json:"bestOfferTerms,omitempty"`
}

type BestOfferTerms struct {
	BestOfferEnabled bool    `json:"bestOfferEnabled"`
	AutoDeclinePrice *Amount `json:"autoDeclinePrice,omitempty"`
}

type PricingSummary struct {
	Price Amount `json:"price"`
}

type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type offerResponse struct {
	OfferID string `json:"offerId"`
}

type publishResponse struct {
	ListingID string `json:"listingId"`
}

// SpecificsToAspects converts the pipeline's item-specifics map into eBay's
// string-array aspect shape.
func SpecificsToAspects(specifics map[string]string) map[string][]string {
	aspects := make(map[string][]string, len(specifics))
	for k, v := range specifics {
		aspects[k] = []string{v}
	}
	return aspects
}

// InventoryItemFromPayload maps a normalized listing payload onto the
// inventory-item shape.
func InventoryItemFromPayload(p *listing.Payload, imageURLs []string) InventoryItem {
	return InventoryItem{
		Product: Product{
			Title:       p.Title,
			Subtitle:    p.Subtitle,
			Description: p.Description,
			Aspects:     SpecificsToAspects(p.ItemSpecifics),
			Brand:       p.ProductIdentification.Brand,
			MPN:         p.ProductIdentification.MPN,
			ImageURLs:   imageURLs,
		},
		Condition:            conditionEnum(p.Condition.Grade),
		ConditionDescription: p.Condition.Notes,
		PackageWeightAndSize: &PackageWeightAndSize{
			Weight: Measure{Value: p.Weight.Value, Unit: weightUnitEnum(p.Weight.Unit)},
			Dimensions: &BoxDims{
				Length: p.Dimensions.Length,
				Width:  p.Dimensions.Width,
				Height: p.Dimensions.Height,
				Unit:   dimensionUnitEnum(p.Dimensions.Unit),
			},
		},
		Availability: Availability{
			ShipToLocationAvailability: ShipToLocationAvailability{Quantity: 1},
		},
	}
}

// UpsertInventoryItem creates or replaces the inventory item under the SKU.
func (c *Client) UpsertInventoryItem(ctx context.Context, sku string, item InventoryItem) error {
	req, err := c.req(ctx, nil)
	if err != nil {
		return err
	}
	_, err = handleError(req.
		SetPathParams(map[string]string{"sku": sku}).
		SetBody(item).
		Put("/sell/inventory/v1/inventory_item/{sku}"))
	return err
}

// CreateOffer creates an unpublished offer for a SKU and returns its ID.
func (c *Client) CreateOffer(ctx context.Context, offer Offer) (string, error) {
	result := &offerResponse{}
	req, err := c.req(ctx, result)
	if err != nil {
		return "", err
	}
	_, err = handleError(req.
		SetBody(offer).
		Post("/sell/inventory/v1/offer"))
	if err != nil {
		return "", err
	}
	return result.OfferID, nil
}

// PublishOffer publishes an offer, producing a live listing ID.
func (c *Client) PublishOffer(ctx context.Context, offerID string) (string, error) {
	result := &publishResponse{}
	req, err := c.req(ctx, result)
	if err != nil {
		return "", err
	}
	_, err = handleError(req.
		SetPathParams(map[string]string{"offerId": offerID}).
		Post("/sell/inventory/v1/offer/{offerId}/publish"))
	if err != nil {
		return "", err
	}
	return result.ListingID, nil
}

// SKUItem pairs a SKU with its inventory item for bulk calls.
type SKUItem struct {
	SKU  string        `json:"sku"`
	Item InventoryItem `json:"-"`
}

type bulkInventoryRequest struct {
	Requests []bulkInventoryEntry `json:"requests"`
}

type bulkInventoryEntry struct {
	SKU string `json:"sku"`
	InventoryItem
}

// BulkUpsertInventoryItems upserts items in batches of BulkBatchSize. The
// first failing batch aborts the rest.
func (c *Client) BulkUpsertInventoryItems(ctx context.Context, items []SKUItem) error {
	for _, batch := range ChunkItems(items, BulkBatchSize) {
		body := bulkInventoryRequest{}
		for _, it := range batch {
			body.Requests = append(body.Requests, bulkInventoryEntry{SKU: it.SKU, InventoryItem: it.Item})
		}
		req, err := c.req(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := handleError(req.
			SetBody(body).
			Post("/sell/inventory/v1/bulk_create_or_replace_inventory_item")); err != nil {
			return fmt.Errorf("bulk inventory upsert failed: %w", err)
		}
	}
	return nil
}

// ChunkItems splits items into batches of at most size.
func ChunkItems[T any](items []T, size int) [][]T {
	if size <= 0 {
		return [][]T{items}
	}
	var chunks [][]T
	for size < len(items) {
		chunks = append(chunks, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

// conditionEnum maps the descriptive condition grade onto eBay's enum.
func conditionEnum(grade string) string {
	switch grade {
	case "New":
		return "NEW"
	case "Like New":
		return "LIKE_NEW"
	case "Very Good":
		return "USED_EXCELLENT"
	case "Good":
		return "USED_GOOD"
	case "Acceptable":
		return "USED_ACCEPTABLE"
	case "For parts or not working":
		return "FOR_PARTS_OR_NOT_WORKING"
	default:
		return "USED_GOOD"
	}
}

func weightUnitEnum(unit string) string {
	switch unit {
	case "kg":
		return "KILOGRAM"
	case "oz":
		return "OUNCE"
	case "g":
		return "GRAM"
	default:
		return "POUND"
	}
}

func dimensionUnitEnum(unit string) string {
	if unit == "cm" {
		return "CENTIMETER"
	}
	return "INCH"
}
