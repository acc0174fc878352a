package ebay

import (
	"context"
)

// PolicyIDs are the business-policy identifiers an offer must reference.
type PolicyIDs struct {
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
}

type policyListResponse struct {
	FulfillmentPolicies []policyEntry `json:"fulfillmentPolicies"`
	PaymentPolicies     []policyEntry `json:"paymentPolicies"`
	ReturnPolicies      []policyEntry `json:"returnPolicies"`
}

type policyEntry struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId"`
	PaymentPolicyID     string `json:"paymentPolicyId"`
	ReturnPolicyID      string `json:"returnPolicyId"`
	Name                string `json:"name"`
}

// GetDefaultPolicies fetches the seller's first policy of each kind. Sellers
// using this backend are expected to have policies configured; this only
// discovers their IDs for offer creation.
func (c *Client) GetDefaultPolicies(ctx context.Context) (PolicyIDs, error) {
	var ids PolicyIDs

	for _, p := range []struct {
		path   string
		assign func(*policyListResponse)
	}{
		{"/sell/account/v1/fulfillment_policy", func(r *policyListResponse) {
			if len(r.FulfillmentPolicies) > 0 {
				ids.FulfillmentPolicyID = r.FulfillmentPolicies[0].FulfillmentPolicyID
			}
		}},
		{"/sell/account/v1/payment_policy", func(r *policyListResponse) {
			if len(r.PaymentPolicies) > 0 {
				ids.PaymentPolicyID = r.PaymentPolicies[0].PaymentPolicyID
			}
		}},
		{"/sell/account/v1/return_policy", func(r *policyListResponse) {
			if len(r.ReturnPolicies) > 0 {
				ids.ReturnPolicyID = r.ReturnPolicies[0].ReturnPolicyID
			}
		}},
	} {
		result := &policyListResponse{}
		req, err := c.req(ctx, result)
		if err != nil {
			return ids, err
		}
		if _, err := handleError(req.
			SetQueryParam("marketplace_id", c.marketplaceID).
			Get(p.path)); err != nil {
			return ids, err
		}
		p.assign(result)
	}

	return ids, nil
}

// MerchantLocation is a seller inventory location.
type MerchantLocation struct {
	Location struct {
		Address struct {
			PostalCode string `json:"postalCode"`
			Country    string `json:"country"`
		} `json:"address"`
	} `json:"location"`
	Name          string   `json:"name"`
	LocationTypes []string `json:"locationTypes"`
}

// EnsureLocation creates the named inventory location if it does not exist.
// Offer publication requires at least one.
func (c *Client) EnsureLocation(ctx context.Context, key, postalCode, country string) error {
	req, err := c.req(ctx, nil)
	if err != nil {
		return err
	}
	res, err := req.
		SetPathParams(map[string]string{"key": key}).
		Get("/sell/inventory/v1/location/{key}")
	if err == nil && res.StatusCode() == 200 {
		return nil
	}

	loc := MerchantLocation{Name: key, LocationTypes: []string{"WAREHOUSE"}}
	loc.Location.Address.PostalCode = postalCode
	loc.Location.Address.Country = country

	req, err = c.req(ctx, nil)
	if err != nil {
		return err
	}
	_, err = handleError(req.
		SetPathParams(map[string]string{"key": key}).
		SetBody(loc).
		Post("/sell/inventory/v1/location/{key}"))
	return err
}
