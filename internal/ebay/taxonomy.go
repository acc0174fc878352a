package ebay

import (
	"context"
	"fmt"
)

// defaultCategoryTreeID is the category tree for EBAY_US.
const defaultCategoryTreeID = "0"

type CategorySuggestion struct {
	Category struct {
		CategoryID   string `json:"categoryId"`
		CategoryName string `json:"categoryName"`
	} `json:"category"`
	CategoryTreeNodeLevel     int                `json:"categoryTreeNodeLevel"`
	CategoryTreeNodeAncestors []CategoryAncestor `json:"categoryTreeNodeAncestors"`
	LeafCategoryTreeNode      bool               `json:"leafCategoryTreeNode"`
	Relevancy                 string             `json:"relevancy"`
}

type CategoryAncestor struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

type categorySuggestionsResponse struct {
	CategorySuggestions []CategorySuggestion `json:"categorySuggestions"`
}

// SuggestLeafCategory returns the best leaf category for a query built from
// the generated title. Offer creation requires a leaf node; non-leaf
// suggestions are skipped.
func (c *Client) SuggestLeafCategory(ctx context.Context, query string) (*CategorySuggestion, error) {
	result := &categorySuggestionsResponse{}
	req, err := c.req(ctx, result)
	if err != nil {
		return nil, err
	}
	_, err = handleError(req.
		SetPathParams(map[string]string{"treeId": defaultCategoryTreeID}).
		SetQueryParam("q", query).
		Get("/commerce/taxonomy/v1/category_tree/{treeId}/get_category_suggestions"))
	if err != nil {
		return nil, err
	}

	for i := range result.CategorySuggestions {
		if result.CategorySuggestions[i].LeafCategoryTreeNode {
			return &result.CategorySuggestions[i], nil
		}
	}
	return nil, fmt.Errorf("no leaf category suggestion for query %q", query)
}

type Aspect struct {
	LocalizedAspectName string `json:"localizedAspectName"`
	AspectConstraint    struct {
		AspectRequired bool `json:"aspectRequired"`
	} `json:"aspectConstraint"`
}

type aspectsResponse struct {
	Aspects []Aspect `json:"aspects"`
}

// GetCategoryAspects returns the item-specific aspects for a leaf category,
// used to check the generated specifics cover everything required.
func (c *Client) GetCategoryAspects(ctx context.Context, categoryID string) ([]Aspect, error) {
	result := &aspectsResponse{}
	req, err := c.req(ctx, result)
	if err != nil {
		return nil, err
	}
	_, err = handleError(req.
		SetPathParams(map[string]string{"treeId": defaultCategoryTreeID}).
		SetQueryParam("category_id", categoryID).
		Get("/commerce/taxonomy/v1/category_tree/{treeId}/get_item_aspects_for_category"))
	if err != nil {
		return nil, err
	}
	return result.Aspects, nil
}

// MissingRequiredAspects lists required aspect names absent from the
// generated item specifics.
func MissingRequiredAspects(aspects []Aspect, specifics map[string]string) []string {
	var missing []string
	for _, a := range aspects {
		if !a.AspectConstraint.AspectRequired {
			continue
		}
		if _, ok := specifics[a.LocalizedAspectName]; !ok {
			missing = append(missing, a.LocalizedAspectName)
		}
	}
	return missing
}
