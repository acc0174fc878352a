package listing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// payloadSchema is the JSON Schema every normalized payload must satisfy.
// It encodes the totality guarantee: all top-level sections present, the
// item-specifics triad populated, and prices non-negative.
const payloadSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": [
		"productIdentification", "title", "subtitle", "description",
		"condition", "weight", "dimensions", "pricing", "shipping",
		"itemSpecifics", "seoKeywords", "recommendations", "qualityChecks",
		"compliance", "legal", "metadata"
	],
	"properties": {
		"productIdentification": {
			"type": "object",
			"required": ["brand", "model", "category", "upc", "mpn", "confidence"],
			"properties": {
				"brand": {"type": "string", "minLength": 1},
				"model": {"type": "string", "minLength": 1},
				"category": {"type": "string", "minLength": 1},
				"confidence": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"title": {"type": "string", "minLength": 1, "maxLength": 80},
		"description": {"type": "string", "minLength": 1},
		"condition": {
			"type": "object",
			"required": ["grade", "score", "flaws"],
			"properties": {
				"grade": {"type": "string", "minLength": 1},
				"score": {"type": "integer", "minimum": 0, "maximum": 10},
				"flaws": {"type": "array", "items": {"type": "string"}}
			}
		},
		"weight": {
			"type": "object",
			"required": ["value", "unit", "confidence"],
			"properties": {
				"value": {"type": "number", "exclusiveMinimum": 0},
				"unit": {"type": "string", "minLength": 1},
				"confidence": {"enum": ["high", "medium", "low"]}
			}
		},
		"dimensions": {
			"type": "object",
			"required": ["length", "width", "height", "unit", "confidence"],
			"properties": {
				"length": {"type": "number", "exclusiveMinimum": 0},
				"width": {"type": "number", "exclusiveMinimum": 0},
				"height": {"type": "number", "exclusiveMinimum": 0},
				"confidence": {"enum": ["high", "medium", "low"]}
			}
		},
		"pricing": {
			"type": "object",
			"required": ["suggestedPrice", "minPrice", "maxPrice", "currency", "strategy"],
			"properties": {
				"suggestedPrice": {"type": "number", "exclusiveMinimum": 0},
				"minPrice": {"type": "number", "exclusiveMinimum": 0},
				"maxPrice": {"type": "number", "exclusiveMinimum": 0},
				"currency": {"type": "string", "minLength": 3, "maxLength": 3},
				"strategy": {
					"type": "object",
					"required": ["format", "acceptBestOffer", "shippingAllocation"],
					"properties": {
						"format": {"enum": ["FIXED_PRICE", "AUCTION"]}
					}
				}
			}
		},
		"itemSpecifics": {
			"type": "object",
			"required": ["Brand", "Model", "Condition"],
			"additionalProperties": {"type": "string", "minLength": 1}
		},
		"seoKeywords": {"type": "array", "items": {"type": "string"}},
		"legal": {
			"type": "object",
			"required": ["conditionDisclaimer", "authenticityNote", "asIsStatement"],
			"properties": {
				"conditionDisclaimer": {"type": "string", "minLength": 1},
				"authenticityNote": {"type": "string", "minLength": 1},
				"asIsStatement": {"type": "string", "minLength": 1}
			}
		},
		"metadata": {
			"type": "object",
			"required": ["correlationId", "generatedAt", "modelVersion"]
		}
	}
}`

var compiledSchema = gojsonschema.NewStringLoader(payloadSchema)

// ValidateSchema checks a payload against the canonical schema. It runs as
// the pipeline's final quality gate; a failure there indicates a normalizer
// bug, not bad model output.
func ValidateSchema(p Payload) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed to run: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("payload fails schema: %s", strings.Join(problems, "; "))
}
