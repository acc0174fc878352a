package pipeline

import (
	"time"

	"github.com/ArunBabu98/sellist-server/internal/listing"
)

// Status is the terminal state of one pipeline run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusRejected       Status = "rejected"
	StatusRequiresReview Status = "requires_review"
	StatusInvalid        Status = "invalid_input"
)

// Machine-readable rejection reasons returned to the caller.
const (
	ReasonPolicyViolation = "EBAY_POLICY_VIOLATION"
	ReasonManualReview    = "MANUAL_REVIEW_REQUIRED"
	ReasonInvalidInput    = "INVALID_INPUT"
	ReasonPipelineError   = "PIPELINE_ERROR"
)

// Meta identifies and times one pipeline run.
type Meta struct {
	CorrelationID  string
	ProcessingTime time.Duration
	ModelVersion   string
}

// Outcome is the tagged result of one run. Exactly one of the variants is
// produced: Success carries a payload, the others carry a reason and details.
type Outcome struct {
	Status  Status
	Payload *listing.Payload
	Reason  string
	Details string
	Meta    Meta
}

func (p *Pipeline) success(payload *listing.Payload, meta Meta) Outcome {
	return Outcome{Status: StatusSuccess, Payload: payload, Meta: meta}
}

func (p *Pipeline) rejected(reason, details string, meta Meta) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason, Details: details, Meta: meta}
}

func (p *Pipeline) requiresReview(details string, meta Meta) Outcome {
	return Outcome{Status: StatusRequiresReview, Reason: ReasonManualReview, Details: details, Meta: meta}
}

func (p *Pipeline) invalid(details string, meta Meta) Outcome {
	return Outcome{Status: StatusInvalid, Reason: ReasonInvalidInput, Details: details, Meta: meta}
}
