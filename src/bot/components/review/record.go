package review

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stake-plus/fundcomms/src/bot/components/gateway"
)

type Kind string

const (
	KindDonation Kind = "donation"
	KindSale     Kind = "sale"
)

type Status string

const (
	StatusCollecting     Status = "collecting"
	StatusAwaitingReview Status = "awaiting_review"
	StatusAdjustingPrice Status = "adjusting_price"
	StatusReadyToPublish Status = "ready_to_publish"
	StatusPublished      Status = "published"
	StatusRejected       Status = "rejected"
)

// Terminal reports whether a status releases the record from the live index.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// Attributes are the free-form fields gathered before proof. Opaque to the
// state machine; Description and Contact are sanitized at the boundary.
type Attributes struct {
	Category    string
	Description string
	Contact     string
}

// Submission is the claim under review. One live record per requester;
// mutated only by the machine's transition handlers.
type Submission struct {
	ID          string
	RequesterID string
	Username    string
	// OriginChan is where the requester submitted; notifications go back
	// there.
	OriginChan string
	Kind       Kind

	// Amount is the donation amount or the seller's declared price.
	Amount decimal.Decimal

	Attrs     Attributes
	Anonymous bool

	ProofRef   string
	Adjustment *decimal.Decimal
	FinalPrice *decimal.Decimal

	ReviewMsg gateway.MessageRef
	Status    Status
	CreatedAt time.Time
}

// DisplayName is the name shown in public broadcasts.
func (s *Submission) DisplayName() string {
	if s.Anonymous {
		if s.Kind == KindSale {
			return "an anonymous seller"
		}
		return "an anonymous supporter"
	}
	return "@" + s.Username
}
