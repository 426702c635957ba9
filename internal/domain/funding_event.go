package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignFundedEvent is the message emitted by the payment webhook processor
// after a brand's funding payment settles. The economy-service treats the
// funded amount as authoritative input; delivery, retries and signature
// verification belong to the webhook processor.
type CampaignFundedEvent struct {
	EventID        string    `json:"event_id"`
	CampaignID     uuid.UUID `json:"campaign_id"`
	AmountUSDCents int64     `json:"amount_usd_cents"`
	Provider       string    `json:"provider"`
	Reference      string    `json:"reference"`
	OccurredAt     time.Time `json:"occurred_at"`
}
