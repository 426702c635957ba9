package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/yield/economy-service/internal/domain"
	"github.com/yield/economy-service/internal/store"
)

// CampaignFundingConsumer applies settled funding payments to campaign
// budgets. The payment webhook processor owns verifying and recording the
// payment; this consumer only moves the authoritative funded amount onto the
// campaign record.
type CampaignFundingConsumer struct {
	repo store.Repository
}

func NewCampaignFundingConsumer(repo store.Repository) *CampaignFundingConsumer {
	return &CampaignFundingConsumer{repo: repo}
}

// HandleMessage processes one funding event. It returns true to acknowledge
// the message; malformed payloads are acknowledged and dropped, while store
// failures re-queue the message for redelivery.
func (c *CampaignFundingConsumer) HandleMessage(body []byte) bool {
	var event domain.CampaignFundedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=funding_consumer msg=\"payload unmarshal failed\" err=%v", err)
		return true
	}

	minCents := int64(domain.MinCampaignBudgetUSD) * 100
	maxCents := int64(domain.MaxCampaignBudgetUSD) * 100
	if event.CampaignID == uuid.Nil || event.AmountUSDCents < minCents || event.AmountUSDCents > maxCents {
		log.Printf("level=warn component=funding_consumer msg=\"dropping funding event outside budget bounds\" event_id=%s campaign_id=%s amount=%d min=%d max=%d",
			event.EventID, event.CampaignID, event.AmountUSDCents, minCents, maxCents)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Printf("level=error component=funding_consumer msg=\"processing failed\" event_id=%s campaign_id=%s err=%v",
			event.EventID, event.CampaignID, err)
		return false
	}
	return true
}

func (c *CampaignFundingConsumer) processEvent(ctx context.Context, event domain.CampaignFundedEvent) error {
	if err := c.repo.AddCampaignFunding(ctx, event.CampaignID, event.AmountUSDCents); err != nil {
		if errors.Is(err, store.ErrCampaignNotFound) {
			log.Printf("level=warn component=funding_consumer msg=\"funding event for unknown campaign; acknowledging\" campaign_id=%s", event.CampaignID)
			return nil
		}
		return fmt.Errorf("add funding: %w", err)
	}

	log.Printf("level=info component=funding_consumer msg=\"campaign funded\" campaign_id=%s amount_usd_cents=%d provider=%s reference=%s",
		event.CampaignID, event.AmountUSDCents, event.Provider, event.Reference)
	return nil
}
