package model

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	U "github.com/cyashish/puffy-repo/util"
)

// PurchaseEventNames are the event types treated as conversions. Older logs
// emit checkout_completed for the same action.
var PurchaseEventNames = []string{"purchase", "checkout_completed"}

// Revenue policy for collapsing duplicate purchase rows sharing one
// transaction id. Upstream delivery is at-least-once, so exact duplicate
// redelivery is the expected failure mode.
const (
	DedupePolicyMaxRevenue  = "max"
	DedupePolicyLastRevenue = "last"
)

// Conversion is the canonical record for one transaction id.
type Conversion struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
	Revenue       float64   `json:"revenue"`
}

func IsPurchaseEvent(eventName string) bool {
	return U.ContainsStringInArray(PurchaseEventNames, eventName)
}

// DedupeConversions collapses purchase events sharing a transaction id into
// one canonical conversion, taking the maximum observed timestamp and, under
// the default policy, the maximum observed revenue. Returns the conversions
// sorted by transaction id and the number of duplicate rows collapsed.
func DedupeConversions(events []NormalizedEvent, revenuePolicy string) ([]Conversion, int) {
	byTransaction := make(map[string]*Conversion)
	duplicates := 0

	for i := range events {
		event := events[i]
		if !IsPurchaseEvent(event.EventName) || event.TransactionID == "" {
			continue
		}

		revenue := float64(0)
		if event.Revenue != nil {
			revenue = *event.Revenue
		}

		existing, exists := byTransaction[event.TransactionID]
		if !exists {
			byTransaction[event.TransactionID] = &Conversion{
				TransactionID: event.TransactionID,
				UserID:        event.UserID,
				Timestamp:     event.Timestamp,
				Revenue:       revenue,
			}
			continue
		}

		duplicates++
		if existing.UserID != event.UserID {
			// Same transaction id across two users is an upstream identity
			// defect. The first seen user is kept.
			log.WithFields(log.Fields{
				"transaction_id": event.TransactionID,
				"user_id":        existing.UserID,
				"other_user_id":  event.UserID,
			}).Warn("Conflicting user id on duplicate transaction.")
		}

		isNewer := event.Timestamp.After(existing.Timestamp)
		if isNewer {
			existing.Timestamp = event.Timestamp
		}

		switch revenuePolicy {
		case DedupePolicyLastRevenue:
			if isNewer {
				existing.Revenue = revenue
			}
		default:
			if revenue > existing.Revenue {
				existing.Revenue = revenue
			}
		}
	}

	conversions := make([]Conversion, 0, len(byTransaction))
	for _, conversion := range byTransaction {
		conversions = append(conversions, *conversion)
	}
	sort.Slice(conversions, func(i, j int) bool {
		return conversions[i].TransactionID < conversions[j].TransactionID
	})

	return conversions, duplicates
}
