package transform

import (
	"fmt"
	"math"

	"github.com/cyashish/puffy-repo/model"
)

// CheckResult is one row of the reconciliation summary persisted with the
// derived tables. A FAIL on a structural check means the engine itself is
// broken, not that the input was dirty.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func (c CheckResult) Status() string {
	if c.Passed {
		return "PASS"
	}
	return "FAIL"
}

// Reconcile validates the built tables and returns the full list of named
// check results. It is invoked once after all tables are built and holds no
// state of its own.
func Reconcile(tables *Tables, normalized []model.NormalizedEvent, conversions []model.Conversion) []CheckResult {
	return []CheckResult{
		checkNonEmptyOutput(tables),
		checkSessionOrdering(tables.Sessions),
		checkEventAssignment(tables.EventSessions, len(normalized)),
		checkAttributionCardinality(tables.Attributions, normalized),
		checkRevenueParity(tables.Attributions, conversions),
	}
}

// checkNonEmptyOutput verifies the run produced sessions and event
// assignments. The run itself fails earlier on an empty normalized batch, so
// an empty table here means the sessionizer lost the whole batch.
func checkNonEmptyOutput(tables *Tables) CheckResult {
	check := CheckResult{Name: "non_empty_output", Passed: true,
		Detail: fmt.Sprintf("%d sessions, %d event assignments", len(tables.Sessions), len(tables.EventSessions))}
	if len(tables.Sessions) == 0 || len(tables.EventSessions) == 0 {
		check.Passed = false
	}
	return check
}

// checkSessionOrdering verifies start <= end for every session and that one
// user's sessions are disjoint and ordered by start. Sessions arrive grouped
// per user in sequence order.
func checkSessionOrdering(sessions []model.Session) CheckResult {
	check := CheckResult{Name: "session_ordering", Passed: true,
		Detail: fmt.Sprintf("%d sessions ordered and disjoint", len(sessions))}

	lastEndByUser := make(map[string]model.Session)
	for i := range sessions {
		session := sessions[i]
		if session.EndTimestamp.Before(session.StartTimestamp) {
			check.Passed = false
			check.Detail = fmt.Sprintf("session %s has start > end", session.ID)
			return check
		}
		if session.EventCount < 1 {
			check.Passed = false
			check.Detail = fmt.Sprintf("session %s has no events", session.ID)
			return check
		}

		if previous, exists := lastEndByUser[session.UserID]; exists {
			if !session.StartTimestamp.After(previous.EndTimestamp) {
				check.Passed = false
				check.Detail = fmt.Sprintf("sessions %s and %s overlap", previous.ID, session.ID)
				return check
			}
		}
		lastEndByUser[session.UserID] = session
	}
	return check
}

func checkEventAssignment(eventSessions []model.ChannelTaggedEvent, processedEvents int) CheckResult {
	check := CheckResult{Name: "event_session_assignment", Passed: true,
		Detail: fmt.Sprintf("%d events assigned", len(eventSessions))}

	if len(eventSessions) != processedEvents {
		check.Passed = false
		check.Detail = fmt.Sprintf("assigned %d events, processed %d", len(eventSessions), processedEvents)
		return check
	}
	for i := range eventSessions {
		if eventSessions[i].SessionID == "" {
			check.Passed = false
			check.Detail = fmt.Sprintf("event for user %s at %s has no session id",
				eventSessions[i].UserID, eventSessions[i].Timestamp)
			return check
		}
	}
	return check
}

// checkAttributionCardinality verifies one attribution row per distinct
// purchase transaction id. Duplicates must neither inflate nor deflate it.
func checkAttributionCardinality(attributions []model.Attribution, normalized []model.NormalizedEvent) CheckResult {
	distinct := make(map[string]struct{})
	for i := range normalized {
		if model.IsPurchaseEvent(normalized[i].EventName) && normalized[i].TransactionID != "" {
			distinct[normalized[i].TransactionID] = struct{}{}
		}
	}

	check := CheckResult{Name: "attribution_cardinality", Passed: true,
		Detail: fmt.Sprintf("%d attributions for %d distinct transactions", len(attributions), len(distinct))}
	if len(attributions) != len(distinct) {
		check.Passed = false
	}
	return check
}

// checkRevenueParity verifies the attributed revenue equals the canonical
// deduplicated revenue exactly. Both sides come from the same canonical
// records, so any drift means an attribution row was lost or double counted.
func checkRevenueParity(attributions []model.Attribution, conversions []model.Conversion) CheckResult {
	canonical := float64(0)
	for i := range conversions {
		canonical += conversions[i].Revenue
	}
	attributed := float64(0)
	for i := range attributions {
		attributed += attributions[i].Revenue
	}

	check := CheckResult{Name: "revenue_parity", Passed: true,
		Detail: fmt.Sprintf("canonical %.2f == attributed %.2f", canonical, attributed)}
	if math.Abs(canonical-attributed) > 0 {
		check.Passed = false
		check.Detail = fmt.Sprintf("canonical %.2f != attributed %.2f", canonical, attributed)
	}
	return check
}
