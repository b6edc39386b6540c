package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	U "github.com/cyashish/puffy-repo/util"
)

// RawEvent is one row of the extracted clickstream batch, exactly as handed
// over by the ingestion collaborator. Older log files populate LegacyClientID
// instead of ClientID, which is the schema drift this engine has to absorb.
type RawEvent struct {
	ClientID       string `json:"client_id"`
	LegacyClientID string `json:"clientId"`
	Timestamp      string `json:"timestamp"`
	EventName      string `json:"event_name"`
	PageURL        string `json:"page_url"`
	Referrer       string `json:"referrer"`
	EventData      string `json:"event_data"`
}

// NormalizedEvent is the cleaned per-row form. Revenue stays a pointer since
// most events carry no payload value at all.
type NormalizedEvent struct {
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
	EventName     string    `json:"event_name"`
	PageURL       string    `json:"page_url"`
	ReferrerHost  string    `json:"referrer_host"`
	Revenue       *float64  `json:"revenue"`
	TransactionID string    `json:"transaction_id"`
	UTMSource     string    `json:"utm_source"`
	UTMMedium     string    `json:"utm_medium"`
	UTMCampaign   string    `json:"utm_campaign"`
	Date          string    `json:"date"`
}

// ChannelTaggedEvent carries the derived marketing channel and, once
// sessionized, the id of the session the event belongs to.
type ChannelTaggedEvent struct {
	NormalizedEvent
	Channel   string `json:"channel"`
	SessionID string `json:"session_id"`
}

var ErrMissingIdentifier = errors.New("both identifier fields empty")
var ErrBadTimestamp = errors.New("unparseable timestamp")

// Payload keys holding revenue and the transaction identifier. The fallback
// keys show up in older checkout payloads.
var revenuePayloadKeys = []string{"value", "revenue"}
var transactionPayloadKeys = []string{"transaction_id", "order_id"}

// NormalizeEvent cleans one raw row. A row is dropped (error returned) only
// when its resolved user id is empty or its timestamp does not parse; every
// other defect degrades to an empty or nil field on the output.
func NormalizeEvent(raw RawEvent) (*NormalizedEvent, error) {
	userID := raw.ClientID
	if userID == "" {
		userID = raw.LegacyClientID
	}
	if userID == "" {
		return nil, ErrMissingIdentifier
	}

	timestamp, err := U.ParseEventTimestampZ(raw.Timestamp)
	if err != nil {
		return nil, ErrBadTimestamp
	}

	normalized := &NormalizedEvent{
		UserID:       userID,
		Timestamp:    timestamp,
		EventName:    raw.EventName,
		PageURL:      raw.PageURL,
		ReferrerHost: GetReferrerHost(raw.Referrer),
		Date:         U.GetDateOnlyFromTimeZ(timestamp),
	}

	source, medium, campaign := GetUTMParams(raw.PageURL)
	normalized.UTMSource = source
	normalized.UTMMedium = medium
	normalized.UTMCampaign = campaign

	if payload := decodePayload(raw.EventData); payload != nil {
		normalized.Revenue = U.FloatValueFromMap(payload, revenuePayloadKeys...)
		normalized.TransactionID = U.StringValueFromMap(payload, transactionPayloadKeys...)
	}

	return normalized, nil
}

// TagEventChannel derives the marketing channel for a normalized event.
func TagEventChannel(event NormalizedEvent) ChannelTaggedEvent {
	return ChannelTaggedEvent{
		NormalizedEvent: event,
		Channel:         ClassifyChannel(event.UTMMedium, event.ReferrerHost),
	}
}

func decodePayload(eventData string) map[string]interface{} {
	if strings.TrimSpace(eventData) == "" {
		return nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(eventData), &payload); err != nil {
		// Opaque blob that is not JSON. Treated as carrying no fields.
		return nil
	}
	return payload
}

// GetReferrerHost extracts the lowercased host from a referrer URL: the text
// after "scheme://" up to the next "/". An empty referrer yields an empty
// host, which downstream classifies as Direct.
func GetReferrerHost(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}

	host := referrer
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+len("://"):]
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return strings.ToLower(host)
}

// GetUTMParams pulls utm_source, utm_medium and utm_campaign out of a page
// URL's query string. Key matching is case insensitive and values are
// lowercased. Absent parameters yield empty strings, never an error.
func GetUTMParams(pageURL string) (source, medium, campaign string) {
	idx := strings.Index(pageURL, "?")
	if idx == -1 || idx == len(pageURL)-1 {
		return "", "", ""
	}

	for _, pair := range strings.Split(pageURL[idx+1:], "&") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}

		value := strings.ToLower(kv[1])
		switch strings.ToLower(kv[0]) {
		case "utm_source":
			source = value
		case "utm_medium":
			medium = value
		case "utm_campaign":
			campaign = value
		}
	}
	return source, medium, campaign
}

// IdentifierDriftStat counts, for one calendar date, which of the two
// identifier fields the raw rows populated.
type IdentifierDriftStat struct {
	Primary int `json:"primary"`
	Legacy  int `json:"legacy"`
}

// LegacyRatio is the share of rows on a date that still used the legacy
// identifier field. A jump across dates is the schema drift signal.
func (s IdentifierDriftStat) LegacyRatio() float64 {
	total := s.Primary + s.Legacy
	if total == 0 {
		return 0
	}
	return float64(s.Legacy) / float64(total)
}

// IdentifierDriftByDate is a diagnostic over the raw batch, not an enforced
// check. Stats are keyed by the UTC beginning of the row's day; rows with
// unparseable timestamps are skipped.
func IdentifierDriftByDate(rawEvents []RawEvent) map[time.Time]IdentifierDriftStat {
	driftByDate := make(map[time.Time]IdentifierDriftStat)
	for _, raw := range rawEvents {
		timestamp, err := U.ParseEventTimestampZ(raw.Timestamp)
		if err != nil {
			continue
		}

		day := U.GetBeginningOfDayTimeZ(timestamp)
		stat := driftByDate[day]
		if raw.ClientID != "" {
			stat.Primary++
		} else if raw.LegacyClientID != "" {
			stat.Legacy++
		}
		driftByDate[day] = stat
	}
	return driftByDate
}
