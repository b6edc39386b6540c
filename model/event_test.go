package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEvent(t *testing.T) {
	raw := RawEvent{
		ClientID:  "u1",
		Timestamp: "2025-03-04T10:15:30.250",
		EventName: "page_view",
		PageURL:   "https://shop.example.com/mattress?UTM_Source=Google&utm_medium=CPC&utm_campaign=Spring_Sale",
		Referrer:  "https://WWW.Google.com/search?q=mattress",
		EventData: `{"value": "129.99", "transaction_id": "T100"}`,
	}

	event, err := NormalizeEvent(raw)
	assert.NoError(t, err)
	assert.Equal(t, "u1", event.UserID)
	assert.True(t, event.Timestamp.Equal(time.Date(2025, 3, 4, 10, 15, 30, 0, time.UTC)))
	assert.Equal(t, "www.google.com", event.ReferrerHost)
	assert.Equal(t, "google", event.UTMSource)
	assert.Equal(t, "cpc", event.UTMMedium)
	assert.Equal(t, "spring_sale", event.UTMCampaign)
	assert.NotNil(t, event.Revenue)
	assert.Equal(t, 129.99, *event.Revenue)
	assert.Equal(t, "T100", event.TransactionID)
	assert.Equal(t, "2025-03-04", event.Date)
}

func TestNormalizeEventIdentifierResolution(t *testing.T) {
	// Legacy identifier rows must flow through identically to primary ones.
	legacy := RawEvent{LegacyClientID: "u2", Timestamp: "2025-03-04T10:00:00"}
	event, err := NormalizeEvent(legacy)
	assert.NoError(t, err)
	assert.Equal(t, "u2", event.UserID)

	both := RawEvent{ClientID: "u1", LegacyClientID: "u2", Timestamp: "2025-03-04T10:00:00"}
	event, err = NormalizeEvent(both)
	assert.NoError(t, err)
	assert.Equal(t, "u1", event.UserID)

	neither := RawEvent{Timestamp: "2025-03-04T10:00:00"}
	_, err = NormalizeEvent(neither)
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}

func TestNormalizeEventRowLevelDefects(t *testing.T) {
	_, err := NormalizeEvent(RawEvent{ClientID: "u1", Timestamp: "not-a-time"})
	assert.ErrorIs(t, err, ErrBadTimestamp)

	// Defects below row level degrade to nil or empty fields, never errors.
	event, err := NormalizeEvent(RawEvent{
		ClientID:  "u1",
		Timestamp: "2025-03-04T10:00:00",
		EventName: "purchase",
		EventData: `{"value": "gift card", "order_id": "T200"}`,
	})
	assert.NoError(t, err)
	assert.Nil(t, event.Revenue)
	assert.Equal(t, "T200", event.TransactionID)

	event, err = NormalizeEvent(RawEvent{
		ClientID:  "u1",
		Timestamp: "2025-03-04T10:00:00",
		EventData: "not json at all",
	})
	assert.NoError(t, err)
	assert.Nil(t, event.Revenue)
	assert.Equal(t, "", event.TransactionID)
	assert.Equal(t, "", event.ReferrerHost)
	assert.Equal(t, "", event.UTMMedium)
}

func TestNormalizeEventRevenueFallbackKey(t *testing.T) {
	event, err := NormalizeEvent(RawEvent{
		ClientID:  "u1",
		Timestamp: "2025-03-04T10:00:00",
		EventData: `{"revenue": 75.5, "transaction_id": "T300"}`,
	})
	assert.NoError(t, err)
	assert.NotNil(t, event.Revenue)
	assert.Equal(t, 75.5, *event.Revenue)
}

func TestGetReferrerHost(t *testing.T) {
	tests := []struct {
		name     string
		referrer string
		want     string
	}{
		{"full url", "https://www.google.com/search?q=bed", "www.google.com"},
		{"no path", "https://t.co", "t.co"},
		{"no scheme", "news.ycombinator.com/item", "news.ycombinator.com"},
		{"uppercase", "HTTPS://WWW.Example.COM/page", "www.example.com"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetReferrerHost(tt.referrer))
		})
	}
}

func TestGetUTMParams(t *testing.T) {
	source, medium, campaign := GetUTMParams("https://x.com/p?utm_source=FB&utm_medium=Social&utm_campaign=Launch")
	assert.Equal(t, "fb", source)
	assert.Equal(t, "social", medium)
	assert.Equal(t, "launch", campaign)

	source, medium, campaign = GetUTMParams("https://x.com/p")
	assert.Equal(t, "", source)
	assert.Equal(t, "", medium)
	assert.Equal(t, "", campaign)

	// Malformed pairs are skipped, not errors.
	source, _, _ = GetUTMParams("https://x.com/p?utm_source=email&broken&=orphan")
	assert.Equal(t, "email", source)
}

func TestIdentifierDriftByDate(t *testing.T) {
	rawEvents := []RawEvent{
		{ClientID: "a", Timestamp: "2025-02-26T10:00:00"},
		{ClientID: "b", Timestamp: "2025-02-26T11:00:00"},
		{LegacyClientID: "c", Timestamp: "2025-02-27T09:00:00"},
		{LegacyClientID: "d", Timestamp: "2025-02-27T09:30:00"},
		{ClientID: "e", Timestamp: "2025-02-27T10:00:00"},
		{Timestamp: "bad"},
	}

	drift := IdentifierDriftByDate(rawEvents)
	assert.Len(t, drift, 2)

	feb26 := time.Date(2025, 2, 26, 0, 0, 0, 0, time.UTC)
	feb27 := time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, drift[feb26].LegacyRatio())
	assert.InDelta(t, 2.0/3.0, drift[feb27].LegacyRatio(), 1e-9)
}
