package model

import (
	"sort"
	"time"

	U "github.com/cyashish/puffy-repo/util"
)

// AttributionLookbackDays is the default trailing window before a conversion
// within which sessions are eligible. Both window boundaries are inclusive.
const AttributionLookbackDays = 7

// Attribution credits one canonical conversion to a first-click and a
// last-click channel.
type Attribution struct {
	TransactionID     string    `json:"transaction_id"`
	UserID            string    `json:"user_id"`
	Revenue           float64   `json:"revenue"`
	ConversionTime    time.Time `json:"conversion_time"`
	FirstClickChannel string    `json:"first_click_channel"`
	LastClickChannel  string    `json:"last_click_channel"`
}

// SortSessionsByStart orders sessions by start timestamp ascending with ties
// broken on session id, the ordering AttributeConversion binary searches on.
func SortSessionsByStart(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartTimestamp.Equal(sessions[j].StartTimestamp) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartTimestamp.Before(sessions[j].StartTimestamp)
	})
}

// AttributeConversion selects first-click and last-click channels for one
// conversion from the user's sessions, which must already be ordered by
// SortSessionsByStart. Candidates are the sessions whose start falls inside
// [conversion - lookbackDays, conversion], both ends inclusive. Ranking is
// by session start, not session end; with no candidate both channels default
// to Direct.
func AttributeConversion(conversion Conversion, userSessions []Session, lookbackDays int) Attribution {
	attribution := Attribution{
		TransactionID:     conversion.TransactionID,
		UserID:            conversion.UserID,
		Revenue:           conversion.Revenue,
		ConversionTime:    conversion.Timestamp,
		FirstClickChannel: ChannelDirect,
		LastClickChannel:  ChannelDirect,
	}

	windowStart := conversion.Timestamp.Add(-time.Duration(int64(lookbackDays)*U.SecsInADay) * time.Second)

	lo := sort.Search(len(userSessions), func(i int) bool {
		return !userSessions[i].StartTimestamp.Before(windowStart)
	})
	hi := sort.Search(len(userSessions), func(i int) bool {
		return userSessions[i].StartTimestamp.After(conversion.Timestamp)
	})
	if lo >= hi {
		return attribution
	}

	candidates := userSessions[lo:hi]

	// Sessions are ordered by start then id, so the first candidate is the
	// earliest start with the id tie already resolved. For last-click the
	// scan keeps the lowest id among sessions tied on the latest start.
	first := candidates[0]
	last := candidates[0]
	for _, session := range candidates[1:] {
		if session.StartTimestamp.After(last.StartTimestamp) {
			last = session
		}
	}

	attribution.FirstClickChannel = first.FirstTouchChannel
	attribution.LastClickChannel = last.LastTouchChannel
	return attribution
}
