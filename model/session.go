package model

import (
	"fmt"
	"sort"
	"time"
)

const ThirtyMinutesInSeconds int64 = 30 * 60

// NewSessionInactivityInSeconds is the inactivity gap that opens a new
// session. The boundary is inclusive: a gap of exactly thirty minutes is a
// new session.
const NewSessionInactivityInSeconds int64 = ThirtyMinutesInSeconds

// Session is one contiguous run of a user's events. ID is the stable
// composite key "{user_id}-S{sequence_no}".
type Session struct {
	ID                string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	SequenceNo        int       `json:"sequence_no"`
	StartTimestamp    time.Time `json:"start_timestamp"`
	EndTimestamp      time.Time `json:"end_timestamp"`
	EventCount        int       `json:"event_count"`
	FirstTouchChannel string    `json:"first_touch_channel"`
	LastTouchChannel  string    `json:"last_touch_channel"`
	Campaign          string    `json:"campaign"`
}

func SessionID(userID string, sequenceNo int) string {
	return fmt.Sprintf("%s-S%d", userID, sequenceNo)
}

// BuildUserSessions sessionizes one user's events: stable sort by timestamp
// (ties keep input order, raw logs do contain simultaneous events), then a
// single scan carrying the previous timestamp. Returns the aggregated
// sessions in start order and a copy of the events with session ids
// assigned. The input slice is not modified.
func BuildUserSessions(userID string, events []ChannelTaggedEvent) ([]Session, []ChannelTaggedEvent) {
	if len(events) == 0 {
		return []Session{}, []ChannelTaggedEvent{}
	}

	ordered := make([]ChannelTaggedEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	sessions := make([]Session, 0)
	sequenceNo := 0
	var previousTimestamp time.Time
	var memberStart int

	closeSession := func(members []ChannelTaggedEvent) {
		session := aggregateSessionEvents(userID, sequenceNo, members)
		for i := range members {
			members[i].SessionID = session.ID
		}
		sessions = append(sessions, session)
	}

	for i := range ordered {
		if i == 0 {
			sequenceNo = 1
			memberStart = 0
		} else if ordered[i].Timestamp.Sub(previousTimestamp) >= time.Duration(NewSessionInactivityInSeconds)*time.Second {
			closeSession(ordered[memberStart:i])
			sequenceNo++
			memberStart = i
		}
		previousTimestamp = ordered[i].Timestamp
	}
	closeSession(ordered[memberStart:])

	return sessions, ordered
}

// aggregateSessionEvents reduces one session's time ordered member events to
// session level facts. Members are non-empty by construction.
func aggregateSessionEvents(userID string, sequenceNo int, members []ChannelTaggedEvent) Session {
	first := members[0]
	last := members[len(members)-1]

	return Session{
		ID:                SessionID(userID, sequenceNo),
		UserID:            userID,
		SequenceNo:        sequenceNo,
		StartTimestamp:    first.Timestamp,
		EndTimestamp:      last.Timestamp,
		EventCount:        len(members),
		FirstTouchChannel: first.Channel,
		LastTouchChannel:  last.Channel,
		Campaign:          first.UTMCampaign,
	}
}
