package transform

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cyashish/puffy-repo/model"
	U "github.com/cyashish/puffy-repo/util"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Options control one transformation run. Zero values fall back to the
// engine defaults.
type Options struct {
	NumUserRoutines int
	LookbackDays    int
	DedupePolicy    string
}

func (o *Options) applyDefaults() {
	if o.NumUserRoutines < 1 {
		o.NumUserRoutines = 1
	}
	if o.LookbackDays < 1 {
		o.LookbackDays = model.AttributionLookbackDays
	}
	if o.DedupePolicy == "" {
		o.DedupePolicy = model.DedupePolicyMaxRevenue
	}
}

// Tables are the complete derived relations of one run, handed to the
// storage collaborator as full table replacements.
type Tables struct {
	Sessions       []model.Session            `json:"sessions"`
	EventSessions  []model.ChannelTaggedEvent `json:"event_sessions"`
	Attributions   []model.Attribution        `json:"attributions"`
	Reconciliation []CheckResult              `json:"reconciliation"`
}

// Status carries the per-run counters reported by the job.
type Status struct {
	RunID                    string `json:"run_id"`
	Status                   string `json:"status"`
	NoOfRawEvents            int    `json:"no_of_raw_events"`
	NoOfDuplicateRowsDropped int    `json:"no_of_duplicate_rows_dropped"`
	NoOfEventsDropped        int    `json:"no_of_events_dropped"`
	NoOfEventsProcessed      int    `json:"no_of_events_processed"`
	NoOfUsers                int    `json:"no_of_users"`
	NoOfSessionsCreated      int    `json:"no_of_sessions_created"`
	NoOfConversions          int    `json:"no_of_conversions"`
	NoOfDuplicatesCollapsed  int    `json:"no_of_duplicates_collapsed"`

	lock sync.Mutex
}

func (s *Status) addSessionsCreated(count int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.NoOfSessionsCreated += count
}

type userSessionsResult struct {
	sessions []model.Session
	events   []model.ChannelTaggedEvent
}

// Run executes the full batch transform: normalize, classify, sessionize,
// dedupe conversions and attribute. It is a pure function of the input
// batch; repeat runs over identical input produce identical tables. An
// input that is empty after normalization fails the whole run and emits no
// partial tables.
func Run(rawEvents []model.RawEvent, opts Options) (*Tables, *Status, error) {
	opts.applyDefaults()

	status := &Status{RunID: uuid.New().String(), Status: StatusFailed}
	status.NoOfRawEvents = len(rawEvents)

	logCtx := log.WithFields(log.Fields{
		"run_id":        status.RunID,
		"raw_events":    len(rawEvents),
		"user_routines": opts.NumUserRoutines,
		"lookback_days": opts.LookbackDays,
	})
	logCtx.Info("Starting transformation run.")

	rawEvents, duplicateRows := dedupeRawRows(rawEvents)
	status.NoOfDuplicateRowsDropped = duplicateRows
	if duplicateRows > 0 {
		logCtx.WithField("duplicate_rows", duplicateRows).Warn("Dropped duplicate raw rows.")
	}

	normalized := normalizeBatch(rawEvents, status, logCtx)
	if len(normalized) == 0 {
		return nil, status, errors.New("input batch empty after normalization")
	}
	status.NoOfEventsProcessed = len(normalized)

	tagged := make([]model.ChannelTaggedEvent, 0, len(normalized))
	for i := range normalized {
		tagged = append(tagged, model.TagEventChannel(normalized[i]))
	}

	sessionsByUser := sessionizeByUser(tagged, opts.NumUserRoutines, status)
	status.NoOfUsers = len(sessionsByUser)

	conversions, duplicates := model.DedupeConversions(normalized, opts.DedupePolicy)
	status.NoOfConversions = len(conversions)
	status.NoOfDuplicatesCollapsed = duplicates

	tables := &Tables{
		Sessions:      make([]model.Session, 0),
		EventSessions: make([]model.ChannelTaggedEvent, 0, len(tagged)),
		Attributions:  make([]model.Attribution, 0, len(conversions)),
	}

	userIDs := make([]string, 0, len(sessionsByUser))
	for userID := range sessionsByUser {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	for _, userID := range userIDs {
		result := sessionsByUser[userID]
		tables.Sessions = append(tables.Sessions, result.sessions...)
		tables.EventSessions = append(tables.EventSessions, result.events...)
	}

	for _, conversion := range conversions {
		userSessions := []model.Session{}
		if result, exists := sessionsByUser[conversion.UserID]; exists {
			userSessions = result.sessions
		}
		tables.Attributions = append(tables.Attributions,
			model.AttributeConversion(conversion, userSessions, opts.LookbackDays))
	}

	tables.Reconciliation = Reconcile(tables, normalized, conversions)

	status.Status = StatusSuccess
	logCtx.WithFields(log.Fields{
		"users":       status.NoOfUsers,
		"sessions":    status.NoOfSessionsCreated,
		"conversions": status.NoOfConversions,
	}).Info("Transformation run complete.")

	return tables, status, nil
}

// dedupeRawRows drops rows that repeat an earlier row field for field,
// keeping first-occurrence order. Exporters re-deliver whole pages on
// retry, so identical rows are re-delivery noise, not new activity.
func dedupeRawRows(rawEvents []model.RawEvent) ([]model.RawEvent, int) {
	seen := make(map[model.RawEvent]struct{}, len(rawEvents))
	deduped := make([]model.RawEvent, 0, len(rawEvents))
	for i := range rawEvents {
		if _, exists := seen[rawEvents[i]]; exists {
			continue
		}
		seen[rawEvents[i]] = struct{}{}
		deduped = append(deduped, rawEvents[i])
	}
	return deduped, len(rawEvents) - len(deduped)
}

func normalizeBatch(rawEvents []model.RawEvent, status *Status, logCtx *log.Entry) []model.NormalizedEvent {
	normalized := make([]model.NormalizedEvent, 0, len(rawEvents))
	droppedNoIdentifier, droppedBadTimestamp := 0, 0

	for i := range rawEvents {
		event, err := model.NormalizeEvent(rawEvents[i])
		if err != nil {
			if errors.Is(err, model.ErrMissingIdentifier) {
				droppedNoIdentifier++
			} else {
				droppedBadTimestamp++
			}
			continue
		}
		normalized = append(normalized, *event)
	}

	status.NoOfEventsDropped = droppedNoIdentifier + droppedBadTimestamp
	if status.NoOfEventsDropped > 0 {
		logCtx.WithFields(log.Fields{
			"no_identifier": droppedNoIdentifier,
			"bad_timestamp": droppedBadTimestamp,
		}).Warn("Dropped rows during normalization.")
	}
	return normalized
}

// sessionizeByUser partitions events by user and sessionizes each partition
// on its own goroutine. Users are independent, so the unit of parallel work
// is one user's full event history. Workers write to their own slot of a
// pre-sized result slice.
func sessionizeByUser(tagged []model.ChannelTaggedEvent, numUserRoutines int, status *Status) map[string]userSessionsResult {
	eventsByUser := make(map[string][]model.ChannelTaggedEvent)
	userIDs := make([]string, 0)
	for i := range tagged {
		userID := tagged[i].UserID
		if _, exists := eventsByUser[userID]; !exists {
			userIDs = append(userIDs, userID)
		}
		eventsByUser[userID] = append(eventsByUser[userID], tagged[i])
	}
	sort.Strings(userIDs)

	results := make([]userSessionsResult, len(userIDs))
	slotByUser := make(map[string]int, len(userIDs))
	for i, userID := range userIDs {
		slotByUser[userID] = i
	}

	userIDChunks := U.GetStringListAsBatch(userIDs, numUserRoutines)
	for ci := range userIDChunks {
		var wg sync.WaitGroup
		wg.Add(len(userIDChunks[ci]))
		for _, userID := range userIDChunks[ci] {
			go func(userID string) {
				defer wg.Done()

				sessions, events := model.BuildUserSessions(userID, eventsByUser[userID])
				model.SortSessionsByStart(sessions)
				results[slotByUser[userID]] = userSessionsResult{sessions: sessions, events: events}
				status.addSessionsCreated(len(sessions))
			}(userID)
		}
		wg.Wait()
	}

	sessionsByUser := make(map[string]userSessionsResult, len(userIDs))
	for i, userID := range userIDs {
		sessionsByUser[userID] = results[i]
	}
	return sessionsByUser
}
