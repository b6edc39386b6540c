package store

import (
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cyashish/puffy-repo/model"
	"github.com/cyashish/puffy-repo/task/transform"
	U "github.com/cyashish/puffy-repo/util"
)

// Store persists one run's derived tables. Each run fully replaces the
// previous contents, matching the batch recomputation model: there are no
// incremental appends.
type Store struct {
	db *gorm.DB
}

type SessionRow struct {
	SessionID         string    `gorm:"column:session_id;primary_key"`
	UserID            string    `gorm:"column:user_id"`
	SequenceNo        int       `gorm:"column:sequence_no"`
	StartTimestamp    time.Time `gorm:"column:start_timestamp"`
	EndTimestamp      time.Time `gorm:"column:end_timestamp"`
	EventCount        int       `gorm:"column:event_count"`
	FirstTouchChannel string    `gorm:"column:first_touch_channel"`
	LastTouchChannel  string    `gorm:"column:last_touch_channel"`
	Campaign          string    `gorm:"column:campaign"`
}

func (SessionRow) TableName() string { return "sessions" }

type EventSessionRow struct {
	ID            uint      `gorm:"column:id;primary_key;auto_increment"`
	UserID        string    `gorm:"column:user_id"`
	Timestamp     time.Time `gorm:"column:timestamp"`
	EventName     string    `gorm:"column:event_name"`
	PageURL       string    `gorm:"column:page_url"`
	ReferrerHost  string    `gorm:"column:referrer_host"`
	Channel       string    `gorm:"column:channel"`
	SessionID     string    `gorm:"column:session_id"`
	UTMSource     string    `gorm:"column:utm_source"`
	UTMMedium     string    `gorm:"column:utm_medium"`
	UTMCampaign   string    `gorm:"column:utm_campaign"`
	Revenue       *float64  `gorm:"column:revenue"`
	TransactionID string    `gorm:"column:transaction_id"`
	Date          string    `gorm:"column:date"`
}

func (EventSessionRow) TableName() string { return "event_sessions" }

type AttributionRow struct {
	TransactionID     string    `gorm:"column:transaction_id;primary_key"`
	UserID            string    `gorm:"column:user_id"`
	Revenue           float64   `gorm:"column:revenue"`
	ConversionTime    time.Time `gorm:"column:conversion_time"`
	FirstClickChannel string    `gorm:"column:first_click_channel"`
	LastClickChannel  string    `gorm:"column:last_click_channel"`
}

func (AttributionRow) TableName() string { return "attributions" }

type ReconciliationRow struct {
	ID        uint      `gorm:"column:id;primary_key;auto_increment"`
	RunID     string    `gorm:"column:run_id"`
	Name      string    `gorm:"column:name"`
	Status    string    `gorm:"column:status"`
	Detail    string    `gorm:"column:detail"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (ReconciliationRow) TableName() string { return "reconciliation_checks" }

// New opens a Postgres backed store and ensures the output tables exist.
func New(databaseURL string) (*Store, error) {
	db, err := gorm.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	if err := db.AutoMigrate(&SessionRow{}, &EventSessionRow{},
		&AttributionRow{}, &ReconciliationRow{}).Error; err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate output tables")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceRunTables writes one run's tables inside a single transaction,
// truncating the previous run first. A failed run leaves the previous
// tables untouched.
func (s *Store) ReplaceRunTables(runID string, tables *transform.Tables) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}

	for _, row := range []interface{}{&SessionRow{}, &EventSessionRow{}, &AttributionRow{}, &ReconciliationRow{}} {
		if err := tx.Delete(row).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to truncate output table")
		}
	}

	for i := range tables.Sessions {
		if err := tx.Create(sessionRowFrom(tables.Sessions[i])).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to write session row")
		}
	}
	for i := range tables.EventSessions {
		if err := tx.Create(eventSessionRowFrom(tables.EventSessions[i])).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to write event session row")
		}
	}
	for i := range tables.Attributions {
		if err := tx.Create(attributionRowFrom(tables.Attributions[i])).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to write attribution row")
		}
	}

	createdAt := U.TimeNowZ()
	for i := range tables.Reconciliation {
		check := tables.Reconciliation[i]
		row := &ReconciliationRow{
			RunID:     runID,
			Name:      check.Name,
			Status:    check.Status(),
			Detail:    check.Detail,
			CreatedAt: createdAt,
		}
		if err := tx.Create(row).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to write reconciliation row")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "failed to commit run tables")
	}

	log.WithFields(log.Fields{
		"run_id":         runID,
		"sessions":       len(tables.Sessions),
		"event_sessions": len(tables.EventSessions),
		"attributions":   len(tables.Attributions),
	}).Info("Replaced run tables.")
	return nil
}

func sessionRowFrom(session model.Session) *SessionRow {
	return &SessionRow{
		SessionID:         session.ID,
		UserID:            session.UserID,
		SequenceNo:        session.SequenceNo,
		StartTimestamp:    session.StartTimestamp,
		EndTimestamp:      session.EndTimestamp,
		EventCount:        session.EventCount,
		FirstTouchChannel: session.FirstTouchChannel,
		LastTouchChannel:  session.LastTouchChannel,
		Campaign:          session.Campaign,
	}
}

func eventSessionRowFrom(event model.ChannelTaggedEvent) *EventSessionRow {
	return &EventSessionRow{
		UserID:        event.UserID,
		Timestamp:     event.Timestamp,
		EventName:     event.EventName,
		PageURL:       event.PageURL,
		ReferrerHost:  event.ReferrerHost,
		Channel:       event.Channel,
		SessionID:     event.SessionID,
		UTMSource:     event.UTMSource,
		UTMMedium:     event.UTMMedium,
		UTMCampaign:   event.UTMCampaign,
		Revenue:       event.Revenue,
		TransactionID: event.TransactionID,
		Date:          event.Date,
	}
}

func attributionRowFrom(attribution model.Attribution) *AttributionRow {
	return &AttributionRow{
		TransactionID:     attribution.TransactionID,
		UserID:            attribution.UserID,
		Revenue:           attribution.Revenue,
		ConversionTime:    attribution.ConversionTime,
		FirstClickChannel: attribution.FirstClickChannel,
		LastClickChannel:  attribution.LastClickChannel,
	}
}
