// Package persist is the event-to-alarm persistence engine. One Writer owns
// the insert/update path for the events and alarms tables: every incoming
// event is durably recorded, and events carrying alarm data are either
// promoted to a new alarm or folded into the live alarm holding the same
// reduction key.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technosupport/ts-nms/internal/data"
	"github.com/technosupport/ts-nms/internal/event"
	"github.com/technosupport/ts-nms/internal/metrics"
)

// Column widths in the events and alarms tables.
const (
	ueiFieldSize            = 256
	hostFieldSize           = 256
	interfaceFieldSize      = 16
	dpNameFieldSize         = 12
	snmpHostFieldSize       = 256
	snmpFieldSize           = 256
	descrFieldSize          = 4000
	logGroupFieldSize       = 32
	logMsgFieldSize         = 256
	pathOutageFieldSize     = 1024
	correlationFieldSize    = 1024
	operInstructFieldSize   = 1024
	autoActionFieldSize     = 256
	operActionFieldSize     = 256
	operActionMenuFieldSize = 64
	tticketFieldSize        = 128
	forwardFieldSize        = 256
	mouseOverTextFieldSize  = 64
	ackUserFieldSize        = 256
	sourceFieldSize         = 128
	x733AlarmTypeFieldSize  = 31
)

const (
	defaultSequence = "eventsnxtid"
	defaultDpName   = "localhost"
)

// Config carries the Writer tunables.
type Config struct {
	SequenceName      string
	DpName            string
	ResolverCacheSize int
}

// Writer persists events and performs alarm reduction. All collaborators
// are explicit dependencies so tests can substitute fake stores.
type Writer struct {
	db       *sql.DB
	seq      data.SequenceModel
	services *data.ServiceModel
	hosts    *data.HostModel
	dpName   string
	log      *zap.Logger
	rec      *metrics.Recorder

	// Now supplies the server clock; overridable in tests.
	Now func() time.Time
}

// NewWriter wires a Writer onto db. rec may be nil when metrics exposure is
// not wanted.
func NewWriter(db *sql.DB, cfg Config, log *zap.Logger, rec *metrics.Recorder) *Writer {
	if cfg.SequenceName == "" {
		cfg.SequenceName = defaultSequence
	}
	if cfg.DpName == "" {
		cfg.DpName = defaultDpName
	}
	return &Writer{
		db:       db,
		seq:      data.SequenceModel{DB: db, Name: cfg.SequenceName},
		services: data.NewServiceModel(db, cfg.ResolverCacheSize),
		hosts:    data.NewHostModel(db, cfg.ResolverCacheSize),
		dpName:   cfg.DpName,
		log:      log,
		rec:      rec,
		Now:      time.Now,
	}
}

// Close releases the store handle. The Writer is unusable afterwards.
func (w *Writer) Close() error {
	return w.db.Close()
}

// Result reports the committed identifiers for one processed event.
type Result struct {
	EventID      int64
	AlarmID      int64 // 0 when the event carried no alarm data
	AlarmCreated bool
	Reduced      bool
}

// Process runs one event through the full persistence path inside a single
// transaction: event insert, then (when alarm data is present) the atomic
// insert-or-reduce of the alarm and the alarm link on the event row. The
// optional auto-clean of previously reduced events runs after commit and is
// best-effort: its failure is logged and swallowed, never surfaced, so a
// retention hiccup can never roll back a committed reduction.
//
// A returned error means nothing for this event was committed; the caller
// may re-submit the same event after a transient store failure.
func (w *Writer) Process(ctx context.Context, e *event.Event) (*Result, error) {
	start := w.Now()
	log := w.log.With(
		zap.String("trace_id", uuid.NewString()),
		zap.String("uei", e.UEI),
	)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.failed()
		return nil, fmt.Errorf("begin: %w", err)
	}

	res, err := w.processTx(ctx, tx, e, log)
	if err != nil {
		_ = tx.Rollback()
		w.failed()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		w.failed()
		return nil, fmt.Errorf("commit: %w", err)
	}

	if w.rec != nil {
		w.rec.EventPersisted()
		if res.AlarmCreated {
			w.rec.AlarmCreated()
		}
		if res.Reduced {
			w.rec.AlarmReduced()
		}
		w.rec.ObservePersist(time.Since(start))
	}

	// Retention cleanup only after the reduction is durable, and only when
	// the event asked for it. Runs outside the transaction: a failed
	// statement would otherwise poison the whole commit.
	if res.Reduced && e.AlarmData != nil && e.AlarmData.AutoClean {
		w.cleanPreviousEvents(ctx, res.AlarmID, res.EventID, log)
	}

	return res, nil
}

func (w *Writer) processTx(ctx context.Context, tx *sql.Tx, e *event.Event, log *zap.Logger) (*Result, error) {
	events := data.EventModel{DB: tx}
	alarms := data.AlarmModel{DB: tx}

	eventID, eventTime, err := w.insertEvent(ctx, events, e, log)
	if err != nil {
		return nil, err
	}
	res := &Result{EventID: eventID}

	if e.AlarmData == nil {
		log.Debug("event persisted without alarm data", zap.Int64("event_id", eventID))
		return res, nil
	}

	// Allocate a candidate alarm id up front; allocation failure is fatal
	// for the alarm path. When the reduce branch of the upsert wins the id
	// is discarded, leaving a harmless gap in the sequence.
	candidateID, err := w.seq.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate alarm id: %w", err)
	}
	row := w.buildAlarmRow(ctx, e, eventID, eventTime, log)
	row.ID = candidateID

	alarmID, counter, err := alarms.Upsert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("alarm upsert: %w", err)
	}
	res.AlarmID = alarmID
	res.AlarmCreated = counter == 1
	res.Reduced = counter > 1

	if res.Reduced {
		log.Debug("reduced event into existing alarm",
			zap.Int64("event_id", eventID),
			zap.Int64("alarm_id", alarmID),
			zap.Int64("counter", counter),
			zap.String("reduction_key", e.AlarmData.ReductionKey))
	} else {
		log.Debug("created new alarm",
			zap.Int64("event_id", eventID),
			zap.Int64("alarm_id", alarmID),
			zap.String("reduction_key", e.AlarmData.ReductionKey))
	}

	if err := events.SetAlarm(ctx, eventID, alarmID); err != nil {
		return nil, fmt.Errorf("link event %d to alarm %d: %w", eventID, alarmID, err)
	}
	return res, nil
}

// insertEvent allocates the row id, encodes the record and writes the
// events-table row. The id becomes visible on the event object only after
// the write has been issued.
func (w *Writer) insertEvent(ctx context.Context, events data.EventModel, e *event.Event, log *zap.Logger) (int64, time.Time, error) {
	eventID, err := w.seq.NextID(ctx)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("allocate event id: %w", err)
	}

	eventTime := w.eventTime(e, log)
	row := w.buildEventRow(ctx, e, eventID, eventTime, log)

	if err := events.Insert(ctx, row); err != nil {
		return 0, time.Time{}, fmt.Errorf("insert event %d: %w", eventID, err)
	}

	e.SetDBID(eventID)
	return eventID, eventTime, nil
}

func (w *Writer) cleanPreviousEvents(ctx context.Context, alarmID, keepEventID int64, log *zap.Logger) {
	events := data.EventModel{DB: w.db}
	n, err := events.DeletePrevious(ctx, alarmID, keepEventID)
	if err != nil {
		log.Error("could not remove previously reduced events",
			zap.Int64("alarm_id", alarmID), zap.Error(err))
		if w.rec != nil {
			w.rec.CleanFailed()
		}
		return
	}
	log.Debug("removed previously reduced events",
		zap.Int64("alarm_id", alarmID), zap.Int64("deleted", n))
}

// eventTime parses the event's reported time, substituting the server clock
// when the value cannot be parsed.
func (w *Writer) eventTime(e *event.Event, log *zap.Logger) time.Time {
	t, err := event.ParseTime(e.Time)
	if err != nil {
		log.Warn("unparseable event time, substituting current time",
			zap.String("time", e.Time))
		return w.Now()
	}
	return t
}

// serviceID resolves the event's service name. A miss or lookup failure is
// recovered locally: the column stays NULL and the event proceeds.
func (w *Writer) serviceID(ctx context.Context, name string, log *zap.Logger) sql.NullInt64 {
	if name == "" {
		return sql.NullInt64{}
	}
	id, ok, err := w.services.ServiceID(ctx, name)
	if err != nil {
		log.Warn("service id lookup failed, storing NULL",
			zap.String("service", name), zap.Error(err))
		return sql.NullInt64{}
	}
	if !ok {
		log.Warn("unknown service name, storing NULL", zap.String("service", name))
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
