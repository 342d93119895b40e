package persist

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/technosupport/ts-nms/internal/event"
)

func newTestWriter(t *testing.T) (*Writer, sqlmock.Sqlmock, *observer.ObservedLogs) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	core, logs := observer.New(zapcore.DebugLevel)
	w := NewWriter(db, Config{}, zap.New(core), nil)
	return w, mock, logs
}

func TestProcessEventWithoutAlarmData(t *testing.T) {
	w, mock, _ := newTestWriter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(101))
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := &event.Event{
		UEI:      "uei.test/down",
		Time:     "2026-03-01T10:30:00Z",
		Severity: "Major",
	}
	res, err := w.Process(context.Background(), e)
	require.NoError(t, err)

	assert.EqualValues(t, 101, res.EventID)
	assert.Zero(t, res.AlarmID)
	assert.False(t, res.AlarmCreated)
	assert.False(t, res.Reduced)
	assert.EqualValues(t, 101, e.DBID())

	// Exactly one events row, zero alarms rows.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessCreatesNewAlarm(t *testing.T) {
	w, mock, _ := newTestWriter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(101))
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(102))
	mock.ExpectQuery("INSERT INTO alarms").
		WillReturnRows(sqlmock.NewRows([]string{"alarmid", "counter"}).AddRow(102, 1))
	mock.ExpectExec("UPDATE events SET alarmid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := &event.Event{
		UEI:      "uei.test/down",
		Time:     "2026-03-01T10:30:00Z",
		Severity: "Major",
		AlarmData: &event.AlarmData{
			ReductionKey: "key-A",
			AlarmType:    1,
		},
	}
	res, err := w.Process(context.Background(), e)
	require.NoError(t, err)

	assert.EqualValues(t, 101, res.EventID)
	assert.EqualValues(t, 102, res.AlarmID)
	assert.True(t, res.AlarmCreated)
	assert.False(t, res.Reduced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessReducesIntoExistingAlarm(t *testing.T) {
	w, mock, _ := newTestWriter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(201))
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(202))
	// The reduce branch wins: the surviving alarm keeps its original id and
	// the candidate id 202 is discarded.
	mock.ExpectQuery("INSERT INTO alarms").
		WillReturnRows(sqlmock.NewRows([]string{"alarmid", "counter"}).AddRow(55, 2))
	mock.ExpectExec("UPDATE events SET alarmid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := &event.Event{
		UEI:      "uei.test/down",
		Time:     "2026-03-01T10:31:00Z",
		Severity: "Major",
		AlarmData: &event.AlarmData{
			ReductionKey: "key-A",
		},
	}
	res, err := w.Process(context.Background(), e)
	require.NoError(t, err)

	assert.EqualValues(t, 55, res.AlarmID)
	assert.False(t, res.AlarmCreated)
	assert.True(t, res.Reduced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessAutoCleanRemovesPreviousEvents(t *testing.T) {
	w, mock, _ := newTestWriter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(201))
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(202))
	mock.ExpectQuery("INSERT INTO alarms").
		WillReturnRows(sqlmock.NewRows([]string{"alarmid", "counter"}).AddRow(55, 2))
	mock.ExpectExec("UPDATE events SET alarmid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// Cleanup runs after commit, outside the transaction.
	mock.ExpectExec("DELETE FROM events").
		WillReturnResult(sqlmock.NewResult(0, 3))

	e := &event.Event{
		UEI:  "uei.test/down",
		Time: "2026-03-01T10:31:00Z",
		AlarmData: &event.AlarmData{
			ReductionKey: "key-A",
			AutoClean:    true,
		},
	}
	res, err := w.Process(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, res.Reduced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessAutoCleanFailureIsSwallowed(t *testing.T) {
	w, mock, logs := newTestWriter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(201))
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(202))
	mock.ExpectQuery("INSERT INTO alarms").
		WillReturnRows(sqlmock.NewRows([]string{"alarmid", "counter"}).AddRow(55, 2))
	mock.ExpectExec("UPDATE events SET alarmid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("DELETE FROM events").WillReturnError(sql.ErrConnDone)

	e := &event.Event{
		UEI:  "uei.test/down",
		Time: "2026-03-01T10:31:00Z",
		AlarmData: &event.AlarmData{
			ReductionKey: "key-A",
			AutoClean:    true,
		},
	}
	res, err := w.Process(context.Background(), e)

	// Losing old reduced rows is acceptable; the committed reduction is not.
	require.NoError(t, err)
	assert.True(t, res.Reduced)
	assert.Equal(t, 1,
		logs.FilterMessage("could not remove previously reduced events").Len())
}

func TestProcessEventInsertFailureRollsBack(t *testing.T) {
	w, mock, _ := newTestWriter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(101))
	mock.ExpectExec("INSERT INTO events").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	e := &event.Event{UEI: "uei.test/down", Time: "2026-03-01T10:30:00Z"}
	_, err := w.Process(context.Background(), e)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessAllocationFailureWritesNothing(t *testing.T) {
	w, mock, _ := newTestWriter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	e := &event.Event{UEI: "uei.test/down"}
	_, err := w.Process(context.Background(), e)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventTimeFallsBackToNow(t *testing.T) {
	w, _, logs := newTestWriter(t)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Now = func() time.Time { return fixed }

	e := &event.Event{UEI: "uei.test/down", Time: "complete garbage"}
	got := w.eventTime(e, w.log)

	assert.Equal(t, fixed, got)
	assert.Equal(t, 1, logs.FilterMessage(
		"unparseable event time, substituting current time").Len())
}

func TestBuildEventRowDerivations(t *testing.T) {
	w, _, _ := newTestWriter(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Now = func() time.Time { return fixed }

	e := &event.Event{
		UEI:      "uei.test/down",
		Severity: "Warning",
		LogMsg:   &event.LogMsg{Content: "node down", Dest: event.DestLogOnly},
		Tticket:  &event.Tticket{Content: "TT-99", State: "on"},
		Autoack:  &event.Autoack{Content: "autouser", State: "on"},
		Parms:    []event.Parm{{Name: "raw", Value: "a\x00b"}},
	}
	row := w.buildEventRow(context.Background(), e, 101, fixed, w.log)

	assert.Equal(t, "Y", row.Log)
	assert.Equal(t, "N", row.Display)
	assert.Equal(t, event.SeverityWarning, row.Severity)

	require.True(t, row.LogMsg.Valid)
	assert.Equal(t, "node down", row.LogMsg.String)

	require.True(t, row.TticketState.Valid)
	assert.EqualValues(t, 1, row.TticketState.Int64)

	// Auto-acknowledge on: ack user set, ack time is row creation time.
	require.True(t, row.AckUser.Valid)
	assert.Equal(t, "autouser", row.AckUser.String)
	require.True(t, row.AckTime.Valid)
	assert.Equal(t, fixed, row.AckTime.Time)

	// NUL bytes are scrubbed before the row reaches the store.
	require.True(t, row.Parms.Valid)
	assert.NotContains(t, row.Parms.String, "\x00")
}

func TestBuildEventRowAutoackOffLeavesAckNull(t *testing.T) {
	w, _, _ := newTestWriter(t)

	e := &event.Event{
		UEI:     "uei.test/down",
		Autoack: &event.Autoack{Content: "autouser", State: "off"},
	}
	row := w.buildEventRow(context.Background(), e, 101, time.Now(), w.log)

	assert.False(t, row.AckUser.Valid)
	assert.False(t, row.AckTime.Valid)
	// Absent log message: column NULL, display forced on.
	assert.False(t, row.LogMsg.Valid)
	assert.Equal(t, "N", row.Log)
	assert.Equal(t, "Y", row.Display)
}
