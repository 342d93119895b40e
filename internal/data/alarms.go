package data

import (
	"context"
	"database/sql"
	"time"
)

// AlarmRow carries the encoded columns for a new alarm. Counter is not a
// field: a fresh alarm always starts at 1 and reduction increments it
// atomically in SQL.
type AlarmRow struct {
	ID                int64
	UEI               string
	DpName            string
	NodeID            sql.NullInt64
	IPAddr            sql.NullString
	ServiceID         sql.NullInt64
	ReductionKey      string
	AlarmType         int
	Severity          int
	LastEventID       int64
	FirstEventTime    time.Time
	LastEventTime     time.Time
	Descr             sql.NullString
	LogMsg            sql.NullString
	OperInstruct      sql.NullString
	Tticket           sql.NullString
	TticketState      sql.NullInt64
	MouseOver         sql.NullString
	SuppressedUntil   sql.NullTime
	SuppressedUser    sql.NullString
	SuppressedTime    sql.NullTime
	AckUser           sql.NullString
	AckTime           sql.NullTime
	ClearUEI          sql.NullString
	X733AlarmType     sql.NullString
	X733ProbableCause sql.NullInt64
	ClearKey          sql.NullString
}

type AlarmModel struct {
	DB DBTX
}

// FindOpen looks up the live alarm for a reduction key. The uniqueness
// constraint means at most one row should match; if historical duplicates
// exist anyway the scan deterministically keeps the last row encountered.
// That tie-break is documented behavior, not a recency guarantee.
func (m AlarmModel) FindOpen(ctx context.Context, reductionKey string) (int64, error) {
	rows, err := m.DB.QueryContext(ctx,
		`SELECT alarmid FROM alarms WHERE reductionkey = $1`, reductionKey)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var alarmID int64
	found := false
	for rows.Next() {
		if err := rows.Scan(&alarmID); err != nil {
			return 0, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrAlarmNotFound
	}
	return alarmID, nil
}

// Upsert inserts a new alarm with counter 1 or, when a live alarm already
// holds the reduction key, folds the event in: counter incremented,
// last-event reference, timestamp and log message refreshed. The unique
// constraint on reductionkey makes the insert-or-update race-free under
// concurrent writers, unlike a separate lookup followed by an insert.
//
// Returns the surviving alarm id and its counter; counter == 1 means the
// insert branch won and row.ID is the live alarm.
func (m AlarmModel) Upsert(ctx context.Context, row AlarmRow) (int64, int64, error) {
	query := `
		INSERT INTO alarms (
			alarmid, eventuei, dpname, nodeid, ipaddr, serviceid, reductionkey,
			alarmtype, counter, severity, lasteventid, firsteventtime,
			lasteventtime, descr, logmsg, operinstruct, tticketid, tticketstate,
			mouseovertext, suppresseduntil, suppresseduser, suppressedtime,
			alarmackuser, alarmacktime, clearuei, x733alarmtype,
			x733probablecause, clearkey
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		ON CONFLICT (reductionkey) DO UPDATE SET
			counter       = alarms.counter + 1,
			lasteventid   = EXCLUDED.lasteventid,
			lasteventtime = EXCLUDED.lasteventtime,
			logmsg        = EXCLUDED.logmsg
		RETURNING alarmid, counter`

	var alarmID, counter int64
	err := m.DB.QueryRowContext(ctx, query,
		row.ID, row.UEI, row.DpName, row.NodeID, row.IPAddr, row.ServiceID,
		row.ReductionKey, row.AlarmType, row.Severity, row.LastEventID,
		row.FirstEventTime, row.LastEventTime, row.Descr, row.LogMsg,
		row.OperInstruct, row.Tticket, row.TticketState, row.MouseOver,
		row.SuppressedUntil, row.SuppressedUser, row.SuppressedTime,
		row.AckUser, row.AckTime, row.ClearUEI, row.X733AlarmType,
		row.X733ProbableCause, row.ClearKey,
	).Scan(&alarmID, &counter)
	if err != nil {
		return 0, 0, err
	}
	return alarmID, counter, nil
}
