package data

import (
	"context"
	"database/sql"
	"time"
)

// EventRow is one fully-encoded events-table row. Variable-width text fields
// arrive already encoded and truncated; "" has been mapped to NULL so the
// column distinguishes absent data from an empty string.
type EventRow struct {
	ID              int64
	UEI             string
	NodeID          sql.NullInt64
	Time            time.Time
	Host            sql.NullString
	IPAddr          sql.NullString
	DpName          string
	SnmpHost        sql.NullString
	ServiceID       sql.NullInt64
	Snmp            sql.NullString
	Parms           sql.NullString
	CreateTime      time.Time
	Descr           sql.NullString
	LogGroup        sql.NullString
	LogMsg          sql.NullString
	Log             string
	Display         string
	Severity        int
	PathOutage      sql.NullString
	Correlation     sql.NullString
	SuppressedCount sql.NullInt64
	OperInstruct    sql.NullString
	AutoAction      sql.NullString
	OperAction      sql.NullString
	OperActionMenu  sql.NullString
	Tticket         sql.NullString
	TticketState    sql.NullInt64
	Forward         sql.NullString
	MouseOver       sql.NullString
	AckUser         sql.NullString
	AckTime         sql.NullTime
	Source          sql.NullString
}

type EventModel struct {
	DB DBTX
}

// Insert writes one events-table row. The alarm reference column starts
// NULL and is linked separately once reduction has run.
func (m EventModel) Insert(ctx context.Context, row EventRow) error {
	query := `
		INSERT INTO events (
			eventid, eventuei, nodeid, eventtime, eventhost, ipaddr, eventdpname,
			eventsnmphost, serviceid, eventsnmp, eventparms, eventcreatetime,
			eventdescr, eventloggroup, eventlogmsg, eventlog, eventdisplay,
			eventseverity, eventpathoutage, eventcorrelation, eventsuppressedcount,
			eventoperinstruct, eventautoaction, eventoperaction,
			eventoperactionmenutext, eventtticket, eventtticketstate, eventforward,
			eventmouseovertext, eventackuser, eventacktime, eventsource
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32
		)`

	_, err := m.DB.ExecContext(ctx, query,
		row.ID, row.UEI, row.NodeID, row.Time, row.Host, row.IPAddr, row.DpName,
		row.SnmpHost, row.ServiceID, row.Snmp, row.Parms, row.CreateTime,
		row.Descr, row.LogGroup, row.LogMsg, row.Log, row.Display,
		row.Severity, row.PathOutage, row.Correlation, row.SuppressedCount,
		row.OperInstruct, row.AutoAction, row.OperAction,
		row.OperActionMenu, row.Tticket, row.TticketState, row.Forward,
		row.MouseOver, row.AckUser, row.AckTime, row.Source,
	)
	return err
}

// SetAlarm links an event row to its alarm.
func (m EventModel) SetAlarm(ctx context.Context, eventID, alarmID int64) error {
	_, err := m.DB.ExecContext(ctx,
		`UPDATE events SET alarmid = $1 WHERE eventid = $2`, alarmID, eventID)
	return err
}

// DeletePrevious removes all event rows referencing the alarm except the
// current one, returning the number of rows removed.
func (m EventModel) DeletePrevious(ctx context.Context, alarmID, keepEventID int64) (int64, error) {
	res, err := m.DB.ExecContext(ctx,
		`DELETE FROM events WHERE alarmid = $1 AND eventid <> $2`, alarmID, keepEventID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
