package persist

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/technosupport/ts-nms/internal/codec"
	"github.com/technosupport/ts-nms/internal/data"
	"github.com/technosupport/ts-nms/internal/event"
)

func (w *Writer) failed() {
	if w.rec != nil {
		w.rec.PersistFailed()
	}
}

// buildEventRow encodes the full event record into one events-table row.
func (w *Writer) buildEventRow(ctx context.Context, e *event.Event, eventID int64, eventTime time.Time, log *zap.Logger) data.EventRow {
	createTime := w.Now()

	row := data.EventRow{
		ID:         eventID,
		UEI:        codec.Format(e.UEI, ueiFieldSize),
		NodeID:     data.NullInt64(e.NodeID),
		Time:       eventTime,
		Host:       data.NullString(codec.Format(w.hosts.Hostname(ctx, e.Host), hostFieldSize)),
		IPAddr:     data.NullString(codec.Format(e.Interface, interfaceFieldSize)),
		DpName:     codec.Format(w.dpName, dpNameFieldSize),
		SnmpHost:   data.NullString(codec.Format(e.SnmpHost, snmpHostFieldSize)),
		ServiceID:  w.serviceID(ctx, e.Service, log),
		Snmp:       data.NullString(codec.FormatSnmp(e.Snmp, snmpFieldSize)),
		Parms:      data.NullString(scrubNul(codec.FormatParms(e.Parms))),
		CreateTime: createTime,
		Descr:      data.NullString(codec.Format(e.Descr, descrFieldSize)),
		LogGroup:   data.NullString(codec.FormatList(e.LogGroups, logGroupFieldSize)),
		Severity:   event.SeverityID(e.Severity),
		PathOutage: data.NullString(codec.Format(e.PathOutage, pathOutageFieldSize)),
		Correlation: data.NullString(
			codec.FormatCorrelation(e.Correlation, correlationFieldSize)),
		OperInstruct: data.NullString(codec.Format(e.OperInstruct, operInstructFieldSize)),
		AutoAction:   data.NullString(codec.FormatAutoActions(e.AutoActions, autoActionFieldSize)),
		OperAction:   data.NullString(codec.FormatOperActions(e.OperActions, operActionFieldSize)),
		OperActionMenu: data.NullString(
			codec.FormatOperActionMenus(e.OperActions, operActionMenuFieldSize)),
		Forward:   data.NullString(codec.FormatForwards(e.Forwards, forwardFieldSize)),
		MouseOver: data.NullString(codec.Format(e.MouseOver, mouseOverTextFieldSize)),
		Source:    data.NullString(codec.Format(e.Source, sourceFieldSize)),
	}

	// Log/display flags are a pure function of the destination mode; the
	// log message column stays NULL when the block is absent.
	row.Log, row.Display = event.LogFlags(e.LogMsg)
	if e.LogMsg != nil {
		row.LogMsg = data.NullString(codec.Format(e.LogMsg.Content, logMsgFieldSize))
	}

	row.Tticket, row.TticketState = tticketColumns(e.Tticket)

	// Auto-acknowledge marks the row acknowledged at creation time, not at
	// the event's reported time, and only when the directive is switched on.
	if e.Autoack != nil && e.Autoack.State == "on" {
		row.AckUser = data.NullString(codec.Format(e.Autoack.Content, ackUserFieldSize))
		row.AckTime = sql.NullTime{Time: createTime, Valid: true}
	}

	return row
}

// buildAlarmRow encodes the candidate alarm row for an event carrying alarm
// data. Used for both branches of the upsert; on the reduce branch only the
// last-event columns survive.
func (w *Writer) buildAlarmRow(ctx context.Context, e *event.Event, eventID int64, eventTime time.Time, log *zap.Logger) data.AlarmRow {
	ad := e.AlarmData

	row := data.AlarmRow{
		UEI:            codec.Format(e.UEI, ueiFieldSize),
		DpName:         codec.Format(w.dpName, dpNameFieldSize),
		NodeID:         data.NullInt64(e.NodeID),
		IPAddr:         data.NullString(codec.Format(e.Interface, interfaceFieldSize)),
		ServiceID:      w.serviceID(ctx, e.Service, log),
		ReductionKey:   ad.ReductionKey,
		AlarmType:      ad.AlarmType,
		Severity:       event.SeverityID(e.Severity),
		LastEventID:    eventID,
		FirstEventTime: eventTime,
		LastEventTime:  eventTime,
		Descr:          data.NullString(codec.Format(e.Descr, descrFieldSize)),
		OperInstruct:   data.NullString(codec.Format(e.OperInstruct, operInstructFieldSize)),
		MouseOver:      data.NullString(codec.Format(e.MouseOver, mouseOverTextFieldSize)),
		// A fresh alarm starts with its suppression window anchored to the
		// event time and no acknowledgement.
		SuppressedUntil: sql.NullTime{Time: eventTime, Valid: true},
		SuppressedTime:  sql.NullTime{Time: eventTime, Valid: true},
		ClearUEI:        data.NullString(codec.Format(ad.ClearUEI, ueiFieldSize)),
		X733AlarmType:   data.NullString(codec.Format(ad.X733AlarmType, x733AlarmTypeFieldSize)),
		ClearKey:        data.NullString(ad.ClearKey),
	}

	if ad.X733ProbableCause != nil {
		row.X733ProbableCause = sql.NullInt64{Int64: int64(*ad.X733ProbableCause), Valid: true}
	}
	if e.LogMsg != nil {
		row.LogMsg = data.NullString(codec.Format(e.LogMsg.Content, logMsgFieldSize))
	}
	row.Tticket, row.TticketState = tticketColumns(e.Tticket)

	return row
}

func tticketColumns(t *event.Tticket) (sql.NullString, sql.NullInt64) {
	if t == nil {
		return sql.NullString{}, sql.NullInt64{}
	}
	state := int64(0)
	if t.State == "on" {
		state = 1
	}
	return data.NullString(codec.Format(t.Content, tticketFieldSize)),
		sql.NullInt64{Int64: state, Valid: true}
}

// scrubNul replaces NUL bytes with spaces; the store rejects NUL in text
// columns.
func scrubNul(s string) string {
	return strings.ReplaceAll(s, "\x00", " ")
}
