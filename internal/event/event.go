package event

import (
	"sync"
)

// Log destination modes carried on a log-message block. Anything else is
// treated as Suppress by flag derivation.
const (
	DestLogAndDisplay = "logndisplay"
	DestLogOnly       = "logonly"
	DestDisplayOnly   = "displayonly"
	DestSuppress      = "suppress"
)

// Event is one normalized occurrence record. The database id is assigned
// exactly once at persist time; it is guarded by a mutex because the id
// becomes visible to other readers of the same record only after the row
// has been written.
type Event struct {
	mu   sync.Mutex
	dbid int64

	UEI       string  `json:"uei"`
	NodeID    *int64  `json:"node_id,omitempty"`
	Interface string  `json:"interface,omitempty"`
	Host      string  `json:"host,omitempty"`
	SnmpHost  string  `json:"snmp_host,omitempty"`
	Service   string  `json:"service,omitempty"`
	Time      string  `json:"time,omitempty"` // reported time, as received
	Descr     string  `json:"descr,omitempty"`
	Severity  string  `json:"severity,omitempty"`
	Source    string  `json:"source,omitempty"`

	LogMsg       *LogMsg      `json:"logmsg,omitempty"`
	Snmp         *SnmpInfo    `json:"snmp,omitempty"`
	Parms        []Parm       `json:"parms,omitempty"`
	AutoActions  []AutoAction `json:"autoactions,omitempty"`
	OperActions  []OperAction `json:"operactions,omitempty"`
	LogGroups    []string     `json:"loggroups,omitempty"`
	Forwards     []Forward    `json:"forwards,omitempty"`
	Tticket      *Tticket     `json:"tticket,omitempty"`
	Autoack      *Autoack     `json:"autoacknowledge,omitempty"`
	OperInstruct string       `json:"operinstruct,omitempty"`
	Correlation  *Correlation `json:"correlation,omitempty"`
	PathOutage   string       `json:"pathoutage,omitempty"`
	MouseOver    string       `json:"mouseovertext,omitempty"`

	AlarmData *AlarmData `json:"alarm_data,omitempty"`
}

// DBID returns the persisted row id, or 0 if the event has not been written.
func (e *Event) DBID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dbid
}

// SetDBID records the allocated row id. Called once by the event writer.
func (e *Event) SetDBID(id int64) {
	e.mu.Lock()
	e.dbid = id
	e.mu.Unlock()
}

// LogMsg is the log-message block with its destination mode.
type LogMsg struct {
	Content string `json:"content"`
	Dest    string `json:"dest"`
}

// SnmpInfo is the optional SNMP metadata block.
type SnmpInfo struct {
	ID        string `json:"id,omitempty"`
	IDText    string `json:"idtext,omitempty"`
	Version   string `json:"version,omitempty"`
	Specific  *int   `json:"specific,omitempty"`
	Generic   *int   `json:"generic,omitempty"`
	Community string `json:"community,omitempty"`
}

// Parm is one name/value event parameter.
type Parm struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AutoAction is an automatic action with an on/off state.
type AutoAction struct {
	Content string `json:"content"`
	State   string `json:"state,omitempty"`
}

// OperAction is an operator action with a menu label.
type OperAction struct {
	Content  string `json:"content"`
	MenuText string `json:"menutext,omitempty"`
	State    string `json:"state,omitempty"`
}

// Forward is a forwarding destination.
type Forward struct {
	Content   string `json:"content"`
	State     string `json:"state,omitempty"`
	Mechanism string `json:"mechanism,omitempty"`
}

// Tticket is the optional trouble-ticket reference.
type Tticket struct {
	Content string `json:"content"`
	State   string `json:"state"` // "on" or "off"
}

// Autoack is the optional auto-acknowledge directive. Content is the
// acknowledging user; the directive only applies when State is "on".
type Autoack struct {
	Content string `json:"content"`
	State   string `json:"state"`
}

// Correlation carries event correlation data.
type Correlation struct {
	State string   `json:"state,omitempty"`
	Path  string   `json:"path,omitempty"`
	UEIs  []string `json:"ueis,omitempty"`
	CMin  string   `json:"cmin,omitempty"`
	CMax  string   `json:"cmax,omitempty"`
	CTime string   `json:"ctime,omitempty"`
}

// AlarmData marks an event as participating in alarm reduction.
type AlarmData struct {
	ReductionKey      string `json:"reduction_key"`
	AlarmType         int    `json:"alarm_type"`
	AutoClean         bool   `json:"auto_clean,omitempty"`
	ClearUEI          string `json:"clear_uei,omitempty"`
	ClearKey          string `json:"clear_key,omitempty"`
	X733AlarmType     string `json:"x733_alarm_type,omitempty"`
	X733ProbableCause *int   `json:"x733_probable_cause,omitempty"`
}

// LogFlags derives the log/display column chars from the destination mode.
// An event with no log-message block at all is forced to display so that
// unmapped events are never silently hidden from operators.
func LogFlags(msg *LogMsg) (logFlag, displayFlag string) {
	if msg == nil {
		return "N", "Y"
	}
	switch msg.Dest {
	case DestLogAndDisplay:
		return "Y", "Y"
	case DestLogOnly:
		return "Y", "N"
	case DestDisplayOnly:
		return "N", "Y"
	default: // suppress, or anything unrecognized
		return "N", "N"
	}
}
