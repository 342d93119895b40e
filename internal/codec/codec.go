// Package codec implements the textual encoding used to pack loosely-typed
// event attributes into fixed-width database columns.
//
// Multiple values of the same element share a single column delimited by
// MultipleValDelim. An element and its attribute share a column separated by
// AttribDelim. Parameter names and values are delimited by NameValDelim.
// Any occurrence of a delimiter inside a value is percent-escaped, so the
// encoding is reversible. The final string is truncated to the column width,
// never exceeding it; truncation is lossy by design, not an error.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/technosupport/ts-nms/internal/event"
)

const (
	// MultipleValDelim separates multiple values packed into one column.
	MultipleValDelim = ';'
	// AttribDelim separates an element from its attribute.
	AttribDelim = '/'
	// NameValDelim separates a parameter name from its value.
	NameValDelim = '='
)

// undefined stands in for absent sub-object parts so positional decoding
// stays possible.
const undefined = "undefined"

// Escape percent-escapes the delimiter (and the escape char itself) so a
// later Unescape with the same delimiter recovers the input exactly.
// Escaping is nestable: values escaped for NameValDelim can be escaped
// again for MultipleValDelim.
func Escape(s string, delim rune) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, string(delim), fmt.Sprintf("%%%02X", delim))
}

// Unescape reverses Escape for the given delimiter.
func Unescape(s string, delim rune) string {
	s = strings.ReplaceAll(s, fmt.Sprintf("%%%02X", delim), string(delim))
	return strings.ReplaceAll(s, "%25", "%")
}

// Truncate cuts s to at most max runes. A non-positive max means unlimited.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Format trims and truncates a free-text value. Empty or absent input yields
// "" and is stored as SQL NULL by the writer, so "no data" stays
// distinguishable from an empty string.
func Format(s string, max int) string {
	return Truncate(strings.TrimSpace(s), max)
}

// FormatList joins values with the multiple-value delimiter, escaping each.
func FormatList(vals []string, max int) string {
	if len(vals) == 0 {
		return ""
	}
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, Escape(v, MultipleValDelim))
	}
	return Truncate(strings.Join(parts, string(MultipleValDelim)), max)
}

// DecodeList reverses FormatList, modulo truncation.
func DecodeList(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, string(MultipleValDelim))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, Unescape(p, MultipleValDelim))
	}
	return out
}

// FormatParms encodes a parameter list: each name=value pair is escaped for
// the name-value delimiter, then the pairs are joined as a multi-value list.
func FormatParms(parms []event.Parm) string {
	if len(parms) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(parms))
	for _, p := range parms {
		pair := Escape(p.Name, NameValDelim) + string(NameValDelim) + Escape(p.Value, NameValDelim)
		pairs = append(pairs, pair)
	}
	return FormatList(pairs, 0)
}

// DecodeParms reverses FormatParms. Pairs damaged by column truncation are
// dropped rather than half-recovered.
func DecodeParms(s string) []event.Parm {
	if s == "" {
		return nil
	}
	var parms []event.Parm
	for _, pair := range DecodeList(s) {
		name, value, ok := strings.Cut(pair, string(NameValDelim))
		if !ok {
			continue
		}
		parms = append(parms, event.Parm{
			Name:  Unescape(name, NameValDelim),
			Value: Unescape(value, NameValDelim),
		})
	}
	return parms
}

// FormatSnmp packs the SNMP metadata block into one column, fields joined by
// the attribute delimiter. Absent fields are encoded as "undefined" so the
// positions stay stable.
func FormatSnmp(s *event.SnmpInfo, max int) string {
	if s == nil {
		return ""
	}
	fields := []string{
		orUndefined(s.ID),
		orUndefined(s.IDText),
		orUndefined(s.Version),
		intOrUndefined(s.Specific),
		intOrUndefined(s.Generic),
		orUndefined(s.Community),
	}
	for i, f := range fields {
		fields[i] = Escape(f, AttribDelim)
	}
	return Truncate(strings.Join(fields, string(AttribDelim)), max)
}

// FormatAutoActions packs automatic actions, each content/state joined by the
// attribute delimiter, actions joined as a multi-value list.
func FormatAutoActions(actions []event.AutoAction, max int) string {
	if len(actions) == 0 {
		return ""
	}
	encoded := make([]string, 0, len(actions))
	for _, a := range actions {
		encoded = append(encoded, attribPair(a.Content, a.State))
	}
	return FormatList(encoded, max)
}

// FormatOperActions packs operator actions the same way as auto actions.
func FormatOperActions(actions []event.OperAction, max int) string {
	if len(actions) == 0 {
		return ""
	}
	encoded := make([]string, 0, len(actions))
	for _, a := range actions {
		encoded = append(encoded, attribPair(a.Content, a.State))
	}
	return FormatList(encoded, max)
}

// FormatOperActionMenus packs the operator action menu labels.
func FormatOperActionMenus(actions []event.OperAction, max int) string {
	if len(actions) == 0 {
		return ""
	}
	menus := make([]string, 0, len(actions))
	for _, a := range actions {
		menus = append(menus, a.MenuText)
	}
	return FormatList(menus, max)
}

// FormatForwards packs forwarding destinations as mechanism-attributed values.
func FormatForwards(fwds []event.Forward, max int) string {
	if len(fwds) == 0 {
		return ""
	}
	encoded := make([]string, 0, len(fwds))
	for _, f := range fwds {
		encoded = append(encoded, attribPair(f.Content, f.Mechanism))
	}
	return FormatList(encoded, max)
}

// FormatCorrelation packs the correlation block: scalars joined by the
// attribute delimiter, the UEI list folded in as a multi-value segment.
func FormatCorrelation(c *event.Correlation, max int) string {
	if c == nil {
		return ""
	}
	fields := []string{
		orUndefined(c.State),
		orUndefined(c.Path),
		orUndefined(c.CMin),
		orUndefined(c.CMax),
		orUndefined(c.CTime),
		orUndefined(FormatList(c.UEIs, 0)),
	}
	for i, f := range fields {
		fields[i] = Escape(f, AttribDelim)
	}
	return Truncate(strings.Join(fields, string(AttribDelim)), max)
}

func attribPair(content, attrib string) string {
	if attrib == "" {
		attrib = undefined
	}
	return Escape(content, AttribDelim) + string(AttribDelim) + Escape(attrib, AttribDelim)
}

func orUndefined(s string) string {
	if s == "" {
		return undefined
	}
	return s
}

func intOrUndefined(v *int) string {
	if v == nil {
		return undefined
	}
	return strconv.Itoa(*v)
}
