package event

import "strings"

// Severity ordinals on the standard 1..7 scale.
const (
	SeverityIndeterminate = 1
	SeverityCleared       = 2
	SeverityNormal        = 3
	SeverityWarning       = 4
	SeverityMinor         = 5
	SeverityMajor         = 6
	SeverityCritical      = 7
)

var severityNames = map[string]int{
	"indeterminate": SeverityIndeterminate,
	"cleared":       SeverityCleared,
	"normal":        SeverityNormal,
	"warning":       SeverityWarning,
	"minor":         SeverityMinor,
	"major":         SeverityMajor,
	"critical":      SeverityCritical,
}

// SeverityID maps a severity name to its ordinal. Unknown or empty names
// map to Indeterminate.
func SeverityID(name string) int {
	if id, ok := severityNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return SeverityIndeterminate
}
