// Package severity defines the ordered alert levels used for routing.
package severity

import (
	"fmt"
	"strings"
)

// Level is an alert severity. The zero value is not a valid level.
type Level int

const (
	Debug    Level = 10
	Info     Level = 20
	Warning  Level = 30
	Error    Level = 40
	Critical Level = 50
)

// ascending weight order; fan-out walks this slice.
var levels = []Level{Debug, Info, Warning, Error, Critical}

var names = map[Level]string{
	Debug:    "DEBUG",
	Info:     "INFO",
	Warning:  "WARNING",
	Error:    "ERROR",
	Critical: "CRITICAL",
}

// All returns every level in ascending weight order.
func All() []Level {
	return append([]Level(nil), levels...)
}

// Names returns the level names in ascending weight order.
func Names() []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, names[l])
	}
	return out
}

// Weight is the numeric relevance of the level.
func (l Level) Weight() int { return int(l) }

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	_, ok := names[l]
	return ok
}

// Meets reports whether a message at level l reaches a threshold at min.
func (l Level) Meets(min Level) bool { return l.Weight() >= min.Weight() }

func (l Level) String() string {
	if n, ok := names[l]; ok {
		return n
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Parse resolves an exact level name (DEBUG, INFO, WARNING, ERROR, CRITICAL).
// Callers that accept user input upper-case it first.
func Parse(name string) (Level, error) {
	for l, n := range names {
		if n == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// ParseLoose trims and upper-cases before parsing.
func ParseLoose(name string) (Level, error) {
	return Parse(strings.ToUpper(strings.TrimSpace(name)))
}
