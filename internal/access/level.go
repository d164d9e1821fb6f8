package access

import (
	"encoding/json"
	"fmt"
)

// AccessLevel is the single ordered capability scale used by every component:
// none < read < write < execute. Do not re-declare the ordering elsewhere.
type AccessLevel int

const (
	LevelNone AccessLevel = iota
	LevelRead
	LevelWrite
	LevelExecute
)

var levelNames = map[AccessLevel]string{
	LevelNone:    "none",
	LevelRead:    "read",
	LevelWrite:   "write",
	LevelExecute: "execute",
}

var levelValues = map[string]AccessLevel{
	"none":    LevelNone,
	"read":    LevelRead,
	"write":   LevelWrite,
	"execute": LevelExecute,
}

func (l AccessLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "none"
}

// ParseLevel maps a level name to its AccessLevel. Unknown names resolve to
// LevelNone so that a malformed permission record fails closed.
func ParseLevel(name string) AccessLevel {
	if l, ok := levelValues[name]; ok {
		return l
	}
	return LevelNone
}

// MaxLevel returns the higher of two levels under the total order.
func MaxLevel(a, b AccessLevel) AccessLevel {
	if a >= b {
		return a
	}
	return b
}

// Meets reports whether a held level satisfies a required one.
func (l AccessLevel) Meets(required AccessLevel) bool {
	return l >= required
}

// MarshalJSON encodes the level by name, matching the stored record shape.
func (l AccessLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name; unknown names become LevelNone.
func (l *AccessLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("access level: %w", err)
	}
	*l = ParseLevel(name)
	return nil
}
