package resolver

import (
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/synccore/internal/crdt"
)

// Strategy selects how two causally concurrent versions are merged.
type Strategy int

const (
	// LastWriterWins keeps the version with the later record-level write
	LastWriterWins Strategy = iota + 1
	// FirstWriterWins keeps the version with the earlier record-level write
	FirstWriterWins
	// FieldLevelMerge merges the versions field by field (LWWMap)
	FieldLevelMerge
	// KeepBoth returns both versions for manual resolution
	KeepBoth
	// Custom calls a caller supplied merge function
	Custom
)

var strategyNames = map[Strategy]string{
	LastWriterWins:  "last_writer_wins",
	FirstWriterWins: "first_writer_wins",
	FieldLevelMerge: "field_level_merge",
	KeepBoth:        "keep_both",
	Custom:          "custom",
}

var strategyAliases = map[string]Strategy{
	"lww":   LastWriterWins,
	"fww":   FirstWriterWins,
	"field": FieldLevelMerge,
	"merge": FieldLevelMerge,
	"mv":    KeepBoth,
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	if s == 0 {
		return "none"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// ParseStrategy parses a strategy name as used in configuration files.
// Both canonical names (last_writer_wins) and short aliases (lww) are accepted.
func ParseStrategy(name string) (Strategy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for s, n := range strategyNames {
		if n == normalized {
			return s, nil
		}
	}
	if s, ok := strategyAliases[normalized]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Stamped is implemented by entities that can be ordered as a whole
// (LastWriterWins / FirstWriterWins). WriteStamp returns the record-level
// write timestamp and the replica that made it.
type Stamped interface {
	WriteStamp() (time.Time, string)
}

// FieldMerger is implemented by entities whose state is an LWWMap (FieldLevelMerge).
type FieldMerger[T any] interface {
	LWWFields() crdt.LWWMap
	WithLWWFields(fields crdt.LWWMap) T
}

// Kinded lets a single Go type carry several logical entity kinds,
// each with its own strategy.
type Kinded interface {
	EntityKind() string
}

// MergeFunc is a caller supplied merge used by the Custom strategy.
type MergeFunc[T any] func(local, remote T) (T, error)
