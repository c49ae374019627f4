package resolver

import "errors"

// Configuration errors are reported by registration calls, input errors by Resolve.
var (
	// ErrNoStrategy indicates that a type has no registered strategy and no default exists
	ErrNoStrategy = errors.New("no conflict resolution strategy configured")

	// ErrCustomWithoutFunc indicates a Custom strategy registered without a merge function
	ErrCustomWithoutFunc = errors.New("custom strategy requires a merge function")

	// ErrUnknownStrategy indicates a strategy value outside the known set
	ErrUnknownStrategy = errors.New("unknown conflict resolution strategy")

	// ErrStrategyUnsupported indicates that the entity type lacks the contract a strategy needs
	ErrStrategyUnsupported = errors.New("strategy is not supported by entity type")

	// ErrMissingClock indicates a nil vector clock passed to Resolve
	ErrMissingClock = errors.New("vector clock is missing")

	// ErrMissingValue indicates a nil entity passed to Resolve
	ErrMissingValue = errors.New("entity value is missing")

	// ErrNilMergeResult indicates that a custom merge function returned nil
	ErrNilMergeResult = errors.New("custom merge returned nil result")

	// ErrCustomMerge wraps failures returned by a custom merge function
	ErrCustomMerge = errors.New("custom merge failed")
)
