package resolver

import (
	"fmt"
	"reflect"
)

type registrationKey struct {
	typ  reflect.Type
	kind string
}

type registration struct {
	merge    any // MergeFunc[T] for Custom
	strategy Strategy
}

// Config maps entity types (and optionally entity kinds) to strategies.
//
// Config is an explicit object owned by one bounded context and passed to New;
// there is no process-wide registry. It is not safe for concurrent mutation,
// New takes a snapshot so a Resolver never observes later changes.
type Config struct {
	registrations map[registrationKey]registration
	def           Strategy
}

// NewConfig creates an empty configuration without a default strategy.
func NewConfig() *Config {
	return &Config{
		registrations: make(map[registrationKey]registration),
	}
}

// SetDefault sets the strategy used for types without their own registration.
// Custom cannot be a default because it has no type to bind a function to.
func (c *Config) SetDefault(s Strategy) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	if s == Custom {
		return fmt.Errorf("default strategy: %w", ErrCustomWithoutFunc)
	}
	c.def = s
	return nil
}

// Default returns the default strategy, zero if none is set.
func (c *Config) Default() Strategy {
	return c.def
}

// Len returns the number of per-type and per-kind registrations.
func (c *Config) Len() int {
	return len(c.registrations)
}

// Configure registers strategy s for entity type T.
func Configure[T any](c *Config, s Strategy) error {
	return ConfigureKind[T](c, "", s)
}

// ConfigureKind registers strategy s for entities of type T whose EntityKind is kind.
// An empty kind registers the strategy for the type as a whole.
func ConfigureKind[T any](c *Config, kind string, s Strategy) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	if s == Custom {
		return fmt.Errorf("%s: %w", describe[T](kind), ErrCustomWithoutFunc)
	}
	if err := supports[T](s); err != nil {
		return fmt.Errorf("%s: %w", describe[T](kind), err)
	}

	c.registrations[registrationKey{typ: typeOf[T](), kind: kind}] = registration{strategy: s}
	return nil
}

// ConfigureCustom registers a caller supplied merge function for entity type T.
func ConfigureCustom[T any](c *Config, fn MergeFunc[T]) error {
	return ConfigureKindCustom(c, "", fn)
}

// ConfigureKindCustom registers a merge function for entities of type T and the given kind.
func ConfigureKindCustom[T any](c *Config, kind string, fn MergeFunc[T]) error {
	if fn == nil {
		return fmt.Errorf("%s: %w", describe[T](kind), ErrCustomWithoutFunc)
	}

	c.registrations[registrationKey{typ: typeOf[T](), kind: kind}] = registration{
		strategy: Custom,
		merge:    fn,
	}
	return nil
}

func (c *Config) clone() *Config {
	cp := &Config{
		registrations: make(map[registrationKey]registration, len(c.registrations)),
		def:           c.def,
	}
	for k, v := range c.registrations {
		cp.registrations[k] = v
	}
	return cp
}

// lookup finds the registration for T: kind first, then type, then default.
func lookup[T any](c *Config, kind string) (registration, bool) {
	typ := typeOf[T]()
	if kind != "" {
		if reg, ok := c.registrations[registrationKey{typ: typ, kind: kind}]; ok {
			return reg, true
		}
	}
	if reg, ok := c.registrations[registrationKey{typ: typ}]; ok {
		return reg, true
	}
	if c.def != 0 {
		return registration{strategy: c.def}, true
	}
	return registration{}, false
}

// supports checks that T implements the contract strategy s needs.
func supports[T any](s Strategy) error {
	typ := typeOf[T]()
	switch s {
	case LastWriterWins, FirstWriterWins:
		if !typ.Implements(reflect.TypeFor[Stamped]()) {
			return fmt.Errorf("%w: %s requires %s to implement Stamped", ErrStrategyUnsupported, s, typ)
		}
	case FieldLevelMerge:
		if !typ.Implements(reflect.TypeFor[FieldMerger[T]]()) {
			return fmt.Errorf("%w: %s requires %s to implement FieldMerger", ErrStrategyUnsupported, s, typ)
		}
	}
	return nil
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func describe[T any](kind string) string {
	if kind == "" {
		return typeOf[T]().String()
	}
	return fmt.Sprintf("%s (kind %q)", typeOf[T](), kind)
}
