// Package resolver reconciles two versions of the same entity.
//
// Resolve classifies the versions by their vector clocks. When one version
// causally dominates the other it is adopted outright and no strategy runs.
// Only concurrent versions are handed to the strategy configured for the
// entity type, and every concurrent outcome carries the merge of both clocks:
// value resolution and causality bookkeeping are independent.
//
// LastWriterWins and FirstWriterWins order records by wall-clock write
// timestamps. Under clock skew this is approximate; the replica id secondary
// key only makes the choice deterministic, it does not recover true recency.
package resolver

import (
	"fmt"
	"reflect"

	"github.com/iudanet/synccore/internal/crdt"
)

// Resolver applies a fixed snapshot of a Config. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	cfg *Config
}

// New creates a resolver from cfg. A configuration without a default and
// without any registration is rejected.
func New(cfg *Config) (*Resolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil: %w", ErrNoStrategy)
	}
	if cfg.def == 0 && len(cfg.registrations) == 0 {
		return nil, ErrNoStrategy
	}
	return &Resolver{cfg: cfg.clone()}, nil
}

// Outcome is the result of a Resolve call.
type Outcome[T any] struct {
	// Value is the merged entity. Zero for KeepBoth.
	Value T
	// Clock is the clock the merged entity must carry.
	Clock crdt.VectorClock
	// Siblings holds both versions when the KeepBoth strategy ran.
	Siblings crdt.MVRegister[T]
	// Relation is the causal relation of the local clock to the remote one.
	Relation crdt.CausalRelation
	// Strategy is the strategy applied; zero when a dominance shortcut was taken.
	Strategy Strategy
}

// NeedsManualResolution reports whether the caller has to pick a version.
func (o Outcome[T]) NeedsManualResolution() bool {
	return o.Strategy == KeepBoth
}

// StrategyFor returns the strategy that would be applied to concurrent versions of v.
func StrategyFor[T any](r *Resolver, v T) (Strategy, error) {
	reg, err := registrationFor(r, v)
	if err != nil {
		return 0, err
	}
	return reg.strategy, nil
}

// Resolve reconciles local and remote versions of the same entity.
//
// Resolve is a pure function of its inputs. It fails fast on nil clocks or
// nil values instead of substituting defaults.
func Resolve[T any](r *Resolver, local, remote T, localClock, remoteClock crdt.VectorClock) (Outcome[T], error) {
	var out Outcome[T]

	if localClock == nil {
		return out, fmt.Errorf("local: %w", ErrMissingClock)
	}
	if remoteClock == nil {
		return out, fmt.Errorf("remote: %w", ErrMissingClock)
	}
	if isNil(local) {
		return out, fmt.Errorf("local: %w", ErrMissingValue)
	}
	if isNil(remote) {
		return out, fmt.Errorf("remote: %w", ErrMissingValue)
	}

	out.Relation = localClock.Compare(remoteClock)
	switch out.Relation {
	case crdt.Before:
		out.Value = remote
		out.Clock = remoteClock.Clone()
		return out, nil
	case crdt.After, crdt.Equal:
		out.Value = local
		out.Clock = localClock.Clone()
		return out, nil
	}

	reg, err := registrationFor(r, local)
	if err != nil {
		return out, err
	}

	out.Strategy = reg.strategy
	out.Clock = localClock.Merge(remoteClock)

	switch reg.strategy {
	case LastWriterWins:
		out.Value, err = pickByStamp(local, remote, true)
	case FirstWriterWins:
		out.Value, err = pickByStamp(local, remote, false)
	case FieldLevelMerge:
		out.Value, err = mergeFields(local, remote)
	case KeepBoth:
		out.Siblings = crdt.NewMVRegister[T]().
			Set(local, localClock).
			Set(remote, remoteClock)
	case Custom:
		out.Value, err = mergeCustom(reg, local, remote)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownStrategy, reg.strategy)
	}
	if err != nil {
		return Outcome[T]{}, err
	}

	return out, nil
}

func registrationFor[T any](r *Resolver, v T) (registration, error) {
	var kind string
	if k, ok := any(v).(Kinded); ok && !isNil(v) {
		kind = k.EntityKind()
	}

	reg, ok := lookup[T](r.cfg, kind)
	if !ok {
		return registration{}, fmt.Errorf("%s: %w", describe[T](kind), ErrNoStrategy)
	}
	// The default strategy is not checked at registration time
	if err := supports[T](reg.strategy); err != nil {
		return registration{}, fmt.Errorf("%s: %w", describe[T](kind), err)
	}
	return reg, nil
}

// pickByStamp treats each version as a single LWW register keyed by its
// record-level write stamp. Identical stamps fall back to a field merge
// when the type supports it, otherwise local is kept.
func pickByStamp[T any](local, remote T, laterWins bool) (T, error) {
	lts, lreplica := any(local).(Stamped).WriteStamp()
	rts, rreplica := any(remote).(Stamped).WriteStamp()

	c := crdt.CompareWrites(lts, lreplica, rts, rreplica)
	if c == 0 {
		if _, ok := any(local).(FieldMerger[T]); ok {
			return mergeFields(local, remote)
		}
		return local, nil
	}

	if (c > 0) == laterWins {
		return local, nil
	}
	return remote, nil
}

func mergeFields[T any](local, remote T) (T, error) {
	lm, ok := any(local).(FieldMerger[T])
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s is not a FieldMerger", ErrStrategyUnsupported, typeOf[T]())
	}
	rm := any(remote).(FieldMerger[T])

	return lm.WithLWWFields(lm.LWWFields().Merge(rm.LWWFields())), nil
}

func mergeCustom[T any](reg registration, local, remote T) (T, error) {
	var zero T

	fn, ok := reg.merge.(MergeFunc[T])
	if !ok || fn == nil {
		return zero, ErrCustomWithoutFunc
	}

	merged, err := fn(local, remote)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCustomMerge, err)
	}
	if isNil(merged) {
		return zero, ErrNilMergeResult
	}
	return merged, nil
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
