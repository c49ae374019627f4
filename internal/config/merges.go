package config

import (
	"fmt"
	"sort"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/resolver"
)

// customMerges are the named merge functions available to strategies.custom.
var customMerges = map[string]resolver.MergeFunc[*models.Record]{
	"numeric_max": numericMerge(func(a, b float64) bool { return a > b }),
	"numeric_min": numericMerge(func(a, b float64) bool { return a < b }),
}

// MergeNames returns the names accepted by strategies.custom.
func MergeNames() []string {
	names := make([]string, 0, len(customMerges))
	for name := range customMerges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupMerge returns a named custom merge.
func LookupMerge(name string) (resolver.MergeFunc[*models.Record], error) {
	fn, ok := customMerges[name]
	if !ok {
		return nil, fmt.Errorf("unknown custom merge %q, available: %v", name, MergeNames())
	}
	return fn, nil
}

// numericMerge merges records field by field. Where both sides hold a number
// the register selected by better wins; every other field is merged LWW.
// Equal numbers fall back to the LWW winner, so the merge stays commutative.
func numericMerge(better func(a, b float64) bool) resolver.MergeFunc[*models.Record] {
	return func(local, remote *models.Record) (*models.Record, error) {
		merged := local.Fields.Merge(remote.Fields)
		out := crdt.NewLWWMap()

		for _, name := range merged.Fields() {
			reg, _ := merged.Register(name)

			l, lok := local.Fields.Register(name)
			r, rok := remote.Fields.Register(name)
			if lok && rok {
				ln, lnum := l.Value.AsNumber()
				rn, rnum := r.Value.AsNumber()
				switch {
				case lnum && rnum && better(ln, rn):
					reg = l
				case lnum && rnum && better(rn, ln):
					reg = r
				}
			}

			out, _ = out.Set(name, reg.Value, reg.Timestamp, reg.ReplicaID)
		}

		return local.WithLWWFields(out), nil
	}
}
