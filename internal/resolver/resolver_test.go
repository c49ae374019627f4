package resolver

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/synccore/internal/crdt"
)

var epoch = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

// product is a syncable test entity supporting every strategy.
type product struct {
	fields crdt.LWWMap
	kind   string
}

func (p *product) WriteStamp() (time.Time, string) {
	ts, replica, _ := p.fields.LatestWrite()
	return ts, replica
}

func (p *product) LWWFields() crdt.LWWMap { return p.fields }

func (p *product) WithLWWFields(fields crdt.LWWMap) *product {
	return &product{fields: fields, kind: p.kind}
}

func (p *product) EntityKind() string { return p.kind }

func newProduct(kind string, writes ...write) *product {
	fields := crdt.NewLWWMap()
	for _, w := range writes {
		fields, _ = fields.Set(w.field, w.value, w.ts, w.replica)
	}
	return &product{fields: fields, kind: kind}
}

type write struct {
	ts      time.Time
	value   crdt.FieldValue
	field   string
	replica string
}

func price(v float64, seconds int, replica string) write {
	return write{field: "price", value: crdt.Number(v), ts: at(seconds), replica: replica}
}

// note supports no strategy contract at all.
type note struct {
	text string
}

func price0(t *testing.T, p *product) float64 {
	t.Helper()
	v, ok := crdt.Lookup[float64](p.LWWFields(), "price")
	require.True(t, ok)
	return v
}

func mustResolver(t *testing.T, configure func(c *Config)) *Resolver {
	t.Helper()
	cfg := NewConfig()
	configure(cfg)
	r, err := New(cfg)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoStrategy)

	_, err = New(NewConfig())
	assert.ErrorIs(t, err, ErrNoStrategy)

	cfg := NewConfig()
	require.NoError(t, cfg.SetDefault(KeepBoth))
	r, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, r)

	cfg = NewConfig()
	require.NoError(t, Configure[*product](cfg, LastWriterWins))
	_, err = New(cfg)
	assert.NoError(t, err)
}

func TestResolve_ConcurrentScenarios(t *testing.T) {
	// Сценарий из двух офлайн-реплик, редактирующих одну цену
	local := newProduct("", price(10, 100, "r1"))
	remote := newProduct("", price(12, 105, "r2"))
	localClock := crdt.VectorClock{"r1": 1}
	remoteClock := crdt.VectorClock{"r2": 1}
	merged := crdt.VectorClock{"r1": 1, "r2": 1}

	t.Run("field level merge keeps later write", func(t *testing.T) {
		r := mustResolver(t, func(c *Config) {
			require.NoError(t, Configure[*product](c, FieldLevelMerge))
		})

		out, err := Resolve(r, local, remote, localClock, remoteClock)
		require.NoError(t, err)

		assert.Equal(t, crdt.Concurrent, out.Relation)
		assert.Equal(t, FieldLevelMerge, out.Strategy)
		assert.Equal(t, 12.0, price0(t, out.Value))
		assert.True(t, out.Clock.Equal(merged), "got %s", out.Clock)
		assert.False(t, out.NeedsManualResolution())
	})

	t.Run("keep both exposes both versions", func(t *testing.T) {
		r := mustResolver(t, func(c *Config) {
			require.NoError(t, Configure[*product](c, KeepBoth))
		})

		out, err := Resolve(r, local, remote, localClock, remoteClock)
		require.NoError(t, err)

		assert.True(t, out.NeedsManualResolution())
		assert.Nil(t, out.Value)
		assert.True(t, out.Clock.Equal(merged))
		require.Equal(t, 2, out.Siblings.Len())

		prices := make([]float64, 0, 2)
		for _, v := range out.Siblings.Values() {
			prices = append(prices, price0(t, v))
		}
		assert.ElementsMatch(t, []float64{10, 12}, prices)
	})

	t.Run("last writer wins", func(t *testing.T) {
		r := mustResolver(t, func(c *Config) {
			require.NoError(t, Configure[*product](c, LastWriterWins))
		})

		out, err := Resolve(r, local, remote, localClock, remoteClock)
		require.NoError(t, err)
		assert.Same(t, remote, out.Value)
		assert.True(t, out.Clock.Equal(merged))
	})

	t.Run("first writer wins", func(t *testing.T) {
		r := mustResolver(t, func(c *Config) {
			require.NoError(t, Configure[*product](c, FirstWriterWins))
		})

		out, err := Resolve(r, local, remote, localClock, remoteClock)
		require.NoError(t, err)
		assert.Same(t, local, out.Value)
		assert.True(t, out.Clock.Equal(merged))
	})
}

func TestResolve_DominanceShortcut(t *testing.T) {
	calls := 0
	r := mustResolver(t, func(c *Config) {
		require.NoError(t, ConfigureCustom(c, func(l, _ *product) (*product, error) {
			calls++
			return l, nil
		}))
	})

	local := newProduct("", price(10, 100, "r1"))
	remote := newProduct("", price(12, 105, "r2"))

	tests := []struct {
		name        string
		localClock  crdt.VectorClock
		remoteClock crdt.VectorClock
		want        *product
		wantClock   crdt.VectorClock
		relation    crdt.CausalRelation
	}{
		{
			name:        "local dominates",
			localClock:  crdt.VectorClock{"r1": 2, "r2": 1},
			remoteClock: crdt.VectorClock{"r1": 1, "r2": 1},
			want:        local,
			wantClock:   crdt.VectorClock{"r1": 2, "r2": 1},
			relation:    crdt.After,
		},
		{
			name:        "remote dominates",
			localClock:  crdt.VectorClock{"r1": 1},
			remoteClock: crdt.VectorClock{"r1": 1, "r2": 3},
			want:        remote,
			wantClock:   crdt.VectorClock{"r1": 1, "r2": 3},
			relation:    crdt.Before,
		},
		{
			name:        "equal clocks keep local",
			localClock:  crdt.VectorClock{"r1": 1},
			remoteClock: crdt.VectorClock{"r1": 1},
			want:        local,
			wantClock:   crdt.VectorClock{"r1": 1},
			relation:    crdt.Equal,
		},
		{
			name:        "empty clocks are equal",
			localClock:  crdt.NewVectorClock(),
			remoteClock: crdt.NewVectorClock(),
			want:        local,
			wantClock:   crdt.NewVectorClock(),
			relation:    crdt.Equal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Resolve(r, local, remote, tt.localClock, tt.remoteClock)
			require.NoError(t, err)

			assert.Same(t, tt.want, out.Value)
			assert.True(t, out.Clock.Equal(tt.wantClock), "got %s", out.Clock)
			assert.Equal(t, tt.relation, out.Relation)
			assert.Equal(t, Strategy(0), out.Strategy)
		})
	}

	assert.Zero(t, calls, "no strategy must run when one version dominates")
}

func TestResolve_InvalidInput(t *testing.T) {
	r := mustResolver(t, func(c *Config) {
		require.NoError(t, c.SetDefault(KeepBoth))
	})
	p := newProduct("", price(1, 1, "r1"))
	clock := crdt.VectorClock{"r1": 1}

	tests := []struct {
		local       *product
		remote      *product
		localClock  crdt.VectorClock
		remoteClock crdt.VectorClock
		wantErr     error
		name        string
	}{
		{name: "nil local clock", local: p, remote: p, remoteClock: clock, wantErr: ErrMissingClock},
		{name: "nil remote clock", local: p, remote: p, localClock: clock, wantErr: ErrMissingClock},
		{name: "nil local value", remote: p, localClock: clock, remoteClock: clock, wantErr: ErrMissingValue},
		{name: "nil remote value", local: p, localClock: clock, remoteClock: clock, wantErr: ErrMissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(r, tt.local, tt.remote, tt.localClock, tt.remoteClock)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolve_LWWEqualStamps(t *testing.T) {
	// Одинаковая последняя запись, но разные остальные поля
	local := newProduct("",
		price(10, 100, "r1"),
		write{field: "name", value: crdt.Text("old"), ts: at(50), replica: "r1"},
	)
	remote := newProduct("",
		price(10, 100, "r1"),
		write{field: "name", value: crdt.Text("new"), ts: at(60), replica: "r2"},
	)

	r := mustResolver(t, func(c *Config) {
		require.NoError(t, Configure[*product](c, LastWriterWins))
	})

	out, err := Resolve(r, local, remote, crdt.VectorClock{"r1": 2}, crdt.VectorClock{"r1": 1, "r2": 1})
	require.NoError(t, err)

	name, ok := crdt.Lookup[string](out.Value.LWWFields(), "name")
	require.True(t, ok)
	assert.Equal(t, "new", name, "identical stamps fall back to a field merge")
}

func TestResolve_DeleteAgainstConcurrentEdit(t *testing.T) {
	local := newProduct("", price(10, 100, "r1"),
		write{field: "is_deleted", value: crdt.Bool(true), ts: at(110), replica: "r1"})
	remote := newProduct("", price(10, 100, "r1"), price(15, 120, "r2"))

	r := mustResolver(t, func(c *Config) {
		require.NoError(t, c.SetDefault(FieldLevelMerge))
	})

	out, err := Resolve(r, local, remote, crdt.VectorClock{"r1": 2}, crdt.VectorClock{"r1": 1, "r2": 1})
	require.NoError(t, err)

	deleted, ok := crdt.Lookup[bool](out.Value.LWWFields(), "is_deleted")
	require.True(t, ok)
	assert.True(t, deleted)
	assert.Equal(t, 15.0, price0(t, out.Value))
}

func TestResolve_Commutative(t *testing.T) {
	a := newProduct("",
		price(10, 100, "r1"),
		write{field: "name", value: crdt.Text("a"), ts: at(130), replica: "r1"},
	)
	b := newProduct("",
		price(12, 105, "r2"),
		write{field: "stock", value: crdt.Number(3), ts: at(90), replica: "r2"},
	)
	ca := crdt.VectorClock{"r1": 1}
	cb := crdt.VectorClock{"r2": 1}

	for _, s := range []Strategy{LastWriterWins, FirstWriterWins, FieldLevelMerge} {
		t.Run(s.String(), func(t *testing.T) {
			r := mustResolver(t, func(c *Config) {
				require.NoError(t, Configure[*product](c, s))
			})

			ab, err := Resolve(r, a, b, ca, cb)
			require.NoError(t, err)
			ba, err := Resolve(r, b, a, cb, ca)
			require.NoError(t, err)

			assert.True(t, ab.Value.LWWFields().Equal(ba.Value.LWWFields()))
			assert.True(t, ab.Clock.Equal(ba.Clock))
		})
	}
}

func TestResolve_Custom(t *testing.T) {
	local := newProduct("", price(10, 100, "r1"))
	remote := newProduct("", price(12, 105, "r2"))
	lc, rc := crdt.VectorClock{"r1": 1}, crdt.VectorClock{"r2": 1}

	t.Run("result is used", func(t *testing.T) {
		r := mustResolver(t, func(c *Config) {
			require.NoError(t, ConfigureCustom(c, func(l, rm *product) (*product, error) {
				lv, _ := crdt.Lookup[float64](l.fields, "price")
				rv, _ := crdt.Lookup[float64](rm.fields, "price")
				fields, _ := l.fields.Set("price", crdt.Number(lv+rv), at(200), "merge")
				return l.WithLWWFields(fields), nil
			}))
		})

		out, err := Resolve(r, local, remote, lc, rc)
		require.NoError(t, err)
		assert.Equal(t, Custom, out.Strategy)
		assert.Equal(t, 22.0, price0(t, out.Value))
		assert.True(t, out.Clock.Equal(crdt.VectorClock{"r1": 1, "r2": 1}))
	})

	t.Run("nil result", func(t *testing.T) {
		r := mustResolver(t, func(c *Config) {
			require.NoError(t, ConfigureCustom(c, func(_, _ *product) (*product, error) {
				return nil, nil
			}))
		})

		_, err := Resolve(r, local, remote, lc, rc)
		assert.ErrorIs(t, err, ErrNilMergeResult)
	})

	t.Run("error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		r := mustResolver(t, func(c *Config) {
			require.NoError(t, ConfigureCustom(c, func(_, _ *product) (*product, error) {
				return nil, boom
			}))
		})

		_, err := Resolve(r, local, remote, lc, rc)
		assert.ErrorIs(t, err, ErrCustomMerge)
		assert.ErrorIs(t, err, boom)
	})
}

func TestResolve_KindLookup(t *testing.T) {
	r := mustResolver(t, func(c *Config) {
		require.NoError(t, Configure[*product](c, FieldLevelMerge))
		require.NoError(t, ConfigureKind[*product](c, "catalog", KeepBoth))
	})

	lc, rc := crdt.VectorClock{"r1": 1}, crdt.VectorClock{"r2": 1}

	out, err := Resolve(r, newProduct("catalog", price(1, 1, "r1")), newProduct("catalog", price(2, 2, "r2")), lc, rc)
	require.NoError(t, err)
	assert.Equal(t, KeepBoth, out.Strategy)

	out, err = Resolve(r, newProduct("inventory", price(1, 1, "r1")), newProduct("inventory", price(2, 2, "r2")), lc, rc)
	require.NoError(t, err)
	assert.Equal(t, FieldLevelMerge, out.Strategy)
}

func TestResolve_NoStrategy(t *testing.T) {
	r := mustResolver(t, func(c *Config) {
		require.NoError(t, Configure[*product](c, FieldLevelMerge))
	})

	_, err := Resolve(r, note{"a"}, note{"b"}, crdt.VectorClock{"r1": 1}, crdt.VectorClock{"r2": 1})
	assert.ErrorIs(t, err, ErrNoStrategy)

	// Доминирование не требует стратегии
	out, err := Resolve(r, note{"a"}, note{"b"}, crdt.VectorClock{"r1": 2}, crdt.VectorClock{"r1": 1})
	require.NoError(t, err)
	assert.Equal(t, "a", out.Value.text)
}

func TestResolve_DefaultUnsupportedByType(t *testing.T) {
	r := mustResolver(t, func(c *Config) {
		require.NoError(t, c.SetDefault(FieldLevelMerge))
	})

	_, err := Resolve(r, note{"a"}, note{"b"}, crdt.VectorClock{"r1": 1}, crdt.VectorClock{"r2": 1})
	assert.ErrorIs(t, err, ErrStrategyUnsupported)

	_, err = StrategyFor(r, note{"a"})
	assert.ErrorIs(t, err, ErrStrategyUnsupported)
}

func TestResolve_KeepBothForPlainValues(t *testing.T) {
	r := mustResolver(t, func(c *Config) {
		require.NoError(t, c.SetDefault(KeepBoth))
	})

	out, err := Resolve(r, note{"a"}, note{"b"}, crdt.VectorClock{"r1": 1}, crdt.VectorClock{"r2": 1})
	require.NoError(t, err)
	assert.True(t, out.NeedsManualResolution())
	assert.Len(t, out.Siblings.Values(), 2)
}

func TestResolver_SnapshotsConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, Configure[*product](cfg, FieldLevelMerge))
	r, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, Configure[*product](cfg, KeepBoth))

	s, err := StrategyFor(r, &product{})
	require.NoError(t, err)
	assert.Equal(t, FieldLevelMerge, s)
}

func TestResolve_ConcurrentUse(t *testing.T) {
	r := mustResolver(t, func(c *Config) {
		require.NoError(t, c.SetDefault(FieldLevelMerge))
	})
	local := newProduct("", price(10, 100, "r1"))
	remote := newProduct("", price(12, 105, "r2"))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := Resolve(r, local, remote, crdt.VectorClock{"r1": 1}, crdt.VectorClock{"r2": 1})
			if !assert.NoError(t, err) {
				return
			}
			v, _ := crdt.Lookup[float64](out.Value.LWWFields(), "price")
			assert.Equal(t, 12.0, v)
		}()
	}
	wg.Wait()
}
