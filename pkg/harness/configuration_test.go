package harness_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/expectkit/pkg/harness"
	"github.com/xkilldash9x/expectkit/pkg/settings"
)

var raise = map[string]any{settings.OnPotentialFalsePositives: settings.PolicyRaise}

func TestWithConfiguration_RestoresEveryKey(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T, b harness.Body)
	}{
		{
			name: "passing case",
			run:  func(t *testing.T, b harness.Body) { b(t) },
		},
		{
			name: "failing case",
			// FailNow ends the case through runtime.Goexit
			run: func(t *testing.T, b harness.Body) {
				done := make(chan struct{})
				go func() {
					defer close(done)
					b(t)
				}()
				<-done
			},
		},
		{
			name: "panicking case",
			run: func(t *testing.T, b harness.Body) {
				assert.Panics(t, func() { b(t) })
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newRegistry(t)
			require.NoError(t, reg.Set(settings.MaxFormattedOutputLength, 80))
			before := snapshotAll(t, reg)

			var seen any
			body := harness.WithConfiguration(reg, raise)(func(t *testing.T) {
				seen, _ = reg.Get(settings.OnPotentialFalsePositives)
				switch tt.name {
				case "failing case":
					runtime.Goexit()
				case "panicking case":
					panic("case blew up")
				}
			})
			tt.run(t, body)

			assert.Equal(t, settings.PolicyRaise, seen)
			assert.Equal(t, before, snapshotAll(t, reg))
		})
	}
}

func TestWithConfiguration_Idempotent(t *testing.T) {
	reg := newRegistry(t)
	before := snapshotAll(t, reg)
	noop := func(*testing.T) {}

	harness.WithConfiguration(reg, raise)(noop)(t)
	once := snapshotAll(t, reg)
	harness.WithConfiguration(reg, raise)(noop)(t)

	assert.Equal(t, before, once)
	assert.Equal(t, once, snapshotAll(t, reg))
}

func TestConfigure(t *testing.T) {
	reg := newRegistry(t)

	t.Run("applies until the test ends", func(t *testing.T) {
		harness.Configure(t, reg, map[string]any{settings.Color: true})
		got, err := reg.GetBool(settings.Color)
		require.NoError(t, err)
		assert.True(t, got)
	})

	got, err := reg.GetBool(settings.Color)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestConfigure_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   string
	}{
		{"unknown key", map[string]any{"no_such_key": 1}, "unknown"},
		{"wrong type", map[string]any{settings.Color: "yes"}, "failed to apply overrides"},
		{"rule violation", map[string]any{settings.OnPotentialFalsePositives: "explode"}, "failed to apply overrides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newRegistry(t)
			before := snapshotAll(t, reg)
			spy := &spyTB{TB: t}

			harness.Configure(spy, reg, tt.values)

			require.Len(t, spy.fatals, 1)
			assert.Contains(t, spy.fatals[0], tt.want)
			assert.Equal(t, before, snapshotAll(t, reg))
		})
	}
}

func TestRestoreAfterGroup(t *testing.T) {
	reg := newRegistry(t)

	t.Run("group", func(t *testing.T) {
		harness.RestoreAfterGroup(t, reg, settings.StrictPredicateMatchers)

		t.Run("first case turns it on", func(t *testing.T) {
			require.NoError(t, reg.Set(settings.StrictPredicateMatchers, true))
		})
		t.Run("second case sees it still on", func(t *testing.T) {
			got, err := reg.GetBool(settings.StrictPredicateMatchers)
			require.NoError(t, err)
			assert.True(t, got, "no per-case restore")
		})
	})

	got, err := reg.GetBool(settings.StrictPredicateMatchers)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRestoreAfterGroup_UnknownKey(t *testing.T) {
	spy := &spyTB{TB: t}
	harness.RestoreAfterGroup(spy, newRegistry(t), "no_such_key")
	require.Len(t, spy.fatals, 1)
	assert.Contains(t, spy.fatals[0], "no_such_key")
}
