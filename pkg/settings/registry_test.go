package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/expectkit/pkg/scope"
	"github.com/xkilldash9x/expectkit/pkg/settings"
)

func newRegistry(t *testing.T) *settings.Registry {
	t.Helper()
	return settings.Expectations(settings.WithLogger(zaptest.NewLogger(t)))
}

func TestRegistry_Defaults(t *testing.T) {
	reg := newRegistry(t)

	policy, err := reg.GetString(settings.OnPotentialFalsePositives)
	require.NoError(t, err)
	assert.Equal(t, settings.PolicyWarn, policy)

	strict, err := reg.GetBool(settings.StrictPredicateMatchers)
	require.NoError(t, err)
	assert.False(t, strict)

	maxLen, err := reg.GetInt(settings.MaxFormattedOutputLength)
	require.NoError(t, err)
	assert.Equal(t, 200, maxLen)

	assert.Len(t, reg.Keys(), len(settings.ExpectationKeys()))
	assert.True(t, reg.Has("ON_POTENTIAL_FALSE_POSITIVES"), "names are case-insensitive")
}

func TestRegistry_SetAndGet(t *testing.T) {
	reg := newRegistry(t)

	require.NoError(t, reg.Set(settings.OnPotentialFalsePositives, settings.PolicyRaise))
	v, err := reg.Get(settings.OnPotentialFalsePositives)
	require.NoError(t, err)
	assert.Equal(t, settings.PolicyRaise, v)

	require.NoError(t, reg.Reset(settings.OnPotentialFalsePositives))
	v, err = reg.Get(settings.OnPotentialFalsePositives)
	require.NoError(t, err)
	assert.Equal(t, settings.PolicyWarn, v)
}

func TestRegistry_Preconditions(t *testing.T) {
	reg := newRegistry(t)

	testCases := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"get unknown key", func() error { _, err := reg.Get("no_such_key"); return err }, settings.ErrUnknownKey},
		{"set unknown key", func() error { return reg.Set("no_such_key", 1) }, settings.ErrUnknownKey},
		{"rule violation", func() error { return reg.Set(settings.OnPotentialFalsePositives, "explode") }, settings.ErrInvalidValue},
		{"type mismatch", func() error { return reg.Set(settings.Color, "yes") }, settings.ErrInvalidValue},
		{"nil value", func() error { return reg.Set(settings.Color, nil) }, settings.ErrInvalidValue},
		{"numeric rule", func() error { return reg.Set(settings.MaxFormattedOutputLength, 0) }, settings.ErrInvalidValue},
		{"duplicate declaration", func() error {
			return reg.Declare(settings.Key{Name: settings.Color, Default: true})
		}, settings.ErrDuplicateKey},
		{"default violates rule", func() error {
			return reg.Declare(settings.Key{Name: "mode", Default: "x", Rule: "oneof=a b"})
		}, settings.ErrInvalidValue},
		{"typed getter mismatch", func() error { _, err := reg.GetInt(settings.Color); return err }, settings.ErrInvalidValue},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRegistry_SnapshotAndApply(t *testing.T) {
	reg := newRegistry(t)

	snap, err := reg.Snapshot(settings.OnPotentialFalsePositives, settings.Color)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{settings.OnPotentialFalsePositives: settings.PolicyWarn, settings.Color: false}, snap)

	_, err = reg.Snapshot("missing")
	assert.ErrorIs(t, err, settings.ErrUnknownKey)

	t.Run("apply is all or nothing", func(t *testing.T) {
		err := reg.Apply(map[string]any{settings.Color: true, settings.OnPotentialFalsePositives: "bogus"})
		require.ErrorIs(t, err, settings.ErrInvalidValue)
		color, _ := reg.GetBool(settings.Color)
		assert.False(t, color, "nothing is written when any value is invalid")
	})

	require.NoError(t, reg.Apply(map[string]any{settings.Color: true}))
	color, _ := reg.GetBool(settings.Color)
	assert.True(t, color)
}

func TestRegistry_Store(t *testing.T) {
	reg := newRegistry(t)
	err := scope.Override(reg.Store(), map[string]any{settings.OnPotentialFalsePositives: settings.PolicyNothing}, func() error {
		v, _ := reg.GetString(settings.OnPotentialFalsePositives)
		assert.Equal(t, settings.PolicyNothing, v)
		return nil
	})
	require.NoError(t, err)
	v, _ := reg.GetString(settings.OnPotentialFalsePositives)
	assert.Equal(t, settings.PolicyWarn, v)

	err = scope.Override(reg.Store(), map[string]any{"missing": 1}, func() error { return nil })
	assert.ErrorIs(t, err, settings.ErrUnknownKey)
}

func TestDefault(t *testing.T) {
	assert.Same(t, settings.Default(), settings.Default())
	assert.True(t, settings.Default().Has(settings.OutputStream))
}

func TestKeyDescribe(t *testing.T) {
	reg := newRegistry(t)
	k, err := reg.Describe(settings.OutputStream)
	require.NoError(t, err)
	assert.Equal(t, "stderr", k.Default)
	assert.NotEmpty(t, k.Description)

	_, err = reg.Describe("nope")
	assert.ErrorIs(t, err, settings.ErrUnknownKey)
}
