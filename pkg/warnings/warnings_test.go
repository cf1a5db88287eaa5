package warnings_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/expectkit/internal/mocks"
	"github.com/xkilldash9x/expectkit/pkg/warnings"
)

func TestCapture(t *testing.T) {
	t.Run("returns messages in emission order", func(t *testing.T) {
		before := warnings.Current()
		got, err := warnings.Capture(func() error {
			warnings.Warn("a")
			warnings.Warn("b")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got)
		assert.True(t, before == warnings.Current(), "the original notifier is reinstalled")
	})

	t.Run("no message escapes to the original notifier", func(t *testing.T) {
		var escaped []string
		outer := warnings.Func(func(w string) { escaped = append(escaped, w) })
		prev := warnings.SetNotifier(outer)
		t.Cleanup(func() { warnings.SetNotifier(prev) })

		got, err := warnings.Capture(func() error {
			warnings.Warnf("%s-%d", "formatted", 1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"formatted-1"}, got)
		assert.Empty(t, escaped)
		assert.True(t, outer == warnings.Current())
	})

	t.Run("the installed notifier only hears warnings outside the capture", func(t *testing.T) {
		n := new(mocks.MockNotifier)
		n.On("Notify", "after").Return().Once()
		prev := warnings.SetNotifier(n)
		t.Cleanup(func() { warnings.SetNotifier(prev) })

		_, err := warnings.Capture(func() error {
			warnings.Warn("during")
			return nil
		})
		require.NoError(t, err)
		warnings.Warn("after")

		n.AssertNotCalled(t, "Notify", "during")
		n.AssertExpectations(t)
	})

	t.Run("restores and propagates when the unit of work fails", func(t *testing.T) {
		before := warnings.Current()
		boom := errors.New("failure after warning")
		got, err := warnings.Capture(func() error {
			warnings.Warn("a")
			return boom
		})
		assert.Same(t, boom, err)
		assert.Nil(t, got, "partial warnings are discarded with the failure")
		assert.True(t, before == warnings.Current())
	})

	t.Run("restores when the unit of work panics", func(t *testing.T) {
		before := warnings.Current()
		assert.PanicsWithValue(t, "boom", func() {
			_, _ = warnings.Capture(func() error {
				warnings.Warn("a")
				panic("boom")
			})
		})
		assert.True(t, before == warnings.Current())
	})

	t.Run("nested captures each see their own warnings", func(t *testing.T) {
		var inner []string
		outer, err := warnings.Capture(func() error {
			warnings.Warn("outer-1")
			var err error
			inner, err = warnings.Capture(func() error {
				warnings.Warn("inner")
				return nil
			})
			warnings.Warn("outer-2")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"inner"}, inner)
		assert.Equal(t, []string{"outer-1", "outer-2"}, outer)
	})
}

func TestCaptureT(t *testing.T) {
	before := warnings.Current()
	t.Run("collects until the subtest ends", func(t *testing.T) {
		c := warnings.CaptureT(t)
		warnings.Warn("during")
		assert.Equal(t, []string{"during"}, c.Messages())
	})
	assert.True(t, before == warnings.Current())
}

func TestSetNotifier(t *testing.T) {
	var got []string
	n := warnings.NotifierFunc(func(w string) { got = append(got, w) })
	prev := warnings.SetNotifier(n)
	warnings.Warn("via func")
	restored := warnings.SetNotifier(prev)
	assert.NotNil(t, restored)
	assert.Equal(t, []string{"via func"}, got)

	prev = warnings.SetNotifier(nil)
	assert.True(t, warnings.Default == warnings.Current(), "nil installs the default notifier")
	warnings.SetNotifier(prev)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := warnings.NewLogNotifier(zap.New(core))
	n.Notify("potential false positive")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "potential false positive", entries[0].Message)
}
