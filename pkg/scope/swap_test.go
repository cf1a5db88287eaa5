package scope_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/expectkit/pkg/scope"
)

var (
	addFn       = func(a, b int) int { return a + b }
	swapTargetI = 10
)

func TestSwap_FunctionAndRestore(t *testing.T) {
	boom := errors.New("boom")
	err := scope.Swap(&addFn, func(a, b int) int { return 99 }, func() error {
		assert.Equal(t, 99, addFn(1, 2))
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 3, addFn(1, 2))
}

func TestSwapT_NonFunctionType(t *testing.T) {
	// run in a subtest so Cleanup fires before the restoration check
	t.Run("int", func(t *testing.T) {
		assert.Equal(t, 10, swapTargetI)
		scope.SwapT(t, &swapTargetI, 42)
		assert.Equal(t, 42, swapTargetI)
	})
	assert.Equal(t, 10, swapTargetI)
}
