package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeDependencies_CloseReverseOrder(t *testing.T) {
	var order []string
	deps := &runtimeDependencies{closers: []func() error{
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return errors.New("boom") },
	}}

	err := deps.close()
	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)

	// повторное закрытие ничего не делает
	require.NoError(t, deps.close())
	assert.Len(t, order, 2)
}

func TestRuntimeDependencies_CloseNil(t *testing.T) {
	var deps *runtimeDependencies
	assert.NoError(t, deps.close())
}
