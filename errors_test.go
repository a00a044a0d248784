package navgen_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/navgen"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := navgen.NewNotFoundError("Order")
		assert.Equal(t, "navgen: Order not found", err.Error())
		assert.Equal(t, "Order", err.Label())
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := navgen.NewNotFoundError("Customer")
		assert.True(t, errors.Is(err, navgen.ErrNotFound))
		assert.True(t, navgen.IsNotFound(fmt.Errorf("wrapper: %w", err)))
		assert.True(t, navgen.IsNotFound(navgen.ErrNotFound))
		assert.False(t, navgen.IsNotFound(errors.New("other error")))
		assert.False(t, navgen.IsNotFound(nil))
	})
}

func TestNotSingularError(t *testing.T) {
	err := navgen.NewNotSingularError("Order", 3)
	assert.Equal(t, "navgen: Order not singular (got 3 results, expected 1)", err.Error())
	assert.Equal(t, 3, err.Count())
	assert.True(t, errors.Is(err, navgen.ErrNotSingular))
	assert.True(t, navgen.IsNotSingular(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, navgen.IsNotSingular(navgen.NewNotFoundError("Order")))
	assert.False(t, navgen.IsNotSingular(nil))
}

func TestNotLoadedError(t *testing.T) {
	err := navgen.NewNotLoadedError("Order", "Customer/ShippingAddress")
	assert.Equal(t, `navgen: relationship "Customer/ShippingAddress" of Order was not loaded`, err.Error())
	assert.Equal(t, "Customer/ShippingAddress", err.Path())
	assert.True(t, navgen.IsNotLoaded(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, navgen.IsNotLoaded(nil))
}

func TestLoadError(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("WithOp", func(t *testing.T) {
		err := navgen.NewLoadError("Order", "all", cause)
		assert.Equal(t, "navgen: loading Order (all): connection refused", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.True(t, navgen.IsLoadError(err))
	})

	t.Run("WithoutOp", func(t *testing.T) {
		err := navgen.NewLoadError("Order", "", cause)
		assert.Equal(t, "navgen: loading Order: connection refused", err.Error())
	})

	assert.False(t, navgen.IsLoadError(cause))
	assert.False(t, navgen.IsLoadError(nil))
}
