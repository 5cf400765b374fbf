package cart

import (
	"testing"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetQuantity_Upsert(t *testing.T) {
	s := NewStore()

	s.SetQuantity("shirt-1", "L", 2)
	s.SetQuantity("shirt-1", "M", 1)
	s.SetQuantity("shirt-1", "L", 4)

	assert.Equal(t, 4, s.Quantity("shirt-1", "L"))
	assert.Equal(t, 1, s.Quantity("shirt-1", "M"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 5, s.Count())
}

func TestStore_SetQuantity_ZeroRemovesPairAndEmptyProduct(t *testing.T) {
	s := NewStore()
	s.SetQuantity("shirt-1", "L", 2)
	s.SetQuantity("shirt-1", "M", 1)

	s.SetQuantity("shirt-1", "L", 0)
	assert.Equal(t, 0, s.Quantity("shirt-1", "L"))
	assert.Contains(t, s.Export(), "shirt-1")

	s.SetQuantity("shirt-1", "M", -3)
	assert.NotContains(t, s.Export(), "shirt-1")
	assert.Empty(t, s.GetAll())
}

func TestStore_SetQuantity_RemoveMissingIsNoop(t *testing.T) {
	s := NewStore()
	s.SetQuantity("shirt-1", "L", 2)
	v := s.Version()

	s.SetQuantity("ghost", "L", 0)
	s.SetQuantity("shirt-1", "XS", 0)

	assert.Equal(t, v, s.Version())
	assert.Equal(t, 1, s.Len())
}

func TestStore_Version_ChangesOnlyWithState(t *testing.T) {
	s := NewStore()
	assert.Equal(t, uint64(0), s.Version())

	s.SetQuantity("p", "S", 1)
	assert.Equal(t, uint64(1), s.Version())

	s.SetQuantity("p", "S", 1)
	assert.Equal(t, uint64(1), s.Version())

	s.Clear()
	assert.Equal(t, uint64(2), s.Version())

	s.Clear()
	assert.Equal(t, uint64(2), s.Version())
}

func TestStore_GetAll_IsSortedCopy(t *testing.T) {
	s := NewStore()
	s.SetQuantity("b", "M", 1)
	s.SetQuantity("a", "XL", 2)
	s.SetQuantity("a", "L", 3)

	lines := s.GetAll()
	require.Equal(t, []domain.CartLine{
		{ProductID: "a", Size: "L", Quantity: 3},
		{ProductID: "a", Size: "XL", Quantity: 2},
		{ProductID: "b", Size: "M", Quantity: 1},
	}, lines)

	lines[0].Quantity = 99
	assert.Equal(t, 3, s.Quantity("a", "L"))
}

func TestStore_Export_IsDeepCopy(t *testing.T) {
	s := NewStore()
	s.SetQuantity("a", "L", 3)

	exported := s.Export()
	exported["a"]["L"] = 0
	exported["b"] = map[string]int{"M": 1}

	assert.Equal(t, 3, s.Quantity("a", "L"))
	assert.Equal(t, 1, s.Len())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.SetQuantity("a", "L", 3)
	s.SetQuantity("b", "S", 1)

	s.Clear()

	assert.Empty(t, s.GetAll())
	assert.Equal(t, 0, s.Count())
}
