package ring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vigil-fl/vigil/pkg/ring"
)

func TestPushBelowCapacity(t *testing.T) {
	r := ring.New[int](4)
	r.Push(1)
	r.Push(2)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []int{1, 2}, r.Slice())
}

func TestPushWrapsAndDropsOldest(t *testing.T) {
	r := ring.New[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Slice())
}

func TestTail(t *testing.T) {
	r := ring.New[int](5)
	for i := 1; i <= 7; i++ {
		r.Push(i)
	}

	assert.Equal(t, []int{6, 7}, r.Tail(2))
	assert.Equal(t, []int{3, 4, 5, 6, 7}, r.Tail(10), "tail larger than length returns everything")
}

func TestLast(t *testing.T) {
	r := ring.New[string](2)

	_, ok := r.Last()
	assert.False(t, ok)

	r.Push("a")
	r.Push("b")
	r.Push("c")

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, "c", last)
}

func TestMinimumCapacity(t *testing.T) {
	r := ring.New[int](0)
	r.Push(1)
	r.Push(2)

	assert.Equal(t, 1, r.Cap())
	assert.Equal(t, []int{2}, r.Slice())
}
