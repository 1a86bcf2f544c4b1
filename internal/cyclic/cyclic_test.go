package cyclic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetWrapsBothDirections(t *testing.T) {
	seq := New("a", "b", "c")
	got := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		got = append(got, seq.Get(i))
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a"}, got)
	assert.Equal(t, "c", seq.Get(-1))
	assert.Equal(t, "a", seq.Get(-3))
}

func TestItemsIsACopy(t *testing.T) {
	source := []int{1, 2}
	seq := New(source...)
	source[0] = 9
	items := seq.Items()
	items[1] = 9
	assert.Equal(t, []int{1, 2}, seq.Items())
}

func TestGetPanicsWhenEmpty(t *testing.T) {
	assert.Panics(t, func() { New[int]().Get(0) })
}
