package deletion

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushRunsInReverseOrder(t *testing.T) {
	var (
		q   Queue
		got []string
	)

	for _, name := range []string{"a", "b", "c"} {
		q.Add(func() { got = append(got, name) })
	}
	require.Equal(t, 3, q.Len())

	q.Flush()

	assert.Equal(t, []string{"c", "b", "a"}, got)
	assert.Zero(t, q.Len())
}

func TestFlushOrderForManyActions(t *testing.T) {
	for _, n := range []int{0, 1, 2, 17, 256} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var (
				q   Queue
				got []int
			)
			for i := 0; i < n; i++ {
				q.Add(func() { got = append(got, i) })
			}

			q.Flush()

			require.Len(t, got, n)
			for i, v := range got {
				assert.Equal(t, n-1-i, v)
			}
		})
	}
}

func TestFlushClearsQueue(t *testing.T) {
	var (
		q     Queue
		calls int
	)
	q.Add(func() { calls++ })

	q.Flush()
	q.Flush()

	assert.Equal(t, 1, calls)
}

func TestAddIgnoresNil(t *testing.T) {
	var q Queue
	q.Add(nil)
	assert.Zero(t, q.Len())
	assert.NotPanics(t, q.Flush)
}

func TestActionsAddedDuringFlushRun(t *testing.T) {
	var (
		q   Queue
		got []string
	)
	q.Add(func() { got = append(got, "first") })
	q.Add(func() {
		got = append(got, "second")
		q.Add(func() { got = append(got, "nested") })
	})

	q.Flush()

	assert.Equal(t, []string{"second", "nested", "first"}, got)
	assert.Zero(t, q.Len())
}

func TestTake(t *testing.T) {
	var (
		q   Queue
		got []int
	)
	q.Add(func() { got = append(got, 1) })
	q.Add(func() { got = append(got, 2) })

	taken := q.Take()
	q.Flush()
	assert.Empty(t, got)

	taken.Flush()
	assert.Equal(t, []int{2, 1}, got)
}
