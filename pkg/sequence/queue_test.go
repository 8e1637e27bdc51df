package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityQueueOrder(t *testing.T) {
	pq := NewPriorityQueue(func(a, b int) bool { return a < b })
	for _, v := range []int{5, 1, 4, 2, 3} {
		pq.Enqueue(v)
	}

	top, ok := pq.Peek()
	assert.True(t, ok)
	assert.Equal(t, 1, top)

	var got []int
	for !pq.IsEmpty() {
		v, _ := pq.Dequeue()
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)

	_, ok = pq.Dequeue()
	assert.False(t, ok)
}

func TestPriorityQueueRemove(t *testing.T) {
	pq := NewPriorityQueue(func(a, b string) bool { return a < b })
	a := pq.Enqueue("a")
	b := pq.Enqueue("b")
	pq.Enqueue("c")

	assert.True(t, pq.Remove(b))
	assert.False(t, b.Queued())
	assert.False(t, pq.Remove(b))
	assert.Equal(t, 2, pq.Len())

	v, _ := pq.Dequeue()
	assert.Equal(t, "a", v)
	assert.False(t, pq.Remove(a))

	v, _ = pq.Dequeue()
	assert.Equal(t, "c", v)
}
