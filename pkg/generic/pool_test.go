package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResetsOnPut(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

	buf := p.Get()
	buf.WriteString("stale")
	p.Put(buf)

	assert.Zero(t, buf.Len())
}

func TestPoolWith(t *testing.T) {
	p := NewPool(func() []int { return make([]int, 0, 4) }, nil)
	var seen int
	require.NoError(t, p.With(func(s []int) error {
		seen = cap(s)
		return nil
	}))
	assert.Equal(t, 4, seen)
}
