package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiokit/internal/errors"
)

func TestAcquireBuildsWhenEmpty(t *testing.T) {
	p, err := NewFloat32(8, 4)
	require.NoError(t, err)

	h := p.Acquire()
	assert.Len(t, h.Value(), 8)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Gets)
	assert.Equal(t, uint64(1), stats.News)
	assert.Equal(t, uint64(0), stats.Hits())
}

func TestReleaseResetsAndReuses(t *testing.T) {
	p, err := NewFloat32(4, 4)
	require.NoError(t, err)

	h := p.Acquire()
	buf := h.Value()
	buf[0] = 0.5
	h.Release()

	require.Equal(t, 1, p.Size())

	h2 := p.Acquire()
	again := h2.Value()
	assert.Equal(t, []float32{0, 0, 0, 0}, again, "released buffer is reset before reuse")
	assert.Equal(t, uint64(1), p.Stats().Hits())
	h2.Release()
}

func TestFreeListNeverGrowsPastCeiling(t *testing.T) {
	const ceiling = 3
	p, err := New(func() []byte { return make([]byte, 16) }, nil, ceiling)
	require.NoError(t, err)

	items := make([][]byte, 0, ceiling*3)
	for range ceiling * 3 {
		items = append(items, p.Get())
	}
	for _, it := range items {
		p.Put(it)
		assert.LessOrEqual(t, p.Size(), ceiling)
	}

	assert.Equal(t, ceiling, p.Size())
	assert.Equal(t, uint64(ceiling*2), p.Stats().Discarded)
}

func TestHandleGuardsAfterRelease(t *testing.T) {
	p, err := NewFloat32(2, 2)
	require.NoError(t, err)

	h := p.Acquire()
	h.Release()
	h.Release() // second release is a no-op

	assert.Equal(t, 1, p.Size())
	assert.Panics(t, func() { _ = h.Value() })
}

func TestClear(t *testing.T) {
	p, err := NewFloat32(2, 2)
	require.NoError(t, err)
	p.Put(p.Get())
	require.Equal(t, 1, p.Size())

	p.Clear()
	assert.Equal(t, 0, p.Size())
}

func TestConcurrentAcquireRelease(t *testing.T) {
	p, err := NewFloat32(64, 8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			for range 100 {
				h := p.Acquire()
				h.Value()[0] = 1
				h.Release()
			}
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, p.Size(), 8)
	assert.Equal(t, uint64(1600), p.Stats().Gets)
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewFloat32(0, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = New[int](nil, nil, 1)
	require.Error(t, err)

	_, err = New(func() int { return 0 }, nil, -1)
	require.Error(t, err)

	p, err := New(func() int { return 0 }, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSize, p.MaxSize())
}
