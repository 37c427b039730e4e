package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()

	_, ok := m.Get(KindTriage, "k1")
	assert.False(t, ok)

	m.Put(KindTriage, "k1", []byte("v1"))
	val, ok := m.Get(KindTriage, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), val)

	// Same key under a different kind is a distinct entry.
	_, ok = m.Get(KindRetrieval, "k1")
	assert.False(t, ok)
}

func TestMemoryGetOrCompute(t *testing.T) {
	m := NewMemory()
	calls := 0

	load := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	val, err := m.GetOrCompute(KindLLMResponse, "k", load)
	require.NoError(t, err)
	assert.Equal(t, []byte("computed"), val)
	assert.Equal(t, 1, calls)

	val, err = m.GetOrCompute(KindLLMResponse, "k", load)
	require.NoError(t, err)
	assert.Equal(t, []byte("computed"), val)
	assert.Equal(t, 1, calls, "second call must be a pure cache hit")
}

func TestMemoryGetOrComputeErrorNotCached(t *testing.T) {
	m := NewMemory()
	calls := 0

	_, err := m.GetOrCompute(KindTriage, "k", func() ([]byte, error) {
		calls++
		return nil, errors.New("upstream down")
	})
	require.Error(t, err)

	val, err := m.GetOrCompute(KindTriage, "k", func() ([]byte, error) {
		calls++
		return []byte("recovered"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), val)
	assert.Equal(t, 2, calls)
}

func TestMemoryGetOrComputeSingleFlight(t *testing.T) {
	m := NewMemory()
	var loads atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := m.GetOrCompute(KindRetrieval, "shared", func() ([]byte, error) {
				loads.Add(1)
				return []byte("once"), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []byte("once"), val)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), loads.Load(), "concurrent misses for one key must fire one load")
}

func TestMemoryClearAndStats(t *testing.T) {
	m := NewMemory()
	m.Put(KindTriage, "a", []byte("1"))
	m.Put(KindRetrieval, "b", []byte("2"))
	m.Get(KindTriage, "a")
	m.Get(KindTriage, "missing")

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.SizePerKind[KindTriage])
	assert.Equal(t, int64(1), stats.SizePerKind[KindRetrieval])
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)

	require.NoError(t, m.Clear())
	stats = m.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Empty(t, stats.SizePerKind)
	_, ok := m.Get(KindTriage, "a")
	assert.False(t, ok)
}

func TestKeyNormalization(t *testing.T) {
	// Accents, case, and surrounding whitespace never split cache entries.
	assert.Equal(t, Key("Aplicação de Insumos "), Key("aplicacao de insumos"))
	assert.NotEqual(t, Key("aplicacao"), Key("colheita"))
	assert.Len(t, Key("x"), 64)
}
