package solana

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEndpointPool_Empty(t *testing.T) {
	pool, err := NewEndpointPool(nil)
	require.Error(t, err)
	assert.Nil(t, pool)
}

func TestEndpointPool_Rotate(t *testing.T) {
	pool, err := NewEndpointPool([]string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, "a", pool.Current())
	assert.Equal(t, "b", pool.Rotate())
	assert.Equal(t, "b", pool.Current())
	assert.Equal(t, "c", pool.Rotate())

	// Rotation wraps around
	assert.Equal(t, "a", pool.Rotate())
	assert.Equal(t, "a", pool.Current())
	assert.Equal(t, 3, pool.Size())
}

func TestEndpointPool_SingleEndpoint(t *testing.T) {
	pool, err := NewEndpointPool([]string{"only"})
	require.NoError(t, err)

	assert.Equal(t, "only", pool.Current())
	assert.Equal(t, "only", pool.Rotate())
	assert.Equal(t, "only", pool.Rotate())
}

func TestEndpointPool_CopiesInput(t *testing.T) {
	endpoints := []string{"a", "b"}
	pool, err := NewEndpointPool(endpoints)
	require.NoError(t, err)

	endpoints[0] = "mutated"
	assert.Equal(t, "a", pool.Current())
	assert.Equal(t, []string{"a", "b"}, pool.Endpoints())
}

func TestEndpointPool_ConcurrentRotation(t *testing.T) {
	pool, err := NewEndpointPool([]string{"a", "b", "c"})
	require.NoError(t, err)

	// Rotations from many goroutines must always land on a pool member.
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				got := pool.Rotate()
				assert.Contains(t, []string{"a", "b", "c"}, got)
			}
		}()
	}
	wg.Wait()
}
