package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()
	a := NewClient(nil, 1)

	assert.Nil(t, r.Register("u1", a))
	assert.Nil(t, r.Register("u1", a), "re-registering the same handle is idempotent")
	assert.True(t, r.IsOnline("u1"))

	userID, ok := r.Unregister(a)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
	assert.False(t, r.IsOnline("u1"))

	_, ok = r.Unregister(a)
	assert.False(t, ok)
}

func TestRegistryNewHandleDisplacesOld(t *testing.T) {
	r := NewRegistry()
	first := NewClient(nil, 1)
	second := NewClient(nil, 1)

	r.Register("u1", first)
	displaced := r.Register("u1", second)
	assert.Same(t, first, displaced)

	// The displaced handle is not closed, only forgotten.
	select {
	case <-first.Done():
		t.Fatal("displaced client must stay open")
	default:
	}

	_, ok := r.Unregister(first)
	assert.False(t, ok)
	assert.True(t, r.IsOnline("u1"))

	current, ok := r.lookup("u1")
	assert.True(t, ok)
	assert.Same(t, second, current)
}

func TestRegistryHandleRebinding(t *testing.T) {
	r := NewRegistry()
	c := NewClient(nil, 1)

	r.Register("u1", c)
	r.Register("u2", c)

	assert.False(t, r.IsOnline("u1"))
	assert.True(t, r.IsOnline("u2"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryOnlineSubset(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", NewClient(nil, 1))
	r.Register("u3", NewClient(nil, 1))

	assert.Equal(t, []string{"u1", "u3"}, r.OnlineSubset([]string{"u1", "u2", "u3", "u1"}))
	assert.Empty(t, r.OnlineSubset([]string{"u4"}))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(nil, 1)
			userID := fmt.Sprintf("u%d", i)
			r.Register(userID, c)
			r.IsOnline(userID)
			if i%2 == 0 {
				r.Unregister(c)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Count())
}
