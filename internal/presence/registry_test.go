package presence

import (
	"fmt"
	"sync"
	"testing"

	"jyotish-chat/internal/domain/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLookupDeregister(t *testing.T) {
	r := NewRegistry()

	r.Register("U1", chat.RoleUser, "conn-1")
	handle, ok := r.Lookup("U1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", handle)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, Status{UserID: "U1", Status: StatusOnline}, snap[0])

	r.Deregister("U1")
	_, ok = r.Lookup("U1")
	assert.False(t, ok)
	assert.Empty(t, r.Snapshot())
}

func TestReconnectOverwrites(t *testing.T) {
	r := NewRegistry()

	_, replaced := r.Register("U1", chat.RoleUser, "conn-1")
	assert.False(t, replaced)

	previous, replaced := r.Register("U1", chat.RoleUser, "conn-2")
	assert.True(t, replaced)
	assert.Equal(t, "conn-1", previous)

	handle, _ := r.Lookup("U1")
	assert.Equal(t, "conn-2", handle)
	assert.Len(t, r.Snapshot(), 1, "identity appears exactly once")
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("U%02d", i)
			r.Register(id, chat.RoleUser, "conn-"+id)
			if i%2 == 0 {
				r.Deregister(id)
			}
		}(i)
	}
	wg.Wait()

	snap := r.Snapshot()
	assert.Len(t, snap, 25)
	assert.Equal(t, 25, r.Count())
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].UserID, snap[i].UserID)
	}
}
