// ABOUTME: Tests for the activity dedupe cache
// ABOUTME: Covers atomicity, TTL expiry, size bounds, and key derivation

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hiredesk/gateway/internal/activity"
)

func TestSeen_FirstDeliveryPassesSecondDrops(t *testing.T) {
	c := New(5*time.Minute, 100)
	defer c.Close()

	assert.False(t, c.Seen("act-1"))
	assert.True(t, c.Seen("act-1"))
	assert.False(t, c.Seen("act-2"))
}

func TestSeen_ExpiredKeyPassesAgain(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	assert.False(t, c.Seen("act-1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Seen("act-1"))
}

func TestSeen_EvictsOldestAtCapacity(t *testing.T) {
	c := New(5*time.Minute, 3)
	defer c.Close()

	for i := 0; i < 4; i++ {
		c.Seen(fmt.Sprintf("act-%d", i))
	}

	// act-0 was evicted to make room for act-3
	assert.False(t, c.Seen("act-0"))
	assert.True(t, c.Seen("act-3"))
}

func TestSeen_Concurrent(t *testing.T) {
	c := New(5*time.Minute, 1000)
	defer c.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	passed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen("same-key") {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly one delivery of the same activity gets through
	assert.Equal(t, 1, passed)
}

func TestKey_IncludesChannelAndConversation(t *testing.T) {
	a := &activity.Activity{ID: "1", ChannelID: activity.ChannelTeams, Conversation: activity.ConversationAccount{ID: "c1"}}
	b := &activity.Activity{ID: "1", ChannelID: activity.ChannelSMS, Conversation: activity.ConversationAccount{ID: "c1"}}

	assert.NotEqual(t, Key(a), Key(b))
}
