package submission

import (
	"sort"
	"sync"
	"time"

	"github.com/mymmrac/telego"
)

const (
	// albumProcessDelay is how long the collector waits after the first
	// message of an album before handing the group off. Telegram delivers
	// album parts as separate updates within a short window.
	albumProcessDelay = 2 * time.Second
	// maxAlbumSize caps stored messages per album; Telegram albums hold at
	// most ten items.
	maxAlbumSize = 10
)

// albumProcessFunc receives a complete album, ordered by message id.
type albumProcessFunc func(groupID string, messages []telego.Message)

type albumState struct {
	mu       sync.Mutex
	messages []telego.Message
	timer    *time.Timer
}

// albumCollector buffers the parts of a Telegram media group until the
// whole album has arrived, then delivers it in one call.
type albumCollector struct {
	groups sync.Map // media group id -> *albumState
}

func newAlbumCollector() *albumCollector {
	return &albumCollector{}
}

// Add stores one album message, deduplicated by message id. The first
// message of a group arms a timer; when it fires, the collected messages
// are removed and passed to process.
func (c *albumCollector) Add(message telego.Message, delay time.Duration, maxSize int, process albumProcessFunc) {
	groupID := message.MediaGroupID
	if groupID == "" {
		return
	}

	val, _ := c.groups.LoadOrStore(groupID, &albumState{
		messages: make([]telego.Message, 0, maxSize),
	})
	state := val.(*albumState)

	state.mu.Lock()
	defer state.mu.Unlock()

	for _, stored := range state.messages {
		if stored.MessageID == message.MessageID {
			return
		}
	}
	if len(state.messages) < maxSize {
		state.messages = append(state.messages, message)
		sort.Slice(state.messages, func(i, j int) bool {
			return state.messages[i].MessageID < state.messages[j].MessageID
		})
	}

	if state.timer == nil {
		state.timer = time.AfterFunc(delay, func() {
			messages := c.take(groupID)
			if len(messages) > 0 {
				process(groupID, messages)
			}
		})
	}
}

// take removes and returns the album's collected messages.
func (c *albumCollector) take(groupID string) []telego.Message {
	val, ok := c.groups.LoadAndDelete(groupID)
	if !ok {
		return nil
	}
	state := val.(*albumState)

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.messages
}
