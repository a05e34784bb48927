package main

import (
	"fmt"
	"sync"

	"tutorlink/internal/domain/entity"
)

// transcript prints each message once, then again only when it is edited or deleted.
type transcript struct {
	mutex   sync.Mutex
	self    string
	printed map[string]string
}

func newTranscript(self string) *transcript {
	return &transcript{self: self, printed: make(map[string]string)}
}

func (t *transcript) render(messages []*entity.Message) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	present := make(map[string]bool, len(messages))
	for _, m := range messages {
		present[m.ID] = true
		if m.IsProvisional() {
			continue
		}

		prev, seen := t.printed[m.ID]
		switch {
		case !seen:
			fmt.Printf("\r[%s] %s: %s  (%s)\n", m.Timestamp.Local().Format("15:04:05"), t.name(m.SenderID), m.Message, m.ID)
		case prev != m.Message:
			fmt.Printf("\r[edited] %s: %s  (%s)\n", t.name(m.SenderID), m.Message, m.ID)
		default:
			continue
		}
		t.printed[m.ID] = m.Message
	}

	for id := range t.printed {
		if !present[id] {
			fmt.Printf("\r[deleted] %s\n", id)
			delete(t.printed, id)
		}
	}
}

func (t *transcript) name(userID string) string {
	if userID == t.self {
		return "me"
	}
	return userID
}
