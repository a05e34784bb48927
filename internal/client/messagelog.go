package client

import (
	"sort"
	"time"

	"tutorlink/internal/domain/entity"
)

// messageLog is the local view of one chat: server-confirmed messages ordered
// by (timestamp, id), plus provisional sends not yet echoed by the server.
// It is not safe for concurrent use.
type messageLog struct {
	confirmed   []*entity.Message
	byID        map[string]*entity.Message
	provisional []*entity.Message
}

func newMessageLog() *messageLog {
	return &messageLog{byID: make(map[string]*entity.Message)}
}

// Reset replaces the confirmed log with a history snapshot. Provisional entries are kept.
func (l *messageLog) Reset(messages []*entity.Message) {
	l.confirmed = l.confirmed[:0]
	l.byID = make(map[string]*entity.Message, len(messages))
	for _, m := range messages {
		l.upsert(m.Clone())
	}
}

func (l *messageLog) AddProvisional(m *entity.Message) {
	l.provisional = append(l.provisional, m.Clone())
}

// Confirm records an authoritative message and evicts the provisional entry it
// replaces: the one carrying tempID, or when the echo has no tempID the oldest
// provisional from self with the same text. Repeated echoes evict nothing.
func (l *messageLog) Confirm(m *entity.Message, tempID, self string) {
	_, seen := l.byID[m.ID]
	l.upsert(m.Clone())

	if seen || m.SenderID != self {
		return
	}

	idx := -1
	for i, p := range l.provisional {
		if (tempID != "" && p.ID == tempID) || (tempID == "" && p.Message == m.Message) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		l.provisional = append(l.provisional[:idx], l.provisional[idx+1:]...)
	}
}

func (l *messageLog) upsert(m *entity.Message) {
	if existing, ok := l.byID[m.ID]; ok {
		l.removeConfirmed(existing)
	}

	i := sort.Search(len(l.confirmed), func(i int) bool {
		return m.Before(l.confirmed[i])
	})
	l.confirmed = append(l.confirmed, nil)
	copy(l.confirmed[i+1:], l.confirmed[i:])
	l.confirmed[i] = m
	l.byID[m.ID] = m
}

func (l *messageLog) removeConfirmed(m *entity.Message) {
	for i, c := range l.confirmed {
		if c == m {
			l.confirmed = append(l.confirmed[:i], l.confirmed[i+1:]...)
			break
		}
	}
	delete(l.byID, m.ID)
}

// Edit replaces a confirmed message's content in place.
func (l *messageLog) Edit(id, text string, at time.Time) bool {
	m, ok := l.byID[id]
	if !ok {
		return false
	}
	m.ApplyEdit(text, at)
	return true
}

func (l *messageLog) Remove(id string) bool {
	m, ok := l.byID[id]
	if !ok {
		return false
	}
	l.removeConfirmed(m)
	return true
}

// MarkRead unions userID into readBy of the given messages and reports whether anything changed.
func (l *messageLog) MarkRead(userID string, ids []string) bool {
	changed := false
	for _, id := range ids {
		if m, ok := l.byID[id]; ok && m.AddReader(userID) {
			changed = true
		}
	}
	return changed
}

// Unread returns the ids of confirmed messages userID has not read.
func (l *messageLog) Unread(userID string) []string {
	var ids []string
	for _, m := range l.confirmed {
		if !m.IsReadBy(userID) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (l *messageLog) Get(id string) (*entity.Message, bool) {
	m, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Snapshot returns copies of the confirmed log followed by the provisional entries.
func (l *messageLog) Snapshot() []*entity.Message {
	out := make([]*entity.Message, 0, len(l.confirmed)+len(l.provisional))
	for _, m := range l.confirmed {
		out = append(out, m.Clone())
	}
	for _, m := range l.provisional {
		out = append(out, m.Clone())
	}
	return out
}
