package websocket

import "sync"

// Registry maps authenticated users to their live connection and back.
// One handle per user: registering a new handle displaces the old mapping
// without closing the old connection.
type Registry struct {
	mutex    sync.RWMutex
	byUser   map[string]*Client
	byClient map[*Client]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]*Client),
		byClient: make(map[*Client]string),
	}
}

// Register binds userID to client, returning the handle it displaced, if any.
func (r *Registry) Register(userID string, client *Client) *Client {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if prevUser, ok := r.byClient[client]; ok && prevUser != userID {
		if r.byUser[prevUser] == client {
			delete(r.byUser, prevUser)
		}
	}

	displaced := r.byUser[userID]
	if displaced == client {
		displaced = nil
	}
	if displaced != nil {
		delete(r.byClient, displaced)
	}

	r.byUser[userID] = client
	r.byClient[client] = userID
	return displaced
}

// Unregister removes client's mapping. It is a no-op for unknown or displaced handles.
func (r *Registry) Unregister(client *Client) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	userID, ok := r.byClient[client]
	if !ok {
		return "", false
	}
	delete(r.byClient, client)
	if r.byUser[userID] == client {
		delete(r.byUser, userID)
	}
	return userID, true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// OnlineSubset returns the ids in userIDs that are online, in input order, without duplicates.
func (r *Registry) OnlineSubset(userIDs []string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	online := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := r.byUser[id]; ok {
			online = append(online, id)
		}
	}
	return online
}

func (r *Registry) lookup(userID string) (*Client, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	client, ok := r.byUser[userID]
	return client, ok
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.byUser)
}
