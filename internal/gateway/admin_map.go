package gateway

import "sync"

// AdminMap indexes live feed connections by admin id, oldest connection first
type AdminMap struct {
	mu          sync.RWMutex
	admins      map[int64][]*Client
	maxPerAdmin int
}

// NewAdminMap creates an AdminMap; maxPerAdmin <= 0 means no cap
func NewAdminMap(maxPerAdmin int) *AdminMap {
	return &AdminMap{admins: make(map[int64][]*Client), maxPerAdmin: maxPerAdmin}
}

// Register adds client and returns the oldest connections of the same admin beyond the cap.
// They are already removed; the caller evicts them.
func (m *AdminMap) Register(client *Client) []*Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients := append(m.admins[client.AdminId], client)
	var evicted []*Client
	if m.maxPerAdmin > 0 && len(clients) > m.maxPerAdmin {
		n := len(clients) - m.maxPerAdmin
		evicted = append(evicted, clients[:n]...)
		clients = append([]*Client(nil), clients[n:]...)
	}
	m.admins[client.AdminId] = clients
	return evicted
}

// Unregister removes client. Reports whether its admin went offline.
func (m *AdminMap) Unregister(client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.admins[client.AdminId]
	if !ok {
		return false
	}

	kept := make([]*Client, 0, len(clients))
	for _, c := range clients {
		if c != client {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(m.admins, client.AdminId)
		return true
	}
	m.admins[client.AdminId] = kept
	return false
}

// Get returns a copy of the connections of one admin
func (m *AdminMap) Get(adminId int64) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients, ok := m.admins[adminId]
	if !ok {
		return nil
	}
	return append([]*Client(nil), clients...)
}

// All returns every connection
func (m *AdminMap) All() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Client
	for _, clients := range m.admins {
		all = append(all, clients...)
	}
	return all
}

// OnlineAdminCount returns the number of admins with at least one connection
func (m *AdminMap) OnlineAdminCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.admins)
}
