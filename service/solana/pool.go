package solana

import (
	"fmt"
	"sync"
)

// EndpointPool holds an ordered set of equivalent RPC endpoints and a cursor.
// Rotation is the only mutation and is serialized by the pool's mutex, so
// concurrent retry attempts within a batch never race on the cursor.
type EndpointPool struct {
	mu        sync.Mutex
	endpoints []string
	cursor    int
}

// NewEndpointPool creates a pool from an ordered, non-empty endpoint list.
func NewEndpointPool(endpoints []string) (*EndpointPool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("endpoint pool requires at least one endpoint")
	}
	eps := make([]string, len(endpoints))
	copy(eps, endpoints)
	return &EndpointPool{endpoints: eps}, nil
}

// Current returns the active endpoint.
func (p *EndpointPool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.cursor]
}

// Rotate advances the cursor circularly and returns the new active endpoint.
func (p *EndpointPool) Rotate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = (p.cursor + 1) % len(p.endpoints)
	return p.endpoints[p.cursor]
}

// Size returns the number of endpoints in the pool.
func (p *EndpointPool) Size() int {
	return len(p.endpoints)
}

// Endpoints returns a copy of the configured endpoint list.
func (p *EndpointPool) Endpoints() []string {
	out := make([]string, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}
