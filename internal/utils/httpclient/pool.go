package httpclient

import (
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pool hands out HTTP clients for outbound primary-source calls
type Pool struct {
	clients chan *http.Client
	factory func() *http.Client
	mu      sync.RWMutex
	closed  bool
}

// NewPool creates a pool of maxClients clients, each with the given request timeout
func NewPool(maxClients int, timeout time.Duration) *Pool {
	if maxClients <= 0 {
		maxClients = 1
	}
	pool := &Pool{
		clients: make(chan *http.Client, maxClients),
		factory: func() *http.Client { return newClient(timeout) },
	}
	for i := 0; i < maxClients; i++ {
		pool.clients <- pool.factory()
	}
	return pool
}

// newClient builds a traced client with keep-alive connection reuse
func newClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

// Get retrieves a client from the pool, creating one when the pool is empty or closed
func (p *Pool) Get() *http.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return p.factory()
	}
	select {
	case client := <-p.clients:
		return client
	default:
		return p.factory()
	}
}

// Put returns a client to the pool
func (p *Pool) Put(client *http.Client) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || client == nil {
		return
	}
	select {
	case p.clients <- client:
	default:
	}
}

// Close stops pooling; later Get calls build fresh clients
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.clients)
}
