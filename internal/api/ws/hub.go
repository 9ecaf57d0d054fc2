package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
)

const sendQueueSize = 256

// Peer is one websocket connection registered with the hub.
type Peer struct {
	ID   string
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newPeer() *Peer {
	return &Peer{
		ID:   uuid.NewString(),
		send: make(chan []byte, sendQueueSize),
	}
}

// enqueue queues msg without blocking. It reports false when the queue is
// full or the peer has been closed.
func (p *Peer) enqueue(msg []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- msg:
		return true
	default:
		return false
	}
}

// close ends the peer's send queue; the write pump then closes the socket.
func (p *Peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

// Hub maintains active peers and broadcasts messages to them.
type Hub struct {
	peers      map[*Peer]struct{}
	broadcast  chan []byte
	register   chan *Peer
	unregister chan *Peer
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHub creates a new hub. Run must be started before peers connect.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		peers:      make(map[*Peer]struct{}),
		broadcast:  make(chan []byte, sendQueueSize),
		register:   make(chan *Peer),
		unregister: make(chan *Peer),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// WithMetrics attaches a metrics collector.
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

// Run handles registration and broadcasting until ctx is done. On exit every
// peer's send queue is closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case peer := <-h.register:
			h.mu.Lock()
			h.peers[peer] = struct{}{}
			count := len(h.peers)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.IncWSConnections()
			}
			h.logger.Debug("Peer connected", zap.String("peer", peer.ID), zap.Int("peers", count))

		case peer := <-h.unregister:
			h.remove(peer, "disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Peer
			for peer := range h.peers {
				if !peer.enqueue(msg) {
					slow = append(slow, peer)
					continue
				}
				if h.metrics != nil {
					h.metrics.RecordWSMessage("out")
				}
			}
			h.mu.RUnlock()

			for _, peer := range slow {
				h.remove(peer, "send queue full")
			}
		}
	}
}

// Broadcast queues message for every connected peer. It never blocks; when
// the hub is saturated or stopped the message is dropped.
func (h *Hub) Broadcast(message string) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- []byte(message):
	default:
		h.logger.Warn("Broadcast queue full, dropping message", zap.Int("bytes", len(message)))
	}
}

// Count returns the number of connected peers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// join registers peer. It reports false if the hub has stopped.
func (h *Hub) join(peer *Peer) bool {
	select {
	case h.register <- peer:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters peer. Safe to call after the hub has stopped.
func (h *Hub) leave(peer *Peer) {
	select {
	case h.unregister <- peer:
	case <-h.done:
	}
}

func (h *Hub) remove(peer *Peer, reason string) {
	h.mu.Lock()
	_, ok := h.peers[peer]
	if ok {
		delete(h.peers, peer)
		peer.close()
	}
	count := len(h.peers)
	h.mu.Unlock()

	if !ok {
		return
	}
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	h.logger.Debug("Peer removed",
		zap.String("peer", peer.ID),
		zap.String("reason", reason),
		zap.Int("peers", count),
	)
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	for peer := range h.peers {
		delete(h.peers, peer)
		peer.close()
		if h.metrics != nil {
			h.metrics.DecWSConnections()
		}
	}
	h.mu.Unlock()
}
