package session

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/kroegman/neartrip/internal/config"
	"github.com/kroegman/neartrip/internal/logger"
	"github.com/kroegman/neartrip/internal/nmealog"
	"github.com/kroegman/neartrip/internal/registry"
)

// Listener accepts rover connections on the configured NTRIP port and
// runs one Engine per connection.
type Listener struct {
	store *config.Store
	reg   *registry.Registry
	nmea  *nmealog.Writer
	log   logger.Logger
	dial  Dialer

	ln net.Listener
	wg sync.WaitGroup

	mu     sync.Mutex
	conns  map[string]net.Conn
	closed bool
}

// NewListener creates a listener; dial may be nil for the real dialer.
func NewListener(store *config.Store, reg *registry.Registry, nmea *nmealog.Writer, log logger.Logger, dial Dialer) *Listener {
	return &Listener{
		store: store,
		reg:   reg,
		nmea:  nmea,
		log:   log,
		dial:  dial,
		conns: make(map[string]net.Conn),
	}
}

// Listen binds the downstream interface and port from the current
// configuration snapshot.
func (l *Listener) Listen() error {
	cfg := l.store.Get()
	addr := net.JoinHostPort(cfg.Interface, fmt.Sprintf("%d", cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	l.ln = ln
	l.log.Info("ntrip listener started",
		logger.String("addr", addr),
		logger.String("mount", cfg.MountPoint))
	return nil
}

// Addr returns the bound address; valid after Listen.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until Close. Accept failures other than
// shutdown are returned and treated as fatal by the caller.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		id := uuid.New().String()

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			conn.Close()
			return nil
		}
		l.conns[id] = conn
		l.mu.Unlock()

		engine := NewEngine(id, conn, l.store, l.reg, l.nmea, l.log, l.dial)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			engine.Run()
			l.mu.Lock()
			delete(l.conns, id)
			l.mu.Unlock()
		}()
	}
}

// Close stops accepting, closes every live rover socket and waits for
// the session engines to finish their teardown.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for _, conn := range l.conns {
		conn.Close()
	}
	l.mu.Unlock()

	if l.ln != nil {
		l.ln.Close()
	}
	l.wg.Wait()
	l.log.Info("ntrip listener stopped")
}
