// Package session implements the per-rover NTRIP state machine: request
// dispatch, nearest-station selection, upstream switching and the
// opaque correction forwarding loop.
//
// Each accepted connection gets one Engine. The engine's Run loop is the
// session's single event path: every rover buffer, including the GPGGA
// updates that trigger upstream switches, is handled there in order, so
// a switch is fully applied before the next inbound event is seen. A
// second goroutine pumps upstream bytes to the rover and funnels its
// lifecycle back through the engine's mutex.
package session

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/kroegman/neartrip/internal/config"
	"github.com/kroegman/neartrip/internal/geo"
	"github.com/kroegman/neartrip/internal/logger"
	"github.com/kroegman/neartrip/internal/nmealog"
	"github.com/kroegman/neartrip/internal/registry"
	"github.com/kroegman/neartrip/internal/upstream"
)

// drainWindow bounds how long a switch waits for the old upstream to
// deliver its remaining bytes after the write side is half-closed.
const drainWindow = 200 * time.Millisecond

// Dialer opens an upstream link. Tests substitute their own.
type Dialer func(host string, port int, mount, user, pass, userAgent string) (*upstream.Link, error)

// Engine drives one rover connection from accept to teardown.
type Engine struct {
	id    string
	conn  net.Conn
	store *config.Store
	reg   *registry.Registry
	nmea  *nmealog.Writer // may be nil
	log   logger.Logger
	dial  Dialer

	mu       sync.Mutex
	link     *upstream.Link
	pumpDone chan struct{}
}

// NewEngine creates an engine for an accepted rover connection. dial may
// be nil to use the real upstream dialer.
func NewEngine(id string, conn net.Conn, store *config.Store, reg *registry.Registry, nmea *nmealog.Writer, log logger.Logger, dial Dialer) *Engine {
	if dial == nil {
		dial = upstream.Dial
	}
	return &Engine{
		id:    id,
		conn:  conn,
		store: store,
		reg:   reg,
		nmea:  nmea,
		log:   log,
		dial:  dial,
	}
}

// Run reads rover buffers until the connection ends or the protocol
// rejects it. It blocks; callers run it on its own goroutine.
func (e *Engine) Run() {
	e.reg.Track(e.id, e.conn.RemoteAddr().String())
	e.log.Info("rover connected",
		logger.String("session", e.id),
		logger.String("remote", e.conn.RemoteAddr().String()))
	defer e.teardown()

	buf := make([]byte, 4096)
	for {
		n, err := e.conn.Read(buf)
		if n > 0 {
			e.reg.AddBytesReceived(e.id, n)
			if !e.dispatch(strings.TrimSpace(string(buf[:n]))) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch inspects the leading tokens of one trimmed rover buffer.
// NTRIP clients emit a predictable first line, so the engine string
// matches it rather than parsing full HTTP. The return value is false
// when the session must close.
func (e *Engine) dispatch(data string) bool {
	if data == "" {
		return true
	}

	mount := e.store.Get().MountPoint
	switch {
	case strings.HasPrefix(data, "$GPGGA") || strings.HasPrefix(data, "$GNGGA"):
		e.handlePosition(data)
		return true

	case data == "GET /" || strings.HasPrefix(data, "GET / "):
		e.serveSourcetable()
		return false

	case strings.HasPrefix(data, "GET /"+mount):
		if _, err := e.conn.Write([]byte("ICY 200 OK\r\n\r\n")); err != nil {
			e.log.Warn("failed to acknowledge subscription",
				logger.String("session", e.id),
				logger.Error(err))
			return false
		}
		e.log.Info("rover subscribed",
			logger.String("session", e.id),
			logger.String("mount", mount))
		return true

	default:
		e.log.Warn("unrecognized request, closing",
			logger.String("session", e.id),
			logger.String("request", firstLine(data)))
		return false
	}
}

// handlePosition parses a GGA sentence, records the fix, and rebinds the
// upstream to the nearest station when needed.
func (e *Engine) handlePosition(sentence string) {
	if e.nmea != nil {
		if err := e.nmea.Write(e.id, sentence); err != nil {
			e.log.Warn("nmea log write failed", logger.Error(err))
		}
	}

	fix, err := geo.ParseGGA(sentence)
	if err != nil {
		e.log.Warn("ignoring unparseable GGA sentence",
			logger.String("session", e.id),
			logger.Error(err))
		return
	}
	if !fix.ChecksumOK {
		// The position still flows; receivers in the field get this wrong
		// often enough that rejecting would strand them.
		e.log.Warn("GGA checksum mismatch, accepting sentence anyway",
			logger.String("session", e.id))
	}

	e.reg.UpdatePosition(e.id, registry.Position{
		Lat:        fix.Lat,
		Lon:        fix.Lon,
		Quality:    fix.Quality,
		Satellites: fix.Satellites,
	})

	cfg := e.store.Get()
	station, dist, ok := geo.ClosestStation(fix.Lat, fix.Lon, cfg.Stations)
	if !ok {
		e.log.Debug("no station qualifies for position, keeping current binding",
			logger.String("session", e.id),
			logger.Float64("lat", fix.Lat),
			logger.Float64("lon", fix.Lon))
		return
	}
	e.ensureBound(station, cfg.UserAgent, dist)
}

// ensureBound makes station the bound upstream. Re-selection of the
// current mount is a no-op; a different mount closes the old link before
// the new dial starts. Only the Run goroutine calls this, which is what
// serializes dials per session.
func (e *Engine) ensureBound(station config.Station, userAgent string, dist float64) {
	e.mu.Lock()
	current := e.link
	done := e.pumpDone
	e.mu.Unlock()

	if current != nil && current.Mount == station.MountPoint {
		return
	}
	if current != nil {
		e.log.Info("switching upstream",
			logger.String("session", e.id),
			logger.String("from", current.Mount),
			logger.String("to", station.MountPoint))
		e.unbind(current, done)
	}

	link, err := e.dial(station.Host, station.Port, station.MountPoint,
		station.Username, station.Password, userAgent)
	if err != nil {
		e.log.Error("upstream dial failed",
			logger.String("session", e.id),
			logger.String("mount", station.MountPoint),
			logger.Error(err))
		e.reg.SetMount(e.id, "")
		return
	}

	pumpDone := make(chan struct{})
	e.mu.Lock()
	e.link = link
	e.pumpDone = pumpDone
	e.mu.Unlock()

	e.reg.SetMount(e.id, link.Mount)
	e.log.Info("upstream bound",
		logger.String("session", e.id),
		logger.String("mount", link.Mount),
		logger.Float64("distance_m", dist))

	go e.pump(link, pumpDone)
}

// unbind half-closes the old link's write side, lets the pump drain
// briefly, then destroys the link. On return no upstream is bound.
func (e *Engine) unbind(link *upstream.Link, done chan struct{}) {
	link.CloseWrite()
	link.SetReadDeadline(time.Now().Add(drainWindow))
	if done != nil {
		<-done
	}
	link.Close()

	e.mu.Lock()
	if e.link == link {
		e.link = nil
		e.pumpDone = nil
	}
	e.mu.Unlock()
	e.reg.SetMount(e.id, "")
}

// pump copies upstream bytes to the rover verbatim, response header
// included, until either side fails. An upstream failure leaves the
// session alive and unbound; a rover write failure closes the rover
// socket so Run unblocks.
func (e *Engine) pump(link *upstream.Link, done chan struct{}) {
	defer close(done)

	buf := make([]byte, 4096)
	for {
		n, err := link.Read(buf)
		if n > 0 {
			if _, werr := e.conn.Write(buf[:n]); werr != nil {
				e.log.Warn("rover write failed, closing session",
					logger.String("session", e.id),
					logger.Error(werr))
				link.Close()
				e.conn.Close()
				e.clearLink(link)
				return
			}
			e.reg.AddBytesSent(e.id, n)
		}
		if err != nil {
			if e.clearLink(link) {
				// The link died under us; the next GPGGA re-dials.
				e.log.Warn("upstream closed",
					logger.String("session", e.id),
					logger.String("mount", link.Mount),
					logger.Error(err))
				link.Close()
				e.reg.SetMount(e.id, "")
			}
			return
		}
	}
}

// clearLink detaches link if it is still the bound one. It reports
// whether this call did the detach; false means a switch or teardown
// already owns the link's shutdown.
func (e *Engine) clearLink(link *upstream.Link) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.link == link {
		e.link = nil
		e.pumpDone = nil
		return true
	}
	return false
}

func (e *Engine) serveSourcetable() {
	cfg := e.store.Get()
	if _, err := e.conn.Write([]byte(Sourcetable(cfg.MountPoint, ""))); err != nil {
		e.log.Warn("failed to write sourcetable",
			logger.String("session", e.id),
			logger.Error(err))
		return
	}
	e.log.Info("served sourcetable",
		logger.String("session", e.id),
		logger.String("mount", cfg.MountPoint))
}

// teardown closes whatever is still open and records the terminal state.
func (e *Engine) teardown() {
	e.mu.Lock()
	link := e.link
	done := e.pumpDone
	e.link = nil
	e.pumpDone = nil
	e.mu.Unlock()

	if link != nil {
		link.Close()
	}
	if done != nil {
		<-done
	}
	e.conn.Close()

	e.reg.MarkClosed(e.id)

	if s, ok := e.reg.Get(e.id); ok {
		e.log.Info("rover disconnected",
			logger.String("session", e.id),
			logger.Int64("bytes_sent", s.BytesSent),
			logger.Int64("bytes_received", s.BytesReceived))
	}
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i != -1 {
		return s[:i]
	}
	return s
}
