// Package upstream opens NTRIP client sessions to remote casters. The
// caster's response is never parsed here; everything it sends, response
// header included, belongs to the owning rover session.
package upstream

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DialTimeout bounds the TCP connect to an upstream caster.
const DialTimeout = 10 * time.Second

var (
	// ErrConfig marks a dial that never reached the network because the
	// station record is incomplete.
	ErrConfig = errors.New("upstream: incomplete station configuration")
	// ErrTimeout marks a connect that exceeded DialTimeout.
	ErrTimeout = errors.New("upstream: connect timeout")
	// ErrTransport marks refused, reset or unresolvable connections.
	ErrTransport = errors.New("upstream: transport failure")
)

// Link is a live TCP session to a caster, tagged with the mount point it
// serves. A Link is owned by exactly one rover session.
type Link struct {
	Mount string
	conn  net.Conn
}

// NewLink wraps an established connection as a Link for mount. Used by
// the session engine's tests to substitute dialed upstreams.
func NewLink(mount string, conn net.Conn) *Link {
	return &Link{Mount: mount, conn: conn}
}

// Dial connects to host:port with a 10 second timeout and issues the
// NTRIP GET for mount. Credentials are always sent as a basic auth
// header; userAgent falls back to "NTRIP Client/1.0" when empty.
func Dial(host string, port int, mount, user, pass, userAgent string) (*Link, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: host", ErrConfig)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d", ErrConfig, port)
	}
	if mount == "" {
		return nil, fmt.Errorf("%w: mount point", ErrConfig)
	}
	if userAgent == "" {
		userAgent = "NTRIP Client/1.0"
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, addr, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, addr, err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))

	var req strings.Builder
	fmt.Fprintf(&req, "GET /%s HTTP/1.1\r\n", mount)
	fmt.Fprintf(&req, "Host: %s:%d\r\n", host, port)
	req.WriteString("Ntrip-Version: Ntrip/2.0\r\n")
	fmt.Fprintf(&req, "User-Agent: %s\r\n", userAgent)
	req.WriteString("Connection: keep-alive\r\n")
	fmt.Fprintf(&req, "Authorization: Basic %s\r\n", auth)
	req.WriteString("\r\n")

	if _, err := conn.Write([]byte(req.String())); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: write request: %v", ErrTransport, err)
	}

	return &Link{Mount: mount, conn: conn}, nil
}

// Read reads correction bytes (and, first, the caster's verbatim
// response header) from the upstream connection.
func (l *Link) Read(p []byte) (int, error) {
	return l.conn.Read(p)
}

// CloseWrite half-closes the sending side when the transport supports
// it, signalling the caster that no more requests follow.
func (l *Link) CloseWrite() error {
	if tcp, ok := l.conn.(*net.TCPConn); ok {
		return tcp.CloseWrite()
	}
	return nil
}

// SetReadDeadline bounds the drain of remaining bytes during a switch.
func (l *Link) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

// Close tears the upstream connection down.
func (l *Link) Close() error {
	return l.conn.Close()
}
