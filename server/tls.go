package server

import (
	"bufio"
	"crypto/tls"
	"net"
)

// detectingListener peeks the first byte of each accepted connection to
// tell a TLS client hello (0x16) from plaintext HTTP, so one listener can
// serve both when tlsOnly is false — the same demultiplex-before-dispatch
// idea as peeking a connection's first bytes to decide which session type
// to hand it to.
type detectingListener struct {
	net.Listener
	tlsConfig *tls.Config
	tlsOnly   bool
}

// newDetectingListener wraps ln so Accept returns a TLS-terminated
// connection for TLS clients and a plain connection for everyone else.
// When tlsOnly is true, plaintext connections are closed immediately.
func newDetectingListener(ln net.Listener, tlsConfig *tls.Config, tlsOnly bool) net.Listener {
	return &detectingListener{Listener: ln, tlsConfig: tlsConfig, tlsOnly: tlsOnly}
}

// NewTLSListener wraps ln for the agent's bootstrap command: a nil
// tlsConfig means no TLS is configured, so every connection is served
// plaintext regardless of tlsOnly (tlsOnly without a certificate is a
// configuration error the config package already rejects).
func NewTLSListener(ln net.Listener, tlsConfig *tls.Config, tlsOnly bool) net.Listener {
	if tlsConfig == nil {
		return ln
	}
	return newDetectingListener(ln, tlsConfig, tlsOnly)
}

func (l *detectingListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		br := bufio.NewReader(conn)
		first, err := br.Peek(1)
		if err != nil {
			conn.Close()
			continue
		}
		wrapped := &peekedConn{Conn: conn, r: br}
		if first[0] == 0x16 && l.tlsConfig != nil {
			return tls.Server(wrapped, l.tlsConfig), nil
		}
		if l.tlsOnly {
			conn.Close()
			continue
		}
		return wrapped, nil
	}
}

// peekedConn replays the bytes already consumed by bufio.Reader.Peek
// before handing subsequent reads back to the raw connection.
type peekedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *peekedConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}
