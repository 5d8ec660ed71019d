package smtp

import (
	"net"
	"sync"
)

// limitListener holds at most cap(sem) accepted connections open at once.
// Accept blocks once the cap is reached until a connection is closed.
type limitListener struct {
	net.Listener
	sem chan struct{}
}

func newLimitListener(base net.Listener, maxConns int) net.Listener {
	if maxConns <= 0 {
		return base
	}
	return &limitListener{Listener: base, sem: make(chan struct{}, maxConns)}
}

func (l *limitListener) Accept() (net.Conn, error) {
	l.sem <- struct{}{}
	c, err := l.Listener.Accept()
	if err != nil {
		<-l.sem
		return nil, err
	}
	return &limitConn{Conn: c, release: func() { <-l.sem }}, nil
}

type limitConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *limitConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}
