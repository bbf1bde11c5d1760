package receiver

import (
	"net"
	"sync"

	"example.com/lsl-timesync/core/config"
)

// Connection is the part of an inlet connection the time receiver depends
// on. Lost must return the same channel on every call; it is closed once the
// connection is lost for good.
type Connection interface {
	TimeEndpoint() *net.UDPAddr
	Lost() <-chan struct{}
	Config() config.Config
}

func IsLost(c Connection) bool {
	select {
	case <-c.Lost():
		return true
	default:
		return false
	}
}

// StaticConnection is a Connection to a fixed time endpoint.
type StaticConnection struct {
	addr *net.UDPAddr
	cfg  config.Config
	lost chan struct{}
	once sync.Once
}

var _ Connection = (*StaticConnection)(nil)

func NewStaticConnection(addr *net.UDPAddr, cfg config.Config) *StaticConnection {
	return &StaticConnection{
		addr: addr,
		cfg:  cfg,
		lost: make(chan struct{}),
	}
}

func (c *StaticConnection) TimeEndpoint() *net.UDPAddr { return c.addr }

func (c *StaticConnection) Lost() <-chan struct{} { return c.lost }

func (c *StaticConnection) Config() config.Config { return c.cfg }

// MarkLost marks the connection as lost. Calling it more than once has no
// further effect.
func (c *StaticConnection) MarkLost() {
	c.once.Do(func() { close(c.lost) })
}
