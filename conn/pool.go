package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is an error that occurs when
// attempting to use a pool that is closed.
var ErrPoolClosed = errors.New("pool is closed")

// Factory creates a connection.
type Factory func(context.Context) (ConnectionCloser, error)

// NewPool creates a new connection pool. At most maxSize connections
// are checked out at any one time.
func NewPool(maxSize uint16, factory Factory) *Pool {
	return &Pool{
		factory: factory,
		permits: semaphore.NewWeighted(int64(maxSize)),
		conns:   make(chan *poolConn, maxSize),
	}
}

// Pool holds connections such that they can be checked out
// and reused.
type Pool struct {
	factory Factory
	permits *semaphore.Weighted

	connsLock sync.Mutex
	conns     chan *poolConn
	gen       uint32
}

// Clear clears the pool. This does not happen immediately,
// but rather occurs as connections are checked out and
// checked in.
func (p *Pool) Clear() {
	atomic.AddUint32(&p.gen, 1)
}

// Close closes the pool, making it unusable. It closes
// all connections held in the pool.
func (p *Pool) Close() {
	p.connsLock.Lock()
	conns := p.conns
	p.conns = nil
	p.connsLock.Unlock()

	if conns == nil {
		return
	}

	close(conns)
	for c := range conns {
		c.ConnectionCloser.Close()
	}
}

// Get gets a connection from the pool. To return the connection
// to the pool, close it.
func (p *Pool) Get(ctx context.Context) (ConnectionCloser, error) {
	if err := p.permits.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	c, err := p.get(ctx)
	if err != nil {
		p.permits.Release(1)
		return nil, err
	}
	return c, nil
}

func (p *Pool) get(ctx context.Context) (ConnectionCloser, error) {
	p.connsLock.Lock()
	conns := p.conns
	p.connsLock.Unlock()

	if conns == nil {
		return nil, ErrPoolClosed
	}

	gen := atomic.LoadUint32(&p.gen)
	for {
		select {
		case c := <-conns:
			if c == nil {
				return nil, ErrPoolClosed
			}

			if c.Expired() {
				c.ConnectionCloser.Close()
				continue
			}

			return c, nil
		default:
			c, err := p.factory(ctx)
			if err != nil {
				return nil, err
			}

			return &poolConn{c, p, gen}, nil
		}
	}
}

func (p *Pool) returnConn(c *poolConn) error {
	defer p.permits.Release(1)

	if c.Expired() {
		return c.ConnectionCloser.Close()
	}

	p.connsLock.Lock()
	defer p.connsLock.Unlock()

	if p.conns == nil {
		return c.ConnectionCloser.Close()
	}

	select {
	case p.conns <- c:
		return nil
	default:
		// pool is full
		return c.ConnectionCloser.Close()
	}
}

type poolConn struct {
	ConnectionCloser
	p   *Pool
	gen uint32
}

func (c *poolConn) Close() error {
	return c.p.returnConn(c)
}

func (c *poolConn) Expired() bool {
	if c.ConnectionCloser.Expired() {
		return true
	}
	return c.gen < atomic.LoadUint32(&c.p.gen)
}
