package control

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultQueryTimeout     = 10 * time.Second
)

// Config holds the parameters for opening a control connection.
type Config struct {
	// Rand is the source of cryptographic randomness: the ephemeral key pair,
	// the handshake salts and query ids. If nil, Reader from crypto/rand is
	// used.
	Rand io.Reader

	// ServerKey is the node's long-term control public key, the identity this
	// connection authenticates. Required.
	ServerKey PublicKey

	// HandshakeTimeout bounds the whole handshake, connect excluded. Zero
	// means 10 seconds.
	HandshakeTimeout time.Duration

	// QueryTimeout applies to Call when its context carries no deadline. Zero
	// means 10 seconds.
	QueryTimeout time.Duration

	// Logger, for discarded stale answers and connection teardown. If nil,
	// nothing is logged.
	Logger *zerolog.Logger
}

func (cfg *Config) random() io.Reader {
	if cfg.Rand != nil {
		return cfg.Rand
	}
	return rand.Reader
}

func (cfg *Config) handshakeTimeout() time.Duration {
	if cfg.HandshakeTimeout > 0 {
		return cfg.HandshakeTimeout
	}
	return defaultHandshakeTimeout
}

func (cfg *Config) queryTimeout() time.Duration {
	if cfg.QueryTimeout > 0 {
		return cfg.QueryTimeout
	}
	return defaultQueryTimeout
}

func (cfg *Config) logger() zerolog.Logger {
	if cfg.Logger != nil {
		return *cfg.Logger
	}
	return zerolog.Nop()
}

// pendingQuery is the single-resolution slot for one outstanding query. The
// resolve channel has capacity one; whoever removes the entry from the
// outstanding table owns the resolution, so an answer is delivered at most
// once and never to the wrong caller.
type pendingQuery struct {
	sent    time.Time
	resolve chan []byte
}

// Conn is an established client control connection. It is safe for
// concurrent use: any number of goroutines may issue Call on one Conn, while
// a single background goroutine reads frames and routes answers by query id.
type Conn struct {
	raw net.Conn
	cfg *Config
	log zerolog.Logger

	writer struct {
		sync.Mutex
		ch *channel
	}

	// reader is used by readLoop only; separate from the writer because the
	// two directions have independent cipher counters.
	reader *channel

	mu       sync.Mutex
	pending  map[QueryID]*pendingQuery
	closed   bool
	cause    error
	closedCh chan struct{}
}

// Dial connects to a node's control endpoint and performs the handshake.
func Dial(ctx context.Context, address string, cfg *Config) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	c, err := Client(raw, cfg)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return c, nil
}

// Client performs the handshake over an existing connection and returns an
// established Conn. On failure the existing connection is not closed.
func Client(conn net.Conn, cfg *Config) (*Conn, error) {
	if cfg == nil || len(cfg.ServerKey) != keySize {
		return nil, prefixError(ErrBadKey, "config must carry a 32-byte server public key")
	}

	var sess *session
	err := withDeadline(conn, cfg.handshakeTimeout(), func() error {
		var err error
		sess, err = clientHandshake(conn, cfg.ServerKey, cfg.random())
		return err
	})
	if err != nil {
		if !xerrors.Is(err, ErrHandshakeFailed) {
			err = &wrapErr{ErrHandshakeFailed, err}
		}
		return nil, err
	}

	c := &Conn{
		raw:      conn,
		cfg:      cfg,
		log:      cfg.logger(),
		reader:   &channel{conn: conn, sess: sess},
		pending:  make(map[QueryID]*pendingQuery),
		closedCh: make(chan struct{}),
	}
	c.writer.ch = c.reader
	go c.readLoop()
	return c, nil
}

// Call sends an opaque request payload and suspends the caller until the
// matching answer arrives, the deadline passes, or the connection dies. The
// context deadline is the per-query timeout; without one, the configured
// default applies. A timeout fails only this query; the connection and its
// sibling queries are unaffected.
func (c *Conn) Call(ctx context.Context, payload []byte) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.queryTimeout())
		defer cancel()
	}

	id, pq, err := c.register()
	if err != nil {
		return nil, err
	}

	err = c.writePacket(&Query{ID: id, Payload: payload})
	if err != nil {
		c.unregister(id)
		// A write error means the stream or the outbound counter is in an
		// unknown state. That is fatal for everyone, not just this query.
		c.teardown(err)
		return nil, c.closeErr()
	}

	select {
	case answer := <-pq.resolve:
		return answer, nil
	case <-c.closedCh:
		// The answer may have been delivered just before the teardown.
		select {
		case answer := <-pq.resolve:
			return answer, nil
		default:
		}
		return nil, c.closeErr()
	case <-ctx.Done():
		if c.unregister(id) {
			if ctx.Err() == context.Canceled {
				return nil, ctx.Err()
			}
			return nil, prefixError(ErrQueryTimeout, "no answer after %s", time.Since(pq.sent).Round(time.Millisecond))
		}
		// Lost the race: the query was resolved while the timer fired. The
		// resolution, answer or teardown, is already in place.
		select {
		case answer := <-pq.resolve:
			return answer, nil
		default:
		}
		return nil, c.closeErr()
	}
}

// register picks a query id unused among the outstanding queries and enters a
// pending slot for it. Collisions are vanishingly rare with 32 random bytes,
// but the contract holds regardless: an id is regenerated rather than letting
// an answer resolve the wrong query.
func (c *Conn) register() (QueryID, *pendingQuery, error) {
	pq := &pendingQuery{
		sent:    time.Now(),
		resolve: make(chan []byte, 1),
	}

	var id QueryID
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return id, nil, c.closeErrLocked()
	}
	for {
		if _, err := io.ReadFull(c.cfg.random(), id[:]); err != nil {
			return id, nil, xerrors.Errorf("generating query id: %w", err)
		}
		if _, taken := c.pending[id]; !taken {
			break
		}
	}
	c.pending[id] = pq
	return id, pq, nil
}

// unregister removes a pending query, reporting whether the caller won the
// resolution (true) or the query was already resolved by the reader or by
// teardown (false).
func (c *Conn) unregister(id QueryID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

func (c *Conn) writePacket(p Packet) error {
	c.writer.Lock()
	defer c.writer.Unlock()
	return c.writer.ch.writePacket(p)
}

// readLoop is the only reader of the secure channel. It dispatches each
// answer to the pending query with the matching id and discards answers that
// match nothing outstanding, which tolerates a late answer to a query that
// already timed out.
func (c *Conn) readLoop() {
	for {
		p, err := c.reader.readPacket()
		if err != nil {
			c.teardown(err)
			return
		}
		switch p := p.(type) {
		case *Answer:
			c.dispatch(p)
		default:
			// Only answers flow node-to-client inside a session.
			c.teardown(prefixError(ErrMalformedPacket, "peer sent %T inside an established session", p))
			return
		}
	}
}

func (c *Conn) dispatch(p *Answer) {
	c.mu.Lock()
	pq := c.pending[p.ID]
	if pq != nil {
		delete(c.pending, p.ID)
		pq.resolve <- p.Payload
	}
	c.mu.Unlock()

	if pq == nil {
		c.log.Debug().Hex("query_id", p.ID[:8]).Msg("discarding answer with no outstanding query")
	} else {
		c.log.Debug().Hex("query_id", p.ID[:8]).Dur("elapsed", time.Since(pq.sent)).Msg("answer dispatched")
	}
}

// teardown moves the connection to closed, exactly once, failing every
// outstanding query atomically with the transition. There is no way back to
// an active state.
func (c *Conn) teardown(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cause = cause
	outstanding := len(c.pending)
	c.pending = nil
	close(c.closedCh)
	c.mu.Unlock()

	c.raw.Close()

	if cause != nil && !xerrors.Is(cause, ErrConnClosed) && cause != io.EOF {
		c.log.Warn().Int("outstanding", outstanding).AnErr("cause", cause).Msg("control connection failed")
	} else {
		c.log.Debug().Int("outstanding", outstanding).Msg("control connection closed")
	}
}

func (c *Conn) closeErrLocked() error {
	cause := c.cause
	if cause == nil || cause == io.EOF || xerrors.Is(cause, ErrConnClosed) {
		return ErrConnClosed
	}
	return &wrapErr{ErrConnClosed, cause}
}

func (c *Conn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErrLocked()
}

// Close tears down the connection. Outstanding calls fail with ErrConnClosed.
func (c *Conn) Close() error {
	c.teardown(ErrConnClosed)
	return nil
}

// LocalAddr returns the local network address of the underlying connection.
func (c *Conn) LocalAddr() net.Addr {
	return c.raw.LocalAddr()
}

// RemoteAddr returns the remote network address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// ServerConn is the responder side of a control connection: it accepts the
// handshake against a long-term key, reads queries and writes answers. The
// real counterpart is the node itself; this side exists for tests and for
// tools that emulate a node's control endpoint.
type ServerConn struct {
	raw    net.Conn
	reader *channel

	writer struct {
		sync.Mutex
		ch *channel
	}
}

// Server performs the responder handshake over an existing connection. On
// failure the existing connection is not closed.
func Server(conn net.Conn, key noise.DHKey) (*ServerConn, error) {
	sess, err := serverHandshake(conn, key)
	if err != nil {
		return nil, err
	}
	s := &ServerConn{
		raw:    conn,
		reader: &channel{conn: conn, sess: sess},
	}
	s.writer.ch = s.reader
	return s, nil
}

// ReadQuery reads the next query. Only one goroutine may call ReadQuery.
func (s *ServerConn) ReadQuery() (QueryID, []byte, error) {
	p, err := s.reader.readPacket()
	if err != nil {
		return QueryID{}, nil, err
	}
	q, ok := p.(*Query)
	if !ok {
		return QueryID{}, nil, prefixError(ErrMalformedPacket, "peer sent %T inside an established session", p)
	}
	return q.ID, q.Payload, nil
}

// WriteAnswer sends an answer for a previously read query id. Safe for
// concurrent use; answers need not preserve query order.
func (s *ServerConn) WriteAnswer(id QueryID, payload []byte) error {
	s.writer.Lock()
	defer s.writer.Unlock()
	return s.writer.ch.writePacket(&Answer{ID: id, Payload: payload})
}

// Close closes the underlying connection.
func (s *ServerConn) Close() error {
	return s.raw.Close()
}
