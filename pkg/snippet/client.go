package snippet

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
)

// DefaultTimeout bounds a single RPC round trip.
const DefaultTimeout = 60 * time.Second

// Client talks to one snippet server. Calls are serialized: the protocol is
// strictly request/response on a single connection.
//
// A call that fails mid-exchange leaves the stream out of sync, so the
// connection is dropped and the next call resumes the session on a fresh
// connection with the continue handshake.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	addr    string
	uid     int
	nextID  int64
	timeout time.Duration
	logger  *log.Logger
	broken  error
	mu      sync.Mutex
}

// Dial connects to a snippet server at addr (host:port) and performs the
// session handshake.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial snippet %s: %w", addr, err)
	}
	c := NewClient(conn)
	c.addr = addr
	c.mu.Lock()
	err = c.handshake(ctx, cmdInitiate, -1)
	c.mu.Unlock()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// DialRetry dials addr until the snippet accepts a session or maxWait
// elapses. The snippet server usually needs a moment after being launched.
func DialRetry(ctx context.Context, addr string, maxWait time.Duration) (*Client, error) {
	if maxWait <= 0 {
		return Dial(ctx, addr)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait

	var c *Client
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		c, err = Dial(ctx, addr)
		if err != nil {
			logger.Debug("dial %s attempt %d: %v", addr, attempt, err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewClient wraps an established connection without a handshake.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		addr:    conn.RemoteAddr().String(),
		uid:     -1,
		timeout: DefaultTimeout,
		logger:  log.New(logger.GetWriter(), "", log.Ltime|log.Lmicroseconds),
	}
}

// SetTimeout sets the per-call RPC timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.timeout = d
	}
}

// SetLogOutput redirects request timing lines.
func (c *Client) SetLogOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// UID returns the session identifier assigned by the server.
func (c *Client) UID() int {
	return c.uid
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) setDeadline(ctx context.Context) error {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.conn.SetDeadline(deadline)
}

func (c *Client) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

func (c *Client) readLine() ([]byte, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return nil, fmt.Errorf("read response: connection closed by snippet")
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// handshake runs cmd on the current connection. Caller holds c.mu.
func (c *Client) handshake(ctx context.Context, cmd string, uid int) error {
	if err := c.setDeadline(ctx); err != nil {
		return err
	}
	if err := c.writeLine(handshakeRequest{Cmd: cmd, UID: uid}); err != nil {
		return err
	}
	line, err := c.readLine()
	if err != nil {
		return err
	}
	var resp handshakeResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("parse handshake response: %w", err)
	}
	if !resp.Status {
		return fmt.Errorf("snippet refused %s handshake", cmd)
	}
	c.uid = resp.UID
	return nil
}

// drop closes a connection whose stream can no longer be trusted.
func (c *Client) drop(cause error) {
	c.conn.Close()
	c.broken = cause
}

// resume reconnects to the server and continues the current session.
func (c *Client) resume(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	if err := c.handshake(ctx, cmdContinue, c.uid); err != nil {
		conn.Close()
		return err
	}
	logger.Info("resumed snippet session %d on %s", c.uid, c.addr)
	c.broken = nil
	return nil
}

// Call invokes method with positional params and returns the raw response.
// A non-nil Response.Error is returned as a Response, not as an error.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.broken != nil {
		if err := c.resume(ctx); err != nil {
			return nil, fmt.Errorf("snippet connection closed after failed call (%v): reconnect: %w", c.broken, err)
		}
	}
	start := time.Now()
	id := c.nextID
	c.nextID++

	if params == nil {
		params = []interface{}{}
	}
	if err := c.setDeadline(ctx); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	if err := c.writeLine(Request{ID: id, Method: method, Params: params}); err != nil {
		return nil, c.fail(method, id, start, err)
	}
	line, err := c.readLine()
	elapsed := time.Since(start)
	if err != nil {
		return nil, c.fail(method, id, start, err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, c.fail(method, id, start, fmt.Errorf("parse response: %w", err))
	}
	if resp.ID != id {
		return nil, c.fail(method, id, start, fmt.Errorf("response id %d does not match request id %d", resp.ID, id))
	}

	status := "OK"
	if resp.Error != nil {
		status = "ERR"
	}
	c.logger.Printf("%s #%d [%v] %s", method, id, elapsed, status)
	return &resp, nil
}

func (c *Client) fail(method string, id int64, start time.Time, err error) error {
	c.logger.Printf("%s #%d [%v] ERROR: %v", method, id, time.Since(start), err)
	c.drop(err)
	return err
}
