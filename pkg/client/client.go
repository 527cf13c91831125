package client

import (
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
)

var (
	ErrClientAuthenticationFailed = errors.New("authentication failed")
	ErrClientReadDeadline         = errors.New("failed to set read deadline")
	ErrClientClosed               = errors.New("client closed")
)

const authTimeout = 30 * time.Second

type Option func(c *Client)

func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username, c.password = username, password
	}
}

// WithTLS dials with TLS using cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(c *Client) {
		c.tls = cfg
	}
}

func WithLogger(lg *log.Logger) Option {
	return func(c *Client) {
		if lg != nil {
			c.logger = lg
		}
	}
}

// WithPrefix subscribes only to paths below prefix.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

func WithChangeHook(hook func(p protocol.ChangePayload)) Option {
	return func(c *Client) {
		c.onChange = append(c.onChange, hook)
	}
}

func WithStatusHook(hook func(e model.StatusEvent)) Option {
	return func(c *Client) {
		c.onStatus = append(c.onStatus, hook)
	}
}

func WithErrorHook(hook func(e model.ErrorEvent)) Option {
	return func(c *Client) {
		c.onError = append(c.onError, hook)
	}
}

// Client subscribes to a fsguard server and hands every frame to its hooks.
type Client struct {
	address  string
	username string
	password string
	prefix   string
	tls      *tls.Config
	logger   *log.Logger

	onChange []func(p protocol.ChangePayload)
	onStatus []func(e model.StatusEvent)
	onError  []func(e model.ErrorEvent)

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func NewClient(address string, options ...Option) *Client {
	c := &Client{
		address: address,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) dial() (net.Conn, error) {
	if c.tls != nil {
		return tls.Dial("tcp", c.address, c.tls)
	}
	return net.Dial("tcp", c.address)
}

// Close disconnects a running client; Run then returns nil.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Run connects, joins, subscribes and dispatches frames until Close or a
// connection failure.
func (c *Client) Run() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	c.logger.Printf("client :: connected to host %s ...", c.address)

	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)
	if err = c.Auth(conn, r, w); err != nil {
		return err
	}
	if err = w.Send(protocol.SubscribePath, protocol.SubscribePathPayload{Path: c.prefix, Id: c.username}); err != nil {
		return err
	}

	for {
		d, err := r.Read()
		if err != nil {
			if c.isClosed() {
				return nil
			}
			return err
		}
		c.dispatch(d)
	}
}

// Auth sends the Join frame and waits for the AckJoin answer.
func (c *Client) Auth(conn net.Conn, r *protocol.Reader, w *protocol.Writer) error {
	if err := w.Send(protocol.Join, protocol.JoinPayload{Username: c.username, Password: c.password}); err != nil {
		return err
	}

	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		return errors.Join(ErrClientReadDeadline, err)
	}
	response, err := r.Read()
	if err != nil {
		return err
	}
	if err = conn.SetReadDeadline(time.Time{}); err != nil {
		return errors.Join(ErrClientReadDeadline, err)
	}

	if err = response.Expect(protocol.AckJoin); err != nil {
		return err
	}
	ack := protocol.AckJoinPayload{}
	if err = response.Decode(&ack); err != nil {
		return err
	}
	if !ack.Ok {
		var subErr error
		if ack.Msg != "" {
			subErr = errors.New(ack.Msg)
		}
		return errors.Join(ErrClientAuthenticationFailed, subErr)
	}
	return nil
}

func (c *Client) dispatch(d *protocol.Data) {
	switch d.Type {
	case protocol.ChangeNotify:
		p := protocol.ChangePayload{}
		if err := d.Decode(&p); err != nil {
			c.logger.Printf("client error :: %v", err)
			return
		}
		for _, hook := range c.onChange {
			hook(p)
		}
	case protocol.StatusNotify:
		e := protocol.StatusPayload{}
		if err := d.Decode(&e); err != nil {
			c.logger.Printf("client error :: %v", err)
			return
		}
		for _, hook := range c.onStatus {
			hook(e)
		}
	case protocol.ErrorNotify:
		e := protocol.ErrorPayload{}
		if err := d.Decode(&e); err != nil {
			c.logger.Printf("client error :: %v", err)
			return
		}
		for _, hook := range c.onError {
			hook(e)
		}
	default:
		c.logger.Printf("client :: ignoring %s frame %d", d.Type, d.Sec)
	}
}
