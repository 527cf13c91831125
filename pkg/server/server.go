package server

import (
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net"
	"sync"

	"github.com/ManouchehrRasoulli/fsguard/pkg/auth"
	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
)

var ErrServerClosed = errors.New("server closed")

const defaultQueueSize = 256

type ServerTLS struct {
	Cert string
	Key  string
}

type Option func(s *Server)

func WithTLS(t *ServerTLS) Option {
	return func(s *Server) {
		s.tls = t
	}
}

// WithAuth requires every connection to join with credentials from store.
func WithAuth(store *auth.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

func WithLogger(lg *log.Logger) Option {
	return func(s *Server) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// WithMIME adds the detected content type to change notifications.
func WithMIME(enabled bool) Option {
	return func(s *Server) {
		s.mime = enabled
	}
}

// WithQueueSize bounds the frames buffered per subscriber. A subscriber
// that falls further behind loses frames.
func WithQueueSize(size int) Option {
	return func(s *Server) {
		if size > 0 {
			s.queue = size
		}
	}
}

// Server streams guard events to subscribed TCP clients. It implements
// guard.Handler.
type Server struct {
	address string
	tls     *ServerTLS
	store   *auth.Store
	logger  *log.Logger
	mime    bool
	queue   int

	hub  *hub
	l    net.Listener
	exit chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(address string, options ...Option) *Server {
	s := &Server{
		address: address,
		logger:  log.New(io.Discard, "", 0),
		queue:   defaultQueueSize,
		hub:     newHub(),
		exit:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Server) Listen() error {
	var (
		l   net.Listener
		err error
	)
	if s.tls != nil {
		cert, cerr := tls.LoadX509KeyPair(s.tls.Cert, s.tls.Key)
		if cerr != nil {
			return cerr
		}
		l, err = tls.Listen("tcp", s.address, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	} else {
		l, err = net.Listen("tcp", s.address)
	}
	if err != nil {
		return err
	}

	s.l = l
	host, port, _ := net.SplitHostPort(l.Addr().String())
	s.logger.Printf("server :: listening on host %s, port %s (tls=%t, auth=%t)", host, port, s.tls != nil, s.store != nil)
	return nil
}

// Addr is the bound listener address, valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.l.Addr()
}

// Run accepts connections until Close. It returns ErrServerClosed after a
// Close and the accept error otherwise.
func (s *Server) Run() error {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			select {
			case <-s.exit:
				return ErrServerClosed
			default:
			}
			s.logger.Printf("server error :: accept, %v", err)
			return err
		}

		if !s.track(conn) {
			_ = conn.Close()
			return ErrServerClosed
		}
		s.logger.Printf("server :: accept connection --> {remote-address: %s}", conn.RemoteAddr())

		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serve(conn)
		}()
	}
}

// track registers conn with Close. It fails once the server is closing.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.exit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// Close stops accepting, disconnects every client and waits for their
// goroutines.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		close(s.exit)
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()

		if s.l != nil {
			err = s.l.Close()
		}
		s.wg.Wait()
	})
	return err
}

func (s *Server) OnChanged(action model.Action, path string) {
	payload := describe(action, path, s.mime)
	frame, err := protocol.NewData(protocol.ChangeNotify, payload)
	if err != nil {
		s.logger.Printf("server error :: %v", err)
		return
	}
	s.hub.publish(path, false, frame)
}

func (s *Server) OnStatus(status model.Status, workerID uint64, path string) {
	frame, err := protocol.NewData(protocol.StatusNotify, protocol.StatusPayload{Status: status, WorkerID: workerID, Path: path})
	if err != nil {
		s.logger.Printf("server error :: %v", err)
		return
	}
	s.hub.publish(path, true, frame)
}

func (s *Server) OnError(code uint32, path string) {
	frame, err := protocol.NewData(protocol.ErrorNotify, protocol.ErrorPayload{Code: code, Path: path})
	if err != nil {
		s.logger.Printf("server error :: %v", err)
		return
	}
	s.hub.publish(path, true, frame)
}
