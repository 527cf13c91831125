package server

import (
	"errors"
	"fmt"
	"net"

	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
)

var (
	ErrServerAuthenticationFailed = errors.New("authentication failed")
	ErrServerInvalidPacketType    = errors.New("invalid packet type received")
)

func (s *Server) serve(conn net.Conn) {
	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)

	username, err := s.joinHandler(conn, r, w)
	if err != nil {
		s.logger.Printf("server error :: join from %s, %v", conn.RemoteAddr(), err)
		return
	}
	if username != "" {
		defer s.store.Logout(username)
	}

	req, err := r.Read()
	if err != nil {
		s.logger.Printf("server error :: %v", err)
		return
	}
	if err = req.Expect(protocol.SubscribePath); err != nil {
		s.logger.Printf("server error :: %v", errors.Join(ErrServerInvalidPacketType, err))
		return
	}
	payload := protocol.SubscribePathPayload{}
	if err = req.Decode(&payload); err != nil {
		s.logger.Printf("server error :: %v", err)
		return
	}

	s.handleSubscription(conn, r, w, payload)
}

// joinHandler answers the Join frame with AckJoin. Without a password store
// every join is accepted.
func (s *Server) joinHandler(conn net.Conn, r *protocol.Reader, w *protocol.Writer) (string, error) {
	req, err := r.Read()
	if err != nil {
		return "", err
	}

	ack := protocol.AckJoinPayload{}
	var username string
	switch {
	case req.Type != protocol.Join:
		ack.Msg = "invalid packet type"
	case s.store == nil:
		ack.Ok = true
	default:
		join := protocol.JoinPayload{}
		if err := req.Decode(&join); err != nil {
			ack.Msg = fmt.Sprintf("invalid payload. %v", err)
			break
		}
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if err := s.store.Login(join.Username, join.Password, host); err != nil {
			ack.Msg = err.Error()
			break
		}
		ack.Ok = true
		username = join.Username
	}

	if err := w.Send(protocol.AckJoin, ack); err != nil {
		if username != "" {
			s.store.Logout(username)
		}
		return "", err
	}
	if !ack.Ok {
		return "", errors.Join(ErrServerAuthenticationFailed, errors.New(ack.Msg))
	}

	s.logger.Printf("server :: %s joined as %q", conn.RemoteAddr(), username)
	return username, nil
}

func (s *Server) handleSubscription(conn net.Conn, r *protocol.Reader, w *protocol.Writer, payload protocol.SubscribePathPayload) {
	sub, cancel := s.hub.subscribe(payload.Path, s.queue)
	defer cancel()
	s.logger.Printf("server :: %s subscribed to %q (id %q)", conn.RemoteAddr(), payload.Path, payload.Id)

	// the client sends nothing after subscribing; a read returning means it left
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, err := r.Read(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-gone
		if n := sub.dropped.Load(); n > 0 {
			s.logger.Printf("server warning :: %s dropped %d frames", conn.RemoteAddr(), n)
		}
	}()

	for {
		select {
		case frame := <-sub.frames:
			if err := w.Write(frame); err != nil {
				s.logger.Printf("server error :: %v", err)
				return
			}
		case <-gone:
			s.logger.Printf("server :: %s disconnected", conn.RemoteAddr())
			return
		case <-s.exit:
			return
		}
	}
}
