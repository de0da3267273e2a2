package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/metrics"
	"github.com/starhost/starhost/pkg/protocol"
)

// Server accepts TCP connections and serves the command protocol, one
// goroutine per connection. Session identity lives on the connection;
// commands run serialized behind the dispatcher's global mutex.
type Server struct {
	dispatcher *Dispatcher
	log        zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]net.Conn
	wg       sync.WaitGroup
	closed   bool
}

// NewServer creates a server around a dispatcher
func NewServer(d *Dispatcher) *Server {
	return &Server{
		dispatcher: d,
		log:        log.WithComponent("server"),
		conns:      make(map[string]net.Conn),
	}
}

// Start listens on addr and accepts connections until Stop is called
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.log.Info().Str("addr", lis.Addr().String()).Msg("listening")
	for {
		conn, err := lis.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.track(conn)
	}
}

// Stop closes the listener and every open connection, then waits for
// the connection goroutines to drain
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) track(conn net.Conn) {
	id := uuid.New().String()[:8]
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[id] = conn
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(id, conn)
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
	}()
}

// serve runs one connection's request loop until EOF or an I/O error
func (s *Server) serve(id string, conn net.Conn) {
	defer conn.Close()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	clog := log.WithConnID(id)
	clog.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connected")

	sess := &Session{}
	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)
	for {
		args, err := r.ReadRequest()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				clog.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if err := w.WriteValue(s.dispatcher.Dispatch(sess, args)); err != nil {
			clog.Debug().Err(err).Msg("write failed")
			return
		}
	}
}
