// ABOUTME: Accept loop for the local channel. Decodes one message per connection and
// ABOUTME: hands it to the event loop without waiting on any UI work.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/time/rate"

	"github.com/777genius/agent-toast/internal/logging"
)

// Handler receives decoded messages. Implementations must not block on UI
// work; they enqueue and return.
type Handler interface {
	HandleMessage(Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Message)

func (f HandlerFunc) HandleMessage(m Message) { f(m) }

// ServerConfig tunes the accept loop.
type ServerConfig struct {
	ReadTimeout     time.Duration // per connection
	MaxConcurrent   int           // handler goroutines in flight
	NotifyPerMinute int           // 0 = unlimited
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns the default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:     5 * time.Second,
		MaxConcurrent:   16,
		NotifyPerMinute: 120,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server owns the listening end of the channel.
type Server struct {
	channel  Channel
	handler  Handler
	cfg      ServerConfig
	limiter  *rate.Limiter
	listener net.Listener
	swg      sizedwaitgroup.SizedWaitGroup

	mu       sync.Mutex
	shutdown bool
}

func NewServer(ch Channel, h Handler, cfg ServerConfig) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultServerConfig().MaxConcurrent
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultServerConfig().ReadTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultServerConfig().ShutdownTimeout
	}

	s := &Server{
		channel: ch,
		handler: h,
		cfg:     cfg,
		swg:     sizedwaitgroup.New(cfg.MaxConcurrent),
	}
	if cfg.NotifyPerMinute > 0 {
		burst := cfg.NotifyPerMinute / 6
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.NotifyPerMinute)/60), burst)
	}
	return s
}

// Listen opens the channel. Failure here is the only fatal server error.
func (s *Server) Listen() error {
	l, err := s.channel.Listen()
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.channel.Address(), err)
	}
	s.listener = l
	logging.Info("listening on %s", s.channel.Address())
	return nil
}

// Serve accepts connections until ctx is done or Shutdown is called.
// Transient accept errors back off linearly up to five seconds.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Shutdown() })
	defer stop()

	failures := 0
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShutdown() {
				return nil
			}
			failures++
			delay := time.Duration(failures) * 100 * time.Millisecond
			if delay > 5*time.Second {
				delay = 5 * time.Second
			}
			logging.Error("accept failed (%d in a row), retrying in %s: %v", failures, delay, err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		failures = 0

		s.swg.Add()
		go func() {
			defer s.swg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		logging.Debug("set read deadline: %v", err)
	}

	msg, err := Decode(conn)
	if err != nil {
		logging.Warn("dropping malformed message: %v", err)
		return
	}

	if msg.Type == MessageTypeNotify && s.limiter != nil && !s.limiter.Allow() {
		logging.Warn("rate limit exceeded, dropping %s event from pid %d", msg.Notify.Event, msg.Notify.PID)
		return
	}

	logging.Debug("received %s message %s", msg.Type, msg.RequestID)
	s.handler.HandleMessage(msg)
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Shutdown closes the listener and waits for in-flight handlers, bounded by
// ShutdownTimeout. Safe to call more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.swg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownTimeout):
		logging.Warn("shutdown timeout, abandoning in-flight connections")
	}
	logging.Info("listener on %s closed", s.channel.Address())
}
