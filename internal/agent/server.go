package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rbright/ueagent/internal/protocol"
)

// EngineHost executes IDE requests on the engine side.
type EngineHost interface {
	HotReload()
	EndPIE(simulating bool)
	BeginLocalPlay(mobile bool, args []string)
}

// ServerConfig configures the engine-side agent.
type ServerConfig struct {
	Options
	MarkerPath string
	// ListenAddr defaults to an ephemeral loopback port.
	ListenAddr string
}

// Server is the engine side: it listens, advertises its port through the
// marker file, and keeps only the newest IDE connection.
type Server struct {
	*Agent
	host       EngineHost
	markerPath string
	listenAddr string

	mu        sync.Mutex
	listener  net.Listener
	closeOnce sync.Once
}

func NewServer(cfg ServerConfig, host EngineHost) *Server {
	addr := cfg.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	s := &Server{
		host:       host,
		markerPath: filepath.Clean(cfg.MarkerPath),
		listenAddr: addr,
	}
	s.Agent = newAgent(protocol.RoleServer, cfg.Options, s)
	return s
}

// Listen binds the listener and publishes its port in the marker file.
func (s *Server) Listen(ctx context.Context) (net.Addr, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.listenAddr, err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	if err := writeMarker(s.markerPath, port); err != nil {
		_ = ln.Close()
		return nil, err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("engine agent listening", "addr", ln.Addr().String(), "marker", s.markerPath)
	return ln.Addr(), nil
}

// Serve accepts IDE connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("engine agent is not listening")
	}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		sock, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		conn := s.newConnection()
		if !s.do(func() { s.attachLocked(conn) }) {
			_ = sock.Close()
			conn.Dispose()
			return nil
		}
		if !conn.Attach(sock) {
			continue
		}
		s.logger.Info("accepted ide connection", "remote", sock.RemoteAddr().String(), "connection_id", conn.ID())
		go conn.Run()
	}
}

// Notify sends an engine notification to the connected IDE.
func (s *Server) Notify(msg protocol.Message) bool {
	return s.SendMessage(msg)
}

// HandleMessage routes IDE requests to the engine host.
func (s *Server) HandleMessage(msg protocol.Message) bool {
	if s.host == nil {
		_, ok := msg.(protocol.Ping)
		return ok
	}
	switch m := msg.(type) {
	case protocol.Ping:
	case protocol.HotReload:
		s.host.HotReload()
	case protocol.EndPIE:
		s.host.EndPIE(m.Simulating)
	case protocol.BeginLocalPlay:
		s.host.BeginLocalPlay(m.Mobile, m.Args)
	default:
		return false
	}
	return true
}

// Close removes the marker, stops accepting, and disposes the agent.
func (s *Server) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		if err := os.Remove(s.markerPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove marker failed", "path", s.markerPath, "error", err.Error())
		}

		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln != nil {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				closeErr = fmt.Errorf("close listener: %w", err)
			}
		}
		s.Dispose()
	})
	return closeErr
}

func writeMarker(path string, port int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(port)), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish marker: %w", err)
	}
	return nil
}
