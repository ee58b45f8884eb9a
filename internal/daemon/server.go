package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/streaming"
	"github.com/microsoft/trident/internal/types"
	"github.com/microsoft/trident/internal/version"
)

// Deps wires StreamDisk's dependencies. Version needs none.
type Deps struct {
	Log                 types.Logger
	FS                  types.FS
	Enumerator          storage.Enumerator
	Partitioner         *storage.Partitioner
	NewFetcher          func(imageURL string) (streaming.Fetcher, error)
	RootDevice          string
	PipelineConcurrency int
	IdleTimeout         time.Duration
}

// Server accepts connections on a Unix socket and dispatches each
// newline-delimited request to VersionService or StreamingService. A single
// sync.RWMutex gates concurrency: StreamDisk (a servicing call) takes the
// write lock, Version (a read) takes the read lock, realizing "at most one
// servicing call at a time; reads may be concurrent".
type Server struct {
	d        Deps
	gate     sync.RWMutex
	idleTime time.Duration

	mu    sync.Mutex
	timer *time.Timer
	ln    net.Listener
	done  chan struct{}
}

func New(d Deps) *Server {
	idle := d.IdleTimeout
	if idle <= 0 {
		idle = constants.DefaultDaemonIdleTimeout
	}
	return &Server{d: d, idleTime: idle, done: make(chan struct{})}
}

// ListenAndServe binds socketPath (removing any stale socket left by a
// prior crashed daemon), restricts it to owner-only per constants.DaemonSocketPerm,
// and serves until the idle timer fires or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return types.NewError(types.KindInternal, "daemon", err)
	}
	defer ln.Close()
	if err := os.Chmod(socketPath, constants.DaemonSocketPerm); err != nil {
		return types.NewError(types.KindInternal, "daemon", err)
	}
	s.ln = ln

	s.resetIdleTimer()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			return types.NewError(types.KindInternal, "daemon", err)
		}
		s.resetIdleTimer()
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) resetIdleTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.idleTime, func() {
		close(s.done)
		s.ln.Close()
	})
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.resetIdleTimer()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(ErrorResponse{Error: err.Error()})
			continue
		}
		s.dispatch(ctx, req, enc)
	}
}

func (s *Server) dispatch(ctx context.Context, req Request, enc *json.Encoder) {
	switch req.Method {
	case "Version":
		s.gate.RLock()
		defer s.gate.RUnlock()
		_ = enc.Encode(VersionResponse{Version: version.Version, Commit: version.Commit, BuildDate: version.BuildDate})

	case "StreamDisk":
		s.gate.Lock()
		defer s.gate.Unlock()
		var params StreamDiskRequest
		if err := remarshal(req.Params, &params); err != nil {
			_ = enc.Encode(ErrorResponse{Error: err.Error()})
			return
		}
		s.streamDisk(ctx, params, enc)

	default:
		_ = enc.Encode(ErrorResponse{Error: "unknown method: " + req.Method})
	}
}

func remarshal(in interface{}, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
