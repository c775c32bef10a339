// Package front owns the service's listening socket: it reads framed
// requests, runs the authenticator, hands the request to the dispatcher
// and writes the framed response back. One goroutine serves each
// connection; a request is handled synchronously from decode to encode.
package front

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/internal/back"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/pkg/requests"
)

// Config configures the front end.
type Config struct {
	// SocketPath is the Unix domain socket to listen on. Required.
	SocketPath string
	// MaxBodySize bounds request bodies; zero selects the default.
	MaxBodySize uint32
	// Dispatcher routes requests. Required.
	Dispatcher *back.Dispatcher
	// Authenticator establishes application names. Required.
	Authenticator auth.Authenticator
	// Logger receives operational logging. Required.
	Logger *zap.Logger
}

// Front accepts connections and pumps requests through the dispatcher.
type Front struct {
	socketPath    string
	maxBody       uint32
	dispatcher    *back.Dispatcher
	authenticator auth.Authenticator
	logger        *zap.Logger
}

// New validates the configuration and builds the front end.
func New(cfg Config) (*Front, error) {
	if cfg.SocketPath == "" {
		return nil, errors.New("front: socket path is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("front: dispatcher is required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("front: authenticator is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("front: logger is required")
	}
	maxBody := cfg.MaxBodySize
	if maxBody == 0 {
		maxBody = requests.DefaultMaxBodySize
	}
	return &Front{
		socketPath:    cfg.SocketPath,
		maxBody:       maxBody,
		dispatcher:    cfg.Dispatcher,
		authenticator: cfg.Authenticator,
		logger:        cfg.Logger.Named("front"),
	}, nil
}

// Serve listens until the context is cancelled, then closes the
// listener. Connections already accepted are not closed: each is served
// in its own goroutine until its peer hangs up or a read or write fails.
func (f *Front) Serve(ctx context.Context) error {
	// A stale socket from an unclean shutdown blocks the bind.
	if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", f.socketPath, err)
	}

	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", f.socketPath, err)
	}
	f.logger.Info("listening", zap.String("socket", f.socketPath))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})
	group.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accepting connection: %w", err)
			}
			go f.serveConn(conn)
		}
	})

	err = group.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// serveConn reads frames off one connection until the peer hangs up.
func (f *Front) serveConn(conn net.Conn) {
	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()
	defer conn.Close()

	for {
		req, err := requests.ReadRequest(conn, requests.DefaultMaxAuthSize, f.maxBody)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				f.logger.Warn("failed to read request", zap.Error(err))
			}
			return
		}

		resp := f.handle(req)
		if err := resp.WriteTo(conn); err != nil {
			f.logger.Warn("failed to write response", zap.Error(err))
			return
		}
	}
}

// handle authenticates and dispatches one request. Every failure is a
// status on the response; the connection stays usable.
func (f *Front) handle(req *requests.Request) *requests.Response {
	start := time.Now()

	appName, err := f.authenticator.Authenticate(req.Header.AuthType, req.Auth)
	if err != nil {
		f.logger.Warn("authentication failed",
			zap.Stringer("auth_type", req.Header.AuthType), zap.Error(err))
		status := requests.NotAuthenticated
		if errors.Is(err, auth.ErrUnknownAuthType) {
			status = requests.AuthenticatorDoesNotExist
		}
		resp := requests.ResponseFromHeader(req.Header, status)
		metrics.RecordRequest(req.Header.Provider, req.Header.Opcode, status, time.Since(start))
		return resp
	}

	resp := f.dispatcher.Dispatch(req, appName)
	metrics.RecordRequest(req.Header.Provider, req.Header.Opcode, resp.Header.Status, time.Since(start))
	return resp
}
