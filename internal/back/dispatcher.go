package back

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/pkg/requests"
)

// Dispatcher routes each request to the back-end handler registered for
// its provider id. It is stateless beyond the immutable handler table,
// so it is called concurrently from the request-handler goroutines.
type Dispatcher struct {
	handlers map[requests.ProviderID]*Handler
	logger   *zap.Logger
}

// NewDispatcher builds a dispatcher over a fixed handler table.
func NewDispatcher(handlers map[requests.ProviderID]*Handler, logger *zap.Logger) (*Dispatcher, error) {
	if len(handlers) == 0 {
		return nil, errors.New("dispatcher: at least one back-end handler is required")
	}
	if logger == nil {
		return nil, errors.New("dispatcher: logger is missing")
	}
	for id, handler := range handlers {
		if handler == nil {
			return nil, fmt.Errorf("dispatcher: nil handler registered for provider %s", id)
		}
	}
	return &Dispatcher{handlers: handlers, logger: logger.Named("dispatcher")}, nil
}

// Dispatch selects the handler for the request's provider, checks its
// capability, and executes the request. Every failure is a response
// status; nothing propagates as an error.
func (d *Dispatcher) Dispatch(req *requests.Request, app *auth.ApplicationName) *requests.Response {
	handler, ok := d.handlers[req.Header.Provider]
	if !ok {
		d.logger.Error("no provider registered for request",
			zap.Stringer("provider", req.Header.Provider))
		return requests.ResponseFromHeader(req.Header, requests.ProviderNotRegistered)
	}
	if status := handler.IsCapable(req); status != requests.Success {
		return requests.ResponseFromHeader(req.Header, status)
	}
	return handler.ExecuteRequest(req, app)
}
