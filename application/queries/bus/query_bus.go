// Package bus routes read-only queries to their handlers.
package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Query is a read request. Validate runs before dispatch.
type Query interface {
	Validate() error
}

// QueryHandler answers one query type.
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryHandlerFunc lets a plain function serve as a QueryHandler.
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// Typed adapts a handler written against concrete query and result types.
func Typed[Q Query, R any](fn func(context.Context, Q) (R, error)) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		q, ok := query.(Q)
		if !ok {
			return nil, fmt.Errorf("unexpected query type %T", query)
		}
		return fn(ctx, q)
	})
}

// Middleware wraps every registered handler.
type Middleware func(next QueryHandler) QueryHandler

// QueryBus is safe for concurrent Ask calls.
type QueryBus struct {
	mu       sync.RWMutex
	routes   map[reflect.Type]QueryHandler
	wrappers []Middleware
}

// NewQueryBus creates a bus. Middleware applies to every handler
// registered afterwards, outermost first.
func NewQueryBus(middlewares ...Middleware) *QueryBus {
	return &QueryBus{
		routes:   make(map[reflect.Type]QueryHandler),
		wrappers: middlewares,
	}
}

// Register binds handler to the dynamic type of sample.
func (b *QueryBus) Register(sample Query, handler QueryHandler) error {
	key := reflect.TypeOf(sample)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.routes[key]; taken {
		return fmt.Errorf("query %s already has a handler", key)
	}
	for i := len(b.wrappers) - 1; i >= 0; i-- {
		handler = b.wrappers[i](handler)
	}
	b.routes[key] = handler
	return nil
}

// Ask validates query and returns its handler's result. Errors wrap the
// cause so errors.As still reaches application errors.
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %T: %w", query, err)
	}

	b.mu.RLock()
	handler := b.routes[reflect.TypeOf(query)]
	b.mu.RUnlock()
	if handler == nil {
		return nil, fmt.Errorf("no handler for query %T", query)
	}

	result, err := handler.Handle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%T: %w", query, err)
	}
	return result, nil
}

// LoggingMiddleware logs query outcomes at debug level. Handlers log their
// own notable events.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
			start := time.Now()
			result, err := next.Handle(ctx, query)

			logger.Debug("Query handled",
				zap.String("query", reflect.TypeOf(query).Name()),
				zap.Duration("duration", time.Since(start)),
				zap.Bool("ok", err == nil),
				zap.Error(err),
			)
			return result, err
		})
	}
}
