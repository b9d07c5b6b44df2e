// Package bus routes commands to the one handler registered for their type.
package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Command is a request to change state. Validate runs before dispatch.
type Command interface {
	Validate() error
}

// CommandHandler executes one command type.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) error
}

// CommandHandlerFunc lets a plain function serve as a CommandHandler.
type CommandHandlerFunc func(ctx context.Context, cmd Command) error

func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// Typed adapts a handler written against a concrete command type.
func Typed[C Command](fn func(context.Context, C) error) CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		c, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("unexpected command type %T", cmd)
		}
		return fn(ctx, c)
	})
}

// Middleware wraps every registered handler.
type Middleware func(next CommandHandler) CommandHandler

// CommandBus is safe for concurrent Send calls.
type CommandBus struct {
	mu       sync.RWMutex
	routes   map[reflect.Type]CommandHandler
	wrappers []Middleware
}

// NewCommandBus creates a bus. Middleware is listed outermost first.
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		routes:   make(map[reflect.Type]CommandHandler),
		wrappers: middlewares,
	}
}

// Register binds handler to the dynamic type of sample.
func (b *CommandBus) Register(sample Command, handler CommandHandler) error {
	key := reflect.TypeOf(sample)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.routes[key]; taken {
		return fmt.Errorf("command %s already has a handler", key)
	}
	for i := len(b.wrappers) - 1; i >= 0; i-- {
		handler = b.wrappers[i](handler)
	}
	b.routes[key] = handler
	return nil
}

// Send validates cmd and runs its handler. Returned errors wrap the cause.
func (b *CommandBus) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid %T: %w", cmd, err)
	}

	b.mu.RLock()
	handler := b.routes[reflect.TypeOf(cmd)]
	b.mu.RUnlock()
	if handler == nil {
		return fmt.Errorf("no handler for command %T", cmd)
	}

	if err := handler.Handle(ctx, cmd); err != nil {
		return fmt.Errorf("%T: %w", cmd, err)
	}
	return nil
}

// LoggingMiddleware logs every command with its outcome and duration.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
			start := time.Now()
			err := next.Handle(ctx, cmd)

			fields := []zap.Field{
				zap.String("command", reflect.TypeOf(cmd).Name()),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("Command failed", append(fields, zap.Error(err))...)
				return err
			}
			logger.Info("Command handled", fields...)
			return nil
		})
	}
}
