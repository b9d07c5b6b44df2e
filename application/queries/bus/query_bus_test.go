package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoQuery struct {
	Text string
}

func (q echoQuery) Validate() error {
	if q.Text == "" {
		return errInvalid
	}
	return nil
}

var errInvalid = errors.New("text required")

func TestQueryBus(t *testing.T) {
	var order []string
	trace := func(name string) Middleware {
		return func(next QueryHandler) QueryHandler {
			return QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, q)
			})
		}
	}

	b := NewQueryBus(trace("outer"), trace("inner"), LoggingMiddleware(zap.NewNop()))
	require.NoError(t, b.Register(echoQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return q.(echoQuery).Text, nil
	})))

	got, err := b.Ask(context.Background(), echoQuery{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
	assert.Equal(t, []string{"outer", "inner"}, order)

	_, err = b.Ask(context.Background(), echoQuery{})
	assert.ErrorIs(t, err, errInvalid)

	assert.Error(t, b.Register(echoQuery{}, QueryHandlerFunc(nil)), "duplicate registration")
}

type otherQuery struct{}

func (otherQuery) Validate() error { return nil }

func TestQueryBus_Unregistered(t *testing.T) {
	_, err := NewQueryBus().Ask(context.Background(), otherQuery{})
	assert.Error(t, err)
}

func TestQueryBus_Typed(t *testing.T) {
	b := NewQueryBus()
	require.NoError(t, b.Register(echoQuery{}, Typed(func(_ context.Context, q echoQuery) (int, error) {
		return len(q.Text), nil
	})))

	got, err := b.Ask(context.Background(), echoQuery{Text: "four"})
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	_, err = Typed(func(context.Context, echoQuery) (int, error) { return 0, nil }).Handle(context.Background(), otherQuery{})
	assert.Error(t, err)
}
