// Package observability wraps X-Ray so callers can trace unconditionally.
package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer opens X-Ray subsegments under the request segment opened by the
// HTTP middleware. A nil or disabled Tracer is a no-op.
type Tracer struct {
	serviceName string
	enabled     bool
}

func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{serviceName: serviceName, enabled: enabled}
}

// ServiceName is the segment name requests are traced under.
func (t *Tracer) ServiceName() string {
	if t == nil {
		return ""
	}
	return t.serviceName
}

// segment returns the active segment, or nil when tracing is off or the
// context was never traced. BeginSubsegment logs an error for every call
// without a parent, so the check comes first.
func (t *Tracer) segment(ctx context.Context) *xray.Segment {
	if t == nil || !t.enabled {
		return nil
	}
	return xray.GetSegment(ctx)
}

// TraceFunction runs fn inside a subsegment named name. A non-nil error
// from fn marks the subsegment as failed.
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	if t.segment(ctx) == nil {
		return fn(ctx)
	}

	ctx, sub := xray.BeginSubsegment(ctx, name)
	err := fn(ctx)
	sub.Close(err)
	return err
}

// AddAnnotation indexes value on the current segment for trace search.
func (t *Tracer) AddAnnotation(ctx context.Context, key, value string) {
	if seg := t.segment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}
