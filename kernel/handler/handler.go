package handler

import (
	"context"
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
)

// Handler serves one operation. It never returns an error: every failure is converted
// into a structured Response.
type Handler interface {
	Handle(ctx context.Context, event *Event) *Response
}

type HandlerFunc func(ctx context.Context, event *Event) *Response

func (f HandlerFunc) Handle(ctx context.Context, event *Event) *Response {
	return f(ctx, event)
}

// Clock returns the current instant; handlers convert it into the configured timezone.
type Clock func() time.Time

// Recover turns a panic inside h into a 500 response.
func Recover(name string, h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, event *Event) (resp *Response) {
		defer func() {
			if r := recover(); r != nil {
				pfxlog.ContextLogger(name).Errorf("panic: %v", r)
				resp = JSON(500, Payload{"message": "Unexpected error.", "error": "internal error"})
			}
		}()
		return h.Handle(ctx, event)
	})
}

// bestEffort runs a side effect whose failure must never fail the request, panics
// included.
func bestEffort(log logrus.FieldLogger, what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("unable to %s: panic: %v", what, r)
		}
	}()
	if err := fn(); err != nil {
		log.WithError(err).Warnf("unable to %s", what)
	}
}
