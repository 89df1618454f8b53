package loop

import (
	"fmt"
	"log/slog"
)

// Logger receives instrumentation callbacks from a loop.
//
// Init callbacks fire once when the loop starts (in both start modes; without
// an Init function the First is the explicit start model and effects). Update
// callbacks fire on the dispatch goroutine for every applied event.
//
// Implementations must return promptly and must not call back into the loop.
type Logger[M, E, F any] interface {
	BeforeInit(model M)
	AfterInit(model M, result First[M, F])
	ExceptionDuringInit(model M, err error)
	BeforeUpdate(model M, event E)
	AfterUpdate(model M, event E, result Next[M, F])
	ExceptionDuringUpdate(model M, event E, err error)
}

// NoopLogger ignores every callback.
type NoopLogger[M, E, F any] struct{}

func (NoopLogger[M, E, F]) BeforeInit(M) {}
func (NoopLogger[M, E, F]) AfterInit(M, First[M, F]) {}
func (NoopLogger[M, E, F]) ExceptionDuringInit(M, error) {}
func (NoopLogger[M, E, F]) BeforeUpdate(M, E) {}
func (NoopLogger[M, E, F]) AfterUpdate(M, E, Next[M, F]) {}
func (NoopLogger[M, E, F]) ExceptionDuringUpdate(M, E, error) {}

// SlogLogger writes every callback to a slog.Logger. Start and transitions
// are logged at Debug, exceptions at Error.
type SlogLogger[M, E, F any] struct {
	Log *slog.Logger
}

// NewSlogLogger returns a SlogLogger writing to l, or to slog.Default() if l
// is nil.
func NewSlogLogger[M, E, F any](l *slog.Logger) *SlogLogger[M, E, F] {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger[M, E, F]{Log: l}
}

func (s *SlogLogger[M, E, F]) BeforeInit(model M) {
	s.Log.Debug("initializing loop", "model", fmt.Sprint(model))
}

func (s *SlogLogger[M, E, F]) AfterInit(model M, result First[M, F]) {
	s.Log.Debug("loop initialized",
		"seed", fmt.Sprint(model),
		"model", fmt.Sprint(result.Model()),
		"effects", fmt.Sprint(result.Effects()),
	)
}

func (s *SlogLogger[M, E, F]) ExceptionDuringInit(model M, err error) {
	s.Log.Error("init failed",
		"model", fmt.Sprint(model),
		"error", err,
	)
}

func (s *SlogLogger[M, E, F]) BeforeUpdate(model M, event E) {
	s.Log.Debug("update",
		"model", fmt.Sprint(model),
		"event", fmt.Sprint(event),
	)
}

func (s *SlogLogger[M, E, F]) AfterUpdate(model M, event E, result Next[M, F]) {
	attrs := []any{
		"event", fmt.Sprint(event),
		"changed", result.HasModel(),
		"effects", fmt.Sprint(result.Effects()),
	}
	if result.HasModel() {
		attrs = append(attrs, "model", fmt.Sprint(result.Model()))
	}
	s.Log.Debug("updated", attrs...)
}

func (s *SlogLogger[M, E, F]) ExceptionDuringUpdate(model M, event E, err error) {
	s.Log.Error("update failed",
		"model", fmt.Sprint(model),
		"event", fmt.Sprint(event),
		"error", err,
	)
}

// Loggers fans every callback out to each logger in order.
func Loggers[M, E, F any](loggers ...Logger[M, E, F]) Logger[M, E, F] {
	return multiLogger[M, E, F](loggers)
}

type multiLogger[M, E, F any] []Logger[M, E, F]

func (m multiLogger[M, E, F]) BeforeInit(model M) {
	for _, l := range m {
		l.BeforeInit(model)
	}
}

func (m multiLogger[M, E, F]) AfterInit(model M, result First[M, F]) {
	for _, l := range m {
		l.AfterInit(model, result)
	}
}

func (m multiLogger[M, E, F]) ExceptionDuringInit(model M, err error) {
	for _, l := range m {
		l.ExceptionDuringInit(model, err)
	}
}

func (m multiLogger[M, E, F]) BeforeUpdate(model M, event E) {
	for _, l := range m {
		l.BeforeUpdate(model, event)
	}
}

func (m multiLogger[M, E, F]) AfterUpdate(model M, event E, result Next[M, F]) {
	for _, l := range m {
		l.AfterUpdate(model, event, result)
	}
}

func (m multiLogger[M, E, F]) ExceptionDuringUpdate(model M, event E, err error) {
	for _, l := range m {
		l.ExceptionDuringUpdate(model, event, err)
	}
}
