// Package async runs best-effort background tasks: one attempt each, the
// outcome logged and dropped, never retried, never surfaced to the caller.
package async

import "github.com/rs/zerolog"

// Dispatcher submits a named best-effort task.
type Dispatcher interface {
	Dispatch(name string, task func() error)
}

// GoDispatcher runs each task on its own goroutine.
type GoDispatcher struct {
	logger zerolog.Logger
}

var _ Dispatcher = (*GoDispatcher)(nil)

func NewGoDispatcher(logger zerolog.Logger) *GoDispatcher {
	return &GoDispatcher{logger: logger}
}

func (d *GoDispatcher) Dispatch(name string, task func() error) {
	go func() {
		if err := task(); err != nil {
			d.logger.Warn().Err(err).Str("task", name).Msg("best-effort task failed")
		}
	}()
}

// SyncDispatcher runs tasks inline, preserving the log-and-drop contract.
// Tests use it to observe best-effort side effects deterministically.
type SyncDispatcher struct {
	logger zerolog.Logger
}

var _ Dispatcher = (*SyncDispatcher)(nil)

func NewSyncDispatcher(logger zerolog.Logger) *SyncDispatcher {
	return &SyncDispatcher{logger: logger}
}

func (d *SyncDispatcher) Dispatch(name string, task func() error) {
	if err := task(); err != nil {
		d.logger.Warn().Err(err).Str("task", name).Msg("best-effort task failed")
	}
}
