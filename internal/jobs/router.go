package jobs

import (
	"context"
	"errors"
	"fmt"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Router dispatches jobs to handlers by type.
type Router struct {
	handlers map[JobType]JobHandler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[JobType]JobHandler)}
}

// Register sets the handler for a job type.
func (r *Router) Register(t JobType, h JobHandler) *Router {
	r.handlers[t] = h
	return r
}

// Handle runs the handler registered for the job's type. Unknown types fail
// permanently.
func (r *Router) Handle(ctx context.Context, job *Job) error {
	h, ok := r.handlers[job.Type]
	if !ok {
		return Permanent(fmt.Errorf("no handler for job type %q", job.Type))
	}
	return h(ctx, job)
}
