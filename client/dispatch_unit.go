package client

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/jobcache/types"
	"log/slog"
	"runtime/debug"
	"time"
)

// dispatchUnit runs a single job in its own goroutine. It shares nothing with
// the scheduler: the job comes in by value and the outcome goes out as exactly
// one types.UnitExit on the completion channel.
type dispatchUnit struct {
	jobID    string
	input    int64
	kernel   Kernel
	renderer Renderer
	timeout  time.Duration
	logger   *slog.Logger
}

// panicError carries a recovered panic out of the compute goroutine so the
// unit reports it as an abnormal exit.
type panicError struct {
	value any
}

// run never returns without sending on exits. A panic anywhere in the job
// becomes ExitPanic with no terminal message.
func (u dispatchUnit) run(ctx context.Context, exits chan<- types.UnitExit) {
	exit := types.UnitExit{JobID: u.jobID, Input: u.input, Code: types.ExitNoResult}
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(panicError); ok {
				r = pe.value
			}
			u.logger.Error("dispatch unit panicked",
				slog.String("job_id", u.jobID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			exit.Code = types.ExitPanic
			exit.Message = nil
		}
		exits <- exit
	}()

	msg := u.execute(ctx)
	exit.Message = &msg
	exit.Code = types.ExitOK
}

func (u dispatchUnit) execute(ctx context.Context) types.UnitMessage {
	result, err := u.compute(ctx)
	if err != nil {
		return types.UnitMessage{JobID: u.jobID, Err: fmt.Sprintf("computation failed: %s", err)}
	}

	var artifactPath string
	if u.renderer != nil {
		artifactPath, err = u.renderer.Render(ctx, u.jobID, u.input, result)
		if err != nil {
			return types.UnitMessage{JobID: u.jobID, Err: fmt.Sprintf("rendering failed: %s", err)}
		}
	}
	return types.UnitMessage{JobID: u.jobID, Result: result, ArtifactPath: artifactPath}
}

// compute enforces the optional timeout even on a kernel that ignores ctx; the
// abandoned call keeps running but no longer holds a slot.
func (u dispatchUnit) compute(ctx context.Context) (string, error) {
	if u.timeout <= 0 {
		return u.kernel.Compute(ctx, u.input)
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	type outcome struct {
		result string
		err    error
		panic  *panicError
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{panic: &panicError{value: r}}
			}
		}()
		result, err := u.kernel.Compute(ctx, u.input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.panic != nil {
			panic(*out.panic)
		}
		if out.err != nil && ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("computation timed out after %s", u.timeout)
		}
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("computation timed out after %s", u.timeout)
		}
		return "", ctx.Err()
	}
}
