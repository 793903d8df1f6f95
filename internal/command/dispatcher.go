package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

// Executor submits a rendered command line to the server and returns the
// textual reply. *rcon.Session satisfies this.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// Policy gates what the dispatcher is willing to send.
type Policy struct {
	EnableDangerous bool
}

// ErrForbidden is returned when a dangerous command is rejected by policy.
// The server is never contacted in that case.
var ErrForbidden = errors.New("command forbidden by policy (dangerous commands disabled)")

// UnknownActionError is returned for actions outside the closed set.
type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Action)
}

// UpstreamError wraps a session failure. The original cause is preserved
// for diagnostics; the dispatcher never retries on its own.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("command failed upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Dispatcher validates structured commands against policy, renders them
// and submits them through the session. It owns no connection state; the
// session is handed in at construction so multiple targets can coexist.
type Dispatcher struct {
	exec     Executor
	eventBus *events.EventBus
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher bound to one executor.
func NewDispatcher(exec Executor, eventBus *events.EventBus) *Dispatcher {
	return &Dispatcher{
		exec:     exec,
		eventBus: eventBus,
		logger:   util.ComponentLogger("dispatch"),
	}
}

// Dispatch validates, renders and executes one command. Policy rejection
// returns ErrForbidden without any network call; session failures come
// back as *UpstreamError with the cause preserved.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, policy Policy) (string, error) {
	if !cmd.Action.Known() {
		return "", &UnknownActionError{Action: cmd.Action}
	}

	if cmd.Dangerous() && !policy.EnableDangerous {
		d.logger.Warn().
			Str("action", string(cmd.Action)).
			Str("origin", cmd.Origin).
			Str("sender", cmd.Sender).
			Msg("dangerous command rejected by policy")
		d.emitResult(cmd, "", "", ErrForbidden)
		return "", ErrForbidden
	}

	line, err := Render(cmd)
	if err != nil {
		return "", err
	}

	reply, err := d.exec.Execute(ctx, line)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("action", string(cmd.Action)).
			Str("command", line).
			Msg("command execution failed")
		d.emitResult(cmd, line, "", err)
		return "", &UpstreamError{Err: err}
	}

	d.logger.Info().
		Str("action", string(cmd.Action)).
		Str("origin", cmd.Origin).
		Str("sender", cmd.Sender).
		Str("command", line).
		Msg("command dispatched")
	d.emitResult(cmd, line, reply, nil)

	return reply, nil
}

func (d *Dispatcher) emitResult(cmd Command, line, reply string, err error) {
	if d.eventBus == nil {
		return
	}
	payload := events.CommandDispatchedPayload{
		Origin:      cmd.Origin,
		Sender:      cmd.Sender,
		Action:      string(cmd.Action),
		CommandLine: line,
		Response:    reply,
		Timestamp:   time.Now(),
	}
	eventType := events.EventCommandDispatched
	if err != nil {
		payload.Err = err.Error()
		if errors.Is(err, ErrForbidden) {
			eventType = events.EventCommandRejected
		}
	}
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    eventType,
		Source:  "dispatcher",
		Payload: payload,
	})
}
