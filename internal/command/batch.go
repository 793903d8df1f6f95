package command

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBatchTimeout bounds a whole batch run.
const DefaultBatchTimeout = 60 * time.Second

// StepResult records the outcome of one command in a batch.
type StepResult struct {
	Command  Command `json:"command"`
	Line     string  `json:"line"`
	Response string  `json:"response"`
	Err      string  `json:"error,omitempty"`
}

// BatchResult is the outcome of a batch run.
type BatchResult struct {
	Steps     []StepResult `json:"steps"`
	Completed bool         `json:"completed"`
}

// RunBatch executes an ordered list of commands through the dispatcher,
// collecting per-step results. A step failure is recorded but does not
// abort the batch unless stopOnError is set; the deadline always does.
func (d *Dispatcher) RunBatch(ctx context.Context, cmds []Command, policy Policy, stopOnError bool, timeout time.Duration) BatchResult {
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := BatchResult{Steps: make([]StepResult, 0, len(cmds))}

	for i, cmd := range cmds {
		if ctx.Err() != nil {
			log.Warn().Int("completed_steps", i).Int("total", len(cmds)).Msg("batch deadline reached")
			return result
		}

		step := StepResult{Command: cmd}
		step.Line, _ = Render(cmd)

		reply, err := d.Dispatch(ctx, cmd, policy)
		if err != nil {
			step.Err = err.Error()
			result.Steps = append(result.Steps, step)
			if stopOnError {
				return result
			}
			continue
		}

		step.Response = reply
		result.Steps = append(result.Steps, step)
	}

	result.Completed = true
	return result
}
