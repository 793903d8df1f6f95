// Package logserve implements the companion log server run next to the
// Minecraft server process. It tails the server's latest.log and streams
// every appended line to connected bridge clients over plain TCP, one
// line per newline-terminated record.
package logserve

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcwarden-project/mcwarden/internal/util"
)

// pollInterval is how often the tailer checks the file for new content.
const pollInterval = 100 * time.Millisecond

// Tailer follows a log file the way `tail -f` does: it starts at the end
// of the file and delivers each newly appended line. Rotation (the file
// being truncated or replaced, as the server does at midnight and on
// restart) reopens the file from the beginning.
type Tailer struct {
	path   string
	logger zerolog.Logger
}

// NewTailer creates a tailer for the given log file. The file must exist
// when Run is called.
func NewTailer(path string) *Tailer {
	return &Tailer{
		path:   path,
		logger: util.ComponentLogger("tailer").With().Str("file", path).Logger(),
	}
}

// Run follows the file until ctx ends, invoking deliver for every
// complete appended line with trailing whitespace removed.
func (t *Tailer) Run(ctx context.Context, deliver func(line string)) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { f.Close() }()

	// Only lines appended after startup matter; skip history.
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}

	t.logger.Info().Int64("offset", offset).Msg("tailing log file")

	reader := bufio.NewReader(f)
	var partial strings.Builder

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := reader.ReadString('\n')
		if chunk != "" {
			partial.WriteString(chunk)
			offset += int64(len(chunk))
		}

		if err == nil {
			line := strings.TrimRight(partial.String(), "\r\n \t")
			partial.Reset()
			if line != "" {
				deliver(line)
			}
			continue
		}

		if err != io.EOF {
			return fmt.Errorf("failed to read log file: %w", err)
		}

		// At EOF. Check for rotation before sleeping: a file smaller
		// than our offset has been truncated or replaced.
		rotated, rerr := t.checkRotation(offset)
		if rerr != nil {
			return rerr
		}
		if rotated {
			t.logger.Info().Msg("log file rotated, reopening")
			f.Close()
			f, err = os.Open(t.path)
			if err != nil {
				return fmt.Errorf("failed to reopen rotated log file: %w", err)
			}
			offset = 0
			partial.Reset()
			reader.Reset(f)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (t *Tailer) checkRotation(offset int64) (bool, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Mid-rotation window; treat as not yet rotated.
			return false, nil
		}
		return false, fmt.Errorf("failed to stat log file: %w", err)
	}
	return info.Size() < offset, nil
}
