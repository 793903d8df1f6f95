// Package logmon implements the log monitor bridge: it streams newly
// appended server log lines from a companion mclogd process, extracts
// player chat, applies wake-word gating and publishes forwardable chat
// events. The outbound direction relays bot replies into game chat
// through the command dispatcher.
package logmon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

const (
	connectTimeout        = 10 * time.Second
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 60 * time.Second

	// dedupWindowSize bounds the recent-lines window used to swallow
	// replayed lines after a reconnect.
	dedupWindowSize = 128

	// eventQueueSize bounds the forwarded-event queue. On overflow the
	// oldest unconsumed event is dropped: lossy degradation beats
	// unbounded memory growth.
	eventQueueSize = 256
)

// chatPattern extracts player chat from a log line, e.g.
// "[12:34:56] [Server thread/INFO]: <Steve> hello" -> ("Steve", "hello").
var chatPattern = regexp.MustCompile(`<([^>]+)>\s+(.*)`)

// ChatEvent is one player chat message extracted from the log stream.
type ChatEvent struct {
	Timestamp  time.Time
	PlayerName string
	Message    string
}

// Options configures the bridge.
type Options struct {
	Host        string
	Port        int
	WakeWords   []string
	BotNickname string
	// ChatResponse enables the outbound relay into game chat.
	ChatResponse bool
	// DangerousCommands is passed through to the dispatcher on relay.
	DangerousCommands bool
}

// Bridge maintains the streaming connection to the companion log server.
// Its reconnect loop is an independent failure domain: a log-tailing
// outage never blocks command execution, and vice versa.
type Bridge struct {
	opts       Options
	dispatcher *command.Dispatcher
	eventBus   *events.EventBus
	logger     zerolog.Logger

	mu    sync.Mutex
	state events.BridgeState

	dedup     *dedupWindow
	forwardCh chan ChatEvent
}

// NewBridge creates a log monitor bridge. Run must be called to start it.
func NewBridge(opts Options, dispatcher *command.Dispatcher, eventBus *events.EventBus) *Bridge {
	return &Bridge{
		opts:       opts,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		logger:     util.ComponentLogger("logmon"),
		state:      events.BridgeDisconnected,
		dedup:      newDedupWindow(dedupWindowSize),
		forwardCh:  make(chan ChatEvent, eventQueueSize),
	}
}

// Events returns the queue of wake-worded chat events awaiting the
// command-routing path.
func (b *Bridge) Events() <-chan ChatEvent {
	return b.forwardCh
}

// State returns the current connection state.
func (b *Bridge) State() events.BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) addr() string {
	return fmt.Sprintf("%s:%d", b.opts.Host, b.opts.Port)
}

func (b *Bridge) setState(state events.BridgeState) {
	b.mu.Lock()
	changed := b.state != state
	b.state = state
	b.mu.Unlock()

	if changed && b.eventBus != nil {
		b.eventBus.Emit(context.Background(), events.Event{
			Type:    events.EventBridgeState,
			Source:  "logmon:" + b.addr(),
			Payload: events.BridgeStatePayload{State: state, Addr: b.addr()},
		})
	}
}

// Run maintains the connection to the log server for the lifetime of ctx.
// There is no terminal state: every failure schedules a reconnect with
// exponential backoff.
func (b *Bridge) Run(ctx context.Context) {
	b.logger.Info().Str("addr", b.addr()).Msg("starting log monitor bridge")

	delay := reconnectInitialDelay
	for {
		select {
		case <-ctx.Done():
			b.setState(events.BridgeDisconnected)
			return
		default:
		}

		b.setState(events.BridgeConnecting)
		conn, err := b.connect(ctx)
		if err != nil {
			b.setState(events.BridgeDisconnected)
			b.logger.Warn().Err(err).Dur("retry_in", delay).Msg("log server connection failed")
			if !b.waitRetry(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		b.setState(events.BridgeStreaming)
		b.logger.Info().Str("addr", b.addr()).Msg("streaming server log")

		if b.readLoop(ctx, conn) {
			// At least one line made it through: the link was healthy,
			// start the next retry cycle from the initial delay.
			delay = reconnectInitialDelay
		}

		b.setState(events.BridgeDisconnected)
		if ctx.Err() != nil {
			return
		}

		// A drop after a successful dial backs off too: a log server
		// that accepts and immediately closes must not be hammered in
		// a tight loop.
		b.logger.Warn().Str("addr", b.addr()).Dur("retry_in", delay).Msg("disconnected from log server, reconnecting")
		if !b.waitRetry(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

// waitRetry sleeps for the current backoff delay. Reports false when ctx
// ended during the wait.
func (b *Bridge) waitRetry(ctx context.Context, delay time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectMaxDelay {
		d = reconnectMaxDelay
	}
	return d
}

func (b *Bridge) connect(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", b.addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to log server at %s: %w", b.addr(), err)
	}
	return conn, nil
}

// readLoop consumes log lines until the connection drops or ctx ends.
// Reports whether any line was received on this connection.
func (b *Bridge) readLoop(ctx context.Context, conn net.Conn) bool {
	defer conn.Close()

	// Unblock the scanner when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	gotLine := false
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		gotLine = true
		b.handleLine(line)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		b.logger.Warn().Err(err).Msg("log stream read error")
	}
	return gotLine
}

// handleLine deduplicates one raw log line and extracts chat from it.
func (b *Bridge) handleLine(line string) {
	if b.dedup.seen(line) {
		b.logger.Debug().Str("line", line).Msg("duplicate log line dropped")
		return
	}

	m := chatPattern.FindStringSubmatch(line)
	if m == nil {
		// Server/system log noise.
		return
	}

	event := ChatEvent{
		Timestamp:  time.Now(),
		PlayerName: m[1],
		Message:    m[2],
	}

	stripped, woken := matchWakeWord(b.opts.WakeWords, event.Message)

	b.logger.Info().
		Str("player", event.PlayerName).
		Str("message", event.Message).
		Bool("forwarded", woken).
		Msg("chat line")

	if b.eventBus != nil {
		b.eventBus.Emit(context.Background(), events.Event{
			Type:   events.EventChatMessage,
			Source: "logmon:" + b.addr(),
			Payload: events.ChatMessagePayload{
				Timestamp:  event.Timestamp,
				PlayerName: event.PlayerName,
				Message:    event.Message,
				Forwarded:  woken,
			},
		})
	}

	if !woken {
		return
	}

	event.Message = stripped
	select {
	case b.forwardCh <- event:
	default:
		// Queue full: drop the oldest unforwarded event.
		select {
		case dropped := <-b.forwardCh:
			b.logger.Warn().
				Str("player", dropped.PlayerName).
				Msg("chat event queue full, dropped oldest event")
		default:
		}
		select {
		case b.forwardCh <- event:
		default:
		}
	}
}

// Relay formats text as a chat broadcast and submits it through the
// dispatcher so it appears in game. Relay is never deduplicated: calling
// it twice broadcasts twice. playerFacing selects the colored tellraw
// form over a plain say broadcast.
func (b *Bridge) Relay(ctx context.Context, text string, playerFacing bool) error {
	if !b.opts.ChatResponse {
		return nil
	}

	policy := command.Policy{EnableDangerous: b.opts.DangerousCommands}

	var cmd command.Command
	if playerFacing {
		cmd = command.Command{
			Action: command.ActionTellraw,
			Args:   []string{text, b.opts.BotNickname, "yellow", "@a"},
			Origin: "logmon",
			Sender: b.opts.BotNickname,
		}
	} else {
		cmd = command.Command{
			Action: command.ActionSay,
			Args:   []string{fmt.Sprintf("[%s] %s", b.opts.BotNickname, text)},
			Origin: "logmon",
			Sender: b.opts.BotNickname,
		}
	}

	if _, err := b.dispatcher.Dispatch(ctx, cmd, policy); err != nil {
		return err
	}
	return nil
}
