// Package gateway is the inbound message boundary. Messages from the
// host chat runtime and wake-worded in-game chat both enter here, pass
// the permission gate exactly once, get resolved into a structured
// command by an external resolver, and go out through the dispatcher.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/logmon"
	"github.com/mcwarden-project/mcwarden/internal/permission"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

// Message is one inbound request from any origin.
type Message struct {
	// Namespace identifies the origin network: permission.NamespaceChat
	// for the external chat platform, permission.NamespaceMinecraft for
	// in-game chat.
	Namespace permission.Namespace
	// SenderID is the origin-native identifier. In-game senders use the
	// synthesized mc_player_<name> form.
	SenderID string
	// Text is the natural-language request, wake word already stripped.
	Text string
}

// Resolver turns free text into a structured command. The actual
// natural-language layer lives outside this process; tests and the CLI
// supply simple implementations.
type Resolver interface {
	Resolve(ctx context.Context, msg Message) (command.Command, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, msg Message) (command.Command, error)

func (f ResolverFunc) Resolve(ctx context.Context, msg Message) (command.Command, error) {
	return f(ctx, msg)
}

// ErrNotAdmitted is returned when the sender fails the permission gate.
var ErrNotAdmitted = errors.New("sender is not admitted")

// Gateway routes admitted messages to the dispatcher.
type Gateway struct {
	cfg        *config.Config
	gate       *permission.AllowList
	resolver   Resolver
	dispatcher *command.Dispatcher
	logger     zerolog.Logger
}

// New creates a gateway. The resolver may be nil, in which case every
// admitted message fails resolution with a clear error.
func New(cfg *config.Config, gate *permission.AllowList, resolver Resolver, dispatcher *command.Dispatcher) *Gateway {
	return &Gateway{
		cfg:        cfg,
		gate:       gate,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     util.ComponentLogger("gateway"),
	}
}

// HandleMessage admits, resolves and dispatches one inbound message,
// returning the server's reply text. The permission gate is evaluated
// here and only here; nothing downstream re-checks it.
func (g *Gateway) HandleMessage(ctx context.Context, msg Message) (string, error) {
	if !g.gate.IsAdmitted(msg.Namespace, msg.SenderID) {
		g.logger.Warn().
			Str("namespace", string(msg.Namespace)).
			Str("sender", msg.SenderID).
			Msg("message rejected by permission gate")
		return "", ErrNotAdmitted
	}

	if g.resolver == nil {
		return "", errors.New("no command resolver configured")
	}

	cmd, err := g.resolver.Resolve(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to resolve message: %w", err)
	}
	cmd.Origin = string(msg.Namespace)
	cmd.Sender = msg.SenderID

	policy := command.Policy{
		EnableDangerous: g.cfg.GetMinecraft().EnableDangerousCommands,
	}
	return g.dispatcher.Dispatch(ctx, cmd, policy)
}

// RunBridgeLoop consumes wake-worded chat events from the bridge,
// routes each through HandleMessage with the synthesized in-game
// identity, and relays the reply back into game chat. Runs until ctx
// ends.
func (g *Gateway) RunBridgeLoop(ctx context.Context, bridge *logmon.Bridge) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bridge.Events():
			g.handleBridgeEvent(ctx, bridge, ev)
		}
	}
}

func (g *Gateway) handleBridgeEvent(ctx context.Context, bridge *logmon.Bridge, ev logmon.ChatEvent) {
	msg := Message{
		Namespace: permission.NamespaceMinecraft,
		SenderID:  permission.PlayerID(ev.PlayerName),
		Text:      ev.Message,
	}

	reply, err := g.HandleMessage(ctx, msg)
	switch {
	case errors.Is(err, ErrNotAdmitted):
		reply = fmt.Sprintf("%s, you are not allowed to command me.", ev.PlayerName)
	case errors.Is(err, command.ErrForbidden):
		reply = "That command is disabled."
	case err != nil:
		g.logger.Error().Err(err).Str("player", ev.PlayerName).Msg("failed to handle chat command")
		reply = "Sorry, that didn't work."
	case reply == "":
		reply = "Done."
	}

	if err := bridge.Relay(ctx, reply, true); err != nil {
		g.logger.Error().Err(err).Msg("failed to relay reply into game chat")
	}
}
