package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/permission"
)

type recordingExecutor struct {
	mu    sync.Mutex
	calls []string
	reply string
}

func (e *recordingExecutor) Execute(_ context.Context, cmd string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cmd)
	return e.reply, nil
}

func (e *recordingExecutor) commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// listResolver resolves every message to the list action.
var listResolver = ResolverFunc(func(_ context.Context, _ Message) (command.Command, error) {
	return command.Command{Action: command.ActionList}, nil
})

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func newTestGateway(t *testing.T, gate *permission.AllowList, resolver Resolver) (*Gateway, *recordingExecutor) {
	t.Helper()
	exec := &recordingExecutor{reply: "There are 0 of a max of 20 players online:"}
	return New(newTestConfig(t), gate, resolver, command.NewDispatcher(exec, nil)), exec
}

func TestHandleMessageDispatchesForAdmittedSender(t *testing.T) {
	gate := permission.NewAllowList(nil, []string{"mc_player_Steve"})
	gw, exec := newTestGateway(t, gate, listResolver)

	reply, err := gw.HandleMessage(context.Background(), Message{
		Namespace: permission.NamespaceMinecraft,
		SenderID:  permission.PlayerID("Steve"),
		Text:      "who is online",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply != "There are 0 of a max of 20 players online:" {
		t.Errorf("reply = %q", reply)
	}
	if got := exec.commands(); len(got) != 1 || got[0] != "list" {
		t.Errorf("executed = %v, want [list]", got)
	}
}

func TestHandleMessageRejectsUnadmittedSender(t *testing.T) {
	gate := permission.NewAllowList(nil, []string{"mc_player_Steve"})
	gw, exec := newTestGateway(t, gate, listResolver)

	_, err := gw.HandleMessage(context.Background(), Message{
		Namespace: permission.NamespaceMinecraft,
		SenderID:  permission.PlayerID("Alex"),
		Text:      "who is online",
	})
	if !errors.Is(err, ErrNotAdmitted) {
		t.Fatalf("err = %v, want ErrNotAdmitted", err)
	}
	if len(exec.commands()) != 0 {
		t.Error("rejected message must not reach the dispatcher")
	}
}

func TestHandleMessageEmptyNamespaceAdmitsAll(t *testing.T) {
	gate := permission.NewAllowList(nil, nil)
	gw, _ := newTestGateway(t, gate, listResolver)

	if _, err := gw.HandleMessage(context.Background(), Message{
		Namespace: permission.NamespaceChat,
		SenderID:  "anyone",
		Text:      "who is online",
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestHandleMessageResolverError(t *testing.T) {
	gate := permission.NewAllowList(nil, nil)
	failing := ResolverFunc(func(_ context.Context, _ Message) (command.Command, error) {
		return command.Command{}, errors.New("no tool matched")
	})
	gw, exec := newTestGateway(t, gate, failing)

	if _, err := gw.HandleMessage(context.Background(), Message{
		Namespace: permission.NamespaceChat,
		SenderID:  "op",
		Text:      "gibberish",
	}); err == nil {
		t.Fatal("expected resolver error")
	}
	if len(exec.commands()) != 0 {
		t.Error("failed resolution must not reach the dispatcher")
	}
}
