package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcwarden-project/mcwarden/internal/events"
)

func newTestStore(t *testing.T) *AuditStore {
	t.Helper()
	store, err := NewAuditStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndReadCommands(t *testing.T) {
	store := newTestStore(t)

	for _, rec := range []CommandRecord{
		{Origin: "chat", Sender: "mc_player_Steve", Action: "list", CommandLine: "list", Response: "There are 0 of a max of 20 players online:"},
		{Origin: "api", Sender: "admin", Action: "stop", Rejected: true},
	} {
		if err := store.RecordCommand(rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := store.RecentCommands(10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].Action != "stop" || !got[0].Rejected {
		t.Errorf("newest record = %+v, want rejected stop", got[0])
	}
	if got[1].Sender != "mc_player_Steve" {
		t.Errorf("sender = %q", got[1].Sender)
	}
}

func TestRecordAndReadChat(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordChat(ChatRecord{PlayerName: "Alex", Message: "bot help", Forwarded: true}); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := store.RecentChat(10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].PlayerName != "Alex" || !got[0].Forwarded {
		t.Errorf("chat records = %+v", got)
	}
}

func TestPurgeRespectsRetention(t *testing.T) {
	store := newTestStore(t)

	old := time.Now().AddDate(0, 0, -40)
	if err := store.RecordCommand(CommandRecord{Origin: "cli", Sender: "local", Action: "list", CreatedAt: old}); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if err := store.RecordCommand(CommandRecord{Origin: "cli", Sender: "local", Action: "list"}); err != nil {
		t.Fatalf("record new: %v", err)
	}

	n, err := store.Purge(30)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}

	got, err := store.RecentCommands(10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records after purge, want 1", len(got))
	}
}

func TestAttachRecordsBusEvents(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewEventBus()
	defer bus.Stop()

	store.Attach(bus)

	ctx := context.Background()
	if err := bus.EmitSync(ctx, events.Event{
		Type:   events.EventCommandDispatched,
		Source: "test",
		Payload: events.CommandDispatchedPayload{
			Origin: "chat", Sender: "mc_player_Steve", Action: "say",
			CommandLine: "say hi", Timestamp: time.Now(),
		},
	}); err != nil {
		t.Fatalf("emit dispatch: %v", err)
	}
	if err := bus.EmitSync(ctx, events.Event{
		Type:   events.EventChatMessage,
		Source: "test",
		Payload: events.ChatMessagePayload{
			Timestamp: time.Now(), PlayerName: "Steve", Message: "hello",
		},
	}); err != nil {
		t.Fatalf("emit chat: %v", err)
	}

	cmds, err := store.RecentCommands(10)
	if err != nil {
		t.Fatalf("read commands: %v", err)
	}
	if len(cmds) != 1 || cmds[0].CommandLine != "say hi" {
		t.Errorf("command records = %+v", cmds)
	}

	chat, err := store.RecentChat(10)
	if err != nil {
		t.Fatalf("read chat: %v", err)
	}
	if len(chat) != 1 || chat[0].PlayerName != "Steve" {
		t.Errorf("chat records = %+v", chat)
	}
}
