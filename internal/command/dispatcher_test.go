package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// recordingExecutor records every command line it receives.
type recordingExecutor struct {
	lines []string
	reply string
	err   error
}

func (r *recordingExecutor) Execute(_ context.Context, line string) (string, error) {
	r.lines = append(r.lines, line)
	return r.reply, r.err
}

func TestRender(t *testing.T) {
	cases := []struct {
		cmd  Command
		want string
	}{
		{Command{Action: ActionKick, Args: []string{"Steve", "griefing", "spawn"}}, "kick Steve griefing spawn"},
		{Command{Action: ActionKick, Args: []string{"Steve"}}, "kick Steve"},
		{Command{Action: ActionBan, Args: []string{"Alex", "x-ray"}}, "ban Alex x-ray"},
		{Command{Action: ActionPardon, Args: []string{"Alex"}}, "pardon Alex"},
		{Command{Action: ActionOp, Args: []string{"Steve"}}, "op Steve"},
		{Command{Action: ActionDeop, Args: []string{"Steve"}}, "deop Steve"},
		{Command{Action: ActionWhitelistAdd, Args: []string{"Steve"}}, "whitelist add Steve"},
		{Command{Action: ActionWhitelistRemove, Args: []string{"Steve"}}, "whitelist remove Steve"},
		{Command{Action: ActionWhitelistList}, "whitelist list"},
		{Command{Action: ActionWhitelistOn}, "whitelist on"},
		{Command{Action: ActionWhitelistOff}, "whitelist off"},
		{Command{Action: ActionWhitelistReload}, "whitelist reload"},
		{Command{Action: ActionGive, Args: []string{"Alex", "diamond", "64"}}, "give Alex minecraft:diamond 64"},
		{Command{Action: ActionGive, Args: []string{"Alex", "diamond"}}, "give Alex minecraft:diamond 1"},
		{Command{Action: ActionGive, Args: []string{"Alex", "mod:gear", "2"}}, "give Alex mod:gear 2"},
		{Command{Action: ActionTeleport, Args: []string{"Steve", "100", "64", "200"}}, "tp Steve 100 64 200"},
		{Command{Action: ActionTeleport, Args: []string{"Steve", "Alex"}}, "tp Steve Alex"},
		{Command{Action: ActionGamemode, Args: []string{"Steve", "creative"}}, "gamemode creative Steve"},
		{Command{Action: ActionKill, Args: []string{"@e[type=zombie]"}}, "kill @e[type=zombie]"},
		{Command{Action: ActionClear, Args: []string{"Steve"}}, "clear Steve"},
		{Command{Action: ActionClear, Args: []string{"Steve", "dirt"}}, "clear Steve minecraft:dirt"},
		{Command{Action: ActionXP, Args: []string{"Steve", "30", "add", "levels"}}, "xp add Steve 30 levels"},
		{Command{Action: ActionXP, Args: []string{"Steve", "100"}}, "xp set Steve 100 points"},
		{Command{Action: ActionList}, "list"},
		{Command{Action: ActionSay, Args: []string{"server restarting soon"}}, "say server restarting soon"},
		{Command{Action: ActionSaveAll}, "save-all"},
		{Command{Action: ActionBanlist}, "banlist players"},
		{Command{Action: ActionBanlist, Args: []string{"ips"}}, "banlist ips"},
		{Command{Action: ActionStop}, "stop"},
		{Command{Action: ActionWeather, Args: []string{"thunder", "300"}}, "weather thunder 300"},
		{Command{Action: ActionWeather, Args: []string{"clear"}}, "weather clear"},
		{Command{Action: ActionTime, Args: []string{"day"}}, "time set day"},
		{Command{Action: ActionTime, Args: []string{"add", "1000"}}, "time add 1000"},
		{Command{Action: ActionDifficulty, Args: []string{"hard"}}, "difficulty hard"},
		{Command{Action: ActionGamerule, Args: []string{"keepInventory", "true"}}, "gamerule keepInventory true"},
		{Command{Action: ActionSummon, Args: []string{"creeper"}}, "summon minecraft:creeper"},
		{Command{Action: ActionSummon, Args: []string{"creeper", "10", "64", "-30"}}, "summon minecraft:creeper 10 64 -30"},
		{Command{Action: ActionFill, Args: []string{"0", "60", "0", "10", "70", "10", "stone"}}, "fill 0 60 0 10 70 10 minecraft:stone"},
		{Command{Action: ActionFill, Args: []string{"0", "60", "0", "10", "70", "10", "air", "hollow"}}, "fill 0 60 0 10 70 10 minecraft:air hollow"},
		{Command{Action: ActionSetWorldSpawn}, "setworldspawn"},
		{Command{Action: ActionSetWorldSpawn, Args: []string{"0", "64", "0"}}, "setworldspawn 0 64 0"},
		{Command{Action: ActionRaw, Args: []string{"/scoreboard objectives list"}}, "scoreboard objectives list"},
	}

	for _, tc := range cases {
		got, err := Render(tc.cmd)
		if err != nil {
			t.Errorf("Render(%s %v): %v", tc.cmd.Action, tc.cmd.Args, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Render(%s %v) = %q, want %q", tc.cmd.Action, tc.cmd.Args, got, tc.want)
		}
	}
}

func TestRenderTellraw(t *testing.T) {
	got, err := Render(Command{Action: ActionTellraw, Args: []string{`it's "done"`, "Warden", "gold", "@a"}})
	if err != nil {
		t.Fatal(err)
	}
	want := `tellraw @a {"color":"gold","text":"<Warden> it's \"done\""}`
	if got != want {
		t.Errorf("Render tellraw = %q, want %q", got, want)
	}
}

func TestRenderErrors(t *testing.T) {
	bad := []Command{
		{Action: ActionKick},
		{Action: ActionGive, Args: []string{"Steve"}},
		{Action: ActionWeather, Args: []string{"snow"}},
		{Action: ActionFill, Args: []string{"0", "60", "0", "10", "70", "10"}},
		{Action: ActionDifficulty, Args: []string{"impossible"}},
		{Action: "reboot"},
	}
	for _, cmd := range bad {
		if _, err := Render(cmd); err == nil {
			t.Errorf("Render(%s %v): expected error", cmd.Action, cmd.Args)
		}
	}
}

func TestDispatchForbiddenMakesNoCall(t *testing.T) {
	exec := &recordingExecutor{}
	d := NewDispatcher(exec, nil)

	_, err := d.Dispatch(context.Background(), Command{Action: ActionStop}, Policy{EnableDangerous: false})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Dispatch(stop) = %v, want ErrForbidden", err)
	}
	if len(exec.lines) != 0 {
		t.Errorf("forbidden dispatch contacted the server: %v", exec.lines)
	}
}

func TestDispatchDangerousAllowed(t *testing.T) {
	exec := &recordingExecutor{reply: "Stopping the server"}
	d := NewDispatcher(exec, nil)

	reply, err := d.Dispatch(context.Background(), Command{Action: ActionStop}, Policy{EnableDangerous: true})
	if err != nil {
		t.Fatalf("Dispatch(stop, dangerous enabled): %v", err)
	}
	if reply != "Stopping the server" {
		t.Errorf("reply = %q", reply)
	}
	if len(exec.lines) != 1 || exec.lines[0] != "stop" {
		t.Errorf("executor saw %v, want exactly one %q", exec.lines, "stop")
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	exec := &recordingExecutor{}
	d := NewDispatcher(exec, nil)

	_, err := d.Dispatch(context.Background(), Command{Action: "restart"}, Policy{})
	var unknown *UnknownActionError
	if !errors.As(err, &unknown) {
		t.Fatalf("Dispatch(unknown) = %v, want UnknownActionError", err)
	}
	if len(exec.lines) != 0 {
		t.Errorf("unknown action contacted the server: %v", exec.lines)
	}
}

func TestDispatchWrapsUpstreamError(t *testing.T) {
	cause := errors.New("connection reset")
	exec := &recordingExecutor{err: cause}
	d := NewDispatcher(exec, nil)

	_, err := d.Dispatch(context.Background(), Command{Action: ActionList}, Policy{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Dispatch with failing executor = %v, want UpstreamError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("UpstreamError must preserve the original cause")
	}
}

func TestParsePlayerList(t *testing.T) {
	count, players := ParsePlayerList("There are 2 of a max of 20 players online: Steve, Alex")
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(players) != 2 || players[0] != "Steve" || players[1] != "Alex" {
		t.Errorf("players = %v", players)
	}

	count, players = ParsePlayerList("There are 0 of a max of 20 players online:")
	if count != 0 || len(players) != 0 {
		t.Errorf("empty list: count=%d players=%v", count, players)
	}

	count, players = ParsePlayerList("Unknown command")
	if count != 0 || players != nil {
		t.Errorf("unparseable reply: count=%d players=%v", count, players)
	}
}

// sequenceExecutor fails the nth call.
type sequenceExecutor struct {
	calls  int
	failAt int
}

func (s *sequenceExecutor) Execute(_ context.Context, line string) (string, error) {
	s.calls++
	if s.calls == s.failAt {
		return "", fmt.Errorf("boom at call %d", s.calls)
	}
	return "ok:" + line, nil
}

func TestRunBatch(t *testing.T) {
	exec := &sequenceExecutor{failAt: 2}
	d := NewDispatcher(exec, nil)

	cmds := []Command{
		{Action: ActionSay, Args: []string{"one"}},
		{Action: ActionSay, Args: []string{"two"}},
		{Action: ActionSay, Args: []string{"three"}},
	}

	result := d.RunBatch(context.Background(), cmds, Policy{}, false, time.Second)
	if !result.Completed {
		t.Fatal("batch should complete when stopOnError is false")
	}
	if len(result.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(result.Steps))
	}
	if result.Steps[1].Err == "" {
		t.Error("step 2 should have recorded the failure")
	}
	if result.Steps[2].Response != "ok:say three" {
		t.Errorf("step 3 response = %q", result.Steps[2].Response)
	}

	exec = &sequenceExecutor{failAt: 2}
	d = NewDispatcher(exec, nil)
	result = d.RunBatch(context.Background(), cmds, Policy{}, true, time.Second)
	if result.Completed {
		t.Error("batch should abort when stopOnError is true")
	}
	if len(result.Steps) != 2 {
		t.Errorf("steps = %d, want 2", len(result.Steps))
	}
}
