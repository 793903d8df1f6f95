// Package cli implements the interactive operator console for MCWarden:
// link status, player listing, structured command dispatch and
// permission inspection.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/logmon"
	"github.com/mcwarden-project/mcwarden/internal/permission"
	"github.com/mcwarden-project/mcwarden/internal/rcon"
)

// CLI provides the interactive operator console.
type CLI struct {
	cfg        *config.Config
	eventBus   *events.EventBus
	session    *rcon.Session
	dispatcher *command.Dispatcher
	bridge     *logmon.Bridge
	gate       *permission.AllowList
}

// NewCLI creates a new CLI handler. The bridge may be nil when the log
// monitor is disabled.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, session *rcon.Session,
	dispatcher *command.Dispatcher, bridge *logmon.Bridge, gate *permission.AllowList) *CLI {
	return &CLI{
		cfg:        cfg,
		eventBus:   eventBus,
		session:    session,
		dispatcher: dispatcher,
		bridge:     bridge,
		gate:       gate,
	}
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nMCWarden CLI ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("mcwarden> ")
			if !scanner.Scan() {
				return
			}
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				log.Debug().Msg("CLI input closed")
				return
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			parts := strings.Fields(line)
			cmd := strings.ToLower(parts[0])
			args := parts[1:]

			if err := c.execute(ctx, cmd, args); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "players", "list", "l":
		return c.cmdPlayers(ctx)
	case "exec", "e":
		return c.cmdExec(ctx, args)
	case "say":
		return c.cmdSay(ctx, args)
	case "test":
		return c.cmdTest(ctx)
	case "perms", "p":
		c.printPerms()
	case "setconfig":
		return c.cmdSetConfig(args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down MCWarden...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                     MCWarden CLI Commands                    ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Println("║  status             Show RCON link and bridge status         ║")
	fmt.Println("║  players            List online players                      ║")
	fmt.Println("║  exec <action> ...  Dispatch a command (e.g. exec kick Bob)  ║")
	fmt.Println("║  say <message>      Broadcast a chat message                 ║")
	fmt.Println("║  test               Test the RCON connection                 ║")
	fmt.Println("║  perms              Show the permission allow-lists          ║")
	fmt.Println("║  setconfig <k> <v>  Update a configuration value             ║")
	fmt.Println("║  quit               Shutdown MCWarden                        ║")
	fmt.Println("║  help               Show this help message                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printStatus displays link status.
func (c *CLI) printStatus() {
	mc := c.cfg.GetMinecraft()

	fmt.Printf("\n  RCON Target:    %s\n", c.session.Addr())
	fmt.Printf("  RCON Connected: %v\n", c.session.Connected())
	fmt.Printf("  Dangerous Cmds: %v\n", mc.EnableDangerousCommands)
	fmt.Printf("  Log Monitor:    %v\n", mc.EnableLogMonitor)
	if c.bridge != nil {
		fmt.Printf("  Bridge State:   %s\n", c.bridge.State())
	}
	fmt.Printf("  Wake Words:     %s\n", strings.Join(mc.WakeWords, ", "))
	fmt.Println()
}

// cmdPlayers lists online players in a table.
func (c *CLI) cmdPlayers(ctx context.Context) error {
	reply, err := c.session.Execute(ctx, "list")
	if err != nil {
		return err
	}

	count, names := command.ParsePlayerList(reply)
	if count == 0 {
		fmt.Println("No players online.")
		return nil
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"#", "Player"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for i, name := range names {
		tw.Append([]string{fmt.Sprintf("%d", i+1), name})
	}
	tw.Render()
	fmt.Printf("\n%d player(s) online\n\n", count)
	return nil
}

// cmdExec dispatches one structured command.
func (c *CLI) cmdExec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: exec <action> [args...]")
	}

	cmd := command.Command{
		Action: command.Action(args[0]),
		Args:   args[1:],
		Origin: "cli",
		Sender: "operator",
	}
	policy := command.Policy{
		EnableDangerous: c.cfg.GetMinecraft().EnableDangerousCommands,
	}

	reply, err := c.dispatcher.Dispatch(ctx, cmd, policy)
	if err != nil {
		return err
	}
	if reply == "" {
		reply = "(no reply)"
	}
	fmt.Println(reply)
	return nil
}

// cmdSay broadcasts a chat message.
func (c *CLI) cmdSay(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: say <message>")
	}
	return c.cmdExec(ctx, append([]string{"say"}, args...))
}

// cmdTest verifies the RCON link end to end.
func (c *CLI) cmdTest(ctx context.Context) error {
	reply, err := c.session.Ping(ctx)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	fmt.Printf("Connection OK. Server replied: %s\n", reply)
	return nil
}

// printPerms shows both allow-lists.
func (c *CLI) printPerms() {
	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Namespace", "Admitted"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, ns := range []permission.Namespace{permission.NamespaceChat, permission.NamespaceMinecraft} {
		members := c.gate.Members(ns)
		admitted := "(everyone — list empty)"
		if len(members) > 0 {
			admitted = strings.Join(members, ", ")
		}
		tw.Append([]string{string(ns), admitted})
	}
	tw.Render()
	fmt.Println()
}

func (c *CLI) cmdSetConfig(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setconfig <key> <value>")
	}

	key := args[0]
	value := strings.Join(args[1:], " ")

	if err := c.cfg.UpdateMinecraftField(key, value); err != nil {
		return err
	}
	if err := c.cfg.Save(); err != nil {
		return err
	}

	fmt.Printf("Config updated: %s = %s\n", key, value)
	return nil
}
