package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Command is a structured administrative request. Args are positional;
// trailing free-text arguments (reasons, messages) may contain spaces.
// Origin and Sender identify the requester for auditing only.
type Command struct {
	Action Action
	Args   []string

	Origin string
	Sender string
}

// Dangerous reports whether this command requires the dangerous-commands policy.
func (c Command) Dangerous() bool {
	return c.Action.Dangerous()
}

// qualify prefixes bare item/entity ids with the vanilla namespace.
// Ids are passed through otherwise unvalidated: the server is the
// authority on whether they exist.
func qualify(id string) string {
	if id == "" || strings.Contains(id, ":") {
		return id
	}
	return "minecraft:" + id
}

// marshalChatJSON encodes a raw-JSON chat component without HTML escaping,
// so angle brackets around the sender name survive as-is.
func marshalChatJSON(component map[string]string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(component); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

var validWeather = map[string]bool{"clear": true, "rain": true, "thunder": true}
var validDifficulty = map[string]bool{"peaceful": true, "easy": true, "normal": true, "hard": true}

// Render turns a command into the exact textual line the server expects.
// Reason strings and messages pass through as trailing free text.
func Render(c Command) (string, error) {
	a := c.Args
	need := func(n int) error {
		if len(a) < n {
			return fmt.Errorf("action %s requires at least %d argument(s), got %d", c.Action, n, len(a))
		}
		return nil
	}

	switch c.Action {
	case ActionKick, ActionBan:
		if err := need(1); err != nil {
			return "", err
		}
		verb := "kick"
		if c.Action == ActionBan {
			verb = "ban"
		}
		if len(a) > 1 {
			return fmt.Sprintf("%s %s %s", verb, a[0], strings.Join(a[1:], " ")), nil
		}
		return fmt.Sprintf("%s %s", verb, a[0]), nil

	case ActionPardon, ActionOp, ActionDeop, ActionKill:
		if err := need(1); err != nil {
			return "", err
		}
		verb := map[Action]string{
			ActionPardon: "pardon", ActionOp: "op", ActionDeop: "deop", ActionKill: "kill",
		}[c.Action]
		return fmt.Sprintf("%s %s", verb, a[0]), nil

	case ActionWhitelistAdd, ActionWhitelistRemove:
		if err := need(1); err != nil {
			return "", err
		}
		sub := "add"
		if c.Action == ActionWhitelistRemove {
			sub = "remove"
		}
		return fmt.Sprintf("whitelist %s %s", sub, a[0]), nil

	case ActionWhitelistList:
		return "whitelist list", nil

	case ActionWhitelistOn:
		return "whitelist on", nil

	case ActionWhitelistOff:
		return "whitelist off", nil

	case ActionWhitelistReload:
		return "whitelist reload", nil

	case ActionGive:
		if err := need(2); err != nil {
			return "", err
		}
		count := "1"
		if len(a) >= 3 {
			count = a[2]
		}
		return fmt.Sprintf("give %s %s %s", a[0], qualify(a[1]), count), nil

	case ActionTeleport:
		if err := need(2); err != nil {
			return "", err
		}
		return fmt.Sprintf("tp %s %s", a[0], strings.Join(a[1:], " ")), nil

	case ActionGamemode:
		if err := need(2); err != nil {
			return "", err
		}
		return fmt.Sprintf("gamemode %s %s", a[1], a[0]), nil

	case ActionClear:
		if err := need(1); err != nil {
			return "", err
		}
		if len(a) >= 2 && a[1] != "" {
			return fmt.Sprintf("clear %s %s", a[0], qualify(a[1])), nil
		}
		return fmt.Sprintf("clear %s", a[0]), nil

	case ActionXP:
		// player, amount, [set|add], [points|levels]
		if err := need(2); err != nil {
			return "", err
		}
		op, unit := "set", "points"
		if len(a) >= 3 && a[2] != "" {
			op = a[2]
		}
		if len(a) >= 4 && a[3] != "" {
			unit = a[3]
		}
		return fmt.Sprintf("xp %s %s %s %s", op, a[0], a[1], unit), nil

	case ActionList:
		return "list", nil

	case ActionSay:
		if err := need(1); err != nil {
			return "", err
		}
		return "say " + strings.Join(a, " "), nil

	case ActionTellraw:
		// message, [sender], [color], [target]
		if err := need(1); err != nil {
			return "", err
		}
		sender, color, target := "Bot", "yellow", "@a"
		if len(a) >= 2 && a[1] != "" {
			sender = a[1]
		}
		if len(a) >= 3 && a[2] != "" {
			color = a[2]
		}
		if len(a) >= 4 && a[3] != "" {
			target = a[3]
		}
		payload, err := marshalChatJSON(map[string]string{
			"text":  fmt.Sprintf("<%s> %s", sender, a[0]),
			"color": color,
		})
		if err != nil {
			return "", fmt.Errorf("failed to encode tellraw payload: %w", err)
		}
		return fmt.Sprintf("tellraw %s %s", target, payload), nil

	case ActionTitle:
		// text, [color], [target]
		if err := need(1); err != nil {
			return "", err
		}
		color, target := "white", "@a"
		if len(a) >= 2 && a[1] != "" {
			color = a[1]
		}
		if len(a) >= 3 && a[2] != "" {
			target = a[2]
		}
		payload, err := marshalChatJSON(map[string]string{"text": a[0], "color": color})
		if err != nil {
			return "", fmt.Errorf("failed to encode title payload: %w", err)
		}
		return fmt.Sprintf("title %s title %s", target, payload), nil

	case ActionSaveAll:
		return "save-all", nil

	case ActionBanlist:
		if len(a) >= 1 && strings.EqualFold(a[0], "ips") {
			return "banlist ips", nil
		}
		return "banlist players", nil

	case ActionStop:
		return "stop", nil

	case ActionWeather:
		if err := need(1); err != nil {
			return "", err
		}
		if !validWeather[a[0]] {
			return "", fmt.Errorf("invalid weather type %q (clear, rain, thunder)", a[0])
		}
		if len(a) >= 2 && a[1] != "" {
			return fmt.Sprintf("weather %s %s", a[0], a[1]), nil
		}
		return "weather " + a[0], nil

	case ActionTime:
		if err := need(1); err != nil {
			return "", err
		}
		if len(a) >= 2 && a[0] == "add" {
			return fmt.Sprintf("time add %s", a[1]), nil
		}
		return fmt.Sprintf("time set %s", a[0]), nil

	case ActionDifficulty:
		if err := need(1); err != nil {
			return "", err
		}
		if !validDifficulty[a[0]] {
			return "", fmt.Errorf("invalid difficulty %q (peaceful, easy, normal, hard)", a[0])
		}
		return "difficulty " + a[0], nil

	case ActionGamerule:
		if err := need(2); err != nil {
			return "", err
		}
		return fmt.Sprintf("gamerule %s %s", a[0], a[1]), nil

	case ActionSummon:
		if err := need(1); err != nil {
			return "", err
		}
		if len(a) >= 4 {
			return fmt.Sprintf("summon %s %s %s %s", qualify(a[0]), a[1], a[2], a[3]), nil
		}
		return "summon " + qualify(a[0]), nil

	case ActionFill:
		// x1 y1 z1 x2 y2 z2 block, [replace|destroy|keep|hollow|outline]
		if err := need(7); err != nil {
			return "", err
		}
		line := fmt.Sprintf("fill %s %s", strings.Join(a[:6], " "), qualify(a[6]))
		if len(a) >= 8 && a[7] != "" {
			line += " " + a[7]
		}
		return line, nil

	case ActionSetWorldSpawn:
		if len(a) >= 3 {
			return fmt.Sprintf("setworldspawn %s %s %s", a[0], a[1], a[2]), nil
		}
		return "setworldspawn", nil

	case ActionRaw:
		if err := need(1); err != nil {
			return "", err
		}
		return strings.TrimPrefix(strings.Join(a, " "), "/"), nil

	default:
		return "", fmt.Errorf("unknown action %q", c.Action)
	}
}
