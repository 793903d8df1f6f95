// Package command validates structured administrative commands, renders
// them into Minecraft command lines and dispatches them through an RCON
// session. The natural-language layer that produces the structured
// commands lives outside this module.
package command

// Action identifies one administrative operation from the closed set the
// dispatcher understands.
type Action string

const (
	ActionKick            Action = "kick"
	ActionBan             Action = "ban"
	ActionPardon          Action = "pardon"
	ActionOp              Action = "op"
	ActionDeop            Action = "deop"
	ActionWhitelistAdd    Action = "whitelist_add"
	ActionWhitelistRemove Action = "whitelist_remove"
	ActionWhitelistList   Action = "whitelist_list"
	ActionWhitelistOn     Action = "whitelist_on"
	ActionWhitelistOff    Action = "whitelist_off"
	ActionWhitelistReload Action = "whitelist_reload"
	ActionGive            Action = "give"
	ActionTeleport        Action = "teleport"
	ActionGamemode        Action = "gamemode"
	ActionKill            Action = "kill"
	ActionClear           Action = "clear"
	ActionXP              Action = "xp"
	ActionList            Action = "list"
	ActionSay             Action = "say"
	ActionTellraw         Action = "tellraw"
	ActionTitle           Action = "title"
	ActionSaveAll         Action = "save_all"
	ActionBanlist         Action = "banlist"
	ActionStop            Action = "stop"
	ActionWeather         Action = "weather"
	ActionTime            Action = "time"
	ActionDifficulty      Action = "difficulty"
	ActionGamerule        Action = "gamerule"
	ActionSummon          Action = "summon"
	ActionFill            Action = "fill"
	ActionSetWorldSpawn   Action = "setworldspawn"
	// ActionRaw passes an arbitrary command line through unrendered.
	ActionRaw Action = "raw"
)

// dangerousActions are rejected unless the dangerous-commands policy is
// enabled. stop kills the server; raw can carry anything, including stop.
var dangerousActions = map[Action]bool{
	ActionStop: true,
	ActionRaw:  true,
}

// knownActions is the closed action set.
var knownActions = map[Action]bool{
	ActionKick: true, ActionBan: true, ActionPardon: true,
	ActionOp: true, ActionDeop: true,
	ActionWhitelistAdd: true, ActionWhitelistRemove: true, ActionWhitelistList: true,
	ActionWhitelistOn: true, ActionWhitelistOff: true, ActionWhitelistReload: true,
	ActionGive: true, ActionTeleport: true, ActionGamemode: true,
	ActionKill: true, ActionClear: true, ActionXP: true,
	ActionList: true, ActionSay: true, ActionTellraw: true, ActionTitle: true,
	ActionSaveAll: true, ActionBanlist: true, ActionStop: true,
	ActionWeather: true, ActionTime: true, ActionDifficulty: true,
	ActionGamerule: true, ActionSummon: true,
	ActionFill: true, ActionSetWorldSpawn: true, ActionRaw: true,
}

// Known reports whether a is part of the closed action set.
func (a Action) Known() bool {
	return knownActions[a]
}

// Dangerous reports whether a requires the dangerous-commands policy.
func (a Action) Dangerous() bool {
	return dangerousActions[a]
}
