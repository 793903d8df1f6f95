package command

import (
	"strconv"
	"strings"
)

// ParsePlayerList extracts the online count and player names from the
// reply to "list". Vanilla format:
//
//	There are 2 of a max of 20 players online: Steve, Alex
//
// Replies that do not match report zero players.
func ParsePlayerList(reply string) (int, []string) {
	if !strings.Contains(reply, "There are") {
		return 0, nil
	}

	head, tail, _ := strings.Cut(reply, "players online:")

	count := 0
	if fields := strings.Fields(head); len(fields) >= 3 {
		count, _ = strconv.Atoi(fields[2])
	}

	var players []string
	for _, name := range strings.Split(tail, ",") {
		if name = strings.TrimSpace(name); name != "" {
			players = append(players, name)
		}
	}
	return count, players
}
