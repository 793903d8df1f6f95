// Package permission implements the dual-namespace admission model.
// Operators from the external chat network and players in game chat are
// admitted against independent allow-lists; an empty list admits everyone
// in its namespace.
package permission

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Namespace identifies which allow-list an identifier belongs to.
// An identifier from one namespace is never checked against the other.
type Namespace string

const (
	// NamespaceChat is the external chat network (QQ, Discord, ...).
	NamespaceChat Namespace = "chat"
	// NamespaceMinecraft is in-game chat, reached via the log bridge.
	NamespaceMinecraft Namespace = "mc"
)

// PlayerIDPrefix is prepended to a player name to synthesize an in-game
// sender identity, so both namespaces flow through the same gate logic.
const PlayerIDPrefix = "mc_player_"

// PlayerID synthesizes the admission identifier for an in-game player.
func PlayerID(playerName string) string {
	return PlayerIDPrefix + playerName
}

// AllowList holds the admitted identifiers per namespace. Mutable at
// runtime through the admin API, hence the lock.
type AllowList struct {
	mu   sync.RWMutex
	sets map[Namespace]map[string]bool
}

// NewAllowList builds an allow-list from the configured admin ids.
func NewAllowList(chatIDs, minecraftIDs []string) *AllowList {
	al := &AllowList{sets: map[Namespace]map[string]bool{}}
	al.Replace(NamespaceChat, chatIDs)
	al.Replace(NamespaceMinecraft, minecraftIDs)
	return al
}

// Replace swaps out the whole set for one namespace.
func (al *AllowList) Replace(ns Namespace, ids []string) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}

	al.mu.Lock()
	al.sets[ns] = set
	al.mu.Unlock()

	log.Debug().Str("namespace", string(ns)).Int("entries", len(set)).Msg("allow list replaced")
}

// Members returns the identifiers admitted in a namespace.
func (al *AllowList) Members(ns Namespace) []string {
	al.mu.RLock()
	defer al.mu.RUnlock()

	out := make([]string, 0, len(al.sets[ns]))
	for id := range al.sets[ns] {
		out = append(out, id)
	}
	return out
}

// IsAdmitted decides admission for one (namespace, identifier) pair.
// An empty set for the namespace admits everyone; otherwise exact
// membership is required. Evaluated once per inbound message at the
// boundary, never re-checked per sub-action.
func (al *AllowList) IsAdmitted(ns Namespace, id string) bool {
	al.mu.RLock()
	defer al.mu.RUnlock()

	set := al.sets[ns]
	if len(set) == 0 {
		return true
	}
	return set[id]
}
