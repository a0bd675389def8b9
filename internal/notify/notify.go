// Package notify defines the outbound chat-platform boundary. Game engines
// depend on these interfaces only; the discordgo adapter and a no-op
// implementation live alongside.
package notify

import (
	"fmt"
	"regexp"
	"strings"
)

// Notifier sends and edits display messages. Implementations must be safe
// for concurrent use; failures are display-only and never roll back game
// state.
type Notifier interface {
	Send(channelID, content string) (messageID string, err error)
	Edit(channelID, messageID, content string) error
	CreateThread(channelID, name string) (threadID string, err error)
}

// IdentityResolver resolves platform users to display names and applies
// name/role decoration.
type IdentityResolver interface {
	// DisplayName returns the best available display name for the user,
	// with any level decoration already stripped.
	DisplayName(userID string) (string, error)
	// SetNickname applies a decorated nickname to the user.
	SetNickname(userID, nickname string) error
	// SetOwnerRole grants or retracts the casino owner role flag.
	SetOwnerRole(userID string, owned bool) error
}

// levelSuffix matches the " - Level N" decoration appended to nicknames.
var levelSuffix = regexp.MustCompile(` - Level \d+$`)

// validBaseName permits letters, digits and spaces.
var validBaseName = regexp.MustCompile(`^[\p{L}\p{N} ]+$`)

// MaxBaseNameLen bounds a base name so the decorated nickname fits the
// platform's nickname limit.
const MaxBaseNameLen = 22

// StripDecoration removes the level suffix from a display name.
func StripDecoration(name string) string {
	return strings.TrimSpace(levelSuffix.ReplaceAllString(name, ""))
}

// DecorateName appends the level suffix to a base name.
func DecorateName(baseName string, level int) string {
	return fmt.Sprintf("%s - Level %d", baseName, level)
}

// ValidateBaseName checks a player-chosen base name.
func ValidateBaseName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len([]rune(name)) > MaxBaseNameLen {
		return fmt.Errorf("name must be at most %d characters", MaxBaseNameLen)
	}
	if !validBaseName.MatchString(name) {
		return fmt.Errorf("name may only contain letters, digits and spaces")
	}
	return nil
}
