package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Discord adapts a discordgo session to the Notifier and IdentityResolver
// boundaries.
type Discord struct {
	session     *discordgo.Session
	guildID     string
	ownerRoleID string
}

var _ Notifier = (*Discord)(nil)
var _ IdentityResolver = (*Discord)(nil)

// NewDiscord wraps an open discordgo session. ownerRoleID may be empty,
// in which case role decoration is skipped.
func NewDiscord(session *discordgo.Session, guildID, ownerRoleID string) *Discord {
	return &Discord{session: session, guildID: guildID, ownerRoleID: ownerRoleID}
}

// Send posts a message and returns its ID for later edits.
func (d *Discord) Send(channelID, content string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

// Edit replaces the content of an existing message.
func (d *Discord) Edit(channelID, messageID, content string) error {
	if _, err := d.session.ChannelMessageEdit(channelID, messageID, content); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// CreateThread opens a public thread under the channel.
func (d *Discord) CreateThread(channelID, name string) (string, error) {
	thread, err := d.session.ThreadStart(channelID, name, discordgo.ChannelTypeGuildPublicThread, 1440)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

// DisplayName resolves the fallback chain nickname, global name, account
// name, stripping any level decoration.
func (d *Discord) DisplayName(userID string) (string, error) {
	member, err := d.session.GuildMember(d.guildID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch member: %w", err)
	}

	name := member.Nick
	if name == "" && member.User != nil {
		name = member.User.GlobalName
		if name == "" {
			name = member.User.Username
		}
	}
	if name == "" {
		name = "player"
	}
	return StripDecoration(name), nil
}

// SetNickname applies a decorated nickname. Permission failures (server
// owner, higher role) are logged and swallowed: nickname decoration is
// cosmetic.
func (d *Discord) SetNickname(userID, nickname string) error {
	if err := d.session.GuildMemberNickname(d.guildID, userID, nickname); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to set nickname")
	}
	return nil
}

// SetOwnerRole grants or retracts the configured owner role.
func (d *Discord) SetOwnerRole(userID string, owned bool) error {
	if d.ownerRoleID == "" {
		return nil
	}
	var err error
	if owned {
		err = d.session.GuildMemberRoleAdd(d.guildID, userID, d.ownerRoleID)
	} else {
		err = d.session.GuildMemberRoleRemove(d.guildID, userID, d.ownerRoleID)
	}
	if err != nil {
		return fmt.Errorf("failed to update owner role: %w", err)
	}
	return nil
}
