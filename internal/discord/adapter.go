// Package discord binds the services to the Discord gateway: it implements
// the platform interfaces over a discordgo session and translates gateway
// events into service calls.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Adapter implements platform.RoleManager and platform.Notifier over a
// Discord session. The discordgo client manages its own timeouts, so the
// contexts are accepted for interface compatibility only.
type Adapter struct {
	session *discordgo.Session
	guildID string
}

// NewAdapter creates a platform adapter for one guild.
func NewAdapter(session *discordgo.Session, guildID string) *Adapter {
	return &Adapter{session: session, guildID: guildID}
}

// HasRole reports whether the member holds the role, preferring the gateway
// state cache over a REST lookup.
func (a *Adapter) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	member, err := a.member(userID)
	if err != nil {
		return false, err
	}
	for _, r := range member.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

// GrantRole assigns the role to the member.
func (a *Adapter) GrantRole(ctx context.Context, userID, roleID string) error {
	if err := a.session.GuildMemberRoleAdd(a.guildID, userID, roleID); err != nil {
		return fmt.Errorf("failed to grant role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

// RevokeRole removes the role from the member.
func (a *Adapter) RevokeRole(ctx context.Context, userID, roleID string) error {
	if err := a.session.GuildMemberRoleRemove(a.guildID, userID, roleID); err != nil {
		return fmt.Errorf("failed to revoke role %s from %s: %w", roleID, userID, err)
	}
	return nil
}

// RoleName resolves the role's display name from the state cache, falling
// back to listing the guild roles.
func (a *Adapter) RoleName(ctx context.Context, roleID string) (string, error) {
	if role, err := a.session.State.Role(a.guildID, roleID); err == nil {
		return role.Name, nil
	}

	roles, err := a.session.GuildRoles(a.guildID)
	if err != nil {
		return "", fmt.Errorf("failed to list guild roles: %w", err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role.Name, nil
		}
	}
	return "", fmt.Errorf("role %s not found in guild %s", roleID, a.guildID)
}

// NotifyUser sends a direct message to the member.
func (a *Adapter) NotifyUser(ctx context.Context, userID, content string) error {
	channel, err := a.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel with %s: %w", userID, err)
	}
	if _, err := a.session.ChannelMessageSend(channel.ID, content); err != nil {
		return fmt.Errorf("failed to send DM to %s: %w", userID, err)
	}
	return nil
}

// NotifyChannel posts a message to a channel or thread.
func (a *Adapter) NotifyChannel(ctx context.Context, channelID, content string) error {
	if _, err := a.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return nil
}

func (a *Adapter) member(userID string) (*discordgo.Member, error) {
	if member, err := a.session.State.Member(a.guildID, userID); err == nil {
		return member, nil
	}
	member, err := a.session.GuildMember(a.guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member %s: %w", userID, err)
	}
	return member, nil
}
