// Package platform declares the interfaces the core services consume from the
// chat platform. The Discord implementations live in internal/discord; tests
// use in-memory fakes.
package platform

import "context"

// RoleManager manages role markers on community members.
type RoleManager interface {
	// HasRole reports whether a member currently holds a role.
	HasRole(ctx context.Context, userID, roleID string) (bool, error)

	// GrantRole assigns a role to a member.
	GrantRole(ctx context.Context, userID, roleID string) error

	// RevokeRole removes a role from a member.
	RevokeRole(ctx context.Context, userID, roleID string) error

	// RoleName resolves a role's display name. A failed lookup degrades the
	// caller's result, never the transition it decorates.
	RoleName(ctx context.Context, roleID string) (string, error)
}

// Notifier delivers best-effort messages. Failures are logged by the callers
// and never roll back the state change they announce.
type Notifier interface {
	// NotifyUser sends a direct message to a member.
	NotifyUser(ctx context.Context, userID, content string) error

	// NotifyChannel posts a message to a channel.
	NotifyChannel(ctx context.Context, channelID, content string) error
}
