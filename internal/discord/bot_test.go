package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/helper-ledger/internal/types"
)

func TestServiceErrorReply(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "daily limit",
			err:  &types.ServiceError{Code: types.ErrCodeDailyLimit, Message: "daily limit reached"},
			want: "This helper already earned the daily point maximum. The thank was recorded, but no points were awarded.",
		},
		{
			name: "already thanked",
			err:  &types.ServiceError{Code: types.ErrCodeAlreadyThanked, Message: "duplicate"},
			want: "You already thanked this helper in this thread.",
		},
		{
			name: "not owner",
			err:  &types.ServiceError{Code: types.ErrCodeNotThreadOwner, Message: "not owner"},
			want: "Only the thread creator can do that.",
		},
		{
			name: "unexpected error",
			err:  errors.New("connection reset"),
			want: "Something went wrong, please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serviceErrorReply(tt.err))
		})
	}
}

func TestIsStaff(t *testing.T) {
	b := &Bot{cfg: BotConfig{StaffRoleIDs: []string{"mod", "admin"}}}

	assert.True(t, b.isStaff(&discordgo.Member{Roles: []string{"helper", "admin"}}))
	assert.False(t, b.isStaff(&discordgo.Member{Roles: []string{"helper"}}))
	assert.False(t, b.isStaff(nil))
}
