package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/service"
	"github.com/helper-ledger/internal/types"
)

const (
	closeCommand         = "+close"
	stillNeedHelpCommand = "+stillneedhelp"

	thankButtonPrefix   = "thank:"
	closeThreadButtonID = "close_thread"
)

// BotConfig carries the guild wiring the gateway handlers need.
type BotConfig struct {
	GuildID      string
	HelpForumIDs []string
	StaffRoleIDs []string
}

// Bot wires gateway events to the thread and points services.
type Bot struct {
	session *discordgo.Session
	adapter *Adapter
	threads *service.ThreadService
	points  *service.PointsService
	cfg     BotConfig
	logger  *logging.Logger

	helpForums map[string]bool
}

// NewBot creates the gateway event bridge. Call Start to register handlers
// and open the connection.
func NewBot(
	session *discordgo.Session,
	adapter *Adapter,
	threads *service.ThreadService,
	points *service.PointsService,
	cfg BotConfig,
	logger *logging.Logger,
) *Bot {
	helpForums := make(map[string]bool, len(cfg.HelpForumIDs))
	for _, id := range cfg.HelpForumIDs {
		helpForums[id] = true
	}
	return &Bot{
		session:    session,
		adapter:    adapter,
		threads:    threads,
		points:     points,
		cfg:        cfg,
		logger:     logger,
		helpForums: helpForums,
	}
}

// Start registers the gateway handlers and opens the connection.
func (b *Bot) Start() error {
	b.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onThreadCreate)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.WithField("user", r.User.Username).Info("Gateway connection ready")
}

func (b *Bot) onThreadCreate(s *discordgo.Session, t *discordgo.ThreadCreate) {
	if !t.NewlyCreated || !b.helpForums[t.ParentID] {
		return
	}

	ctx := context.Background()
	if err := b.threads.Register(ctx, t.ID, t.OwnerID, t.ParentID); err != nil {
		b.logger.WithError(err).WithField("threadId", t.ID).Error("Failed to register help thread")
		return
	}

	_, err := s.ChannelMessageSend(t.ID, fmt.Sprintf(
		"<@%s> Thanks for your question! Helpers will be with you shortly. "+
			"When your problem is solved, type `%s` to thank them and close the thread.",
		t.OwnerID, closeCommand))
	if err != nil {
		b.logger.WithError(err).WithField("threadId", t.ID).Warn("Failed to send thread welcome")
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx := context.Background()
	if err := b.threads.TouchActivity(ctx, m.ChannelID); err != nil {
		b.logger.WithError(err).WithField("threadId", m.ChannelID).Warn("Failed to touch thread activity")
	}

	switch strings.TrimSpace(strings.ToLower(m.Content)) {
	case closeCommand:
		b.handleCloseCommand(ctx, m)
	case stillNeedHelpCommand:
		if err := b.threads.StillNeedHelp(ctx, m.ChannelID); err != nil {
			b.logger.WithError(err).WithField("threadId", m.ChannelID).Warn("Failed to acknowledge help request")
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("<@%s> Got it, the thread stays open.", m.Author.ID))
	}
}

// handleCloseCommand runs the close flow: staff force-close immediately,
// owners get the thank prompt first.
func (b *Bot) handleCloseCommand(ctx context.Context, m *discordgo.MessageCreate) {
	if b.isStaff(m.Member) {
		closed, err := b.threads.ForceClose(ctx, m.ChannelID)
		if err != nil {
			b.replyServiceError(m.ChannelID, m.Author.ID, err)
			return
		}
		if closed {
			b.reply(m.ChannelID, "This thread was closed by staff.")
			b.archiveThread(m.ChannelID)
		}
		return
	}

	participants, err := b.collectParticipants(m.ChannelID)
	if err != nil {
		b.logger.WithError(err).WithField("threadId", m.ChannelID).Error("Failed to collect thread participants")
	}

	req, err := b.threads.RequestClose(ctx, m.ChannelID, m.Author.ID, participants)
	if err != nil {
		b.replyServiceError(m.ChannelID, m.Author.ID, err)
		return
	}

	b.sendClosePrompt(m.ChannelID, m.Author.ID, req.EligibleHelpers)
}

// sendClosePrompt posts the thank buttons and the close confirmation button.
func (b *Bot) sendClosePrompt(threadID, ownerID string, helpers []string) {
	content := fmt.Sprintf("<@%s> Before closing, you can thank the helpers who solved your problem.", ownerID)
	if len(helpers) == 0 {
		content = fmt.Sprintf("<@%s> Press the button to close this thread.", ownerID)
	}

	var components []discordgo.MessageComponent

	// Up to five buttons per row.
	var row []discordgo.MessageComponent
	for _, helperID := range helpers {
		row = append(row, discordgo.Button{
			Label:    "Thank " + b.displayName(helperID),
			Style:    discordgo.PrimaryButton,
			CustomID: thankButtonPrefix + helperID,
		})
		if len(row) == 5 {
			components = append(components, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		components = append(components, discordgo.ActionsRow{Components: row})
	}
	components = append(components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Close thread",
			Style:    discordgo.DangerButton,
			CustomID: closeThreadButtonID,
		},
	}})

	_, err := b.session.ChannelMessageSendComplex(threadID, &discordgo.MessageSend{
		Content:    content,
		Components: components,
	})
	if err != nil {
		b.logger.WithError(err).WithField("threadId", threadID).Error("Failed to send close prompt")
	}
}

func (b *Bot) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	// A forum thread's starter message shares the thread's ID.
	if m.ID != m.ChannelID {
		return
	}
	if err := b.threads.HandleStarterDeleted(context.Background(), m.ChannelID); err != nil {
		b.logger.WithError(err).WithField("threadId", m.ChannelID).Error("Failed to close thread after starter deletion")
		return
	}
	b.archiveThread(m.ChannelID)
}

func (b *Bot) onGuildMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.User == nil {
		return
	}
	if _, err := b.threads.HandleMemberLeft(context.Background(), m.User.ID); err != nil {
		b.logger.WithError(err).WithField("userId", m.User.ID).Error("Failed to close threads of departed member")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent || i.Member == nil || i.Member.User == nil {
		return
	}

	ctx := context.Background()
	userID := i.Member.User.ID
	customID := i.MessageComponentData().CustomID

	switch {
	case strings.HasPrefix(customID, thankButtonPrefix):
		b.handleThankButton(ctx, i, userID, strings.TrimPrefix(customID, thankButtonPrefix))
	case customID == closeThreadButtonID:
		b.handleCloseButton(ctx, i, userID)
	}
}

func (b *Bot) handleThankButton(ctx context.Context, i *discordgo.InteractionCreate, userID, helperID string) {
	outcome, err := b.threads.ThankHelper(ctx, i.ChannelID, userID, helperID)
	if err != nil {
		b.respondEphemeral(i, serviceErrorReply(err))
		return
	}

	reply := fmt.Sprintf("<@%s> thanked <@%s>!", userID, helperID)
	if outcome.Accrual.Granted > 0 {
		reply += fmt.Sprintf(" They earned %d point(s).", outcome.Accrual.Granted)
	}
	b.respond(i, reply)
}

func (b *Bot) handleCloseButton(ctx context.Context, i *discordgo.InteractionCreate, userID string) {
	closed, err := b.threads.ConfirmClose(ctx, i.ChannelID, userID)
	if err != nil {
		b.respondEphemeral(i, serviceErrorReply(err))
		return
	}
	if !closed {
		b.respondEphemeral(i, "This thread is already closed.")
		return
	}

	b.respond(i, "This thread is now closed. Thanks for using the help forum!")
	b.archiveThread(i.ChannelID)
}

// archiveThread archives and locks the Discord thread after a close.
func (b *Bot) archiveThread(threadID string) {
	archived, locked := true, true
	_, err := b.session.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	})
	if err != nil {
		b.logger.WithError(err).WithField("threadId", threadID).Warn("Failed to archive thread")
	}
}

// collectParticipants gathers the distinct authors of recent thread messages.
func (b *Bot) collectParticipants(threadID string) ([]string, error) {
	messages, err := b.session.ChannelMessages(threadID, 100, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread messages: %w", err)
	}

	seen := make(map[string]bool)
	var participants []string
	for _, msg := range messages {
		if msg.Author == nil || msg.Author.Bot || seen[msg.Author.ID] {
			continue
		}
		seen[msg.Author.ID] = true
		participants = append(participants, msg.Author.ID)
	}
	return participants, nil
}

func (b *Bot) isStaff(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	for _, roleID := range member.Roles {
		for _, staffID := range b.cfg.StaffRoleIDs {
			if roleID == staffID {
				return true
			}
		}
	}
	return false
}

// displayName resolves a member's nick or username for button labels.
func (b *Bot) displayName(userID string) string {
	member, err := b.adapter.member(userID)
	if err != nil || member.User == nil {
		return "helper"
	}
	if member.Nick != "" {
		return member.Nick
	}
	return member.User.Username
}

func (b *Bot) reply(channelID, content string) {
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		b.logger.WithError(err).WithField("channelId", channelID).Warn("Failed to send reply")
	}
}

func (b *Bot) replyServiceError(channelID, userID string, err error) {
	b.reply(channelID, fmt.Sprintf("<@%s> %s", userID, serviceErrorReply(err)))
}

func (b *Bot) respond(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		b.logger.WithError(err).Warn("Failed to respond to interaction")
	}
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.WithError(err).Warn("Failed to respond to interaction")
	}
}

// serviceErrorReply maps expected service errors to user-facing reply text.
func serviceErrorReply(err error) string {
	var serviceErr *types.ServiceError
	if !errors.As(err, &serviceErr) {
		return "Something went wrong, please try again later."
	}

	switch serviceErr.Code {
	case types.ErrCodeDailyLimit:
		return "This helper already earned the daily point maximum. The thank was recorded, but no points were awarded."
	case types.ErrCodeLifetimeCap:
		return "This helper has reached the point cap for unverified helpers."
	case types.ErrCodeAlreadyThanked:
		return "You already thanked this helper in this thread."
	case types.ErrCodeThreadNotFound:
		return "This is not an open help thread."
	case types.ErrCodeNotThreadOwner:
		return "Only the thread creator can do that."
	default:
		return serviceErr.Message
	}
}
