package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/ichi0g0y/champion-bot/internal/duel"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// threadArchiveMinutes is the auto-archive duration of duel threads.
const threadArchiveMinutes = 60

// postInvite announces an invite with its accept button.
func (p *Platform) postInvite(ctx context.Context, inv duel.Invite) error {
	msg, err := p.api.ChannelMessageSendComplex(inv.ChannelID, &discordgo.MessageSend{
		Content: inviteContent(inv, inv.CreatedAt.Add(p.inviteTimeout)),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Accept duel", Style: discordgo.SuccessButton, CustomID: customID(actionDuelAccept, inv.ID)},
			}},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post duel invite: %w", err)
	}

	p.mu.Lock()
	p.invites[inv.ID] = inviteMessage{channelID: inv.ChannelID, messageID: msg.ID}
	p.mu.Unlock()
	return nil
}

// closeInvite replaces the invite message text and drops its button.
func (p *Platform) closeInvite(ctx context.Context, inviteID, content string) (inviteMessage, bool) {
	p.mu.Lock()
	im, ok := p.invites[inviteID]
	delete(p.invites, inviteID)
	p.mu.Unlock()
	if !ok {
		return inviteMessage{}, false
	}

	edit := discordgo.NewMessageEdit(im.channelID, im.messageID)
	edit.Content = &content
	edit.Components = &[]discordgo.MessageComponent{}
	if _, err := p.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		logger.Warn("Failed to update duel invite", zap.String("invite_id", inviteID), zap.Error(err))
	}
	return im, true
}

func (p *Platform) InviteExpired(ctx context.Context, inv duel.Invite) error {
	if _, ok := p.closeInvite(ctx, inv.ID, fmt.Sprintf("The duel invite of %s expired.", mention(inv.ChallengerID))); ok {
		return nil
	}
	if _, err := p.api.ChannelMessageSendComplex(inv.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("The duel invite of %s expired.", mention(inv.ChallengerID)),
	}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to announce expired invite: %w", err)
	}
	return nil
}

// CreateThread opens the thread a duel is played in, on the invite message
// when it is known.
func (p *Platform) CreateThread(ctx context.Context, s duel.Summary) (string, error) {
	name := fmt.Sprintf("Duel %s", s.ID)
	content := fmt.Sprintf("Duel accepted by %s: %s", mention(s.OpponentID), describeConfig(s.Config))

	var (
		thread *discordgo.Channel
		err    error
	)
	if im, ok := p.closeInvite(ctx, s.ID, content); ok {
		thread, err = p.api.MessageThreadStart(im.channelID, im.messageID, name, threadArchiveMinutes, discordgo.WithContext(ctx))
	} else {
		thread, err = p.api.ThreadStart(s.ChannelID, name, discordgo.ChannelTypeGuildPublicThread, threadArchiveMinutes, discordgo.WithContext(ctx))
	}
	if err != nil {
		logger.Error("Failed to create duel thread", zap.String("duel_id", s.ID), zap.Error(err))
		return "", fmt.Errorf("failed to create duel thread: %w", err)
	}

	if err := p.send(ctx, thread.ID, fmt.Sprintf("%s vs %s. %d points in the pot. First round starts now.",
		mention(s.ChallengerID), mention(s.OpponentID), s.Pot), nil); err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (p *Platform) AskRound(ctx context.Context, s duel.Summary, round int, q types.Question) error {
	content := fmt.Sprintf("**Round %d**\n%s\n\nYou have %s.", round, q.Text, s.Config.Timeout)
	return p.send(ctx, s.ThreadID, content, answerButton(actionDuelAnswer, s.ID))
}

func (p *Platform) RoundResult(ctx context.Context, s duel.Summary, result duel.RoundResult) error {
	return p.send(ctx, s.ThreadID, roundResultContent(s, result), nil)
}

func (p *Platform) Finished(ctx context.Context, s duel.Summary) error {
	content := finishedContent(s)
	if err := p.send(ctx, s.ThreadID, content, nil); err != nil {
		return err
	}
	return p.send(ctx, s.ChannelID, content, nil)
}

func (p *Platform) Aborted(ctx context.Context, s duel.Summary, reason string) error {
	p.closeInvite(ctx, s.ID, abortedContent(reason))

	channelID := s.ThreadID
	if channelID == "" {
		channelID = s.ChannelID
	}
	return p.send(ctx, channelID, abortedContent(reason), nil)
}

func (p *Platform) send(ctx context.Context, channelID, content string, components []discordgo.MessageComponent) error {
	if _, err := p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    content,
		Components: components,
	}, discordgo.WithContext(ctx)); err != nil {
		logger.Error("Failed to send message", zap.String("channel_id", channelID), zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
