package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ichi0g0y/champion-bot/internal/quiz"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// PostQuestion posts q with an answer button and returns the message ID.
func (p *Platform) PostQuestion(ctx context.Context, channelID, area string, q types.Question, end time.Time) (string, error) {
	msg, err := p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    questionContent(area, q, end),
		Components: answerButton(actionQuizAnswer, area),
	}, discordgo.WithContext(ctx))
	if err != nil {
		logger.Error("Failed to post quiz question",
			zap.String("area", area), zap.String("channel_id", channelID), zap.Error(err))
		return "", fmt.Errorf("failed to post question: %w", err)
	}
	return msg.ID, nil
}

// RevealQuestion rewrites the question message with the accepted answers and
// removes its answer button.
func (p *Platform) RevealQuestion(ctx context.Context, area string, info types.QuestionInfo, result quiz.CloseResult) error {
	content := revealContent(area, info, result)
	edit := discordgo.NewMessageEdit(info.ChannelID, info.MessageID)
	edit.Content = &content
	edit.Components = &[]discordgo.MessageComponent{}

	if _, err := p.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		logger.Error("Failed to reveal quiz question",
			zap.String("area", area), zap.String("message_id", info.MessageID), zap.Error(err))
		return fmt.Errorf("failed to reveal question: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages of channelID, newest first.
func (p *Platform) RecentMessages(ctx context.Context, channelID string, limit int) ([]quiz.ChatMessage, error) {
	msgs, err := p.api.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel history: %w", err)
	}

	result := make([]quiz.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, quiz.ChatMessage{
			ID:      m.ID,
			FromBot: m.Author != nil && m.Author.Bot,
		})
	}
	return result, nil
}
