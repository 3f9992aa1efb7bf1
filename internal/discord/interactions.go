package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/ichi0g0y/champion-bot/internal/duel"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

const (
	leaderboardSize = 10
	historySize     = 5
)

func (p *Platform) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := p.eventContext()
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if len(data.Options) == 0 {
			return
		}
		sub := data.Options[0]
		switch data.Name {
		case "quiz":
			p.handleQuizCommand(ctx, s, i, sub.Name, options(sub.Options))
		case "duel":
			p.handleDuelCommand(ctx, s, i, sub.Name, options(sub.Options))
		}

	case discordgo.InteractionMessageComponent:
		action, target, ok := parseCustomID(i.MessageComponentData().CustomID)
		if !ok {
			return
		}
		switch action {
		case actionQuizAnswer:
			p.respondRaw(s, i, answerModal(actionQuizModal, target, "Quiz answer"))
		case actionDuelAnswer:
			p.respondRaw(s, i, answerModal(actionDuelModal, target, "Duel answer"))
		case actionDuelAccept:
			p.handleDuelAccept(ctx, s, i, target)
		}

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		action, target, ok := parseCustomID(data.CustomID)
		if !ok {
			return
		}
		answer := modalValue(data, answerInputID)
		switch action {
		case actionQuizModal:
			p.handleQuizAnswer(ctx, s, i, target, answer)
		case actionDuelModal:
			p.handleDuelAnswer(s, i, target, answer)
		}
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (p *Platform) handleQuizCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, name string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	q := p.svc().Quiz
	if q == nil {
		p.respond(s, i, "The quiz is not running.")
		return
	}
	area := ""
	if o, ok := opts["area"]; ok {
		area = o.StringValue()
	}

	// posting and revealing talk to Discord, acknowledge first
	if name == "ask" || name == "reveal" || name == "enable" || name == "disable" {
		p.deferResponse(s, i)
		content, err := p.runQuizCommand(ctx, s, i, q, name, area, opts)
		p.editResponse(s, i, p.resultText(content, err, name))
		return
	}

	content, err := p.runQuizCommand(ctx, s, i, q, name, area, opts)
	p.respond(s, i, p.resultText(content, err, name))
}

func (p *Platform) runQuizCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, q QuizService, name, area string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	switch name {
	case "enable":
		channelID := i.ChannelID
		if o, ok := opts["channel"]; ok {
			channelID = o.ChannelValue(s).ID
		}
		a, err := q.EnableArea(ctx, area, channelID)
		if err != nil {
			return "", err
		}
		return areaContent("enabled", a), nil
	case "disable":
		a, err := q.DisableArea(ctx, area)
		if err != nil {
			return "", err
		}
		return areaContent("disabled", a), nil
	case "time":
		a, err := q.SetTimeWindow(area, int(opts["minutes"].IntValue()))
		if err != nil {
			return "", err
		}
		return areaContent("updated", a), nil
	case "language":
		a, err := q.SetLanguage(area, opts["code"].StringValue())
		if err != nil {
			return "", err
		}
		return areaContent("updated", a), nil
	case "threshold":
		a, err := q.SetThreshold(area, int(opts["messages"].IntValue()))
		if err != nil {
			return "", err
		}
		return areaContent("updated", a), nil
	case "ask":
		if err := q.ForceAsk(ctx, area); err != nil {
			return "", err
		}
		return fmt.Sprintf("Question posted in **%s**.", area), nil
	case "reveal":
		if err := q.Reveal(ctx, area); err != nil {
			return "", err
		}
		return fmt.Sprintf("Question of **%s** revealed.", area), nil
	case "remaining":
		r, err := q.Remaining(area)
		if err != nil {
			return "", err
		}
		return remainingContent(r), nil
	case "reset-history":
		if err := q.ResetHistory(area); err != nil {
			return "", err
		}
		return fmt.Sprintf("Question history of **%s** cleared.", area), nil
	}
	return "", fmt.Errorf("unknown quiz command %q", name)
}

func (p *Platform) handleDuelCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, name string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	svc := p.svc()
	user := interactionUser(i)
	if user == nil {
		return
	}

	switch name {
	case "start":
		if svc.Duels == nil {
			p.respond(s, i, "Duels are not available.")
			return
		}
		fallback := ""
		if svc.Quiz != nil {
			fallback, _ = svc.Quiz.AreaForChannel(i.ChannelID)
		}
		cfg, err := duelConfig(opts, fallback)
		if err != nil {
			p.respond(s, i, p.resultText("", err, "duel start"))
			return
		}
		inv, err := svc.Duels.Invite(ctx, i.ChannelID, user.ID, cfg)
		if err != nil {
			p.respond(s, i, p.resultText("", err, "duel start"))
			return
		}
		if err := p.postInvite(ctx, inv); err != nil {
			logger.Error("Failed to post duel invite", zap.String("invite_id", inv.ID), zap.Error(err))
			p.respond(s, i, "The invite could not be posted. It expires on its own.")
			return
		}
		p.respond(s, i, "Your duel invite is up.")

	case "stats":
		if svc.Stats == nil {
			p.respond(s, i, "Champion points are unavailable right now.")
			return
		}
		target := user
		if o, ok := opts["user"]; ok {
			target = o.UserValue(s)
		}
		total, err := svc.Stats.Total(ctx, target.ID)
		if err != nil {
			p.respond(s, i, p.resultText("", err, "duel stats"))
			return
		}
		stats, err := svc.Stats.DuelStats(ctx, target.ID)
		if err != nil {
			p.respond(s, i, p.resultText("", err, "duel stats"))
			return
		}
		history, err := svc.Stats.History(ctx, target.ID, historySize)
		if err != nil {
			logger.Warn("Failed to read champion history", zap.String("user_id", target.ID), zap.Error(err))
		}
		p.respond(s, i, statsContent(target.ID, total, svc.Stats.RoleFor(total), stats, history))

	case "leaderboard":
		if svc.Stats == nil {
			p.respond(s, i, "Champion points are unavailable right now.")
			return
		}
		rows, err := svc.Stats.DuelLeaderboard(ctx, leaderboardSize)
		if err != nil {
			p.respond(s, i, p.resultText("", err, "duel leaderboard"))
			return
		}
		p.respond(s, i, leaderboardContent(rows))
	}
}

func (p *Platform) handleDuelAccept(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, inviteID string) {
	duels := p.svc().Duels
	user := interactionUser(i)
	if duels == nil || user == nil {
		return
	}

	p.deferResponse(s, i)
	summary, err := duels.Accept(ctx, inviteID, user.ID)
	if err != nil {
		p.acceptFailed(ctx, duels, inviteID, err)
		p.editResponse(s, i, p.resultText("", err, "duel accept"))
		return
	}
	p.editResponse(s, i, fmt.Sprintf("Duel on! Head to <#%s>.", summary.ThreadID))
}

// acceptFailed closes the invite message once the engine gave up on the
// invite. A rejected clicker leaves it open for the next player.
func (p *Platform) acceptFailed(ctx context.Context, duels DuelService, inviteID string, err error) {
	if errors.Is(err, duel.ErrUnknownInvite) {
		return
	}
	if inv, listed := duels.GetInvite(inviteID); listed && inv.Status != duel.StatusAborted {
		return
	}
	msg, _ := userMessage(err)
	p.closeInvite(ctx, inviteID, "Duel cancelled: "+msg)
}

func (p *Platform) handleQuizAnswer(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, area, answer string) {
	q := p.svc().Quiz
	user := interactionUser(i)
	if q == nil || user == nil {
		return
	}

	p.deferResponse(s, i)
	result, err := q.SubmitAnswer(ctx, area, user.ID, displayName(user), answer)
	if err != nil {
		p.editResponse(s, i, p.resultText("", err, "quiz answer"))
		return
	}
	if !result.Correct {
		p.editResponse(s, i, "Not quite. You had your one try for this question.")
		return
	}
	p.editResponse(s, i, fmt.Sprintf("Correct! +%d champion points, you now have %d.", result.Points, result.Total))
}

func (p *Platform) handleDuelAnswer(s *discordgo.Session, i *discordgo.InteractionCreate, duelID, answer string) {
	duels := p.svc().Duels
	user := interactionUser(i)
	if duels == nil || user == nil {
		return
	}

	if _, err := duels.SubmitAnswer(duelID, user.ID, answer); err != nil {
		p.respond(s, i, p.resultText("", err, "duel answer"))
		return
	}
	p.respond(s, i, "Answer locked in.")
}

// resultText returns content, or the notice for err. Unexpected errors are logged.
func (p *Platform) resultText(content string, err error, action string) string {
	if err == nil {
		return content
	}
	msg, known := userMessage(err)
	if !known {
		logger.Error("Command failed", zap.String("action", action), zap.Error(err))
	}
	return msg
}

func (p *Platform) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	p.respondRaw(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (p *Platform) respondRaw(s *discordgo.Session, i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := s.InteractionRespond(i.Interaction, resp); err != nil {
		logger.Warn("Failed to respond to interaction", zap.Error(err))
	}
}

func (p *Platform) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p.respondRaw(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (p *Platform) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		logger.Warn("Failed to edit interaction response", zap.Error(err))
	}
}
