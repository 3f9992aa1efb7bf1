package discord

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ichi0g0y/champion-bot/internal/duel"
	"github.com/ichi0g0y/champion-bot/internal/language"
	"github.com/ichi0g0y/champion-bot/internal/quiz"
	"github.com/ichi0g0y/champion-bot/internal/types"
)

// Custom ID prefixes of buttons and modals. The part after the colon is the
// quiz area or the duel ID.
const (
	actionQuizAnswer = "quiz_answer"
	actionQuizModal  = "quiz_modal"
	actionDuelAccept = "duel_accept"
	actionDuelAnswer = "duel_answer"
	actionDuelModal  = "duel_modal"

	answerInputID = "answer"
)

func customID(action, target string) string {
	return action + ":" + target
}

func parseCustomID(id string) (action, target string, ok bool) {
	action, target, ok = strings.Cut(id, ":")
	if !ok || action == "" || target == "" {
		return "", "", false
	}
	return action, target, true
}

// userMessages maps sentinel errors to the notice shown to the user.
var userMessages = []struct {
	err error
	msg string
}{
	{quiz.ErrUnknownArea, "This quiz area does not exist."},
	{quiz.ErrNoChannel, "This quiz area has no channel. Enable it in a channel first."},
	{quiz.ErrQuestionActive, "A question is already running in this area."},
	{quiz.ErrNoActiveQuestion, "There is no open question right now."},
	{quiz.ErrNoQuestion, "No question is available for this area."},
	{quiz.ErrAlreadyAnswered, "You already answered this question."},
	{quiz.ErrInvalidWindow, "The time window must be between 1 and 1440 minutes."},
	{quiz.ErrInvalidThreshold, "The activity threshold must be at least 1."},
	{quiz.ErrUnsupportedLanguage, "This language is not supported."},
	{duel.ErrInvalidConfig, "These duel settings are not valid."},
	{duel.ErrUnknownInvite, "This duel invite is no longer open."},
	{duel.ErrAlreadyAccepted, "Someone already accepted this duel."},
	{duel.ErrSelfAccept, "You cannot accept your own duel."},
	{duel.ErrAlreadyInDuel, "One of the players is already in a duel."},
	{duel.ErrLedgerUnavailable, "Champion points are unavailable right now."},
	{duel.ErrInsufficientFunds, "Not enough champion points for this stake."},
	{duel.ErrUnknownDuel, "This duel is over."},
	{duel.ErrNotParticipant, "You are not playing in this duel."},
	{duel.ErrNoRound, "No round is running right now."},
	{duel.ErrRoundFinished, "This round is already over."},
	{duel.ErrAlreadySubmitted, "You already answered this round."},
	{duel.ErrShuttingDown, "The bot is restarting. Try again in a moment."},
}

// userMessage renders err for an ephemeral notice. ok is false for
// unexpected errors, which get a generic notice and are logged by the caller.
func userMessage(err error) (string, bool) {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			detail := ""
			if errors.Is(err, duel.ErrInvalidConfig) {
				if _, after, found := strings.Cut(err.Error(), ": "); found {
					detail = " (" + after + ")"
				}
			}
			return m.msg + detail, true
		}
	}
	return "Something went wrong. Please try again later.", false
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func relativeTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func questionContent(area string, q types.Question, end time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Quiz: %s**", area)
	if q.Category != "" {
		fmt.Fprintf(&b, " (%s)", q.Category)
	}
	fmt.Fprintf(&b, "\n%s\n\nAnswer closes %s.", q.Text, relativeTime(end))
	return b.String()
}

func revealContent(area string, info types.QuestionInfo, result quiz.CloseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Quiz: %s**", area)
	if info.Category != "" {
		fmt.Fprintf(&b, " (%s)", info.Category)
	}
	fmt.Fprintf(&b, "\n%s\n\n", info.Frage)
	switch {
	case result.WinnerID != "":
		fmt.Fprintf(&b, "%s answered correctly: %s\n", mention(result.WinnerID), result.Answer)
	case result.TimedOut:
		b.WriteString("Time is up, nobody got it.\n")
	default:
		b.WriteString("The question was closed.\n")
	}
	fmt.Fprintf(&b, "Accepted answers: %s", strings.Join(info.Answers, ", "))
	return b.String()
}

func answerButton(action, target string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Answer", Style: discordgo.PrimaryButton, CustomID: customID(action, target)},
		}},
	}
}

func answerModal(action, target, title string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID(action, target),
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  answerInputID,
						Label:     "Your answer",
						Style:     discordgo.TextInputShort,
						Required:  true,
						MaxLength: 200,
					},
				}},
			},
		},
	}
}

// modalValue returns the value of the text input id in a submitted modal.
func modalValue(data discordgo.ModalSubmitInteractionData, id string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == id {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}

func describeConfig(cfg duel.Config) string {
	switch cfg.Mode {
	case duel.ModeDynamic:
		return fmt.Sprintf("%d points, dynamic, %s per round, area %s", cfg.Points, cfg.Timeout, cfg.Area)
	default:
		return fmt.Sprintf("%d points, best of %d, %s per round, area %s", cfg.Points, cfg.BestOf, cfg.Timeout, cfg.Area)
	}
}

func inviteContent(inv duel.Invite, expires time.Time) string {
	return fmt.Sprintf("%s challenges the channel to a duel: %s.\nAccept %s.",
		mention(inv.ChallengerID), describeConfig(inv.Config), relativeTime(expires))
}

func scoreLine(s duel.Summary) string {
	return fmt.Sprintf("%s %d : %d %s",
		mention(s.ChallengerID), s.Scores[s.ChallengerID], s.Scores[s.OpponentID], mention(s.OpponentID))
}

func roundResultContent(s duel.Summary, result duel.RoundResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Round %d**\n", result.Round)

	players := []string{s.ChallengerID, s.OpponentID}
	for _, id := range players {
		sub, ok := result.Submissions[id]
		switch {
		case !ok:
			fmt.Fprintf(&b, "%s: no answer\n", mention(id))
		case sub.Correct:
			fmt.Fprintf(&b, "%s: %s (correct)\n", mention(id), sub.Answer)
		default:
			fmt.Fprintf(&b, "%s: %s\n", mention(id), sub.Answer)
		}
	}
	if result.WinnerID != "" {
		fmt.Fprintf(&b, "Round goes to %s.\n", mention(result.WinnerID))
	} else {
		b.WriteString("Nobody takes this round.\n")
	}
	fmt.Fprintf(&b, "Accepted answers: %s\n%s", strings.Join(result.Question.Answers, ", "), scoreLine(s))
	return b.String()
}

func finishedContent(s duel.Summary) string {
	if s.Draw {
		return fmt.Sprintf("**Duel over: draw.** %s\nBoth players get %d points back.", scoreLine(s), s.Pot/2)
	}
	return fmt.Sprintf("**Duel over.** %s\n%s wins %d points.", scoreLine(s), mention(s.WinnerID), s.Pot)
}

func abortedContent(reason string) string {
	return fmt.Sprintf("**Duel aborted:** %s. Stakes were refunded.", reason)
}

func areaContent(verb string, a types.Area) string {
	state := "inactive"
	if a.Active {
		state = "active"
	}
	channel := "no channel"
	if a.ChannelID != "" {
		channel = "<#" + a.ChannelID + ">"
	}
	return fmt.Sprintf("Quiz area **%s** %s: %s in %s, window %d min, %d messages, language %s.",
		a.Name, verb, state, channel, a.WindowMinutes(), a.ActivityThreshold, language.DisplayName(a.Language))
}

func remainingContent(r quiz.Remaining) string {
	var lines []string
	if r.QuestionActive {
		lines = append(lines, "A question is open and closes "+relativeTime(r.QuestionEnds)+".")
	}
	if r.Awaiting {
		lines = append(lines, fmt.Sprintf("Waiting for activity: %d of %d messages.", r.Messages, r.Threshold))
	}
	if !r.NextPost.IsZero() {
		lines = append(lines, "Next question "+relativeTime(r.NextPost)+".")
	}
	if !r.WindowEnd.IsZero() {
		lines = append(lines, "Current window ends "+relativeTime(r.WindowEnd)+".")
	}
	if len(lines) == 0 {
		lines = append(lines, "Nothing is scheduled.")
	}
	return fmt.Sprintf("**%s**\n%s", r.Area, strings.Join(lines, "\n"))
}

func statsContent(userID string, total int, role string, stats types.DuelStats, history []types.LedgerEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s has %d champion points", mention(userID), total)
	if role != "" {
		fmt.Fprintf(&b, " (%s)", role)
	}
	fmt.Fprintf(&b, ". Duels: %d won, %d lost, %d tied.", stats.Wins, stats.Losses, stats.Ties)
	if len(history) > 0 {
		b.WriteString("\nRecent changes:")
		for _, entry := range history {
			fmt.Fprintf(&b, "\n%+d %s <t:%d:R>", entry.Delta, entry.Reason, entry.CreatedAt.Unix())
		}
	}
	return b.String()
}

func leaderboardContent(rows []types.DuelStats) string {
	if len(rows) == 0 {
		return "No duels have been played yet."
	}
	var b strings.Builder
	b.WriteString("**Duel leaderboard**")
	for i, r := range rows {
		fmt.Fprintf(&b, "\n%d. %s: %d wins, %d losses, %d ties", i+1, mention(r.UserID), r.Wins, r.Losses, r.Ties)
	}
	return b.String()
}
