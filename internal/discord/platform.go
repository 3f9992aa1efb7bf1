// Package discord connects the quiz and duel engines to a Discord guild.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ichi0g0y/champion-bot/internal/duel"
	"github.com/ichi0g0y/champion-bot/internal/quiz"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// handlerTimeout bounds the work done for a single gateway event.
const handlerTimeout = 10 * time.Second

// api is the part of the Discord REST client the platform uses.
type api interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	MessageThreadStart(channelID, messageID string, name string, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ThreadStart(channelID, name string, typ discordgo.ChannelType, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// QuizService is the quiz manager as driven by chat events and admin commands.
type QuizService interface {
	HandleMessage(ctx context.Context, channelID string, fromBot bool)
	AreaForChannel(channelID string) (string, bool)
	SubmitAnswer(ctx context.Context, area, userID, username, text string) (quiz.AnswerResult, error)
	EnableArea(ctx context.Context, name, channelID string) (types.Area, error)
	DisableArea(ctx context.Context, name string) (types.Area, error)
	SetTimeWindow(name string, minutes int) (types.Area, error)
	SetThreshold(name string, threshold int) (types.Area, error)
	SetLanguage(name, code string) (types.Area, error)
	ForceAsk(ctx context.Context, name string) error
	Reveal(ctx context.Context, name string) error
	Remaining(name string) (quiz.Remaining, error)
	ResetHistory(name string) error
}

// DuelService is the duel engine as driven by commands and buttons.
type DuelService interface {
	Invite(ctx context.Context, channelID, challengerID string, cfg duel.Config) (duel.Invite, error)
	Accept(ctx context.Context, inviteID, opponentID string) (duel.Summary, error)
	GetInvite(id string) (duel.Invite, bool)
	SubmitAnswer(duelID, userID, text string) (duel.Submission, error)
}

// StatsService reads champion points and duel records.
type StatsService interface {
	Total(ctx context.Context, userID string) (int, error)
	DuelStats(ctx context.Context, userID string) (types.DuelStats, error)
	DuelLeaderboard(ctx context.Context, limit int) ([]types.DuelStats, error)
	History(ctx context.Context, userID string, limit int) ([]types.LedgerEntry, error)
	RoleFor(total int) string
}

// Services are attached once the engines that depend on the platform exist.
type Services struct {
	Quiz  QuizService
	Duels DuelService
	Stats StatsService
}

type inviteMessage struct {
	channelID string
	messageID string
}

// Platform implements quiz.Chat, duel.Presenter and champion.RoleSyncer on
// top of a discordgo session.
type Platform struct {
	session *discordgo.Session
	api     api
	guildID string

	mu       sync.RWMutex
	services Services
	invites  map[string]inviteMessage
	ctx      context.Context

	inviteTimeout time.Duration

	now func() time.Time
}

var (
	_ quiz.Chat      = (*Platform)(nil)
	_ duel.Presenter = (*Platform)(nil)
)

type Config struct {
	Token         string
	GuildID       string
	InviteTimeout time.Duration
}

// New creates a platform for a bot token. The gateway is not opened yet.
func New(cfg Config) (*Platform, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	p := newPlatform(session, cfg.GuildID)
	if cfg.InviteTimeout > 0 {
		p.inviteTimeout = cfg.InviteTimeout
	}
	p.session = session
	session.AddHandler(p.onReady)
	session.AddHandler(p.onMessageCreate)
	session.AddHandler(p.onInteractionCreate)
	return p, nil
}

func newPlatform(client api, guildID string) *Platform {
	return &Platform{
		api:           client,
		guildID:       guildID,
		invites:       make(map[string]inviteMessage),
		inviteTimeout: duel.DefaultInviteTimeout,
		ctx:           context.Background(),
		now:           time.Now,
	}
}

// Attach wires the engines. Events arriving before Attach are ignored.
func (p *Platform) Attach(services Services) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services = services
}

func (p *Platform) svc() Services {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.services
}

// Open connects to the gateway and registers the slash commands in the guild.
// ctx scopes the work triggered by gateway events.
func (p *Platform) Open(ctx context.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	if err := p.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	appID := p.session.State.User.ID
	if _, err := p.session.ApplicationCommandBulkOverwrite(appID, p.guildID, commands(), discordgo.WithContext(ctx)); err != nil {
		logger.Error("Failed to register slash commands", zap.Error(err))
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	logger.Info("Discord slash commands registered", zap.Int("count", len(commands())), zap.String("guild_id", p.guildID))
	return nil
}

func (p *Platform) Close() error {
	if p.session == nil {
		return nil
	}
	if err := p.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord gateway: %w", err)
	}
	logger.Info("Discord gateway closed")
	return nil
}

// eventContext derives the context for one gateway event.
func (p *Platform) eventContext() (context.Context, context.CancelFunc) {
	p.mu.RLock()
	base := p.ctx
	p.mu.RUnlock()
	return context.WithTimeout(base, handlerTimeout)
}

func (p *Platform) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.Info("Connected to Discord",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (p *Platform) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID != p.guildID {
		return
	}
	q := p.svc().Quiz
	if q == nil {
		return
	}

	ctx, cancel := p.eventContext()
	defer cancel()
	q.HandleMessage(ctx, m.ChannelID, m.Author != nil && m.Author.Bot)
}
