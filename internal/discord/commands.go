package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ichi0g0y/champion-bot/internal/duel"
)

var adminPermission int64 = discordgo.PermissionAdministrator

func areaOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "area",
		Description: "Quiz area",
		Required:    true,
	}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func intOption(name, description string, required bool, min, max float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    &min,
		MaxValue:    max,
	}
}

// commands returns the slash commands registered in the guild.
func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "quiz",
			Description:              "Manage quiz areas",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("enable", "Enable an area in a channel", areaOption(), &discordgo.ApplicationCommandOption{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Quiz channel (defaults to this channel)",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				}),
				subcommand("disable", "Disable an area", areaOption()),
				subcommand("time", "Set the time window", areaOption(),
					intOption("minutes", "Window length in minutes", true, 1, 1440)),
				subcommand("language", "Set the question language", areaOption(), &discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "Language code, e.g. deu or en",
					Required:    true,
				}),
				subcommand("threshold", "Set the activity threshold", areaOption(),
					intOption("messages", "Messages needed before a question is posted", true, 1, 1000)),
				subcommand("ask", "Post a question now", areaOption()),
				subcommand("reveal", "Reveal and close the open question", areaOption()),
				subcommand("remaining", "Show the timing of an area", areaOption()),
				subcommand("reset-history", "Forget which questions were asked", areaOption()),
			},
		},
		{
			Name:        "duel",
			Description: "Quiz duels for champion points",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("start", "Challenge the channel to a duel",
					intOption("points", "Stake per player", true, 1, 100000),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "mode",
						Description: "Question mode",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "box", Value: string(duel.ModeBox)},
							{Name: "dynamic", Value: string(duel.ModeDynamic)},
						},
					},
					intOption("best_of", "Rounds in box mode (odd)", false, 1, duel.MaxBestOf),
					intOption("timeout", "Seconds per round", false, 1, duel.MaxRoundTimeout.Seconds()),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "area",
						Description: "Question area (defaults to the area of this channel)",
					},
				),
				subcommand("stats", "Show champion points and duel record", &discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Player (defaults to you)",
				}),
				subcommand("leaderboard", "Show the duel leaderboard"),
			},
		},
	}
}

// options indexes the options of a subcommand by name.
func options(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

// duelConfig builds the config of /duel start. fallbackArea is used when no
// area option was given.
func duelConfig(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, fallbackArea string) (duel.Config, error) {
	cfg := duel.Config{Area: fallbackArea}
	if o, ok := opts["points"]; ok {
		cfg.Points = int(o.IntValue())
	}
	if o, ok := opts["mode"]; ok {
		cfg.Mode = duel.Mode(o.StringValue())
	}
	if o, ok := opts["best_of"]; ok {
		cfg.BestOf = int(o.IntValue())
	}
	if o, ok := opts["timeout"]; ok {
		cfg.Timeout = time.Duration(o.IntValue()) * time.Second
	}
	if o, ok := opts["area"]; ok && o.StringValue() != "" {
		cfg.Area = o.StringValue()
	}
	if cfg.Area == "" {
		return cfg, fmt.Errorf("%w: area is required outside quiz channels", duel.ErrInvalidConfig)
	}
	return cfg, nil
}
