package discord

import (
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// SyncChampionRole gives userID the guild role named role and removes every
// other role listed in all. An empty role only removes.
func (p *Platform) SyncChampionRole(ctx context.Context, userID, role string, all []string) error {
	roles, err := p.api.GuildRoles(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to list guild roles: %w", err)
	}
	member, err := p.api.GuildMember(p.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to get guild member: %w", err)
	}

	byName := make(map[string]string, len(roles))
	for _, r := range roles {
		byName[r.Name] = r.ID
	}

	for _, name := range all {
		id, ok := byName[name]
		if !ok {
			if name == role {
				logger.Warn("Champion role does not exist in guild", zap.String("role", name))
			}
			continue
		}
		has := slices.Contains(member.Roles, id)

		switch {
		case name == role && !has:
			if err := p.api.GuildMemberRoleAdd(p.guildID, userID, id, discordgo.WithContext(ctx)); err != nil {
				return fmt.Errorf("failed to add role %s: %w", name, err)
			}
			logger.Info("Champion role granted", zap.String("user_id", userID), zap.String("role", name))
		case name != role && has:
			if err := p.api.GuildMemberRoleRemove(p.guildID, userID, id, discordgo.WithContext(ctx)); err != nil {
				return fmt.Errorf("failed to remove role %s: %w", name, err)
			}
		}
	}
	return nil
}
