// Package champion is the champion point ledger. Every change is an append-only
// delta with a recomputed total, followed by a champion role sync.
package champion

import (
	"context"
	"sync"

	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// Ledger change reasons.
const (
	ReasonQuizAnswer = "quiz answer"
	ReasonDuelStake  = "duel stake"
	ReasonDuelRefund = "duel refund"
	ReasonDuelWin    = "duel win"
)

// RoleSyncer assigns role to a user and removes the other champion roles.
// An empty role removes all of them.
type RoleSyncer interface {
	SyncChampionRole(ctx context.Context, userID, role string, all []string) error
}

type Ledger struct {
	mu         sync.RWMutex
	thresholds []Threshold
	syncer     RoleSyncer
}

func NewLedger(thresholds []Threshold) *Ledger {
	return &Ledger{thresholds: thresholds}
}

// SetRoleSyncer installs the platform role syncer; nil disables role sync.
func (l *Ledger) SetRoleSyncer(s RoleSyncer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncer = s
}

func (l *Ledger) Total(ctx context.Context, userID string) (int, error) {
	return localdb.GetChampionTotal(ctx, userID)
}

// AddDelta applies delta and returns the new total.
func (l *Ledger) AddDelta(ctx context.Context, userID string, delta int, reason string) (int, error) {
	total, err := localdb.AddChampionDelta(ctx, userID, delta, reason)
	if err != nil {
		return 0, err
	}
	l.syncRole(ctx, userID, total)
	return total, nil
}

func (l *Ledger) RecordDuelResult(ctx context.Context, userID string, outcome types.DuelOutcome) error {
	return localdb.RecordDuelResult(ctx, userID, outcome)
}

func (l *Ledger) DuelStats(ctx context.Context, userID string) (types.DuelStats, error) {
	return localdb.GetDuelStats(ctx, userID)
}

func (l *Ledger) DuelLeaderboard(ctx context.Context, limit int) ([]types.DuelStats, error) {
	return localdb.GetDuelLeaderboard(ctx, limit)
}

func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]localdb.ChampionTotal, error) {
	return localdb.GetChampionLeaderboard(ctx, limit)
}

func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]types.LedgerEntry, error) {
	return localdb.GetChampionLog(ctx, userID, limit)
}

// RoleFor returns the champion role matching total.
func (l *Ledger) RoleFor(total int) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return RoleFor(l.thresholds, total)
}

func (l *Ledger) syncRole(ctx context.Context, userID string, total int) {
	l.mu.RLock()
	syncer, thresholds := l.syncer, l.thresholds
	l.mu.RUnlock()

	if syncer == nil || len(thresholds) == 0 {
		return
	}

	role := RoleFor(thresholds, total)
	if err := syncer.SyncChampionRole(ctx, userID, role, RoleNames(thresholds)); err != nil {
		logger.Warn("Failed to sync champion role",
			zap.String("user_id", userID), zap.String("role", role), zap.Error(err))
	}
}
