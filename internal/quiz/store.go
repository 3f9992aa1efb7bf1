package quiz

import (
	"time"

	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/types"
)

// DBAreaStore keeps area configuration in the quiz_areas table.
type DBAreaStore struct{}

func (DBAreaStore) SaveArea(area types.Area) error {
	return localdb.SaveQuizArea(area)
}

// DBAnswerLog keeps submitted answers in the quiz_answers table.
type DBAnswerLog struct{}

func (DBAnswerLog) RecordAnswer(row localdb.QuizAnswerRow) (bool, error) {
	return localdb.AddQuizAnswer(row)
}

func (DBAnswerLog) PruneAnswers(before time.Time, keep []string) (int64, error) {
	return localdb.CleanupQuizAnswersBefore(before.Unix(), keep...)
}
