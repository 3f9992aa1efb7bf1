package localdb

import (
	"database/sql"
	"strings"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

type QuizAnswerRow struct {
	ID         int64  `json:"id"`
	Area       string `json:"area"`
	QuestionID string `json:"question_id"`
	MessageID  string `json:"message_id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"correct"`
	CreatedAt  int64  `json:"created_at"`
}

// SetupQuizAnswersTable creates the quiz_answers audit table.
func SetupQuizAnswersTable(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS quiz_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		area TEXT NOT NULL,
		question_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL,
		correct BOOLEAN NOT NULL DEFAULT false,
		created_at INTEGER NOT NULL,
		UNIQUE(area, message_id, user_id)
	)`

	if _, err := db.Exec(createTableSQL); err != nil {
		logger.Error("Failed to create quiz_answers table", zap.Error(err))
		return err
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_quiz_answers_created_at ON quiz_answers(created_at)`); err != nil {
		logger.Warn("Failed to create quiz_answers index", zap.Error(err))
	}

	return nil
}

// AddQuizAnswer stores one submitted answer.
// Returns false when the user already answered this posting of the question.
// The same question ID posted again later is a new posting.
func AddQuizAnswer(answer QuizAnswerRow) (bool, error) {
	db := GetDB()
	if db == nil {
		logger.Error("Database not initialized")
		return false, sql.ErrConnDone
	}

	if answer.CreatedAt == 0 {
		answer.CreatedAt = time.Now().Unix()
	}

	result, err := db.Exec(`
	INSERT OR IGNORE INTO quiz_answers (area, question_id, message_id, user_id, username, answer, correct, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		answer.Area,
		answer.QuestionID,
		answer.MessageID,
		answer.UserID,
		answer.Username,
		answer.Answer,
		answer.Correct,
		answer.CreatedAt,
	)
	if err != nil {
		logger.Error("Failed to insert quiz answer", zap.Error(err))
		return false, err
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// GetQuizAnswersSince returns answers newer than the given unix timestamp, oldest first.
func GetQuizAnswersSince(sinceUnix int64, limit int) ([]QuizAnswerRow, error) {
	db := GetDB()
	if db == nil {
		logger.Error("Database not initialized")
		return nil, sql.ErrConnDone
	}

	query := `
	SELECT id, area, question_id, message_id, user_id, username, answer, correct, created_at
	FROM quiz_answers
	WHERE created_at >= ?
	ORDER BY created_at ASC, id ASC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", sinceUnix, limit)
	} else {
		rows, err = db.Query(query, sinceUnix)
	}
	if err != nil {
		logger.Error("Failed to query quiz answers", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	answers := []QuizAnswerRow{}
	for rows.Next() {
		var row QuizAnswerRow
		if err := rows.Scan(
			&row.ID,
			&row.Area,
			&row.QuestionID,
			&row.MessageID,
			&row.UserID,
			&row.Username,
			&row.Answer,
			&row.Correct,
			&row.CreatedAt,
		); err != nil {
			logger.Error("Failed to scan quiz answer", zap.Error(err))
			continue
		}
		answers = append(answers, row)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error iterating quiz answers", zap.Error(err))
		return nil, err
	}
	return answers, nil
}

// CleanupQuizAnswersBefore deletes answers older than the cutoff (unix
// seconds). Answers to the given postings are kept regardless of age.
func CleanupQuizAnswersBefore(cutoffUnix int64, keepMessageIDs ...string) (int64, error) {
	db := GetDB()
	if db == nil {
		logger.Error("Database not initialized")
		return 0, sql.ErrConnDone
	}

	query := `DELETE FROM quiz_answers WHERE created_at < ?`
	args := []any{cutoffUnix}
	if len(keepMessageIDs) > 0 {
		query += ` AND message_id NOT IN (?` + strings.Repeat(`, ?`, len(keepMessageIDs)-1) + `)`
		for _, id := range keepMessageIDs {
			args = append(args, id)
		}
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		logger.Error("Failed to cleanup quiz answers", zap.Error(err))
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if rowsAffected > 0 {
		logger.Debug("Cleaned up old quiz answers", zap.Int64("deleted", rowsAffected))
	}
	return rowsAffected, nil
}
