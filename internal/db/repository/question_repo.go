package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classkit/live-quiz/internal/game"
)

// QuestionRepository reads the question bank from Postgres.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByCategory returns the ordered question list for a category.
func (r *QuestionRepository) ListByCategory(ctx context.Context, category string, limit int) ([]game.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT prompt, options, correct_option
		FROM questions
		WHERE category = $1
		ORDER BY position, question_id
		LIMIT $2`, category, limit)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []game.Question
	for rows.Next() {
		var (
			prompt  string
			options []string
			correct int32
		)
		if err := rows.Scan(&prompt, &options, &correct); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, game.Question{
			Prompt:  prompt,
			Options: options,
			Correct: int(correct),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// InsertQuestion adds a question to the bank, returning its ID.
func (r *QuestionRepository) InsertQuestion(ctx context.Context, category string, position int, q game.Question) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO questions (category, position, prompt, options, correct_option)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING question_id`,
		category, position, q.Prompt, q.Options, q.Correct).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}
