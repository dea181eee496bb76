package models

import (
	"database/sql"
	"strings"
)

// UnresolvedQuestion is an append-only audit entry for any form field the
// answer engine resolved without a confident deterministic rule. Rows are
// read by humans curating new rules, never by the engine itself.
type UnresolvedQuestion struct {
	ID          int    `json:"id"`
	UserID      int    `json:"user_id"`
	Question    string `json:"question"`
	FieldKind   string `json:"field_kind"`
	Options     string `json:"options,omitempty"`
	AnswerGiven string `json:"answer_given,omitempty"`
}

type UnresolvedQuestionModel struct {
	DB *sql.DB
}

func NewUnresolvedQuestionModel(db *sql.DB) *UnresolvedQuestionModel {
	return &UnresolvedQuestionModel{DB: db}
}

func (m *UnresolvedQuestionModel) Append(userID int, question, fieldKind string, options []string, answerGiven string) error {
	_, err := m.DB.Exec(`
		INSERT INTO unresolved_questions (user_id, question, field_kind, options, answer_given)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, question, fieldKind, strings.Join(options, " | "), answerGiven)
	return err
}
