package models

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	ApplicationStatusApplied = "applied"
	ApplicationStatusFailed  = "failed"
)

type ApplicationRecord struct {
	ID               int       `json:"id,omitempty"`
	UserID           int       `json:"user_id"`
	SessionID        string    `json:"session_id"`
	JobTitle         string    `json:"job_title"`
	Company          string    `json:"company"`
	Location         string    `json:"location,omitempty"`
	JobURL           string    `json:"job_url"`
	Status           string    `json:"status"`
	GeneratedContent bool      `json:"generated_content"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

type ApplicationRecordModel struct {
	DB *sql.DB
}

func NewApplicationRecordModel(db *sql.DB) *ApplicationRecordModel {
	return &ApplicationRecordModel{DB: db}
}

// CreateSubmitted writes the durable record of a successful submission and
// charges one unit of daily quota in the same transaction, so a crash
// between the two cannot over- or under-count usage.
func (m *ApplicationRecordModel) CreateSubmitted(rec *ApplicationRecord) error {
	tx, err := m.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	rec.Status = ApplicationStatusApplied
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}

	err = tx.QueryRow(`
		INSERT INTO application_records (user_id, session_id, job_title, company, location, job_url, status, generated_content, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, rec.UserID, rec.SessionID, rec.JobTitle, rec.Company, rec.Location, rec.JobURL, rec.Status, rec.GeneratedContent, rec.SubmittedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert application record: %v", err)
	}

	_, err = tx.Exec(`UPDATE accounts SET daily_usage = daily_usage + 1, updated_at = $2 WHERE id = $1`,
		rec.UserID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to charge quota: %v", err)
	}

	return tx.Commit()
}

// CreateFailed records an aborted application. No quota is charged.
func (m *ApplicationRecordModel) CreateFailed(rec *ApplicationRecord) error {
	rec.Status = ApplicationStatusFailed
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}
	_, err := m.DB.Exec(`
		INSERT INTO application_records (user_id, session_id, job_title, company, location, job_url, status, generated_content, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.UserID, rec.SessionID, rec.JobTitle, rec.Company, rec.Location, rec.JobURL, rec.Status, rec.GeneratedContent, rec.SubmittedAt)
	return err
}

func (m *ApplicationRecordModel) GetByUserID(userID, limit, offset int) ([]ApplicationRecord, error) {
	records := []ApplicationRecord{}
	rows, err := m.DB.Query(`
		SELECT id, user_id, session_id, job_title, company, location, job_url, status, generated_content, submitted_at
		FROM application_records
		WHERE user_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec ApplicationRecord
		var location sql.NullString
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.JobTitle, &rec.Company,
			&location, &rec.JobURL, &rec.Status, &rec.GeneratedContent, &rec.SubmittedAt)
		if err != nil {
			return nil, err
		}
		if location.Valid {
			rec.Location = location.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
