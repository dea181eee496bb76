package models

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"
)

// DiscoveredJob is a listing seen during traversal, cached so other parts
// of the platform can browse it for manual application.
type DiscoveredJob struct {
	ID           string    `json:"id"`
	UserID       int       `json:"user_id"`
	JobTitle     string    `json:"job_title"`
	Company      string    `json:"company"`
	Location     string    `json:"location,omitempty"`
	JobURL       string    `json:"job_url"`
	ApplyMethod  string    `json:"apply_method,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// DiscoveredJobID derives the cache key from the listing's identity fields.
// The same title+company+url always hashes to the same id, which is what
// makes duplicate inserts no-ops.
func DiscoveredJobID(title, company, url string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + company + "\x00" + url))
	return hex.EncodeToString(sum[:])[:64]
}

type DiscoveredJobModel struct {
	DB *sql.DB
}

func NewDiscoveredJobModel(db *sql.DB) *DiscoveredJobModel {
	return &DiscoveredJobModel{DB: db}
}

// Upsert inserts the listing if its id is new. Re-discovering the same
// listing leaves the existing row untouched.
func (m *DiscoveredJobModel) Upsert(job *DiscoveredJob) error {
	if job.ID == "" {
		job.ID = DiscoveredJobID(job.JobTitle, job.Company, job.JobURL)
	}
	_, err := m.DB.Exec(`
		INSERT INTO discovered_jobs (id, user_id, job_title, company, location, job_url, apply_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, job.ID, job.UserID, job.JobTitle, job.Company, job.Location, job.JobURL, job.ApplyMethod)
	return err
}

func (m *DiscoveredJobModel) GetByUserID(userID, limit, offset int) ([]DiscoveredJob, error) {
	jobs := []DiscoveredJob{}
	rows, err := m.DB.Query(`
		SELECT id, user_id, job_title, company, location, job_url, apply_method, discovered_at
		FROM discovered_jobs
		WHERE user_id = $1
		ORDER BY discovered_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var job DiscoveredJob
		var location, applyMethod sql.NullString
		err := rows.Scan(&job.ID, &job.UserID, &job.JobTitle, &job.Company,
			&location, &job.JobURL, &applyMethod, &job.DiscoveredAt)
		if err != nil {
			return nil, err
		}
		if location.Valid {
			job.Location = location.String
		}
		if applyMethod.Valid {
			job.ApplyMethod = applyMethod.String
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
