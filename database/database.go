package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func Connect(host string, port int, user, password, dbname, sslmode string) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %v", err)
	}

	return db, nil
}

// CreateTables bootstraps the schema used by the application engine.
func CreateTables(db *sql.DB) error {
	schema := `
	-- Per-account automation settings and daily quota bookkeeping
	CREATE TABLE IF NOT EXISTS accounts (
		id SERIAL PRIMARY KEY,
		site_identity VARCHAR(255) NOT NULL,
		site_secret VARCHAR(255) NOT NULL,
		daily_quota INT NOT NULL DEFAULT 20,
		daily_usage INT NOT NULL DEFAULT 0,
		usage_date DATE NOT NULL DEFAULT CURRENT_DATE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Durable result of every application attempt
	CREATE TABLE IF NOT EXISTS application_records (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL,
		session_id VARCHAR(64) NOT NULL,
		job_title VARCHAR(512) NOT NULL,
		company VARCHAR(255) NOT NULL,
		location VARCHAR(255),
		job_url TEXT NOT NULL,
		status VARCHAR(32) NOT NULL,
		generated_content BOOLEAN NOT NULL DEFAULT FALSE,
		submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Live progress feed consumed by the dashboard
	CREATE TABLE IF NOT EXISTS activity_logs (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL,
		session_id VARCHAR(64) NOT NULL,
		action VARCHAR(128) NOT NULL,
		detail TEXT,
		severity VARCHAR(16) NOT NULL DEFAULT 'info',
		metadata JSONB,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Listings seen during traversal, browsable for manual application
	CREATE TABLE IF NOT EXISTS discovered_jobs (
		id VARCHAR(64) PRIMARY KEY,
		user_id INT NOT NULL,
		job_title VARCHAR(512) NOT NULL,
		company VARCHAR(255) NOT NULL,
		location VARCHAR(255),
		job_url TEXT NOT NULL,
		apply_method VARCHAR(64),
		discovered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Questions the answer engine could not resolve with a rule
	CREATE TABLE IF NOT EXISTS unresolved_questions (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL,
		question TEXT NOT NULL,
		field_kind VARCHAR(32) NOT NULL,
		options TEXT,
		answer_given TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_application_records_user ON application_records(user_id, submitted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_activity_logs_session ON activity_logs(session_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_discovered_jobs_user ON discovered_jobs(user_id, discovered_at DESC);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("error creating tables: %v", err)
	}
	return nil
}
