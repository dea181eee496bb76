package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

type ActivityLog struct {
	ID        int                    `json:"id"`
	UserID    int                    `json:"user_id"`
	SessionID string                 `json:"session_id"`
	Action    string                 `json:"action"`
	Detail    string                 `json:"detail,omitempty"`
	Severity  string                 `json:"severity"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type ActivityLogModel struct {
	DB *sql.DB
}

func NewActivityLogModel(db *sql.DB) *ActivityLogModel {
	return &ActivityLogModel{DB: db}
}

// Append writes one activity row. Used for the live progress display, so
// failures here are logged by callers but never block the worker.
func (m *ActivityLogModel) Append(userID int, sessionID, action, detail, severity string, metadata map[string]interface{}) error {
	var metaJSON []byte
	if metadata != nil {
		metaJSON, _ = json.Marshal(metadata)
	}
	if severity == "" {
		severity = "info"
	}
	_, err := m.DB.Exec(`
		INSERT INTO activity_logs (user_id, session_id, action, detail, severity, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, sessionID, action, detail, severity, metaJSON)
	return err
}

func (m *ActivityLogModel) GetRecent(sessionID string, limit int) ([]ActivityLog, error) {
	logs := []ActivityLog{}
	rows, err := m.DB.Query(`
		SELECT id, user_id, session_id, action, detail, severity, metadata, created_at
		FROM activity_logs
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry ActivityLog
		var detail sql.NullString
		var metaJSON []byte
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.SessionID, &entry.Action,
			&detail, &entry.Severity, &metaJSON, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		if detail.Valid {
			entry.Detail = detail.String
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &entry.Metadata)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
