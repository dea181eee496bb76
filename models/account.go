package models

import (
	"database/sql"
	"fmt"
)

type Account struct {
	ID           int    `json:"id"`
	SiteIdentity string `json:"site_identity"`
	SiteSecret   string `json:"-"`
	DailyQuota   int    `json:"daily_quota"`
	DailyUsage   int    `json:"daily_usage"`
}

type AccountModel struct {
	DB *sql.DB
}

func NewAccountModel(db *sql.DB) *AccountModel {
	return &AccountModel{DB: db}
}

// GetQuota returns the daily quota and today's usage for a user. A usage
// row carried over from a previous day is reset before being read.
func (m *AccountModel) GetQuota(userID int) (quota int, usage int, err error) {
	_, err = m.DB.Exec(
		`UPDATE accounts SET daily_usage = 0, usage_date = CURRENT_DATE WHERE id = $1 AND usage_date < CURRENT_DATE`,
		userID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to roll usage date: %v", err)
	}

	err = m.DB.QueryRow(
		`SELECT daily_quota, daily_usage FROM accounts WHERE id = $1`,
		userID,
	).Scan(&quota, &usage)
	if err == sql.ErrNoRows {
		return 0, 0, fmt.Errorf("account %d not found", userID)
	}
	return quota, usage, err
}

// GetCredentials returns the site login pair for a user. Secrets arrive
// already decrypted from the credentials collaborator.
func (m *AccountModel) GetCredentials(userID int) (identity, secret string, err error) {
	err = m.DB.QueryRow(
		`SELECT site_identity, site_secret FROM accounts WHERE id = $1`,
		userID,
	).Scan(&identity, &secret)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("account %d not found", userID)
	}
	return identity, secret, err
}
