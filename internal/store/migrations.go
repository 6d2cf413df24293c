package store

import (
	"fmt"
	"strings"
)

// dialect holds the few DDL fragments that differ between engines.
type dialect struct {
	pk       string
	datetime string
	text     string
}

func dialectFor(driver string) dialect {
	switch driver {
	case "mysql":
		return dialect{pk: "BIGINT PRIMARY KEY AUTO_INCREMENT", datetime: "DATETIME(3)", text: "TEXT"}
	case "pgx":
		return dialect{pk: "BIGSERIAL PRIMARY KEY", datetime: "TIMESTAMP", text: "TEXT"}
	default: // sqlite
		return dialect{pk: "INTEGER PRIMARY KEY AUTOINCREMENT", datetime: "DATETIME", text: "TEXT"}
	}
}

func (s *Store) migrate() error {
	d := dialectFor(s.driver)

	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			name VARCHAR(64) NOT NULL,
			gender BOOLEAN NOT NULL DEFAULT FALSE,
			age INTEGER NOT NULL DEFAULT 0,
			birth VARCHAR(32),
			phone VARCHAR(32) NOT NULL,
			email VARCHAR(128),
			password VARCHAR(64) NOT NULL,
			address %s,
			avatar %s,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created %s NOT NULL,
			updated %s NOT NULL
		)`, d.pk, d.text, d.text, d.datetime, d.datetime),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_tokens (
			id %s,
			user_id VARCHAR(32) NOT NULL,
			token VARCHAR(64) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created %s NOT NULL,
			updated %s NOT NULL
		)`, d.pk, d.datetime, d.datetime),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS token_grants (
			id %s,
			user_token_id BIGINT NOT NULL,
			uri VARCHAR(256) NOT NULL,
			expire %s NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created %s NOT NULL,
			updated %s NOT NULL
		)`, d.pk, d.datetime, d.datetime, d.datetime),

		// No foreign key to users: the subject id is denormalized on
		// purpose so audit rows survive user deletion.
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS http_logs (
			id %s,
			user_id VARCHAR(32) NOT NULL DEFAULT '',
			method VARCHAR(16) NOT NULL,
			path VARCHAR(256) NOT NULL,
			query %s NOT NULL,
			body %s NOT NULL,
			remote_addr VARCHAR(64) NOT NULL,
			log_type VARCHAR(8) NOT NULL,
			created VARCHAR(32) NOT NULL
		)`, d.pk, d.text, d.text),

		`CREATE INDEX IF NOT EXISTS idx_user_tokens_token ON user_tokens(token)`,
		`CREATE INDEX IF NOT EXISTS idx_user_tokens_user_id ON user_tokens(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_token_grants_token_id ON token_grants(user_token_id)`,
		`CREATE INDEX IF NOT EXISTS idx_token_grants_uri ON token_grants(uri)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// MySQL predates IF NOT EXISTS for indexes; duplicates are fine.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
