package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quill/internal/models"
	_ "modernc.org/sqlite"
)

// FormKey is the single key the last-entered form is stored under.
const FormKey = "storyFormData"

// OpenQuillDB opens (creating if needed) the local database at path.
func OpenQuillDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt TEXT NOT NULL UNIQUE,
			used_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_used_at ON prompts(used_at DESC);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

func SaveFormData(db *sql.DB, form models.FormData, nowUnix int64) error {
	data, err := json.Marshal(form)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO kv(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		FormKey,
		string(data),
		nowUnix,
	)
	return err
}

// LoadFormData returns the saved form overlaid on the defaults. Fields the
// saved record lacks keep their default value. A missing record, or one
// that no longer decodes, yields the defaults.
func LoadFormData(db *sql.DB) (models.FormData, error) {
	form := models.DefaultForm()

	var raw string
	err := db.QueryRow("SELECT value FROM kv WHERE key = ?", FormKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return form, nil
	}
	if err != nil {
		return form, err
	}

	var saved models.FormData
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return form, fmt.Errorf("decode saved form: %w", err)
	}
	overlay(&form.Prompt, saved.Prompt)
	overlay(&form.Genre, saved.Genre)
	overlay(&form.Tone, saved.Tone)
	overlay(&form.Length, saved.Length)
	overlay(&form.Language, saved.Language)
	return form, nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func ClearFormData(db *sql.DB) error {
	_, err := db.Exec("DELETE FROM kv WHERE key = ?", FormKey)
	return err
}

// RecordPrompt remembers a submitted prompt, moving repeats to the front.
func RecordPrompt(db *sql.DB, prompt string, nowUnix int64) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	_, err := db.Exec(
		`INSERT INTO prompts(prompt, used_at) VALUES(?, ?)
		 ON CONFLICT(prompt) DO UPDATE SET used_at = excluded.used_at`,
		prompt,
		nowUnix,
	)
	return err
}

// RecentPrompts returns up to limit prompts, most recently used first.
func RecentPrompts(db *sql.DB, limit int) ([]string, error) {
	rows, err := db.Query(
		"SELECT prompt FROM prompts ORDER BY used_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prompts := make([]string, 0, limit)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prompts, nil
}
