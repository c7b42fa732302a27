package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// Analysis is one completed risk analysis persisted for the history
// view. Raw uploaded files are never stored.
type Analysis struct {
	ID          int64     `json:"id"`
	PlayerIDs   string    `json:"player_ids"`
	DateFrom    string    `json:"date_from"`
	DateTo      string    `json:"date_to"`
	Probability float64   `json:"probability"`
	Percent     float64   `json:"percent"`
	Tier        string    `json:"tier"`
	Label       string    `json:"label"`
	CreatedAt   time.Time `json:"created_at"`
}

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS analyses (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        player_ids TEXT NOT NULL,
        date_from TEXT NOT NULL,
        date_to TEXT NOT NULL,
        probability REAL NOT NULL,
        percent REAL NOT NULL,
        tier VARCHAR(20) NOT NULL,
        label VARCHAR(50) NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `

	_, err = database.Exec(query)
	return err
}

// Close closes the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// SaveAnalysis appends one completed analysis to the history
func SaveAnalysis(a Analysis) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO analyses (player_ids, date_from, date_to, probability, percent, tier, label)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.PlayerIDs, a.DateFrom, a.DateTo, a.Probability, a.Percent, a.Tier, a.Label)
	return err
}

// QueryAnalyses returns the most recent analyses, newest first
func QueryAnalyses(limit int) ([]Analysis, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := database.Query(`
        SELECT id, player_ids, date_from, date_to, probability, percent, tier, label, created_at
        FROM analyses
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := make([]Analysis, 0)
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.PlayerIDs, &a.DateFrom, &a.DateTo,
			&a.Probability, &a.Percent, &a.Tier, &a.Label, &a.CreatedAt); err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
