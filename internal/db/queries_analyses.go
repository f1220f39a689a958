package db

import (
	"database/sql"
	"time"

	"github.com/YannKr/jpegforensics/internal/model"
)

const analysisColumns = `id, algorithm, state, progress, stage, original_name, input_path, params,
	COALESCE(result_data, ''), COALESCE(error_message, ''), api_key_id,
	created_at, started_at, completed_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row scanner) (*model.Analysis, error) {
	a := &model.Analysis{}
	var createdAt SQLiteTime
	var startedAt, completedAt sql.NullString
	err := row.Scan(
		&a.ID, &a.Algorithm, &a.State, &a.Progress, &a.Stage, &a.OriginalName,
		&a.InputPath, &a.ParamsJSON, &a.ResultJSON, &a.ErrorMessage, &a.APIKeyID,
		&createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = createdAt.Time
	a.StartedAt = timePtr(startedAt)
	a.CompletedAt = timePtr(completedAt)
	return a, nil
}

func CreateAnalysis(database *sql.DB, a *model.Analysis) error {
	params := a.ParamsJSON
	if params == "" {
		params = "{}"
	}
	_, err := database.Exec(
		`INSERT INTO analyses (id, algorithm, state, original_name, input_path, params, api_key_id)
		 VALUES (?, ?, 'PENDING', ?, ?, ?, ?)`,
		a.ID, a.Algorithm, a.OriginalName, a.InputPath, params, a.APIKeyID,
	)
	return err
}

// ClaimNextAnalysis atomically moves the oldest pending analysis to RUNNING
// and returns it, or nil when the queue is empty.
func ClaimNextAnalysis(database *sql.DB) (*model.Analysis, error) {
	row := database.QueryRow(`
		UPDATE analyses
		SET state = 'RUNNING', started_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = (
			SELECT id FROM analyses WHERE state = 'PENDING'
			ORDER BY created_at ASC LIMIT 1
		)
		RETURNING ` + analysisColumns)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func UpdateAnalysisProgress(database *sql.DB, id string, progress int, stage string) error {
	_, err := database.Exec(`UPDATE analyses SET progress = ?, stage = ? WHERE id = ?`, progress, stage, id)
	return err
}

func CompleteAnalysis(database *sql.DB, id, resultJSON string) error {
	_, err := database.Exec(
		`UPDATE analyses SET state = 'COMPLETED', progress = 100, result_data = ?,
		        completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = ?`, resultJSON, id,
	)
	return err
}

func FailAnalysis(database *sql.DB, id, errorMsg string) error {
	_, err := database.Exec(
		`UPDATE analyses SET state = 'FAILED', error_message = ?, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = ?`, errorMsg, id,
	)
	return err
}

// RequeueRunning returns analyses left RUNNING by a previous process to the
// queue.
func RequeueRunning(database *sql.DB) (int64, error) {
	res, err := database.Exec(
		`UPDATE analyses SET state = 'PENDING', progress = 0, stage = '', started_at = NULL WHERE state = 'RUNNING'`,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func GetAnalysis(database *sql.DB, id string) (*model.Analysis, error) {
	a, err := scanAnalysis(database.QueryRow(`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func ListRecentAnalyses(database *sql.DB, limit int) ([]model.Analysis, error) {
	return listAnalyses(database,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC LIMIT ?`, limit)
}

// ListFinishedBefore returns completed or failed analyses created before
// cutoff.
func ListFinishedBefore(database *sql.DB, cutoff time.Time) ([]model.Analysis, error) {
	return listAnalyses(database,
		`SELECT `+analysisColumns+` FROM analyses
		 WHERE state IN ('COMPLETED', 'FAILED') AND created_at < ?
		 ORDER BY created_at ASC`, sqliteTimestamp(cutoff))
}

func listAnalyses(database *sql.DB, query string, args ...interface{}) ([]model.Analysis, error) {
	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func DeleteAnalysis(database *sql.DB, id string) error {
	_, err := database.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	return err
}
