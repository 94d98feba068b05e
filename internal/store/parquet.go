package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/validate"
)

// File names written by WriteParquet
const (
	RecordsParquetFile   = "records.parquet"
	ConflictsParquetFile = "conflicts.parquet"
)

// RecordRow is the flat parquet schema for one annotated record.
// Payload holds the full record as JSON.
type RecordRow struct {
	RunID          string `parquet:"run_id"`
	Index          int64  `parquet:"record_index"`
	ClusterID      int64  `parquet:"cluster_id"`
	Representative string `parquet:"representative"`
	Payload        string `parquet:"payload"`
}

// ConflictRow is the flat parquet schema for one conflict. Values holds
// the conflicting values as a JSON array.
type ConflictRow struct {
	RunID     string `parquet:"run_id"`
	ClusterID int64  `parquet:"cluster_id"`
	Attribute string `parquet:"attribute"`
	Values    string `parquet:"conflicting_values"`
}

// WriteParquet writes records.parquet and conflicts.parquet into dir
func WriteParquet(dir string, res *model.Resolution) error {
	if res == nil || res.Report == nil {
		return fmt.Errorf("nothing to write: %w", model.ErrInvalidInput)
	}

	recordRows, err := RecordRows(res)
	if err != nil {
		return err
	}
	conflictRows, err := ConflictRows(res.Report)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parquet dir: %w", err)
	}

	if err := parquet.WriteFile(filepath.Join(dir, RecordsParquetFile), recordRows); err != nil {
		return fmt.Errorf("write records parquet: %w", err)
	}
	if err := parquet.WriteFile(filepath.Join(dir, ConflictsParquetFile), conflictRows); err != nil {
		return fmt.Errorf("write conflicts parquet: %w", err)
	}
	return nil
}

// RecordRows flattens annotated records into parquet rows
func RecordRows(res *model.Resolution) ([]RecordRow, error) {
	assignment, err := validate.AssignmentFromField(res.Records, model.FieldClusterID)
	if err != nil {
		return nil, fmt.Errorf("records are not annotated: %w", err)
	}

	rows := make([]RecordRow, len(res.Records))
	for i, record := range res.Records {
		payload, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshal record %d: %w", i, err)
		}
		rep, _ := record[model.FieldClusterRep].(string)
		rows[i] = RecordRow{
			RunID:          res.Report.RunID,
			Index:          int64(i),
			ClusterID:      int64(assignment[i]),
			Representative: rep,
			Payload:        string(payload),
		}
	}
	return rows, nil
}

// ConflictRows flattens report conflicts into parquet rows
func ConflictRows(report *model.Report) ([]ConflictRow, error) {
	rows := make([]ConflictRow, len(report.Conflicts))
	for i, c := range report.Conflicts {
		values, err := json.Marshal(c.ConflictingValues)
		if err != nil {
			return nil, fmt.Errorf("marshal conflict %d: %w", i, err)
		}
		rows[i] = ConflictRow{
			RunID:     report.RunID,
			ClusterID: int64(c.ClusterID),
			Attribute: c.Attribute,
			Values:    string(values),
		}
	}
	return rows, nil
}
