package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/concordia/internal/model"
)

// Supported input formats
const (
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// InputExtensions lists the file extensions the loader understands
var InputExtensions = []string{".csv", ".tsv", ".jsonl", ".ndjson", ".json"}

// maxLineBytes bounds a single JSONL line
const maxLineBytes = 16 << 20

// Loader reads record collections from disk
type Loader struct{}

// NewLoader creates a new Loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadResult contains the loaded records and their origin
type LoadResult struct {
	Records []model.Record
	Format  string
	Subject string
	Path    string
}

// Load reads every record from path. The format is taken from the extension.
func (l *Loader) Load(path string) (*LoadResult, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = file.Close() }()

	records, err := l.Read(file, format)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &LoadResult{
		Records: records,
		Format:  format,
		Subject: extractSubject(path),
		Path:    path,
	}, nil
}

// Read decodes records in the given format
func (l *Loader) Read(r io.Reader, format string) ([]model.Record, error) {
	switch format {
	case FormatCSV:
		return readDelimited(r, ',')
	case FormatTSV:
		return readDelimited(r, '\t')
	case FormatJSONL:
		return readJSONL(r)
	case FormatJSON:
		return readJSONArray(r)
	default:
		return nil, fmt.Errorf("unsupported format %q: %w", format, model.ErrInvalidInput)
	}
}

// FormatFromPath maps a file extension to an input format
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported input file %q (want .csv, .tsv, .jsonl or .json): %w", path, model.ErrInvalidInput)
}

// readDelimited reads a header row followed by data rows. Empty cells
// become nil so they count as missing values.
func readDelimited(r io.Reader, comma rune) ([]model.Record, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = comma
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records := []model.Record{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}

		record := make(model.Record, len(header))
		for i, column := range header {
			if row[i] == "" {
				record[column] = nil
				continue
			}
			record[column] = row[i]
		}
		records = append(records, record)
	}

	return records, nil
}

// readJSONL reads one JSON object per line, skipping blank lines
func readJSONL(r io.Reader) ([]model.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	records := []model.Record{}
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var record model.Record
		if err := json.Unmarshal(text, &record); err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", line, err, model.ErrInvalidInput)
		}
		if record == nil {
			return nil, fmt.Errorf("line %d: not an object: %w", line, model.ErrInvalidInput)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return records, nil
}

// readJSONArray reads a single JSON array of objects
func readJSONArray(r io.Reader) ([]model.Record, error) {
	var records []model.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Record{}, nil
		}
		return nil, fmt.Errorf("decode array: %v: %w", err, model.ErrInvalidInput)
	}
	for i, record := range records {
		if record == nil {
			return nil, fmt.Errorf("element %d: not an object: %w", i, model.ErrInvalidInput)
		}
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// extractSubject derives a human-readable subject from the input file name
func extractSubject(path string) string {
	base := filepath.Base(path)

	// Remove file extensions
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}

	// De-slugify: replace underscores and hyphens with spaces
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")

	return strings.TrimSpace(base)
}
