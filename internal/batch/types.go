package batch

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/mask-sentinel/internal/privacy"
)

// Record is one input row.
type Record struct {
	ID   string `parquet:"id" json:"id"`
	Text string `parquet:"text" json:"text"`
}

// OutputRecord is one JSON line of output.
type OutputRecord struct {
	ID         string                `json:"id"`
	MaskedText string                `json:"masked_text"`
	Mapping    *privacy.MappingTable `json:"mapping_table"`
	Summary    privacy.Summary       `json:"summary"`
}

// Result describes a completed run.
type Result struct {
	TotalRecords int64           `json:"total_records"`
	Masked       int64           `json:"masked"`
	Skipped      int64           `json:"skipped"`
	Detections   int64           `json:"detections"`
	Summary      privacy.Summary `json:"summary"`
	Duration     time.Duration   `json:"duration"`
}

// Config contains pipeline settings
type Config struct {
	BatchSize      int
	Workers        int
	MaxTextBytes   int
	ProgressReport int
	// Rules restricts masking to the named rules. Empty means the enabled set.
	Rules []string
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatJSONL   FileFormat = "jsonl"
	FormatParquet FileFormat = "parquet"
)

// DetectFileFormat detects file format from extension. Unknown extensions
// are treated as CSV.
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL
	default:
		return FormatCSV
	}
}
