package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raaihank/mask-sentinel/internal/logger"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/raaihank/mask-sentinel/internal/stats"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline masks datasets record by record.
type Pipeline struct {
	engine   *privacy.Engine
	recorder stats.Recorder
	config   Config
	logger   *logger.Logger
}

// NewPipeline creates a pipeline. recorder may be nil.
func NewPipeline(engine *privacy.Engine, recorder stats.Recorder, cfg Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ProgressReport <= 0 {
		cfg.ProgressReport = 10000
	}
	return &Pipeline{
		engine:   engine,
		recorder: recorder,
		config:   cfg,
		logger:   log.WithComponent("batch"),
	}
}

// ProcessFile masks the dataset at inputPath and writes JSON lines to out.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath string, out io.Writer) (*Result, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	format := DetectFileFormat(inputPath)
	p.logger.Info("Starting batch masking",
		zap.String("file", inputPath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.Workers))

	return p.Process(ctx, format, file, out)
}

// Process masks records read from in. Parquet input must implement
// io.ReaderAt.
func (p *Pipeline) Process(ctx context.Context, format FileFormat, in io.Reader, out io.Writer) (*Result, error) {
	start := time.Now()

	var readBatch func() ([]*Record, error)
	switch format {
	case FormatCSV:
		rb, err := p.csvReader(in)
		if err != nil {
			return nil, err
		}
		readBatch = rb
	case FormatJSONL:
		readBatch = p.jsonlReader(in)
	case FormatParquet:
		ra, ok := in.(io.ReaderAt)
		if !ok {
			return nil, fmt.Errorf("parquet input must support random access")
		}
		rb, closeFn, err := p.parquetReader(ra)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		readBatch = rb
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}

	result := &Result{Summary: make(privacy.Summary)}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	if err := p.processBatches(ctx, readBatch, enc, result); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}
	result.Duration = time.Since(start)

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, result.Summary); err != nil {
			p.logger.Warn("Failed to record detection counts", zap.Error(err))
		}
	}

	p.logger.Info("Batch masking completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("masked", result.Masked),
		zap.Int64("skipped", result.Skipped),
		zap.Int64("detections", result.Detections),
		zap.Duration("duration", result.Duration))
	p.logger.LogDetectionCounts("Batch detection totals", result.Summary.Counts())

	return result, nil
}

func (p *Pipeline) csvReader(in io.Reader) (func() ([]*Record, error), error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	textCol, idCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "text":
			textCol = i
		case "id":
			idCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("CSV header has no text column: %v", header)
	}

	p.logger.Debug("CSV header detected", zap.Strings("columns", header))

	row := 0
	return func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < p.config.BatchSize {
			fields, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read CSV record: %w", err)
			}
			row++
			if textCol >= len(fields) {
				p.logger.Warn("CSV record missing text column", zap.Int("row", row))
				continue
			}
			rec := &Record{ID: strconv.Itoa(row), Text: fields[textCol]}
			if idCol >= 0 && idCol < len(fields) && fields[idCol] != "" {
				rec.ID = fields[idCol]
			}
			batch = append(batch, rec)
		}
		return batch, nil
	}, nil
}

func (p *Pipeline) jsonlReader(in io.Reader) func() ([]*Record, error) {
	decoder := json.NewDecoder(in)
	row := 0
	return func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < p.config.BatchSize {
			var rec Record
			err := decoder.Decode(&rec)
			if err == io.EOF {
				break
			}
			if err != nil {
				// decoder errors are sticky, so stop here
				return batch, fmt.Errorf("failed to read JSON record %d: %w", row+1, err)
			}
			row++
			if rec.ID == "" {
				rec.ID = strconv.Itoa(row)
			}
			batch = append(batch, &rec)
		}
		return batch, nil
	}
}

func (p *Pipeline) parquetReader(in io.ReaderAt) (func() ([]*Record, error), func(), error) {
	size, err := sizeOf(in)
	if err != nil {
		return nil, nil, err
	}
	file, err := parquet.OpenFile(in, size)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Parquet input: %w", err)
	}
	if _, ok := file.Schema().Lookup("text"); !ok {
		return nil, nil, fmt.Errorf("Parquet schema has no text column")
	}

	reader := parquet.NewReader(file)
	row := 0
	readBatch := func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < p.config.BatchSize {
			var rec Record
			err := reader.Read(&rec)
			if err == io.EOF {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read Parquet record: %w", err)
			}
			row++
			if rec.ID == "" {
				rec.ID = strconv.Itoa(row)
			}
			batch = append(batch, &rec)
		}
		return batch, nil
	}
	return readBatch, func() { reader.Close() }, nil
}

func sizeOf(in io.ReaderAt) (int64, error) {
	switch v := in.(type) {
	case interface{ Size() int64 }:
		return v.Size(), nil
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := v.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	default:
		return 0, errors.New("cannot determine Parquet input size")
	}
}

// processBatches reads, masks and writes batches until input is exhausted
// or ctx is cancelled.
func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]*Record, error), enc *json.Encoder, result *Result) error {
	nextReport := int64(p.config.ProgressReport)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, readErr := readBatch()
		if len(batch) > 0 {
			if err := p.processBatch(ctx, batch, enc, result); err != nil {
				return err
			}
		}
		if readErr != nil {
			return readErr
		}
		if len(batch) == 0 {
			return nil
		}

		if result.TotalRecords >= nextReport {
			p.logger.Info("Batch progress",
				zap.Int64("records", result.TotalRecords),
				zap.Int64("detections", result.Detections))
			nextReport += int64(p.config.ProgressReport)
		}
	}
}

type maskedRecord struct {
	out     *OutputRecord
	skipped bool
}

// processBatch masks a batch on the worker pool and writes results in
// input order. Nothing is written when ctx is cancelled mid-batch.
func (p *Pipeline) processBatch(ctx context.Context, batch []*Record, enc *json.Encoder, result *Result) error {
	masked := make([]maskedRecord, len(batch))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.config.Workers)
	for i := range batch {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			masked[i] = p.maskRecord(batch[i])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, m := range masked {
		result.TotalRecords++
		if m.skipped {
			result.Skipped++
			p.logger.Warn("Skipping oversized record",
				zap.String("id", batch[i].ID),
				zap.Int("bytes", len(batch[i].Text)),
				zap.Int("max_text_bytes", p.config.MaxTextBytes))
			continue
		}
		if err := enc.Encode(m.out); err != nil {
			return fmt.Errorf("failed to write output record: %w", err)
		}
		result.Masked++
		for key, st := range m.out.Summary {
			agg := result.Summary[key]
			agg.Description = st.Description
			agg.Count += st.Count
			result.Summary[key] = agg
			result.Detections += int64(st.Count)
		}
	}
	return nil
}

func (p *Pipeline) maskRecord(rec *Record) maskedRecord {
	if p.config.MaxTextBytes > 0 && len(rec.Text) > p.config.MaxTextBytes {
		return maskedRecord{skipped: true}
	}
	res := p.engine.Mask(rec.Text, p.config.Rules...)
	return maskedRecord{out: &OutputRecord{
		ID:         rec.ID,
		MaskedText: res.MaskedText,
		Mapping:    res.Mapping,
		Summary:    p.engine.Summarize(res.Detections),
	}}
}
