package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/raaihank/mask-sentinel/internal/stats"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg Config, rec stats.Recorder) *Pipeline {
	t.Helper()
	engine, err := privacy.New(config.GetDefaults().Privacy, nil)
	require.NoError(t, err)
	return NewPipeline(engine, rec, cfg, nil)
}

func readOutput(t *testing.T, buf *bytes.Buffer) []OutputRecord {
	t.Helper()
	var out []OutputRecord
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var rec OutputRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestProcess_CSV(t *testing.T) {
	input := "id,text\n" +
		"a1,Contact tanaka@example.com today\n" +
		"a2,nothing here\n" +
		",Mr. John Smith called\n"

	rec := stats.NewMemoryRecorder()
	p := newTestPipeline(t, Config{BatchSize: 2, Workers: 3}, rec)

	var buf bytes.Buffer
	result, err := p.Process(context.Background(), FormatCSV, strings.NewReader(input), &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.TotalRecords)
	assert.Equal(t, int64(3), result.Masked)
	assert.Equal(t, int64(2), result.Detections)
	assert.Equal(t, 1, result.Summary["email"].Count)
	assert.Equal(t, 1, result.Summary["name"].Count)

	out := readOutput(t, &buf)
	require.Len(t, out, 3)
	assert.Equal(t, "a1", out[0].ID)
	assert.Equal(t, "Contact [Email_A] today", out[0].MaskedText)
	orig, ok := out[0].Mapping.Get("[Email_A]")
	assert.True(t, ok)
	assert.Equal(t, "tanaka@example.com", orig)
	assert.Equal(t, "nothing here", out[1].MaskedText)
	assert.Equal(t, 0, out[1].Mapping.Len())
	assert.Equal(t, "3", out[2].ID)
	assert.Equal(t, "Mr. [Person_A] called", out[2].MaskedText)

	totals, err := rec.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals["email"].Count)
}

func TestProcess_CSVRequiresTextColumn(t *testing.T) {
	p := newTestPipeline(t, Config{}, nil)
	_, err := p.Process(context.Background(), FormatCSV, strings.NewReader("id,body\n1,x\n"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "no text column")
}

func TestProcess_JSONL(t *testing.T) {
	input := `{"id":"r1","text":"mail bob@example.org"}
{"text":"call +81-90-1234-5678"}
`
	p := newTestPipeline(t, Config{BatchSize: 10, Workers: 2}, nil)

	var buf bytes.Buffer
	result, err := p.Process(context.Background(), FormatJSONL, strings.NewReader(input), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Masked)

	out := readOutput(t, &buf)
	require.Len(t, out, 2)
	assert.Equal(t, "r1", out[0].ID)
	assert.Equal(t, "mail [Email_A]", out[0].MaskedText)
	assert.Equal(t, "2", out[1].ID)
	assert.Equal(t, "call [Phone_A]", out[1].MaskedText)
}

func TestProcess_JSONLStopsOnBadLine(t *testing.T) {
	input := "{\"text\":\"ok\"}\n{broken\n{\"text\":\"never\"}\n"
	p := newTestPipeline(t, Config{BatchSize: 10}, nil)

	var buf bytes.Buffer
	result, err := p.Process(context.Background(), FormatJSONL, strings.NewReader(input), &buf)
	require.Error(t, err)
	assert.Equal(t, int64(1), result.Masked)
	assert.Len(t, readOutput(t, &buf), 1)
}

func TestProcess_SkipsOversizedRecords(t *testing.T) {
	input := "text\nshort a@b.co\n" + strings.Repeat("x", 100) + "\n"
	p := newTestPipeline(t, Config{MaxTextBytes: 50}, nil)

	var buf bytes.Buffer
	result, err := p.Process(context.Background(), FormatCSV, strings.NewReader(input), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalRecords)
	assert.Equal(t, int64(1), result.Skipped)
	assert.Len(t, readOutput(t, &buf), 1)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, Config{}, nil)
	_, err := p.Process(ctx, FormatCSV, strings.NewReader("text\nx\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessBatch_CancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, Config{Workers: 2}, nil)
	batch := []*Record{
		{ID: "1", Text: "Mail a@example.com"},
		{ID: "2", Text: "Mail b@example.com"},
		{ID: "3", Text: "Mail c@example.com"},
	}

	var buf bytes.Buffer
	result := &Result{Summary: privacy.Summary{}}
	err := p.processBatch(ctx, batch, json.NewEncoder(&buf), result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
	assert.Zero(t, result.TotalRecords)
}

func TestProcess_Parquet(t *testing.T) {
	var file bytes.Buffer
	w := parquet.NewWriter(&file)
	for _, r := range []Record{
		{ID: "p1", Text: "reach me at sato@example.jp"},
		{ID: "p2", Text: "plain"},
	} {
		require.NoError(t, w.Write(&r))
	}
	require.NoError(t, w.Close())

	p := newTestPipeline(t, Config{}, nil)
	var buf bytes.Buffer
	result, err := p.Process(context.Background(), FormatParquet, bytes.NewReader(file.Bytes()), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Masked)

	out := readOutput(t, &buf)
	require.Len(t, out, 2)
	assert.Equal(t, "p1", out[0].ID)
	assert.Equal(t, "reach me at [Email_A]", out[0].MaskedText)
}

func TestProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"1","text":"x@y.io"}`+"\n"), 0o600))

	p := newTestPipeline(t, Config{}, nil)
	var buf bytes.Buffer
	result, err := p.ProcessFile(context.Background(), path, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Detections)

	_, err = p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), &buf)
	assert.Error(t, err)
}

func TestDetectFileFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DetectFileFormat("a.csv"))
	assert.Equal(t, FormatParquet, DetectFileFormat("data/A.PARQUET"))
	assert.Equal(t, FormatJSONL, DetectFileFormat("x.jsonl"))
	assert.Equal(t, FormatJSONL, DetectFileFormat("x.json"))
	assert.Equal(t, FormatCSV, DetectFileFormat("noext"))
}
