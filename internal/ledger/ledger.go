// Package ledger implements the append-only publication attempt log: one CSV
// row per attempt or status observation, in a fixed column order, with a
// header line. The file is the system of record for what was scheduled,
// when, for whom, and with what outcome. Rows are never edited or deleted;
// a status change is a new row for the same correlation key.
//
// Each append is issued as a single write of one complete line so that two
// sequential operator processes sharing the file cannot interleave partial
// lines. This assumes a local filesystem with atomic small-write semantics;
// the guarantee does not hold on network filesystems.
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"postline/internal/types"
)

// Columns is the fixed ledger schema, in file order.
var Columns = []string{
	"recorded_at",
	"profile",
	"run_id",
	"video_file",
	"image_file",
	"source_video_path",
	"source_image_path",
	"external_account_ref",
	"platform",
	"status",
	"caption",
	"scheduled_at",
	"timezone",
	"external_job_id",
	"external_request_id",
	"raw_response",
	"error",
}

// Ledger reads and appends attempt rows at a fixed file path. The zero
// value is not usable; construct with New.
type Ledger struct {
	path string
}

// New returns a Ledger backed by the CSV file at path. The file does not
// need to exist yet; it is created with its header on first append, and an
// absent file reads as "no attempts yet".
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append writes one attempt row. The record is serialized fully in memory
// (CSV-escaping fields containing commas, quotes, or newlines) and handed to
// the kernel in one write call. Write failures propagate to the caller;
// losing a ledger write silently would lose the source of truth.
func (l *Ledger) Append(row types.PostingAttempt) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite, "creating ledger directory", err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite, "opening ledger", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite, "stat ledger", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			return types.NewAppError(types.ErrCodeLedgerWrite, "writing header", err)
		}
	}
	if err := w.Write(marshalRow(row)); err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite, "encoding row", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite, "encoding row", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite, "appending row", err)
	}
	return nil
}

// ReadAll returns every row in file order, oldest first. A missing file
// returns no rows and no error. Data lines with the wrong column count are
// skipped rather than failing the whole read.
func (l *Ledger) ReadAll() ([]types.PostingAttempt, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeLedgerRead, "opening ledger", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []types.PostingAttempt
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeLedgerRead, "parsing ledger", err)
		}
		if first {
			first = false
			if len(rec) > 0 && rec[0] == Columns[0] {
				continue // header line
			}
		}
		if len(rec) != len(Columns) {
			continue
		}
		rows = append(rows, unmarshalRow(rec))
	}
	return rows, nil
}

// Tail returns the most recent n rows (or all rows when n <= 0 or the file
// is shorter), still oldest first.
func (l *Ledger) Tail(n int) ([]types.PostingAttempt, error) {
	rows, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

func marshalRow(a types.PostingAttempt) []string {
	recorded := ""
	if !a.RecordedAt.IsZero() {
		recorded = a.RecordedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		recorded,
		a.Profile,
		a.RunID,
		a.VideoFile,
		a.ImageFile,
		a.SourceVideoPath,
		a.SourceImagePath,
		a.AccountRef,
		a.Platform,
		string(a.Status),
		a.Caption,
		a.ScheduledAt,
		a.Timezone,
		a.JobID,
		a.RequestID,
		a.RawResponse,
		a.Error,
	}
}

func unmarshalRow(rec []string) types.PostingAttempt {
	recorded, _ := time.Parse(time.RFC3339, rec[0])
	return types.PostingAttempt{
		RecordedAt:      recorded,
		Profile:         rec[1],
		RunID:           rec[2],
		VideoFile:       rec[3],
		ImageFile:       rec[4],
		SourceVideoPath: rec[5],
		SourceImagePath: rec[6],
		AccountRef:      rec[7],
		Platform:        rec[8],
		Status:          types.AttemptStatus(rec[9]),
		Caption:         rec[10],
		ScheduledAt:     rec[11],
		Timezone:        rec[12],
		JobID:           rec[13],
		RequestID:       rec[14],
		RawResponse:     rec[15],
		Error:           rec[16],
	}
}

// Header returns the exact header line, without a trailing newline. Useful
// for diagnostics and tests.
func Header() string {
	return strings.Join(Columns, ",")
}
