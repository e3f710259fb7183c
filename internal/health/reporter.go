package health

import (
	"context"
	"log/slog"
	"sort"

	"postline/internal/db"
	"postline/internal/types"
)

// LedgerReader reads the whole attempt ledger file.
type LedgerReader interface {
	ReadAll() ([]types.PostingAttempt, error)
}

// MirrorReader reads recent rows from the Postgres mirror.
type MirrorReader interface {
	RecentRows(ctx context.Context, limit int) ([]db.MirrorRow, error)
}

// defaultMirrorLimit bounds how much mirror history a report considers.
// Coverage only looks at tomorrow, so recent rows are all that matters.
const defaultMirrorLimit = 2000

type ReporterConfig struct {
	Checker *Checker
	Ledger  LedgerReader
	// Mirror is optional. When set it is the preferred row source, with the
	// ledger file as fallback; when nil the ledger is read directly.
	Mirror      MirrorReader
	MirrorLimit int
	Logger      *slog.Logger
}

// Reporter assembles coverage reports, preferring the mirror over the
// ledger file so the check keeps working on hosts without the results
// directory mounted.
type Reporter struct {
	checker     *Checker
	ledger      LedgerReader
	mirror      MirrorReader
	mirrorLimit int
	logger      *slog.Logger
}

func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MirrorLimit <= 0 {
		cfg.MirrorLimit = defaultMirrorLimit
	}
	return &Reporter{
		checker:     cfg.Checker,
		ledger:      cfg.Ledger,
		mirror:      cfg.Mirror,
		mirrorLimit: cfg.MirrorLimit,
		logger:      cfg.Logger,
	}
}

// Report reads attempt rows and runs the coverage check over them. A mirror
// read failure degrades to the ledger file; only a failure of both is an
// error.
func (r *Reporter) Report(ctx context.Context) (*types.CoverageReport, error) {
	if r.mirror != nil {
		mirrorRows, err := r.mirror.RecentRows(ctx, r.mirrorLimit)
		if err == nil {
			rows := make([]types.PostingAttempt, 0, len(mirrorRows))
			for _, row := range mirrorRows {
				rows = append(rows, row.Attempt())
			}
			// RecentRows is newest-first; the reduction needs ledger order,
			// or a key's oldest status would win over its latest.
			sort.SliceStable(rows, func(i, j int) bool {
				return rows[i].RecordedAt.Before(rows[j].RecordedAt)
			})
			return r.checker.Check(rows, "mirror")
		}
		r.logger.WarnContext(ctx, "mirror unavailable, falling back to ledger file", "error", err)
	}

	rows, err := r.ledger.ReadAll()
	if err != nil {
		return nil, err
	}
	return r.checker.Check(rows, "ledger")
}
