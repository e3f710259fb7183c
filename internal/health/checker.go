// Package health verifies tomorrow's publishing coverage across monitored
// profiles. It reduces attempt rows to their effective per-key status and
// compares how many attempts are scheduled-or-better against each profile's
// expected daily quota.
package health

import (
	"log/slog"
	"time"

	"postline/internal/ledger"
	"postline/internal/timewindow"
	"postline/internal/types"
)

// QueueDepther reports how many consumable assets a profile has queued.
// Used only for profiles whose quota is conditional on a non-empty queue.
type QueueDepther interface {
	Depth() (int, error)
}

type CheckerConfig struct {
	Profiles []types.Profile
	// Queues maps profile key to its intake queue. Optional; a profile with
	// QuotaIfQueued set but no queue entry keeps its full quota.
	Queues map[string]QueueDepther
	Logger *slog.Logger
	Now    func() time.Time
}

// Checker computes coverage reports from attempt rows, regardless of where
// the rows came from (ledger file or the Postgres mirror).
type Checker struct {
	profiles []types.Profile
	queues   map[string]QueueDepther
	logger   *slog.Logger
	now      func() time.Time
}

func NewChecker(cfg CheckerConfig) *Checker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Checker{
		profiles: cfg.Profiles,
		queues:   cfg.Queues,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Check builds the coverage report for tomorrow from the given attempt rows.
// source records where the rows were read from and is carried into the
// report verbatim. Counting works on effective statuses: each correlation
// key contributes at most once, and only while its effective status is
// scheduled, in_progress or confirmed.
func (c *Checker) Check(rows []types.PostingAttempt, source string) (*types.CoverageReport, error) {
	states := ledger.Reduce(rows)

	report := &types.CoverageReport{OK: true, Source: source}
	for _, profile := range c.profiles {
		if !profile.Monitored {
			continue
		}
		day, err := timewindow.TomorrowInZone(c.now(), profile.Timezone)
		if err != nil {
			return nil, err
		}
		check := types.CoverageCheck{
			Key:      profile.Key,
			Timezone: profile.Timezone,
			Day:      day.String(),
			Expected: c.expected(profile),
			Actual:   countCovered(states, profile.Key, day.String()),
		}
		report.Checks = append(report.Checks, check)
		if check.Deficit() > 0 {
			report.OK = false
			report.Missing = append(report.Missing, check)
		}
	}
	return report, nil
}

// expected resolves a profile's quota, dropping it to zero for quota-if-queued
// profiles whose intake queue is empty or unreadable.
func (c *Checker) expected(profile types.Profile) int {
	if !profile.QuotaIfQueued {
		return profile.ExpectedPerDay
	}
	queue, ok := c.queues[profile.Key]
	if !ok {
		return profile.ExpectedPerDay
	}
	depth, err := queue.Depth()
	if err != nil {
		c.logger.Warn("queue depth unavailable, waiving quota",
			"profile", profile.Key, "error", err)
		return 0
	}
	if depth == 0 {
		return 0
	}
	return profile.ExpectedPerDay
}

func countCovered(states map[string]ledger.KeyState, profileKey, day string) int {
	count := 0
	for _, state := range states {
		row := state.Latest
		if row.Profile != profileKey {
			continue
		}
		if !state.Effective.ScheduledOrBetter() {
			continue
		}
		if len(row.ScheduledAt) < len(day) || row.ScheduledAt[:len(day)] != day {
			continue
		}
		count++
	}
	return count
}
