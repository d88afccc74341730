package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
)

const (
	// archiveLockKey guards the archive cron across instances.
	archiveLockKey = "archive"

	// archiveLockTTL must outlive the longest plausible archive run.
	archiveLockTTL = 15 * time.Minute
)

// Archiver periodically moves aged price snapshots to cold storage. When a
// lock manager is configured, runs are guarded by a distributed lock so
// only one instance archives at a time.
type Archiver struct {
	archive       domain.Archiver
	locks         domain.LockManager
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver. locks may be nil, in which case runs are
// unguarded.
func NewArchiver(archive domain.Archiver, locks domain.LockManager, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		archive:       archive,
		locks:         locks,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run against the retention cutoff. A run
// skipped because another instance holds the lock is not an error.
func (a *Archiver) Run(ctx context.Context) error {
	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, archiveLockKey, archiveLockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.Info("archive run skipped, another instance holds the lock")
			return nil
		}
		if err != nil {
			return fmt.Errorf("acquire archive lock: %w", err)
		}
		defer unlock()
	}

	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	archived, err := a.archive.ArchiveSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving snapshots before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete", slog.Int64("snapshots_archived", archived))
	return nil
}

// RunCron runs the archiver on a cron schedule until the context is
// cancelled. Expressions use the 5-field form
// "minute hour day-of-month month day-of-week" with lists, ranges, and
// steps; all five fields must match.
//
// Example: "0 3 * * *" runs daily at 03:00.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField is one parsed cron field.
type cronField struct {
	wildcard bool
	values   []int
}

// matches reports whether val satisfies the field.
func (f cronField) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

// parseCronField parses one field within [lo, hi]. Supported atoms,
// comma-separable: "*", "N", "N-M", "*/S", "N-M/S".
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	var values []int
	for _, atom := range strings.Split(field, ",") {
		atom = strings.TrimSpace(atom)

		rangePart := atom
		step := 1
		if base, stepStr, ok := strings.Cut(atom, "/"); ok {
			rangePart = base
			s, err := strconv.Atoi(stepStr)
			if err != nil || s < 1 {
				return cronField{}, fmt.Errorf("invalid cron step %q", atom)
			}
			step = s
		}

		start, end := lo, hi
		switch {
		case rangePart == "*":
			// full range
		case strings.Contains(rangePart, "-"):
			loStr, hiStr, _ := strings.Cut(rangePart, "-")
			var err1, err2 error
			start, err1 = strconv.Atoi(loStr)
			end, err2 = strconv.Atoi(hiStr)
			if err1 != nil || err2 != nil || start > end {
				return cronField{}, fmt.Errorf("invalid cron range %q", atom)
			}
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron field value %q", atom)
			}
			start, end = v, v
		}

		if start < lo || end > hi {
			return cronField{}, fmt.Errorf("cron value %q outside range %d-%d", atom, lo, hi)
		}
		for v := start; v <= end; v += step {
			values = append(values, v)
		}
	}
	return cronField{values: values}, nil
}

// parsedCron holds the five parsed fields.
type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

// matchesTime reports whether t satisfies all five fields.
func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// parseCron parses a 5-field cron expression.
func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	minute, err := parseCronField(fields[0], 0, 59)
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing minute field: %w", err)
	}
	hour, err := parseCronField(fields[1], 0, 23)
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing hour field: %w", err)
	}
	dayOfMonth, err := parseCronField(fields[2], 1, 31)
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-month field: %w", err)
	}
	month, err := parseCronField(fields[3], 1, 12)
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing month field: %w", err)
	}
	dayOfWeek, err := parseCronField(fields[4], 0, 6)
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-week field: %w", err)
	}

	return parsedCron{
		minute:     minute,
		hour:       hour,
		dayOfMonth: dayOfMonth,
		month:      month,
		dayOfWeek:  dayOfWeek,
	}, nil
}

// nextCronTime returns the first time strictly after 'after' matching the
// expression, scanning minute by minute up to one year ahead.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if cron.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}

	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", cronExpr)
}
