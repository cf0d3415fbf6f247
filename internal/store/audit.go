package store

import (
	"context"
	"fmt"
	"time"

	"github.com/soulscout/soulscout/internal/notifier"
)

// Append writes one notifier decision row. Satisfies the notifier audit
// log.
func (s *Store) Append(ctx context.Context, e notifier.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO notifier_audit_log (ts, mint, symbol, severity, confidence, outcome, details, raw_alert)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.Timestamp, e.Mint, e.Symbol, e.Severity, e.Confidence, e.Outcome, e.Details, e.RawAlert); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Healthy reports whether the audit log is reachable.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.Ping(ctx) == nil
}

// RecentAuditEntries returns decisions since the cutoff, newest first.
func (s *Store) RecentAuditEntries(ctx context.Context, since time.Time, limit int) ([]notifier.AuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `
		SELECT ts, mint, symbol, severity, confidence, outcome, details, raw_alert
		FROM notifier_audit_log
		WHERE ts >= $1
		ORDER BY ts DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit entries: %w", err)
	}
	defer rows.Close()

	var entries []notifier.AuditEntry
	for rows.Next() {
		var e notifier.AuditEntry
		if err := rows.Scan(&e.Timestamp, &e.Mint, &e.Symbol, &e.Severity,
			&e.Confidence, &e.Outcome, &e.Details, &e.RawAlert); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
