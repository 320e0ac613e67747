package repopostgre

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/wlo1561411/HappyTime/punchclock"
)

// OutcomesChannel is the notification channel outcomes are announced on.
const OutcomesChannel = "punch_outcomes"

// Entry is a single journaled pipeline outcome.
type Entry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Error     string    `json:"error"`
	Refresh   string    `json:"refresh"`
	Summary   []string  `json:"summary"`
}

func entryOf(o punchclock.Outcome) Entry {
	e := Entry{
		CreatedAt: o.At.UTC(),
		Action:    string(o.Action),
		Success:   o.Success,
		Title:     o.Title,
		Message:   o.Message,
		Error:     o.ErrorText(),
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if o.RefreshErr != nil {
		e.Refresh = o.RefreshErr.Error()
	}
	if lines, ok := o.Summary(); ok {
		e.Summary = lines
	}
	return e
}

// WriteOutcome journals the outcome and notifies the listeners of the OutcomesChannel
// in a single transaction.
func (db DataBase) WriteOutcome(ctx context.Context, o punchclock.Outcome) error {
	e := entryOf(o)

	var err error
	var tx *sql.Tx
	tx, err = db.inner.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(ErrTrxBeginFailed, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(
		ctx,
		`INSERT INTO punch_outcomes (created_at, action, success, title, message, error, refresh, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		e.CreatedAt.UnixMicro(), e.Action, e.Success, e.Title, e.Message, e.Error, e.Refresh,
		strings.Join(e.Summary, "\n"),
	).Scan(&e.ID)
	if err != nil {
		return errors.Join(ErrInsertFailed, err)
	}

	var payload []byte
	payload, err = json.Marshal(e)
	if err != nil {
		return errors.Join(ErrInsertFailed, err)
	}
	_, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", OutcomesChannel, string(payload))
	if err != nil {
		return errors.Join(ErrInsertFailed, err)
	}

	err = tx.Commit()
	if err != nil {
		return errors.Join(ErrCommitFailed, err)
	}
	return nil
}

// ReadOutcomes reads at most limit of the latest journaled outcomes, newest first.
func (db DataBase) ReadOutcomes(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.inner.QueryContext(
		ctx,
		`SELECT id, created_at, action, success, title, message, error, refresh, summary
		FROM punch_outcomes ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var createdAt int64
		var summary string
		if err := rows.Scan(
			&e.ID, &createdAt, &e.Action, &e.Success, &e.Title, &e.Message, &e.Error, &e.Refresh, &summary,
		); err != nil {
			return nil, errors.Join(ErrScanFailed, err)
		}
		e.CreatedAt = time.UnixMicro(createdAt).UTC()
		if summary != "" {
			e.Summary = strings.Split(summary, "\n")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrScanFailed, err)
	}
	return entries, nil
}
