package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageEvent is one finished generation request. Only metadata is kept; the
// user's text and the generated reply are never stored.
type UsageEvent struct {
	ID                 uuid.UUID
	Kind               string
	Provider           string
	Model              string
	Outcome            string
	ErrorCode          string
	UpstreamStatus     int
	DisclaimerAppended bool
	NormalizationGap   bool
	PromptChars        int
	ReplyChars         int
	Duration           time.Duration
	At                 time.Time
}

type UsageRepo struct{ DB *sql.DB }

func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{DB: db} }

const schema = `
create table if not exists generation_log (
	id                  uuid primary key,
	kind                text        not null,
	provider            text        not null,
	model               text        not null,
	outcome             text        not null,
	error_code          text        not null default '',
	upstream_status     integer     not null default 0,
	disclaimer_appended boolean     not null default false,
	normalization_gap   boolean     not null default false,
	prompt_chars        integer     not null default 0,
	reply_chars         integer     not null default 0,
	duration_ms         bigint      not null default 0,
	created_at          timestamptz not null default now()
);
create index if not exists generation_log_created_at_idx on generation_log (created_at);`

func (r *UsageRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure generation_log: %w", err)
	}
	return nil
}

func (r *UsageRepo) Ping(ctx context.Context) error { return r.DB.PingContext(ctx) }

// Record inserts e, assigning an id and timestamp when they are unset.
func (r *UsageRepo) Record(ctx context.Context, e UsageEvent) error {
	e = prepare(e)
	const q = `
insert into generation_log(id, kind, provider, model, outcome, error_code, upstream_status,
	disclaimer_appended, normalization_gap, prompt_chars, reply_chars, duration_ms, created_at)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.DB.ExecContext(ctx, q,
		e.ID, e.Kind, e.Provider, e.Model, e.Outcome, e.ErrorCode, e.UpstreamStatus,
		e.DisclaimerAppended, e.NormalizationGap, e.PromptChars, e.ReplyChars,
		e.Duration.Milliseconds(), e.At)
	return err
}

// OutcomeCount is one row of Summary.
type OutcomeCount struct {
	Kind    string
	Outcome string
	Count   int64
}

// Summary counts requests per (kind, outcome) created at or after since.
func (r *UsageRepo) Summary(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	const q = `select kind, outcome, count(*)
	           from generation_log
	           where created_at >= $1
	           group by kind, outcome
	           order by kind, outcome`
	rows, err := r.DB.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Kind, &c.Outcome, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func prepare(e UsageEvent) UsageEvent {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	e.Model = clip(e.Model, 128)
	e.ErrorCode = clip(e.ErrorCode, 64)
	return e
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
