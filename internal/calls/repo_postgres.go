package calls

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo persists call records via database/sql over the pgx stdlib
// driver.
//
// Assumed schema:
//
//	CREATE TABLE garuda_sentry_calls (
//	    id              UUID PRIMARY KEY,
//	    conversation_id TEXT NOT NULL UNIQUE,
//	    intent          TEXT NOT NULL DEFAULT 'unknown',
//	    caller_phone    TEXT,
//	    "timestamp"     TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    priority_level  INT,
//	    status          TEXT,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// The UNIQUE constraint on conversation_id is required correctness, not an
// optimization: it is what makes concurrent insert races resolvable.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const uniqueViolation = "23505"

const callColumns = `id, conversation_id, intent, caller_phone, "timestamp", priority_level, status, created_at, updated_at`

func (r *PostgresRepo) Insert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	const q = `
INSERT INTO garuda_sentry_calls (id, conversation_id, intent, caller_phone, "timestamp", priority_level, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
RETURNING ` + callColumns
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.ConversationID,
		rec.Intent,
		nullString(rec.CallerPhone),
		rec.Timestamp,
		nullInt(rec.PriorityLevel),
		nullString(rec.Status),
		rec.CreatedAt,
	)
	out, err := scanCallRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return CallRecord{}, ErrConflict
		}
		return CallRecord{}, err
	}
	return out, nil
}

func (r *PostgresRepo) GetByConversationID(ctx context.Context, conversationID string) (CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM garuda_sentry_calls
WHERE conversation_id = $1
`
	out, err := scanCallRecord(r.db.QueryRowContext(ctx, q, conversationID))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return out, err
}

func (r *PostgresRepo) Update(ctx context.Context, conversationID string, upd CallUpdate) (CallRecord, error) {
	// Partial update: NULL arguments keep the stored value.
	const q = `
UPDATE garuda_sentry_calls
SET intent          = COALESCE($2::text, intent),
    caller_phone    = COALESCE($3::text, caller_phone),
    "timestamp"     = COALESCE($4::timestamptz, "timestamp"),
    priority_level  = COALESCE($5::int, priority_level),
    status          = COALESCE($6::text, status),
    updated_at      = now()
WHERE conversation_id = $1
RETURNING ` + callColumns
	out, err := scanCallRecord(r.db.QueryRowContext(ctx, q,
		conversationID,
		upd.Intent,
		upd.CallerPhone,
		upd.Timestamp,
		upd.PriorityLevel,
		upd.Status,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return out, err
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]CallRecord, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + callColumns + ` FROM garuda_sentry_calls`)

	var (
		where []string
		args  []any
	)
	if f.Intent != "" {
		args = append(args, f.Intent)
		where = append(where, `intent = $`+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, `status = $`+strconv.Itoa(len(args)))
	}
	if f.PriorityLevel != nil {
		args = append(args, *f.PriorityLevel)
		where = append(where, `priority_level = $`+strconv.Itoa(len(args)))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if f.ByPriority {
		b.WriteString(` ORDER BY priority_level ASC NULLS LAST, "timestamp" DESC`)
	} else {
		b.WriteString(` ORDER BY "timestamp" DESC`)
	}

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCallRecord(row rowScanner) (CallRecord, error) {
	var (
		rec      CallRecord
		phone    sql.NullString
		status   sql.NullString
		priority sql.NullInt64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ConversationID,
		&rec.Intent,
		&phone,
		&rec.Timestamp,
		&priority,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return CallRecord{}, err
	}
	rec.CallerPhone = phone.String
	rec.Status = status.String
	rec.PriorityLevel = int(priority.Int64)
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
