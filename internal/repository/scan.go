package repository

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// sqliteTime is fixed width so that TEXT columns sort chronologically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// dbTime scans timestamps stored natively (postgres) or as text (sqlite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if v, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: v.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("scan time: cannot parse %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeArg(d string, t time.Time) any {
	if d == dialect.SQLite {
		return t.UTC().Format(sqliteTime)
	}
	return t.UTC()
}

func nullTimeArg(d string, t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeArg(d, *t)
}

// querier is implemented by both *entsql.Driver and dialect.Tx.
type querier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// queryEach runs query and calls scan for every row.
func queryEach(ctx context.Context, q querier, query string, args []any, scan func(*entsql.Rows) error) error {
	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
