package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole relay is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over the message log, ranked by ts_rank with
// ts_headline snippets, newest first within equal rank.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := `m.fts @@ plainto_tsquery('english', $1)`
	args := []any{q.Text}
	if q.Channel != "" {
		where += ` AND m.channel = $2`
		args = append(args, q.Channel)
	}

	ctx := context.Background()

	var total int
	countSQL := `SELECT count(*) FROM messages m WHERE ` + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT m."user", m.message,
			ts_headline('english', m.message, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			m.sent, m.channel
		FROM messages m
		WHERE %s
		ORDER BY ts_rank(m.fts, plainto_tsquery('english', $1)) DESC, m.sent DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.User, &r.Message, &r.Snippet, &r.Sent, &r.Channel); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every message for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MessageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT "user", message, sent, channel FROM messages
	`)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	records := make([]MessageRecord, 0)
	for rows.Next() {
		var r MessageRecord
		if err := rows.Scan(&r.User, &r.Message, &r.Sent, &r.Channel); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		r.ID = RecordID(r.User, r.Sent)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return records, nil
}
