package dataset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/waqt/internal/model"
)

// PostgresSource reads entries from the schedule_entries table, one JSON
// entry per row, ordered by position within each district.
type PostgresSource struct {
	db *sqlx.DB
}

func NewPostgresSource(db *sqlx.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Name() string { return "postgres" }

type entryRow struct {
	District string `db:"district"`
	Entry    []byte `db:"entry"`
}

func (s *PostgresSource) Fetch(ctx context.Context) (*Dataset, error) {
	var rows []entryRow
	const q = `
	SELECT district, entry
	  FROM schedule_entries
	 ORDER BY district, position;`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}

	entries := make(map[string][]model.ScheduleEntry)
	for _, r := range rows {
		var e model.ScheduleEntry
		if err := json.Unmarshal(r.Entry, &e); err != nil {
			return nil, fmt.Errorf("district %q: %w", r.District, err)
		}
		entries[r.District] = append(entries[r.District], e)
	}
	return New(entries), nil
}
