package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// ImportDataset replaces the contents of schedule_entries with the dataset
// JSON read from r. Entries are stored as-is, keeping their order within
// each district.
func ImportDataset(ctx context.Context, conn *sqlx.DB, r io.Reader) (districts, rows int, err error) {
	var doc map[string][]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, 0, fmt.Errorf("decode dataset: %w", err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_entries;`); err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PreparexContext(ctx, `
	INSERT INTO schedule_entries (district, position, entry)
	VALUES ($1, $2, $3);`)
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Close()

	for _, name := range names {
		for i, entry := range doc[name] {
			if _, err = stmt.ExecContext(ctx, name, i, []byte(entry)); err != nil {
				return 0, 0, fmt.Errorf("insert %q #%d: %w", name, i, err)
			}
			rows++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}

	log.Info().Int("districts", len(names)).Int("rows", rows).Msg("[db] dataset imported")
	return len(names), rows, nil
}

// CountScheduleEntries reports how many entries are stored.
func CountScheduleEntries(ctx context.Context, conn *sqlx.DB) (int, error) {
	var n int
	err := conn.GetContext(ctx, &n, `SELECT count(*) FROM schedule_entries;`)
	return n, err
}
