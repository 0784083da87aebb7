package console

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
)

// RowDraft is an editable copy of a row on the current page.
type RowDraft struct {
	Index   int
	Columns []string
	// Values holds each value as text. Null[i] marks values that are NULL;
	// Values[i] is then ignored.
	Values []string
	Null   []bool
	// Fallback is set when the row is addressed by its first column because
	// the table has no primary key.
	Fallback bool
}

// Bind returns the draft's values as statement arguments. A value still
// equal to the text drafted from original binds the original value, so
// untouched blobs and numbers are written back with their type.
func (d RowDraft) Bind(original []any) []any {
	args := make([]any, len(d.Values))
	for i, v := range d.Values {
		if i < len(d.Null) && d.Null[i] {
			continue
		}
		if i < len(original) && original[i] != nil && v == gateway.FormatValue(original[i]) {
			args[i] = original[i]
			continue
		}
		args[i] = v
	}
	return args
}

// EditRow returns a draft of row idx of the current page.
func (c *Console) EditRow(ctx context.Context, s *Session, idx int) (RowDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.snapshotRow(idx)
	if err != nil {
		return RowDraft{}, err
	}
	loc, err := c.locate(ctx, s, row)
	if err != nil {
		return RowDraft{}, err
	}

	draft := RowDraft{
		Index:    idx,
		Columns:  append([]string(nil), s.page.Columns...),
		Values:   make([]string, len(row)),
		Null:     make([]bool, len(row)),
		Fallback: loc.Fallback,
	}
	for i, v := range row {
		draft.Values[i] = gateway.FormatValue(v)
		draft.Null[i] = v == nil
	}
	return draft, nil
}

// SaveRow writes draft over row idx of the current page and reloads it.
// The row is located by the values it had when the page was read.
func (c *Console) SaveRow(ctx context.Context, s *Session, idx int, draft RowDraft) (*browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.snapshotRow(idx)
	if err != nil {
		return nil, err
	}
	if len(draft.Columns) != len(s.page.Columns) || len(draft.Values) != len(draft.Columns) {
		return nil, fmt.Errorf("%w: draft has %d values for %d columns", browser.ErrRowIndex, len(draft.Values), len(s.page.Columns))
	}
	loc, err := c.locate(ctx, s, row)
	if err != nil {
		return nil, err
	}

	err = c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		return browser.Update(ctx, db, s.table, s.page.Columns, draft.Bind(row), loc)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("row updated", "database", s.database, "table", s.table, "fallback", loc.Fallback)
	c.onChange(Change{Session: s.ID, Kind: ChangeData, Database: s.database, Table: s.table})
	c.reloadAfterWrite(ctx, s)
	return s.page, nil
}

// DeleteRow deletes row idx of the current page and reloads it.
func (c *Console) DeleteRow(ctx context.Context, s *Session, idx int) (*browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.snapshotRow(idx)
	if err != nil {
		return nil, err
	}
	loc, err := c.locate(ctx, s, row)
	if err != nil {
		return nil, err
	}

	err = c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		return browser.Delete(ctx, db, s.table, loc)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("row deleted", "database", s.database, "table", s.table, "fallback", loc.Fallback)
	c.onChange(Change{Session: s.ID, Kind: ChangeData, Database: s.database, Table: s.table})
	c.reloadAfterWrite(ctx, s)
	return s.page, nil
}

// locate builds the locator for a snapshot row from the table's current
// key definition.
func (c *Console) locate(ctx context.Context, s *Session, row []any) (browser.Locator, error) {
	var loc browser.Locator
	err := c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		cols, err := browser.Columns(ctx, db, s.table)
		if err != nil {
			return err
		}
		loc, err = browser.Locate(cols, s.page.Columns, row, c.requirePK)
		return err
	})
	return loc, err
}

func (s *Session) snapshotRow(idx int) ([]any, error) {
	if s.page == nil {
		return nil, ErrNoTable
	}
	if idx < 0 || idx >= len(s.page.Rows) {
		return nil, fmt.Errorf("%w: %d (page has %d rows)", browser.ErrRowIndex, idx, len(s.page.Rows))
	}
	return s.page.Rows[idx], nil
}
