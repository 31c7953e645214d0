package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/generalbots/botcore/internal/declare"
)

// RowStore is the generic CRUD contract the data verb group (spec.md
// §4.4) runs FIND/SAVE/INSERT/UPDATE/DELETE/MERGE through, against a
// table whose schema was harvested at compile time (C3) rather than
// fixed at build time like the other four C10 contracts.
type RowStore interface {
	// Find returns every row matching filter (nil filter matches all).
	Find(ctx context.Context, botID, table string, filter *Clause) ([]map[string]any, error)

	// Insert adds one row, assigning an "id" field if the caller didn't
	// supply one, and returns the row as persisted.
	Insert(ctx context.Context, botID, table string, data map[string]any) (map[string]any, error)

	// Update applies data's fields to every row matching filter (nil
	// filter matches all) and returns the number of rows changed.
	Update(ctx context.Context, botID, table string, filter *Clause, data map[string]any) (int64, error)

	// Delete removes every row matching filter (nil filter matches all)
	// and returns the number of rows removed.
	Delete(ctx context.Context, botID, table string, filter *Clause) (int64, error)

	// Merge upserts rows by keyField: a row whose keyField value matches
	// an existing row is updated in place, otherwise inserted. Returns
	// the number of rows touched.
	Merge(ctx context.Context, botID, table string, rows []map[string]any, keyField string) (int, error)
}

// MemRowStore is an in-memory RowStore, used by tests and single-process
// development without a database, mirroring the rest of C10's Mem*
// types.
type MemRowStore struct {
	mu     sync.Mutex
	tables map[string][]map[string]any // botID|table -> rows
}

func NewMemRowStore() *MemRowStore {
	return &MemRowStore{tables: make(map[string][]map[string]any)}
}

func rowsKey(botID, table string) string { return botID + "|" + table }

func (s *MemRowStore) Find(_ context.Context, botID, table string, filter *Clause) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, row := range s.tables[rowsKey(botID, table)] {
		if filter != nil && !filter.Matches(row) {
			continue
		}
		out = append(out, cloneRow(row))
	}
	return out, nil
}

func (s *MemRowStore) Insert(_ context.Context, botID, table string, data map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := cloneRow(data)
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	key := rowsKey(botID, table)
	s.tables[key] = append(s.tables[key], row)
	return cloneRow(row), nil
}

func (s *MemRowStore) Update(_ context.Context, botID, table string, filter *Clause, data map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.tables[rowsKey(botID, table)] {
		if filter != nil && !filter.Matches(row) {
			continue
		}
		for k, v := range data {
			row[k] = v
		}
		n++
	}
	return n, nil
}

func (s *MemRowStore) Delete(_ context.Context, botID, table string, filter *Clause) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rowsKey(botID, table)
	rows := s.tables[key]
	kept := rows[:0:0]
	var n int64
	for _, row := range rows {
		if filter != nil && !filter.Matches(row) {
			kept = append(kept, row)
			continue
		}
		n++
	}
	s.tables[key] = kept
	return n, nil
}

func (s *MemRowStore) Merge(_ context.Context, botID, table string, rows []map[string]any, keyField string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rowsKey(botID, table)
	existing := s.tables[key]
	var touched int
	for _, incoming := range rows {
		want, hasKey := incoming[keyField]
		matched := false
		if hasKey {
			for _, row := range existing {
				if fmt.Sprintf("%v", row[keyField]) == fmt.Sprintf("%v", want) {
					for k, v := range incoming {
						row[k] = v
					}
					matched = true
					touched++
					break
				}
			}
		}
		if !matched {
			row := cloneRow(incoming)
			if _, ok := row["id"]; !ok {
				row["id"] = uuid.NewString()
			}
			existing = append(existing, row)
			touched++
		}
	}
	s.tables[key] = existing
	return touched, nil
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// SQLRowStore is the SQL-backed RowStore, generating parameterized
// statements against whatever table C3's harvester already issued DDL
// for. Column names come from the caller's data map, so they are
// charset-validated the same way filter identifiers are.
type SQLRowStore struct{ *sqlBackend }

// OpenSQLRowStore opens driverName against dsn. Unlike the other C10
// SQL stores it ensures no schema of its own: the tables it reads and
// writes are whatever C3's harvester already created via ExecuteDDL.
func OpenSQLRowStore(ctx context.Context, driverName, dsn string, dialect declare.Dialect) (*SQLRowStore, error) {
	b, err := openBackend(ctx, driverName, dsn, dialect)
	if err != nil {
		return nil, err
	}
	return &SQLRowStore{b}, nil
}

func (s *SQLRowStore) Find(ctx context.Context, _, table string, filter *Clause) ([]map[string]any, error) {
	if !ValidIdent(table) {
		return nil, fmt.Errorf("store: invalid table identifier %q", table)
	}
	query := "SELECT * FROM " + s.quoteIdent(table)
	var args []any
	if filter != nil {
		frag, val := filter.SQL(s.quoteIdent, s.placeholder, 1)
		query += " WHERE " + frag
		args = append(args, val)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *SQLRowStore) Insert(ctx context.Context, _, table string, data map[string]any) (map[string]any, error) {
	if !ValidIdent(table) {
		return nil, fmt.Errorf("store: invalid table identifier %q", table)
	}
	row := cloneRow(data)
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	cols, vals, err := sortedColumns(row)
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.quoteIdent(c)
		placeholders[i] = s.placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, stmt, vals...); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *SQLRowStore) Update(ctx context.Context, _, table string, filter *Clause, data map[string]any) (int64, error) {
	if !ValidIdent(table) {
		return 0, fmt.Errorf("store: invalid table identifier %q", table)
	}
	cols, vals, err := sortedColumns(data)
	if err != nil {
		return 0, err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = s.quoteIdent(c) + " = " + s.placeholder(i+1)
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s", s.quoteIdent(table), strings.Join(sets, ", "))
	args := append([]any{}, vals...)
	if filter != nil {
		frag, val := filter.SQL(s.quoteIdent, s.placeholder, len(args)+1)
		stmt += " WHERE " + frag
		args = append(args, val)
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLRowStore) Delete(ctx context.Context, _, table string, filter *Clause) (int64, error) {
	if !ValidIdent(table) {
		return 0, fmt.Errorf("store: invalid table identifier %q", table)
	}
	stmt := "DELETE FROM " + s.quoteIdent(table)
	var args []any
	if filter != nil {
		frag, val := filter.SQL(s.quoteIdent, s.placeholder, 1)
		stmt += " WHERE " + frag
		args = append(args, val)
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLRowStore) Merge(ctx context.Context, botID, table string, rows []map[string]any, keyField string) (int, error) {
	if !ValidIdent(table) || !ValidIdent(keyField) {
		return 0, fmt.Errorf("store: invalid identifier in MERGE")
	}
	var touched int
	for _, row := range rows {
		key, ok := row[keyField]
		if !ok {
			return touched, fmt.Errorf("store: MERGE row missing key field %q", keyField)
		}
		clause := &Clause{Field: keyField, Op: "=", Value: fmt.Sprintf("%v", key)}
		existing, err := s.Find(ctx, botID, table, clause)
		if err != nil {
			return touched, err
		}
		if len(existing) > 0 {
			if _, err := s.Update(ctx, botID, table, clause, row); err != nil {
				return touched, err
			}
		} else if _, err := s.Insert(ctx, botID, table, row); err != nil {
			return touched, err
		}
		touched++
	}
	return touched, nil
}

func sortedColumns(data map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(data))
	for c := range data {
		if !ValidIdent(c) {
			return nil, nil, fmt.Errorf("store: invalid column identifier %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = data[c]
	}
	return cols, vals, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalizeScanned(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
