package activerecord

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// selectRecords loads rows of a model matching the filter attributes,
// ordered by primary key. limit 0 means no limit.
func (b *Backend) selectRecords(m *Model, filter map[string]any, limit int) ([]*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	colNames := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		colNames[i] = col.Name
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(colNames, ", "), m.Table)
	where, args := whereClause(m, filter)
	query += where
	query += " ORDER BY " + strings.Join(m.PrimaryKey, ", ")
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", m.Table, err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := b.scanRecord(m, rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", m.Table, err)
	}
	return records, nil
}

// exec runs one statement against the attached database.
func (b *Backend) exec(query string, args ...any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrBackendDetached
	}
	if _, err := b.db.Exec(query, args...); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// selectViaJunction loads the records of model m reachable through a
// junction table from the owner-side key values, ordered by the junction
// row insertion order.
func (b *Backend) selectViaJunction(m *Model, via *types.JunctionMeta, ownerVals map[string]any) ([]*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	colNames := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		colNames[i] = "r." + col.Name
	}

	joins := make([]string, 0, len(via.RelatedLink))
	jCols := make([]string, 0, len(via.RelatedLink))
	for jCol := range via.RelatedLink {
		jCols = append(jCols, jCol)
	}
	sort.Strings(jCols)
	for _, jCol := range jCols {
		joins = append(joins, fmt.Sprintf("j.%s = r.%s", jCol, via.RelatedLink[jCol]))
	}

	oCols := make([]string, 0, len(ownerVals))
	for jCol := range ownerVals {
		oCols = append(oCols, jCol)
	}
	sort.Strings(oCols)
	conds := make([]string, 0, len(oCols))
	args := make([]any, 0, len(oCols))
	for _, jCol := range oCols {
		conds = append(conds, fmt.Sprintf("j.%s = ?", jCol))
		args = append(args, ownerVals[jCol])
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s r JOIN %s j ON %s WHERE %s ORDER BY j.rowid",
		strings.Join(colNames, ", "), m.Table, via.Table,
		strings.Join(joins, " AND "), strings.Join(conds, " AND "))

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying junction %s: %w", via.Table, err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := b.scanRecord(m, rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading junction %s rows: %w", via.Table, err)
	}
	return records, nil
}

// scanRecord scans one result row into a loaded record.
func (b *Backend) scanRecord(m *Model, rows *sql.Rows) (*Record, error) {
	holders := make([]any, len(m.Columns))
	for i, col := range m.Columns {
		holders[i] = scanHolder(col.Type)
	}
	if err := rows.Scan(holders...); err != nil {
		return nil, fmt.Errorf("scanning %s row: %w", m.Table, err)
	}

	rec := &Record{
		backend: b,
		model:   m,
		attrs:   make(map[string]any, len(m.Columns)),
		related: make(map[string]any),
		errs:    make(map[string][]string),
	}
	for i, col := range m.Columns {
		rec.attrs[col.Name] = holderValue(col.Type, holders[i])
	}
	rec.oldAttrs = snapshot(rec.attrs)
	if m.registry != nil {
		rec.behavior = m.registry.Bind(rec)
	}
	return rec, nil
}

// scanHolder returns a nullable scan destination for a column type.
func scanHolder(colType string) any {
	switch colType {
	case TypeInt, TypeBool:
		return new(sql.NullInt64)
	case TypeFloat:
		return new(sql.NullFloat64)
	default:
		return new(sql.NullString)
	}
}

// holderValue converts a scanned holder back into the attribute value.
func holderValue(colType string, holder any) any {
	switch h := holder.(type) {
	case *sql.NullInt64:
		if !h.Valid {
			return nil
		}
		if colType == TypeBool {
			return h.Int64 != 0
		}
		return h.Int64
	case *sql.NullFloat64:
		if !h.Valid {
			return nil
		}
		return h.Float64
	case *sql.NullString:
		if !h.Valid {
			return nil
		}
		if colType == TypeTime {
			if t, err := time.Parse(time.RFC3339Nano, h.String); err == nil {
				return t
			}
		}
		return h.String
	default:
		return nil
	}
}

// whereClause builds an AND-joined equality clause over the filter columns,
// sorted for stable statements. Returns an empty clause for an empty filter.
func whereClause(m *Model, filter map[string]any) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	cols := make([]string, 0, len(filter))
	for col := range filter {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		v := filter[col]
		if v == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		conds = append(conds, col+" = ?")
		colType := TypeText
		if c := m.column(col); c != nil {
			colType = c.Type
		}
		args = append(args, toDBValue(colType, v))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// toDBValue converts an attribute value into its SQLite representation.
func toDBValue(colType string, v any) any {
	if v == nil {
		return nil
	}
	switch colType {
	case TypeBool:
		if b, ok := v.(bool); ok {
			if b {
				return 1
			}
			return 0
		}
	case TypeTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return v
}

// normalizeValue coerces an assigned value into the canonical in-memory type
// of the column so dirty comparison is type-stable.
func normalizeValue(colType string, v any) any {
	if v == nil {
		return nil
	}
	switch colType {
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case int64:
			return n
		case uint:
			return int64(n)
		case uint64:
			return int64(n)
		case float64:
			return int64(n)
		case float32:
			return int64(n)
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	case TypeBool:
		switch n := v.(type) {
		case bool:
			return n
		case int:
			return n != 0
		case int64:
			return n != 0
		}
	case TypeTime:
		switch t := v.(type) {
		case time.Time:
			return t
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed
			}
		}
	case TypeText:
		switch s := v.(type) {
		case string:
			return s
		case fmt.Stringer:
			return s.String()
		default:
			return fmt.Sprint(v)
		}
	}
	return v
}

// valuesEqual compares two attribute values, treating times by instant.
func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// snapshot copies an attribute map.
func snapshot(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
