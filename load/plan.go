package load

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
)

// plan is the set of rows a batch appends and the columns they are inserted with.
type plan struct {
	columns []string
	rows    []etl.Row
}

// plan selects the rows to insert. With a natural key, rows already present
// in the target or repeated within the batch are skipped; among repeats the
// first after the descriptor's preference order wins. Kept rows stay in
// batch order.
func (l *Loader) plan(ctx context.Context, tx *sql.Tx, batch *etl.Batch) (*plan, error) {
	table := l.config.Table
	target := table.Target
	p := &plan{columns: insertColumns(table, batch)}

	rows := batch.Rows
	if len(target.MatchOn) > 0 && len(rows) > 0 {
		existing, err := l.naturalKeys(ctx, tx, rows)
		if err != nil {
			return nil, err
		}

		keep := make([]bool, len(rows))
		seen := make(map[string]bool, len(rows))
		for _, i := range preferred(rows, target.Prefer) {
			k := naturalKey(rows[i], target.MatchOn)
			if _, ok := existing[k]; ok || seen[k] {
				continue
			}
			seen[k] = true
			keep[i] = true
		}

		kept := make([]etl.Row, 0, len(rows))
		for i, row := range rows {
			if keep[i] {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if target.GenerateID {
		generated := make([]etl.Row, len(rows))
		for i, row := range rows {
			row = row.Clone()
			row[target.IDColumn] = newID()
			generated[i] = row
		}
		rows = generated
	}

	p.rows = rows
	return p, nil
}

// insertColumns returns the batch columns written to the target. The legacy
// key is only written when the target carries a legacy ID column.
func insertColumns(table *mapping.Table, batch *etl.Batch) []string {
	target := table.Target
	columns := make([]string, 0, len(batch.Columns)+1)
	for _, c := range batch.Columns {
		if c == batch.KeyColumn && target.LegacyColumn == "" {
			continue
		}
		if target.GenerateID && c == target.IDColumn {
			continue
		}
		columns = append(columns, c)
	}
	if target.GenerateID {
		columns = append(columns, target.IDColumn)
	}
	return columns
}

// preferred returns row indexes ordered by the preference columns. A leading
// "-" sorts descending. Nulls sort last either way.
func preferred(rows []etl.Row, prefer []string) []int {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	if len(prefer) == 0 {
		return order
	}

	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		for _, p := range prefer {
			column, desc := strings.TrimPrefix(p, "-"), strings.HasPrefix(p, "-")
			va, vb := ra[column], rb[column]
			switch {
			case va == nil && vb == nil:
				continue
			case va == nil:
				return false
			case vb == nil:
				return true
			}
			c := compareValues(va, vb)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return order
}

// compareValues orders two non-null row values of the same column.
func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(keyPart(a), keyPart(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	if i, ok := etl.AsInt64(v); ok {
		if _, isString := v.(string); !isString {
			return float64(i), true
		}
	}
	return 0, false
}

// naturalKey renders the values of columns as one comparable string.
func naturalKey(row etl.Row, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = keyPart(row[c])
	}
	return strings.Join(parts, "\x1f")
}

func keyPart(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		if i, ok := etl.AsInt64(x); ok {
			return strconv.FormatInt(i, 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	if i, ok := etl.AsInt64(v); ok {
		return strconv.FormatInt(i, 10)
	}
	return fmt.Sprint(v)
}
