package features

import "fmt"

// FeatureRow is an ordered set of named numeric columns.
type FeatureRow struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

func (r FeatureRow) Len() int {
	return len(r.Columns)
}

// Get returns the value of the named column.
func (r FeatureRow) Get(name string) (float64, bool) {
	for i, col := range r.Columns {
		if col == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

// Map returns the row as a column -> value map.
func (r FeatureRow) Map() map[string]float64 {
	out := make(map[string]float64, len(r.Columns))
	for i, col := range r.Columns {
		out[col] = r.Values[i]
	}
	return out
}

// MatchesSchema returns an error unless the row has exactly the schema's
// columns in the same order.
func (r FeatureRow) MatchesSchema(schema []string) error {
	if len(r.Columns) != len(r.Values) {
		return fmt.Errorf("row has %d columns but %d values", len(r.Columns), len(r.Values))
	}
	if len(r.Columns) != len(schema) {
		return fmt.Errorf("row has %d columns, model expects %d", len(r.Columns), len(schema))
	}
	for i, col := range schema {
		if r.Columns[i] != col {
			return fmt.Errorf("column %d is %q, model expects %q", i, r.Columns[i], col)
		}
	}
	return nil
}
