package tiles

import (
	"fmt"
	"math"
	"sort"
)

// DictSuffix names the code column of a dictionary-encoded field.
const DictSuffix = "_dict_index"

// Column is one field of a tile's table. Data holds a numeric slice
// ([]float32, []float64, []int8 … []uint32). A column with a Dictionary is
// dictionary-encoded: Data holds tile-local codes indexing Dictionary.
type Column struct {
	Name       string
	Data       any
	Dictionary []string
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch v := c.Data.(type) {
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	case []int8:
		return len(v)
	case []int16:
		return len(v)
	case []int32:
		return len(v)
	case []int64:
		return len(v)
	case []uint8:
		return len(v)
	case []uint16:
		return len(v)
	case []uint32:
		return len(v)
	default:
		return 0
	}
}

// Table is a batch of rows stored column by column.
type Table struct {
	rows    int
	columns map[string]*Column
}

// NewTable builds a table from columns of equal length.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{columns: make(map[string]*Column, len(columns))}
	for i, c := range columns {
		if _, ok := t.columns[c.Name]; ok {
			return nil, fmt.Errorf("tiles: duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("tiles: column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		t.columns[c.Name] = c
	}
	return t, nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column { return t.columns[name] }

// Names returns the column names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.columns))
	for name := range t.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookups maps dictionary values to their global numeric codes, per field.
// One Lookups is shared by every tile of a tile set.
type Lookups struct {
	codes map[string]map[string]float32
}

// NewLookups creates an empty lookup table.
func NewLookups() *Lookups {
	return &Lookups{codes: make(map[string]map[string]float32)}
}

// Code returns the global code for value in field, assigning the next free
// code the first time a value is seen.
func (l *Lookups) Code(field, value string) float32 {
	m := l.codes[field]
	if m == nil {
		m = make(map[string]float32)
		l.codes[field] = m
	}
	code, ok := m[value]
	if !ok {
		code = float32(len(m))
		m[value] = code
	}
	return code
}

// Get returns the global code for value in field without assigning one.
func (l *Lookups) Get(field, value string) (float32, bool) {
	code, ok := l.codes[field][value]
	return code, ok
}

// Size returns how many distinct values field has.
func (l *Lookups) Size(field string) int { return len(l.codes[field]) }

// decodeDictionary maps each tile-local code through the column's dictionary
// to its value and on to the value's global code. Rows whose code or value is
// unknown become NaN.
func decodeDictionary(field string, col *Column, lookups *Lookups, rows int) []float32 {
	out := make([]float32, rows)
	nan := float32(math.NaN())
	local := toFloat32(col.Data)
	for i := 0; i < rows && i < len(local); i++ {
		idx := int(local[i])
		if idx < 0 || idx >= len(col.Dictionary) || lookups == nil {
			out[i] = nan
			continue
		}
		code, ok := lookups.Get(field, col.Dictionary[idx])
		if !ok {
			out[i] = nan
			continue
		}
		out[i] = code
	}
	return out
}

// toFloat32 returns the column data as []float32, reusing the slice when it
// already has that type.
func toFloat32(data any) []float32 {
	switch v := data.(type) {
	case []float32:
		return v
	case []float64:
		return convert(v)
	case []int8:
		return convert(v)
	case []int16:
		return convert(v)
	case []int32:
		return convert(v)
	case []int64:
		return convert(v)
	case []uint8:
		return convert(v)
	case []uint16:
		return convert(v)
	case []uint32:
		return convert(v)
	default:
		return nil
	}
}

type number interface {
	~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32
}

func convert[T number](values []T) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
