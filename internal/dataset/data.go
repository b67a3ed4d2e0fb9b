package dataset

// Tabular view over a cached file. Values stay strings; nothing here
// infers types or coerces values.

type LoadParam struct {
	separator   rune
	hasHeader   bool
	columnNames []string
}

func NewLoadParam(separator rune, hasHeader bool, columnNames []string) LoadParam {
	return LoadParam{
		separator:   separator,
		hasHeader:   hasHeader,
		columnNames: columnNames,
	}
}

func (p *LoadParam) Separator() rune {
	return p.separator
}

func (p *LoadParam) HasHeader() bool {
	return p.hasHeader
}

// ColumnNames overrides column labels when the file itself carries none.
func (p *LoadParam) ColumnNames() []string {
	return p.columnNames
}

type Table struct {
	columns []string
	rows    [][]string
}

func (t *Table) Columns() []string {
	return t.columns
}

func (t *Table) Rows() [][]string {
	return t.rows
}

func (t *Table) RowCount() int {
	return len(t.rows)
}

func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// Shape returns (rows, columns), not counting the header.
func (t *Table) Shape() (int, int) {
	return len(t.rows), len(t.columns)
}

// Head returns a table with the first n rows. n larger than the table is
// the whole table; n <= 0 is an empty one.
func (t *Table) Head(n int) Table {
	if n <= 0 {
		return Table{columns: t.columns}
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return Table{
		columns: t.columns,
		rows:    t.rows[:n],
	}
}

// Tail returns a table with the last n rows.
func (t *Table) Tail(n int) Table {
	if n <= 0 {
		return Table{columns: t.columns}
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return Table{
		columns: t.columns,
		rows:    t.rows[len(t.rows)-n:],
	}
}

// NewTableForTest creates a Table for testing purposes. This allows test
// packages to construct Table values without accessing unexported fields
// directly.
func NewTableForTest(columns []string, rows [][]string) Table {
	return Table{
		columns: columns,
		rows:    rows,
	}
}
