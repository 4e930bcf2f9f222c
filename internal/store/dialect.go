package store

// Dialect carries what differs between the supported databases: driver name,
// placeholder syntax, id-set matching, EAV DDL and error mapping.
type Dialect interface {
	// Name is "postgres" or "sqlite".
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Placeholder renders the 1-based positional parameter i.
	Placeholder(i int) string
	// InExpr matches field against ids, adding the needed arguments to p.
	InExpr(field string, p *Params, ids []int64) string
	// SchemaSQL returns the DDL creating the EAV tables and views named by t.
	SchemaSQL(t Tables) string
	// MapError turns driver-specific constraint errors into sentinels.
	MapError(err error) error
}

// NewDialect returns the dialect for driver; anything but "sqlite" is Postgres.
func NewDialect(driver string) Dialect {
	if driver == "sqlite" {
		return &SQLiteDialect{}
	}
	return &PostgresDialect{}
}

// Params collects positional query arguments and renders their placeholders.
type Params struct {
	d    Dialect
	args []any
}

func NewParams(d Dialect) *Params {
	return &Params{d: d}
}

// Add appends v and returns its placeholder.
func (p *Params) Add(v any) string {
	p.args = append(p.args, v)
	return p.d.Placeholder(len(p.args))
}

func (p *Params) Args() []any { return p.args }

func (p *Params) Len() int { return len(p.args) }
