package engine

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"eav-backend/internal/eav"
)

const maxCachedFilters = 256

// ViewFilter narrows view rows with expr-lang boolean expressions evaluated
// against each row's Env. Compiled programs are cached by expression string.
type ViewFilter struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

func NewViewFilter() *ViewFilter {
	return &ViewFilter{
		cache: make(map[string]*vm.Program),
	}
}

func (f *ViewFilter) compile(expression string) (*vm.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prog, ok := f.cache[expression]; ok {
		return prog, nil
	}
	prog, err := expr.Compile(expression, expr.Env(eav.ViewEnv{}), expr.AsBool())
	if err != nil {
		return nil, InvalidArgumentError(fmt.Sprintf("invalid filter: %v", err))
	}
	if len(f.cache) >= maxCachedFilters {
		clear(f.cache)
	}
	f.cache[expression] = prog
	return prog, nil
}

// Apply returns the rows for which expression is true. An empty expression keeps
// every row. Rows the expression cannot be evaluated on, such as a comparison
// against an absent value, are dropped.
func (f *ViewFilter) Apply(expression string, rows []eav.View) ([]eav.View, error) {
	if expression == "" {
		return rows, nil
	}
	prog, err := f.compile(expression)
	if err != nil {
		return nil, err
	}

	out := make([]eav.View, 0, len(rows))
	for _, row := range rows {
		result, err := expr.Run(prog, row.Env())
		if err != nil {
			continue
		}
		if keep, ok := result.(bool); ok && keep {
			out = append(out, row)
		}
	}
	return out, nil
}
