package rectify

import (
	"fmt"

	"go.ngs.io/rectify/internal/domain"
)

// SelectVariables returns the variables of ds that can be rectified with gc.
//
// A nil names slice selects every data variable whose trailing two
// dimensions match the coordinate grid, skipping the coordinates themselves.
// A non-nil slice must be non-empty and every named variable must match.
func SelectVariables(ds *domain.Dataset, names []string, gc *GeoCoding) ([]domain.Variable, error) {
	if names == nil {
		var vars []domain.Variable
		for _, name := range ds.DataNames() {
			if name == gc.XName || name == gc.YName {
				continue
			}
			a, _ := ds.Var(name)
			if a.MatchesGrid(gc.X) {
				vars = append(vars, domain.Variable{Name: name, Array: a})
			}
		}
		return vars, nil
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty variable selection", domain.ErrValidation)
	}

	vars := make([]domain.Variable, 0, len(names))
	for _, name := range names {
		a, err := ds.Var(name)
		if err != nil {
			return nil, err
		}
		if !a.MatchesGrid(gc.X) {
			return nil, fmt.Errorf("%w: cannot rectify variable %q as its shape or dimensions do not match those of %q and %q",
				domain.ErrValidation, name, gc.XName, gc.YName)
		}
		vars = append(vars, domain.Variable{Name: name, Array: a})
	}
	return vars, nil
}
