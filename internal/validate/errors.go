package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyCorrections is returned when invoice creation is requested with no
// corrections. Validation-only submissions may be empty; creating ones not.
var ErrEmptyCorrections = eris.New("validate: invoice creation requested with empty correction set")

// FieldErrors collects per-path validation failures. Every submitted path is
// validated independently; a bad field never aborts validation of the rest.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validate: no field errors"
	}
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	fmt.Fprintf(&b, "validate: %d invalid field(s): ", len(e))
	for i, p := range paths {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", p, e[p])
	}
	return b.String()
}

// AsFieldErrors unwraps err into a FieldErrors batch, if it is one.
func AsFieldErrors(err error) (FieldErrors, bool) {
	fe, ok := err.(FieldErrors)
	return fe, ok
}
