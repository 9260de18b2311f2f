package model

// CorrectionSet is a single correction request: field-path → replacement
// value, plus the invoice-creation flag. Submission order is preserved in
// Order so corrections apply deterministically.
type CorrectionSet struct {
	Corrections   map[string]any `json:"corrections"`
	Order         []string       `json:"-"`
	CreateInvoice bool           `json:"create_invoice"`
	Notes         string         `json:"notes,omitempty"`
}

// Paths returns the correction paths in submission order. When Order was not
// populated (e.g. the set was built directly from a map), map iteration
// order is used.
func (c *CorrectionSet) Paths() []string {
	if len(c.Order) == len(c.Corrections) {
		return c.Order
	}
	paths := make([]string, 0, len(c.Corrections))
	for p := range c.Corrections {
		paths = append(paths, p)
	}
	return paths
}
