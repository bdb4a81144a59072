package domain

// ValidationResult aggregates the outcome of the admission checks run against
// an order. It is ephemeral: produced per validation call and consumed
// immediately by the caller, never persisted.
type ValidationResult struct {
	Reasons []string
}

// Add appends violation reasons, preserving order.
func (r *ValidationResult) Add(reasons ...string) {
	r.Reasons = append(r.Reasons, reasons...)
}

// Valid reports whether no violations were recorded.
func (r *ValidationResult) Valid() bool {
	return len(r.Reasons) == 0
}
