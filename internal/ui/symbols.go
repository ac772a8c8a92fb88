package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Job passed
	SymbolFail     = "✗" // Job failed
	SymbolPending  = "○" // Job not yet run
	SymbolComplete = "●" // Node online
	SymbolSkipped  = "⊘" // Node offline
)
