package ir

// Version constants for the IR schema.
const (
	// IRVersion is the semantic version of the expression and operation
	// encoding. Engines declare a constraint against it.
	IRVersion = "1.0.0"

	// CompilerVersion is the rxq compiler version.
	CompilerVersion = "0.1.0"
)
