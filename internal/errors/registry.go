package errors

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Configuration (E101-E109)
	// ============================================

	"E101": {
		Category:   CategoryConfig,
		Message:    "Environment configuration not found",
		Suggestion: "Create config/<env>.json for the environment you want to build, or check the environment name for typos",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Suggestion: "Check that the configuration is valid JSON",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid port",
	},

	// ============================================
	// Build artifacts (E111-E119)
	// ============================================

	"E111": {
		Category:   CategoryBuild,
		Message:    "No build found",
		Suggestion: "Run 'slipway build <env>' before serving",
	},
	"E112": {
		Category:   CategoryBuild,
		Message:    "Build environment mismatch",
		Suggestion: "Rebuild for the requested environment with 'slipway build <env>'",
	},

	// ============================================
	// Compilation (E121-E129)
	// ============================================

	"E121": {
		Category: CategoryCompile,
		Message:  "Build failed with compile errors",
	},

	// ============================================
	// Runtime (E131-E139)
	// ============================================

	"E131": {
		Category: CategoryRuntime,
		Message:  "Render function failed",
	},

	// ============================================
	// Server (E141-E149)
	// ============================================

	"E141": {
		Category:   CategoryServer,
		Message:    "Server failed to start",
		Suggestion: "Check that the port is free and the hostname is valid",
	},
}
