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
	// Config Errors (E120-E139)
	// ============================================

	"E120": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Suggestion: "Check that the file is valid JSON (routedata.json) or TOML (routedata.toml)",
	},
	"E121": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create routedata.json in the project root or pass --config",
	},
	"E122": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration value",
		Suggestion: "See the config package documentation for accepted values",
	},
	"E123": {
		Category:   CategoryConfig,
		Message:    "Unsupported configuration format",
		Suggestion: "Use a .json or .toml file extension",
	},

	// ============================================
	// Route Declaration Errors (E200-E219)
	// ============================================

	"E201": {
		Category:   CategoryRoute,
		Message:    "Duplicate route id",
		Suggestion: "Give every route a unique id, or leave it empty to get a generated one",
	},
	"E202": {
		Category:   CategoryRoute,
		Message:    "Index route cannot have children",
		Suggestion: "Move the children to the parent route",
	},
	"E203": {
		Category:   CategoryRoute,
		Message:    "Unknown loader reference",
		Suggestion: "Register the loader in router.Registry.Loaders before building",
	},
	"E204": {
		Category:   CategoryRoute,
		Message:    "Unknown action reference",
		Suggestion: "Register the action in router.Registry.Actions before building",
	},
	"E205": {
		Category:   CategoryRoute,
		Message:    "Unknown error handler reference",
		Suggestion: "Register the handler in router.Registry.ErrorHandlers before building",
	},
	"E206": {
		Category:   CategoryRoute,
		Message:    "Invalid path pattern",
		Suggestion: "Use static segments, :name params, and a trailing * only",
	},

	// ============================================
	// CLI Errors (E160-E169)
	// ============================================

	"E160": {
		Category:   CategoryCLI,
		Message:    "Invalid arguments",
		Suggestion: "Run with --help to see usage",
	},
	"E161": {
		Category:   CategoryCLI,
		Message:    "Configuration file already exists",
		Suggestion: "Pass --force to overwrite it, or --normalize to rewrite it in place",
	},
	"E169": {
		Category: CategoryCLI,
		Message:  "Command failed",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
