package errx

// CreateByCode creates an Error using the provided code, description, and message.
// A nil cause yields New, anything else Wrap.
func CreateByCode(code, description, message string, cause error) *Error {
	if cause != nil {
		return Wrap(code, description, message, cause)
	}
	return New(code, description, message)
}

// FromSentinel creates an Error from a sentinel error and optional message/cause.
// The lookup function resolves the sentinel's code and description; unknown
// sentinels fall back to the CLI category.
func FromSentinel(sentinel error, lookup func(error) (code, description string), message string, cause error) *Error {
	code, desc := lookup(sentinel)
	if code == "" {
		code = CodeCLI
		desc = DescCLI
	}
	return CreateByCode(code, desc, message, cause).WithBase(sentinel)
}

// CLI creates a CLI/argument validation error.
func CLI(message string) *Error {
	return New(CodeCLI, DescCLI, message)
}

// WrapCLI wraps a cause with a CLI/argument validation error.
func WrapCLI(message string, cause error) *Error {
	return Wrap(CodeCLI, DescCLI, message, cause)
}

// Config creates a configuration error.
func Config(message string) *Error {
	return New(CodeConfig, DescConfig, message)
}

// WrapConfig wraps a cause with a configuration error.
func WrapConfig(message string, cause error) *Error {
	return Wrap(CodeConfig, DescConfig, message, cause)
}

// Registry creates a registry control-plane error.
func Registry(message string) *Error {
	return New(CodeRegistry, DescRegistry, message)
}

// WrapRegistry wraps a cause with a registry control-plane error.
// Used by internal/swr for SDK failures.
func WrapRegistry(message string, cause error) *Error {
	return Wrap(CodeRegistry, DescRegistry, message, cause)
}

// WrapAuth wraps a cause with a registry authentication error.
func WrapAuth(message string, cause error) *Error {
	return Wrap(CodeAuth, DescAuth, message, cause)
}

// WrapEngine wraps a cause with a container engine error.
func WrapEngine(message string, cause error) *Error {
	return Wrap(CodeEngine, DescEngine, message, cause)
}
