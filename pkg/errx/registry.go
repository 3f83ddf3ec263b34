package errx

// RegistryEntry describes a registered error code.
type RegistryEntry struct {
	Code        string
	Description string
}

// Error codes follow a stable 5-digit scheme where the first two digits are the
// domain and the last three digits are reserved for subcodes.
const (
	CodeCLI      = "70000"
	CodeConfig   = "71000"
	CodeRegistry = "72000"
	CodeAuth     = "73000"
	CodeEngine   = "74000"
	CodePromote  = "75000"
)

const (
	DescCLI      = "CLI/argument validation error"
	DescConfig   = "Configuration error"
	DescRegistry = "Registry error"
	DescAuth     = "Registry authentication error"
	DescEngine   = "Container engine error"
	DescPromote  = "Promotion error"
)

var registryEntries = []RegistryEntry{
	{Code: CodeCLI, Description: DescCLI},
	{Code: CodeConfig, Description: DescConfig},
	{Code: CodeRegistry, Description: DescRegistry},
	{Code: CodeAuth, Description: DescAuth},
	{Code: CodeEngine, Description: DescEngine},
	{Code: CodePromote, Description: DescPromote},
}

var registryMap = func() map[string]string {
	m := make(map[string]string, len(registryEntries))
	for _, entry := range registryEntries {
		m[entry.Code] = entry.Description
	}
	return m
}()

// ErrorRegistry returns the error registry in deterministic order.
func ErrorRegistry() []RegistryEntry {
	entries := make([]RegistryEntry, len(registryEntries))
	copy(entries, registryEntries)
	return entries
}

// DescriptionFor returns the registry description for a code.
func DescriptionFor(code string) (string, bool) {
	desc, ok := registryMap[code]
	return desc, ok
}

// IsValidCode checks if the given error code is registered.
func IsValidCode(code string) bool {
	_, ok := registryMap[code]
	return ok
}
