package driven

// ConfigStore is a flat key/value view of application configuration.
// Keys are dotted paths such as "embedding.provider".
//
// Typed getters accept strings as well as native values, so numeric and
// boolean settings may come from environment overrides. A missing or
// unconvertible value yields the zero value.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// Set stores a value and persists it.
	Set(key string, value any) error

	// Save writes the current values to the backing store.
	Save() error

	// Load replaces the current values with the backing store's.
	Load() error

	// Path identifies the backing store, e.g. a file path.
	Path() string
}
