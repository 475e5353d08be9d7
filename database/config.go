package database

// Config selects how the router's Factory materialises new databases: an
// empty Dir means every database is ephemeral and in-memory, a non-empty Dir
// means each address is backed by a file at Dir/{address.Filename()}.
type Config struct {
	Dir string `yaml:"db_dir" env:"DB_DIR"`
}

// Validate checks constraints in the supplied database configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	// Dir is optional: absent means in-memory databases, and any string that
	// is a syntactically valid path is acceptable - its existence is checked
	// lazily on first use, not at configuration time.
	return nil
}
