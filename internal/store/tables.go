package store

// Tables carries the fully-qualified table names derived from the configured
// schema and table prefix. Names are assembled once at build time from
// trusted configuration and interpolated into statements; values never are.
type Tables struct {
	Users         string
	Confirmations string
	Resets        string
	Remembered    string
	Throttling    string
}

func NewTables(schema, prefix string) Tables {
	qualify := func(name string) string {
		name = prefix + name
		if schema != "" {
			name = schema + "." + name
		}
		return name
	}

	return Tables{
		Users:         qualify("users"),
		Confirmations: qualify("users_confirmations"),
		Resets:        qualify("users_resets"),
		Remembered:    qualify("users_remembered"),
		Throttling:    qualify("users_throttling"),
	}
}
