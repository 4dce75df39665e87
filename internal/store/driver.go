package store

import (
	"fmt"
	"slices"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqlitePragmas apply to file databases only. WAL lets the audit writer and
// request handlers overlap; the busy timeout absorbs short write contention.
const sqlitePragmas = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

var dialectors = map[string]func(dsn string) gorm.Dialector{
	"sqlite":   openSQLite,
	"postgres": postgres.Open,
}

// dialector returns the gorm dialector for a DATABASE_DRIVER value.
func dialector(driver, dsn string) (gorm.Dialector, error) {
	open, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q (supported: %s)",
			driver, strings.Join(SupportedDrivers(), ", "))
	}
	return open(dsn), nil
}

// SupportedDrivers lists the accepted DATABASE_DRIVER values.
func SupportedDrivers() []string {
	names := make([]string, 0, len(dialectors))
	for name := range dialectors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func openSQLite(dsn string) gorm.Dialector {
	return sqlite.Open(sqliteDSN(dsn))
}

// sqliteDSN adds the default pragmas unless the DSN is in-memory or already
// carries its own query string.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?" + sqlitePragmas
}
