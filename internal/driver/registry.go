// Package driver maps database kinds to their connectivity descriptors:
// the database/sql driver name, default port, DSN construction, statement
// templates, and schema DDL. The registry is static; it is consulted at
// startup and never mutated.
package driver

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a supported database backend.
type Kind string

const (
	Postgres  Kind = "postgres"
	MySQL     Kind = "mysql"
	SQLServer Kind = "sqlserver"
	Oracle    Kind = "oracle"
	SQLite    Kind = "sqlite"
)

// ErrUnsupportedKind is returned when no dialect exists for a database kind.
type ErrUnsupportedKind struct {
	Kind string
}

func (e ErrUnsupportedKind) Error() string {
	return fmt.Sprintf("unsupported database kind %q (supported: %s)", e.Kind, strings.Join(KindNames(), ", "))
}

// ConnParams holds the pieces a dialect needs to build a concrete DSN.
// Identifier is the database name, or the service name for Oracle, or the
// file path for SQLite.
type ConnParams struct {
	Host       string
	Port       int
	Identifier string
	User       string
	Password   string
}

// Dialect describes one database kind end to end: how to reach it and what
// SQL to speak to it. Implementations are stateless values.
type Dialect interface {
	Kind() Kind

	// DriverName is the name the backing driver registers with database/sql.
	DriverName() string

	DefaultPort() int

	// DSN builds the driver-specific connection string. A zero Port is
	// replaced with DefaultPort.
	DSN(p ConnParams) string

	// Statements returns the workload statements rebound to this dialect's
	// placeholder style.
	Statements() Statements

	// DDL returns the schema definition text for the load_test table.
	DDL() string
}

var registry = map[Kind]Dialect{
	Postgres:  postgresDialect{},
	MySQL:     mysqlDialect{},
	SQLServer: sqlserverDialect{},
	Oracle:    oracleDialect{},
	SQLite:    sqliteDialect{},
}

// aliases maps accepted spellings to canonical kinds.
var aliases = map[string]Kind{
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pg":         Postgres,
	"mysql":      MySQL,
	"mariadb":    MySQL,
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
	"oracle":     Oracle,
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
}

// ParseKind resolves a user-supplied database type string to a Kind.
func ParseKind(s string) (Kind, error) {
	if k, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", ErrUnsupportedKind{Kind: s}
}

// Lookup returns the dialect for a kind.
func Lookup(kind Kind) (Dialect, error) {
	d, ok := registry[kind]
	if !ok {
		return nil, ErrUnsupportedKind{Kind: string(kind)}
	}
	return d, nil
}

// KindNames returns the canonical kind names, sorted.
func KindNames() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

func portOrDefault(d Dialect, p ConnParams) int {
	if p.Port > 0 {
		return p.Port
	}
	return d.DefaultPort()
}
