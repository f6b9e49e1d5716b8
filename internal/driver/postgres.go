package driver

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
)

type postgresDialect struct{}

func (postgresDialect) Kind() Kind        { return Postgres }
func (postgresDialect) DriverName() string { return "pgx" }
func (postgresDialect) DefaultPort() int   { return 5432 }

func (d postgresDialect) DSN(p ConnParams) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, portOrDefault(d, p)),
		Path:   "/" + p.Identifier,
	}
	return u.String()
}

func (postgresDialect) Statements() Statements {
	return rebound(sqlx.DOLLAR)
}

func (postgresDialect) DDL() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE load_test (
    id           BIGINT          NOT NULL,
    thread_id    VARCHAR(50)     NOT NULL,
    payload      VARCHAR(1000),
    version      INTEGER         NOT NULL DEFAULT 1,
    status       VARCHAR(20)     DEFAULT 'ACTIVE',
    created_at   TIMESTAMP       DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP       DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id)
) PARTITION BY HASH (id);

`)
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "CREATE TABLE load_test_p%02d PARTITION OF load_test FOR VALUES WITH (MODULUS 16, REMAINDER %d);\n", i, i)
	}
	b.WriteString(`
CREATE INDEX idx_load_test_thread ON load_test (thread_id, created_at);
CREATE INDEX idx_load_test_created ON load_test (created_at);
`)
	return b.String()
}
