package driver

import (
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
)

type sqlserverDialect struct{}

func (sqlserverDialect) Kind() Kind         { return SQLServer }
func (sqlserverDialect) DriverName() string { return "sqlserver" }
func (sqlserverDialect) DefaultPort() int   { return 1433 }

func (d sqlserverDialect) DSN(p ConnParams) string {
	q := url.Values{}
	q.Set("database", p.Identifier)
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, portOrDefault(d, p)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (sqlserverDialect) Statements() Statements {
	return rebound(sqlx.AT)
}

func (sqlserverDialect) DDL() string {
	return `CREATE TABLE load_test (
    id           BIGINT         NOT NULL,
    thread_id    NVARCHAR(50)   NOT NULL,
    payload      NVARCHAR(1000),
    version      INT            NOT NULL DEFAULT 1,
    status       NVARCHAR(20)   DEFAULT 'ACTIVE',
    created_at   DATETIME2      DEFAULT GETDATE(),
    updated_at   DATETIME2      DEFAULT GETDATE(),
    CONSTRAINT PK_load_test PRIMARY KEY CLUSTERED (id)
);

CREATE NONCLUSTERED INDEX idx_load_test_thread ON load_test (thread_id, created_at);
CREATE NONCLUSTERED INDEX idx_load_test_created ON load_test (created_at);
`
}
