package driver

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

type mysqlDialect struct{}

func (mysqlDialect) Kind() Kind         { return MySQL }
func (mysqlDialect) DriverName() string { return "mysql" }
func (mysqlDialect) DefaultPort() int   { return 3306 }

func (d mysqlDialect) DSN(p ConnParams) string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.Host, portOrDefault(d, p))
	cfg.DBName = p.Identifier
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func (mysqlDialect) Statements() Statements {
	return rebound(sqlx.QUESTION)
}

func (mysqlDialect) DDL() string {
	return `CREATE TABLE load_test (
    id           BIGINT          NOT NULL,
    thread_id    VARCHAR(50)     NOT NULL,
    payload      VARCHAR(1000),
    version      INT             NOT NULL DEFAULT 1,
    status       VARCHAR(20)     DEFAULT 'ACTIVE',
    created_at   TIMESTAMP       DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP       DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    PRIMARY KEY (id)
) ENGINE=InnoDB
PARTITION BY HASH (id)
PARTITIONS 16;

CREATE INDEX idx_load_test_thread ON load_test (thread_id, created_at);
CREATE INDEX idx_load_test_created ON load_test (created_at);
`
}
