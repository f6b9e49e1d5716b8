package driver

import (
	"fmt"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"
)

type oracleDialect struct{}

func (oracleDialect) Kind() Kind         { return Oracle }
func (oracleDialect) DriverName() string { return "oracle" }
func (oracleDialect) DefaultPort() int   { return 1521 }

func (d oracleDialect) DSN(p ConnParams) string {
	return go_ora.BuildUrl(p.Host, portOrDefault(d, p), p.Identifier, p.User, p.Password, nil)
}

func (oracleDialect) Statements() Statements {
	return oracleStatements()
}

func (oracleDialect) DDL() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE load_test (
    id           NUMBER(19)      NOT NULL,
    thread_id    VARCHAR2(50)    NOT NULL,
    payload      VARCHAR2(1000),
    version      NUMBER(10)      DEFAULT 1 NOT NULL,
    status       VARCHAR2(20)    DEFAULT 'ACTIVE',
    created_at   TIMESTAMP       DEFAULT SYSTIMESTAMP,
    updated_at   TIMESTAMP       DEFAULT SYSTIMESTAMP
)
PARTITION BY HASH (id)
(
`)
	for i := 1; i <= 16; i++ {
		sep := ","
		if i == 16 {
			sep = ""
		}
		fmt.Fprintf(&b, "    PARTITION P%02d%s\n", i, sep)
	}
	b.WriteString(`)
ENABLE ROW MOVEMENT;

ALTER TABLE load_test ADD CONSTRAINT pk_load_test PRIMARY KEY (id);

CREATE INDEX idx_load_test_thread ON load_test (thread_id, created_at) LOCAL;
CREATE INDEX idx_load_test_created ON load_test (created_at) LOCAL;
`)
	return b.String()
}
