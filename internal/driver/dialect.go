package driver

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Statements holds the three workload statements for one dialect. The
// placeholders are already in the dialect's native style; callers treat the
// strings as opaque.
type Statements struct {
	// Insert takes (id, worker tag, payload). Rows start at version 1.
	Insert string

	// Select takes (id) and returns (payload, version).
	Select string

	// Update takes (payload, id, version) and bumps the version by one
	// only when the supplied version still matches.
	Update string
}

// Shared statement templates in '?' placeholder form. Each dialect rebinds
// these to its own style.
const (
	insertTemplate = `INSERT INTO load_test (id, thread_id, payload, version, created_at) VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)`
	selectTemplate = `SELECT payload, version FROM load_test WHERE id = ?`
	updateTemplate = `UPDATE load_test SET payload = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND version = ?`
)

// rebound builds the statement set for one sqlx bindvar style.
func rebound(bindType int) Statements {
	return Statements{
		Insert: sqlx.Rebind(bindType, insertTemplate),
		Select: sqlx.Rebind(bindType, selectTemplate),
		Update: sqlx.Rebind(bindType, updateTemplate),
	}
}

// oracleRebind converts '?' placeholders to Oracle's positional ':n' form,
// which sqlx has no bindvar constant for.
func oracleRebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func oracleStatements() Statements {
	return Statements{
		Insert: oracleRebind(insertTemplate),
		Select: oracleRebind(selectTemplate),
		Update: oracleRebind(updateTemplate),
	}
}
