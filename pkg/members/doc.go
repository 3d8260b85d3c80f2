// Package members implements the credential store: persistent member
// records (identity, password hash, flags, warning count, ban state, roles)
// behind a Store interface with SQL and in-memory implementations.
//
// The SQL implementation works against both PostgreSQL (lib/pq) and SQLite
// (mattn/go-sqlite3): statements use $N placeholders and RETURNING, which
// both drivers accept, and timestamps are always supplied by the caller so
// no server-side NOW() is needed.
package members
