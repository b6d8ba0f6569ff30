// Package migrations generates the SQL migration files that create the
// pipeline's bookkeeping tables (cursors, ID map and batch log) for SQL Server,
// PostgreSQL, MySQL/MariaDB and SQLite targets.
package migrations
