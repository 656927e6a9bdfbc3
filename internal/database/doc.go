// Package database provides the TimescaleDB connection pool and the schema
// the stream writers insert into.
package database
