package db

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq"
)

// Open opens a database connection without pinging.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// MustOpen returns an open and verified database connection.
func MustOpen(dsn string) *sql.DB {
	database, err := Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	if err := database.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	return database
}
