package database

import _ "embed"

// Schema is the current SQLite schema, generated from the migrations.
// Tests apply it directly instead of running the migrator.
//
//go:embed schema.sql
var Schema string
