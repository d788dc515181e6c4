// Package db provides the embedded schema of the catalog mirror.
package db

import _ "embed"

// Schema contains the DDL statements for the catalog mirror tables.
//
//go:embed migrations/001_schema.sql
var Schema string
