package db

import _ "embed"

// Schema is the full schema in one shot, used to bootstrap throwaway
// databases in integration tests. Production startup runs the versioned
// migrations instead.
//
//go:embed schema.sql
var Schema string
