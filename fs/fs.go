// Package appfs embeds the files shipped with the binaries: SQL migrations and seed reference data.
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS

//go:embed seed/*.json
var Seed embed.FS

const (
	MigrationsDir        = "migrations"
	QuestionsSeedFile    = "seed/questions.json"
	MicroRitualsSeedFile = "seed/micro_rituals.json"
)
