package migrations

import (
	"fmt"
	"log"
	"sort"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrationsList is filled by the init functions of the numbered migration files
var migrationsList []*gormigrate.Migration

// Migrations returns the registered migrations ordered by ID
func Migrations() []*gormigrate.Migration {
	out := make([]*gormigrate.Migration, len(migrationsList))
	copy(out, migrationsList)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunMigrations applies every pending migration in ID order
func RunMigrations(db *gorm.DB) error {
	opts := *gormigrate.DefaultOptions
	opts.TableName = "schema_migrations"
	m := gormigrate.New(db, &opts, Migrations())

	if err := m.Migrate(); err != nil {
		log.Printf("Could not migrate: %v", err)
		return fmt.Errorf("migrate: %w", err)
	}
	log.Printf("Migrations ran successfully (%d registered)", len(migrationsList))
	return nil
}
