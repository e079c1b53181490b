package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openmaraude/apitaxi/pkg/migrate"
)

func TestHailsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_hails.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no hails migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS hails",
		"FOREIGN KEY (taxi_id) REFERENCES taxis(id) ON DELETE CASCADE",
		"CHECK (rating_ride IS NULL OR (rating_ride >= 1 AND rating_ride <= 5))",
		"CREATE TABLE IF NOT EXISTS archived_hails",
		"DROP TABLE IF EXISTS hails",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRegistryMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_registry.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no registry migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_vehicles_licence_plate",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicle_description_owner",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_driver_licence",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_ads_numero_insee",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_taxi_triple",
		"CHECK (radius IS NULL OR (radius >= 150 AND radius <= 500))",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}
