package store

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"
)

// Every migration version must ship an up and a down file so the roundtrip
// test can exercise both directions.
func TestMigrationFilesComeInPairs(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	ups := map[string]string{}
	downs := map[string]string{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			t.Fatalf("migration file %q does not match NNNN_name.(up|down).sql", name)
		}
		version, direction := match[1], match[2]
		target := ups
		if direction == "down" {
			target = downs
		}
		if previous, ok := target[version]; ok {
			t.Fatalf("version %s has both %q and %q for direction %s", version, previous, name, direction)
		}
		target[version] = name
	}

	if len(ups) == 0 {
		t.Fatal("no migrations discovered")
	}

	versions := make([]string, 0, len(ups))
	for version := range ups {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	for _, version := range versions {
		if _, ok := downs[version]; !ok {
			t.Fatalf("version %s has an up migration but no down migration", version)
		}
	}
	for version := range downs {
		if _, ok := ups[version]; !ok {
			t.Fatalf("version %s has a down migration but no up migration", version)
		}
	}
}
