package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseMigration(t *testing.T) {
	content := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.transactions` (id STRING);")

	m, ok := parseMigration("0001_create_star_schema.sql", content, "proj", "card_analytics")
	if !ok {
		t.Fatal("expected filename to parse")
	}

	if m.Version != 1 {
		t.Errorf("Version = %d, want 1", m.Version)
	}
	if m.Name != "create_star_schema" {
		t.Errorf("Name = %q, want create_star_schema", m.Name)
	}
	if want := "CREATE TABLE `proj.card_analytics.transactions` (id STRING);"; m.SQL != want {
		t.Errorf("SQL = %q, want %q", m.SQL, want)
	}
	if m.Checksum == "" {
		t.Error("Checksum must be set")
	}
}

func TestParseMigration_RejectsBadFilenames(t *testing.T) {
	for _, filename := range []string{
		"001_too_short.sql",
		"0001_missing_extension",
		"0001.sql",
		"notes.txt",
		"schema_0001_wrong_order.sql",
	} {
		if _, ok := parseMigration(filename, nil, "p", "d"); ok {
			t.Errorf("parseMigration(%q) accepted an invalid name", filename)
		}
	}
}

func TestParseMigration_ChecksumIgnoresPlaceholderValues(t *testing.T) {
	content := []byte("SELECT 1 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")

	a, _ := parseMigration("0002_x.sql", content, "proj-a", "ds_a")
	b, _ := parseMigration("0002_x.sql", content, "proj-b", "ds_b")

	if a.Checksum != b.Checksum {
		t.Error("checksum must not depend on project/dataset substitution")
	}
	if a.SQL == b.SQL {
		t.Error("substituted SQL must differ between projects")
	}
}

func TestReadMigrations_SortsByVersion(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"0003_reporting_tables.sql",
		"0001_create_star_schema.sql",
		"0002_dimensions.sql",
		"README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("SELECT 1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := readMigrations(dir, "proj", "ds")
	if err != nil {
		t.Fatalf("readMigrations failed: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("got %d migrations, want 3", len(migrations))
	}
	for i, want := range []int{1, 2, 3} {
		if migrations[i].Version != want {
			t.Errorf("migrations[%d].Version = %d, want %d", i, migrations[i].Version, want)
		}
	}
}

func TestReadMigrations_MissingDir(t *testing.T) {
	if _, err := readMigrations(filepath.Join(t.TempDir(), "nope"), "p", "d"); err == nil {
		t.Error("expected error for missing directory")
	}
}
