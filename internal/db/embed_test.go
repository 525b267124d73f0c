package db

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestEmbeddedMigrationsFS verifies the embedded migrations filesystem structure
func TestEmbeddedMigrationsFS(t *testing.T) {
	origDevMode := DevMode
	DevMode = false
	defer func() { DevMode = origDevMode }()

	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}

	entries, err := fs.ReadDir(migFS, ".")
	if err != nil {
		t.Fatalf("Failed to read getMigrationsFS result: %v", err)
	}
	var up, down int
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			down++
		default:
			t.Errorf("unexpected migration file %s", entry.Name())
		}
	}
	if up == 0 || up != down {
		t.Errorf("expected matching up/down migrations, got %d up and %d down", up, down)
	}

	latest, err := GetLatestMigrationVersion(migFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion() failed: %v", err)
	}
	if int(latest) != up {
		t.Errorf("latest version %d does not match %d up migrations", latest, up)
	}
}

func TestDevModeReadsMigrationsFromDisk(t *testing.T) {
	origDevMode, origDir := DevMode, MigrationsDir
	defer func() { DevMode, MigrationsDir = origDevMode, origDir }()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "000007_extra.up.sql"), []byte("SELECT 1;"), 0644); err != nil {
		t.Fatal(err)
	}
	DevMode, MigrationsDir = true, dir

	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}
	latest, err := GetLatestMigrationVersion(migFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion() failed: %v", err)
	}
	if latest != 7 {
		t.Errorf("latest = %d, want 7", latest)
	}
}

func TestGetLatestMigrationVersionEmpty(t *testing.T) {
	if _, err := GetLatestMigrationVersion(os.DirFS(t.TempDir())); err == nil {
		t.Error("expected an error for a directory without migrations")
	}
}
