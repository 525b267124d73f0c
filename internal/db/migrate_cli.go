package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand of the dealias binary.
// Output goes to w; errors are returned for the caller to report.
func RunMigrateCommand(args []string, dbPath string, w io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(w)
		return nil
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}

	// Open without migrating: the actions below manage the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		fmt.Fprintln(w, "All migrations applied")
		return printVersion(w, database, migrationsFS)

	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		fmt.Fprintln(w, "Rolled back one migration")
		return printVersion(w, database, migrationsFS)

	case "status":
		return printStatus(w, database, migrationsFS)

	case "version", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: dealias migrate %s <version_number>", action)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if action == "force" {
			if err := database.MigrateForce(migrationsFS, v); err != nil {
				return err
			}
			fmt.Fprintf(w, "Migration version forced to %d\n", v)
			return nil
		}
		if err := database.MigrateTo(migrationsFS, uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(w, "Migrated to version %d\n", v)
		return nil

	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(w io.Writer, database *DB, migrationsFS fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(w io.Writer, database *DB, migrationsFS fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "=== Migration Status ===")
	fmt.Fprintf(w, "Current version: %d\n", version)
	fmt.Fprintf(w, "Latest available: %d\n", latest)
	fmt.Fprintf(w, "Dirty: %v\n", dirty)
	switch {
	case dirty:
		fmt.Fprintln(w, "Database is in a dirty state; inspect it and run: dealias migrate force <version>")
	case version < latest:
		fmt.Fprintf(w, "Database is %d version(s) behind; run: dealias migrate up\n", latest-version)
	default:
		fmt.Fprintln(w, "Database is up to date")
	}
	return nil
}

// PrintMigrateHelp writes the usage of the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Database Migration Commands

Usage: dealias migrate <command> [options]

Commands:
  up              Apply all pending migrations
  down            Roll back one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  help            Show this help message

Options:
  -db <path>      Path to the results database
`)
}
