package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RunClickHouseMigrations applies every .sql file in the directory in name
// order. ClickHouse migrations are apply-only; there is no down direction
// for an append-only analytics schema.
func RunClickHouseMigrations(db *ClickHouseDB, migrationsPath string) error {
	ctx := context.Background()

	entries, err := os.ReadDir(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(migrationsPath, name)) // #nosec G304 - path comes from the operator
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		for _, stmt := range splitStatements(string(content)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute statement in %s: %w", name, err)
			}
		}
		log.Printf("applied migration %s", name)
	}
	return nil
}

// splitStatements breaks a migration file into statements on terminating
// semicolons, dropping blank lines and line comments. The native protocol
// takes one statement per Exec.
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	return statements
}
