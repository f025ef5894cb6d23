package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var slugBreak = regexp.MustCompile(`[^a-z0-9]+`)

// CreateSQLMigration writes an empty goose migration into dir and returns its
// path. The version is the current UTC second unless dir already holds a
// migration at or past it, in which case the new file goes one second after
// the newest so goose still applies it last.
func CreateSQLMigration(dir, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now().UTC())
}

func createSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	version := now.UTC().Truncate(time.Second)
	newest, err := newestVersion(dir)
	if err != nil {
		return "", err
	}
	if !newest.IsZero() && !version.After(newest) {
		version = newest.Add(time.Second)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), slug))
	body := fmt.Sprintf(migrationTemplate, slug)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.WriteString(body); err != nil {
		return "", fmt.Errorf("write migration %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// migrationSlug lowercases name and collapses every other run of characters into one underscore.
func migrationSlug(name string) string {
	slug := slugBreak.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(slug, "_")
}

func newestVersion(dir string) (time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("list migrations: %w", err)
	}
	var newest time.Time
	for _, entry := range entries {
		m := sqlFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		at, err := time.Parse(versionLayout, m[1])
		if err != nil {
			continue
		}
		if at.After(newest) {
			newest = at
		}
	}
	return newest, nil
}

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s: schema change goes here
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- %[1]s: revert the change above
-- +goose StatementEnd
`
