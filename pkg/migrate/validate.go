package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)

const (
	gooseUp         = "-- +goose Up"
	gooseDown       = "-- +goose Down"
	statementBegin  = "-- +goose StatementBegin"
	statementFinish = "-- +goose StatementEnd"
)

// ValidateDir checks every .sql file in dir and reports all problems at once:
// the <version>_<slug>.sql name, unique versions, an Up section ahead of a
// Down section and balanced statement markers.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	var problems error
	versions := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_snake_name.sql", name))
			continue
		}
		if other, dup := versions[m[1]]; dup {
			problems = multierr.Append(problems, fmt.Errorf("%s: version %s already used by %s", name, m[1], other))
		}
		versions[m[1]] = name

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		problems = multierr.Append(problems, checkGooseSections(name, string(raw)))
	}
	return problems
}

func checkGooseSections(name, body string) error {
	up := strings.Index(body, gooseUp)
	down := strings.Index(body, gooseDown)
	switch {
	case up < 0:
		return fmt.Errorf("%s: missing %q", name, gooseUp)
	case down < 0:
		return fmt.Errorf("%s: missing %q", name, gooseDown)
	case down < up:
		return fmt.Errorf("%s: Down section comes before Up", name)
	}
	if begins, ends := strings.Count(body, statementBegin), strings.Count(body, statementFinish); begins != ends {
		return fmt.Errorf("%s: %d StatementBegin markers but %d StatementEnd", name, begins, ends)
	}
	return nil
}
