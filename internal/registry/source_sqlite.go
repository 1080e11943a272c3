package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registry_members (
	category TEXT NOT NULL,
	name     TEXT NOT NULL,
	grp      TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (category, name)
);
CREATE TABLE IF NOT EXISTS registry_aliases (
	category TEXT NOT NULL,
	name     TEXT NOT NULL,
	alias    TEXT NOT NULL,
	PRIMARY KEY (category, name, alias)
);
`

// SQLiteSource reads the whitelist from a local mirror of the plant
// directory service.
type SQLiteSource struct {
	db   *sqlx.DB
	path string
}

type memberRow struct {
	Category string `db:"category"`
	Name     string `db:"name"`
	Group    string `db:"grp"`
}

type aliasRow struct {
	Category string `db:"category"`
	Name     string `db:"name"`
	Alias    string `db:"alias"`
}

// OpenSQLiteSource opens (and creates if needed) the mirror database.
func OpenSQLiteSource(path string) (*SQLiteSource, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create registry schema: %w", err)
	}
	return &SQLiteSource{db: db, path: path}, nil
}

func (s *SQLiteSource) Name() string { return "sqlite:" + s.path }

// Close closes the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func (s *SQLiteSource) Fetch(ctx context.Context) (Catalog, error) {
	var members []memberRow
	if err := s.db.SelectContext(ctx, &members,
		`SELECT category, name, grp FROM registry_members ORDER BY category, position, name`); err != nil {
		return Catalog{}, fmt.Errorf("failed to query members: %w", err)
	}
	var aliases []aliasRow
	if err := s.db.SelectContext(ctx, &aliases,
		`SELECT category, name, alias FROM registry_aliases ORDER BY category, name, alias`); err != nil {
		return Catalog{}, fmt.Errorf("failed to query aliases: %w", err)
	}

	byMember := make(map[[2]string][]string)
	for _, a := range aliases {
		k := [2]string{a.Category, a.Name}
		byMember[k] = append(byMember[k], a.Alias)
	}

	var c Catalog
	for _, m := range members {
		cat := Category(m.Category)
		if !validCategory(cat) {
			return Catalog{}, fmt.Errorf("unknown category %q for %q", m.Category, m.Name)
		}
		c.add(cat, Member{
			Name:    m.Name,
			Group:   m.Group,
			Aliases: byMember[[2]string{m.Category, m.Name}],
		})
	}
	return c, nil
}

// Import replaces the mirror's content with c in one transaction.
func (s *SQLiteSource) Import(ctx context.Context, c Catalog) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM registry_aliases`); err != nil {
		return fmt.Errorf("failed to clear aliases: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM registry_members`); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}

	for _, cat := range Categories() {
		for i, m := range c.members(cat) {
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO registry_members (category, name, grp, position) VALUES (:category, :name, :grp, :position)`,
				map[string]interface{}{"category": string(cat), "name": m.Name, "grp": m.Group, "position": i}); err != nil {
				return fmt.Errorf("failed to insert %s %q: %w", cat, m.Name, err)
			}
			for _, alias := range m.Aliases {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO registry_aliases (category, name, alias) VALUES (?, ?, ?)`,
					string(cat), m.Name, alias); err != nil {
					return fmt.Errorf("failed to insert alias %q: %w", alias, err)
				}
			}
		}
	}
	return tx.Commit()
}

func validCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}
