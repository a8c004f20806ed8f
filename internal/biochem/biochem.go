// Package biochem provides compound and reaction name lookups backed by a
// ModelSEED-style biochemistry database. The tables live in an in-memory
// SQLite database seeded from TSV files, or in PostgreSQL.
package biochem

import (
	"context"
	"database/sql"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

//go:embed data/*.tsv
var embedded embed.FS

const (
	// DefaultSearchLimit is used when a search does not specify a limit.
	DefaultSearchLimit = 10
	// MaxSearchLimit caps search result sizes.
	MaxSearchLimit = 100

)

// Compound is a row of the compounds table.
type Compound struct {
	ID           string `json:"id"`
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	Formula      string `json:"formula"`
}

// Reaction is a row of the reactions table.
type Reaction struct {
	ID           string `json:"id"`
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	Equation     string `json:"equation"`
}

// Config selects the backing database.
type Config struct {
	// DSN is a postgres:// URL, or empty for an in-memory SQLite database.
	DSN string

	// Data overrides the embedded compounds.tsv/reactions.tsv files.
	Data fs.FS
}

// Database answers biochemistry lookups.
type Database struct {
	db       *sql.DB
	postgres bool
	logger   *zap.Logger
}

// Open connects to the configured database, creates the schema and seeds it
// when the tables are empty.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Database{logger: logger, postgres: isPostgres(cfg.DSN)}

	var err error
	if d.postgres {
		d.db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("biochem: failed to open postgres: %w", err)
		}
		d.db.SetMaxOpenConns(10)
		d.db.SetMaxIdleConns(2)
		d.db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		// named shared-cache database so every Open gets its own tables
		dsn := "file:biochem_" + uuid.NewString() + "?mode=memory&cache=shared"
		d.db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("biochem: failed to open sqlite: %w", err)
		}
		d.db.SetMaxOpenConns(1)
		d.db.SetMaxIdleConns(1)
		d.db.SetConnMaxLifetime(0)
	}

	if err := d.db.PingContext(ctx); err != nil {
		d.db.Close()
		return nil, fmt.Errorf("biochem: failed to ping database: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		d.db.Close()
		return nil, fmt.Errorf("biochem: failed to create schema: %w", err)
	}

	data := cfg.Data
	if data == nil {
		data, _ = fs.Sub(embedded, "data")
	}
	if err := d.seed(ctx, data); err != nil {
		d.db.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// CompoundName returns the name of a compound. Compartment suffixes are
// ignored ("cpd00027_e0" resolves as "cpd00027").
func (d *Database) CompoundName(ctx context.Context, id string) (string, error) {
	c, err := d.Compound(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Name, nil
}

// Compound looks up a compound by id.
func (d *Database) Compound(ctx context.Context, id string) (*Compound, error) {
	base := BaseID(id)
	var c Compound
	err := d.db.QueryRowContext(ctx,
		d.rebind(`SELECT id, abbreviation, name, formula FROM compounds WHERE id = ?`), base,
	).Scan(&c.ID, &c.Abbreviation, &c.Name, &c.Formula)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "compound", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("biochem: compound lookup: %w", err)
	}
	return &c, nil
}

// ReactionName returns the name of a reaction. Compartment suffixes are ignored.
func (d *Database) ReactionName(ctx context.Context, id string) (string, error) {
	r, err := d.Reaction(ctx, id)
	if err != nil {
		return "", err
	}
	return r.Name, nil
}

// Reaction looks up a reaction by id.
func (d *Database) Reaction(ctx context.Context, id string) (*Reaction, error) {
	base := BaseID(id)
	var r Reaction
	err := d.db.QueryRowContext(ctx,
		d.rebind(`SELECT id, abbreviation, name, equation FROM reactions WHERE id = ?`), base,
	).Scan(&r.ID, &r.Abbreviation, &r.Name, &r.Equation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "reaction", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("biochem: reaction lookup: %w", err)
	}
	return &r, nil
}

// SearchCompounds returns compounds whose id, name or abbreviation contains
// query (case-insensitive). Exact id matches sort first.
func (d *Database) SearchCompounds(ctx context.Context, query string, limit int) ([]Compound, error) {
	pattern, limit := searchArgs(query, limit)
	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT id, abbreviation, name, formula FROM compounds
		WHERE LOWER(id) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\' OR LOWER(abbreviation) LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN LOWER(id) = ? THEN 0 WHEN LOWER(name) = ? THEN 1 ELSE 2 END, id
		LIMIT ?`),
		pattern, pattern, pattern, strings.ToLower(query), strings.ToLower(query), limit)
	if err != nil {
		return nil, fmt.Errorf("biochem: compound search: %w", err)
	}
	defer rows.Close()

	out := []Compound{}
	for rows.Next() {
		var c Compound
		if err := rows.Scan(&c.ID, &c.Abbreviation, &c.Name, &c.Formula); err != nil {
			return nil, fmt.Errorf("biochem: compound search: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchReactions returns reactions whose id, name or abbreviation contains
// query (case-insensitive). Exact id matches sort first.
func (d *Database) SearchReactions(ctx context.Context, query string, limit int) ([]Reaction, error) {
	pattern, limit := searchArgs(query, limit)
	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT id, abbreviation, name, equation FROM reactions
		WHERE LOWER(id) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\' OR LOWER(abbreviation) LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN LOWER(id) = ? THEN 0 WHEN LOWER(name) = ? THEN 1 ELSE 2 END, id
		LIMIT ?`),
		pattern, pattern, pattern, strings.ToLower(query), strings.ToLower(query), limit)
	if err != nil {
		return nil, fmt.Errorf("biochem: reaction search: %w", err)
	}
	defer rows.Close()

	out := []Reaction{}
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.ID, &r.Abbreviation, &r.Name, &r.Equation); err != nil {
			return nil, fmt.Errorf("biochem: reaction search: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of compounds and reactions loaded.
func (d *Database) Counts(ctx context.Context) (compounds, reactions int, err error) {
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compounds`).Scan(&compounds); err != nil {
		return 0, 0, fmt.Errorf("biochem: count compounds: %w", err)
	}
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reactions`).Scan(&reactions); err != nil {
		return 0, 0, fmt.Errorf("biochem: count reactions: %w", err)
	}
	return compounds, reactions, nil
}

// BaseID strips a compartment suffix: "cpd00027_e0" -> "cpd00027".
func BaseID(id string) string {
	if i := strings.IndexByte(id, '_'); i > 0 {
		return id[:i]
	}
	return id
}

func (d *Database) seed(ctx context.Context, data fs.FS) error {
	tables := []struct {
		table string
		file  string
	}{
		{"compounds", "compounds.tsv"},
		{"reactions", "reactions.tsv"},
	}
	for _, t := range tables {
		var n int
		if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t.table).Scan(&n); err != nil {
			return fmt.Errorf("biochem: count %s: %w", t.table, err)
		}
		if n > 0 {
			d.logger.Debug("biochem table already populated", zap.String("table", t.table), zap.Int("rows", n))
			continue
		}
		loaded, err := d.load(ctx, data, t.table, t.file)
		if err != nil {
			return err
		}
		d.logger.Info("biochem table loaded", zap.String("table", t.table), zap.Int("rows", loaded))
	}
	return nil
}

// load inserts the rows of a four-column TSV file (header first) into table.
func (d *Database) load(ctx context.Context, data fs.FS, table, file string) (int, error) {
	f, err := data.Open(file)
	if err != nil {
		return 0, fmt.Errorf("biochem: open %s: %w", file, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = 4

	if _, err := r.Read(); err != nil {
		return 0, fmt.Errorf("biochem: read %s header: %w", file, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("biochem: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.rebind(
		`INSERT INTO `+table+` (id, abbreviation, name, `+lastColumn(table)+`) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("biochem: prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("biochem: read %s: %w", file, err)
		}
		if _, err := stmt.ExecContext(ctx, rec[0], rec[1], rec[2], rec[3]); err != nil {
			return 0, fmt.Errorf("biochem: insert %s %s: %w", table, rec[0], err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("biochem: commit %s: %w", table, err)
	}
	return n, nil
}

func lastColumn(table string) string {
	if table == "reactions" {
		return "equation"
	}
	return "formula"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d *Database) rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func searchArgs(query string, limit int) (string, int) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return "%" + likeEscaper.Replace(strings.ToLower(query)) + "%", limit
}

// likeEscaper makes LIKE wildcards in a search query match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
