package emit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	rice "github.com/GeertJohan/go.rice"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// tableSpec binds one tabular output to its target table. cols is the table
// width; extra trailing fields (the DEPENDENT marker) are dropped on load.
type tableSpec struct {
	file  string
	table string
	cols  int
}

var uploadTables = []tableSpec{
	{XrefFile, "xref", 6},
	{ObjectXrefFile, "object_xref", 4},
	{IdentityXrefFile, "identity_xref", 11},
	{SynonymFile, "external_synonym", 2},
	{GoXrefFile, "go_xref", 2},
	{InterproFile, "interpro", 2},
	{GeneDescriptionFile, "gene_description", 2},
}

var sqlScripts = []string{TranscriptDisplaySQL, GeneDisplaySQL}

// Uploader bulk-loads the output file set into the target store and runs
// the display-xref UPDATE scripts.
type Uploader struct {
	db     *sqlx.DB
	dir    string
	logger *zap.Logger

	// Delete existing rows from each target table before loading.
	Truncate bool
}

// NewUploader creates an uploader reading the file set under dir.
func NewUploader(db *sqlx.DB, dir string) *Uploader {
	return &Uploader{db: db, dir: dir, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (u *Uploader) SetLogger(l *zap.Logger) {
	u.logger = l
}

// Run loads every tabular file, bootstrapping external_db from the packaged
// reference if the target's table is empty, then executes the SQL scripts.
// Rows that duplicate a primary or unique key of their table are ignored.
func (u *Uploader) Run() error {
	if err := u.ensureExternalDB(); err != nil {
		return err
	}

	for _, spec := range uploadTables {
		if err := u.loadTable(spec); err != nil {
			return err
		}
	}

	for _, name := range sqlScripts {
		if err := u.runScript(filepath.Join(u.dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// ensureExternalDB bootstraps the external_db table from the packaged
// reference file when the target has none.
func (u *Uploader) ensureExternalDB() error {
	var n int
	if err := u.db.Get(&n, "SELECT COUNT(*) FROM external_db"); err != nil {
		return fmt.Errorf("count external_db: %w", err)
	}
	if n > 0 {
		return nil
	}

	box, err := rice.FindBox("data")
	if err != nil {
		return fmt.Errorf("packaged reference data: %w", err)
	}
	raw, err := box.String("external_dbs.txt")
	if err != nil {
		return fmt.Errorf("packaged external_db reference: %w", err)
	}

	u.logger.Info("external_db empty, bootstrapping from packaged reference")

	tx, err := u.db.Beginx()
	if err != nil {
		return err
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		if _, err := tx.Exec("INSERT INTO external_db (external_db_id, db_name) VALUES (?, ?)",
			fields[0], fields[1]); err != nil {
			tx.Rollback()
			return fmt.Errorf("bootstrap external_db: %w", err)
		}
	}
	return tx.Commit()
}

// loadTable bulk-loads one tabular file, ignoring rows that duplicate a
// primary or unique key of the target table.
func (u *Uploader) loadTable(spec tableSpec) error {
	path := filepath.Join(u.dir, spec.file)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", spec.file, err)
	}
	defer f.Close()

	if u.Truncate {
		if _, err := u.db.Exec("DELETE FROM " + spec.table); err != nil {
			return fmt.Errorf("truncate %s: %w", spec.table, err)
		}
	}

	// A table without a primary or unique key has no duplicates to ignore,
	// and DuckDB rejects OR IGNORE on it: such tables take a plain INSERT.
	var keys int
	if err := u.db.Get(&keys, `SELECT COUNT(*) FROM duckdb_constraints()
		WHERE table_name = ? AND constraint_type IN ('PRIMARY KEY', 'UNIQUE')`, spec.table); err != nil {
		return fmt.Errorf("constraints of %s: %w", spec.table, err)
	}
	verb := "INSERT OR IGNORE INTO"
	if keys == 0 {
		verb = "INSERT INTO"
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", spec.cols), ",")
	insert := fmt.Sprintf("%s %s VALUES (%s)", verb, spec.table, placeholders)

	tx, err := u.db.Beginx()
	if err != nil {
		return err
	}

	n := 0
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < spec.cols {
			tx.Rollback()
			return fmt.Errorf("%s: expected %d fields, got %d", spec.file, spec.cols, len(fields))
		}

		args := make([]any, spec.cols)
		for i := 0; i < spec.cols; i++ {
			if fields[i] == NullLiteral {
				args[i] = nil
			} else {
				args[i] = fields[i]
			}
		}

		if _, err := tx.Exec(insert, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("load %s: %w", spec.table, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		tx.Rollback()
		return fmt.Errorf("read %s: %w", spec.file, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	u.logger.Info("loaded table", zap.String("table", spec.table), zap.Int("rows", n))
	return nil
}

// runScript executes the UPDATE statements of one display-xref script.
func (u *Uploader) runScript(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	tx, err := u.db.Beginx()
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute %s: %w", filepath.Base(path), err)
		}
	}
	return tx.Commit()
}
