// Package xrefdb reads the curated xref store: sources, xrefs, sequences,
// dependent/direct relations, synonyms and interpro pairs.
package xrefdb

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/xrefmap/internal/rules"
)

// Store wraps a connection to the xref store. The pipeline only reads
// through it.
type Store struct {
	db *sqlx.DB
}

// Open opens the xref store at path. An empty path opens an in-memory
// database, which is only useful in tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open xref store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle for direct access.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// SpeciesIDs returns the species name→id lookup.
func (s *Store) SpeciesIDs() (map[string]int64, error) {
	return s.nameIDMap("SELECT name, species_id FROM species")
}

// SourceIDs returns the source name→id lookup.
func (s *Store) SourceIDs() (map[string]int64, error) {
	return s.nameIDMap("SELECT name, source_id FROM source")
}

func (s *Store) nameIDMap(query string) (map[string]int64, error) {
	rows, err := s.db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("name lookup: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

// XrefSources returns xref_id→source_id for every xref of the species.
func (s *Store) XrefSources(speciesID int64) (map[int64]int64, error) {
	rows, err := s.db.Queryx("SELECT xref_id, source_id FROM xref WHERE species_id = ?", speciesID)
	if err != nil {
		return nil, fmt.Errorf("xref sources: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var xrefID, sourceID int64
		if err := rows.Scan(&xrefID, &sourceID); err != nil {
			return nil, err
		}
		out[xrefID] = sourceID
	}
	return out, rows.Err()
}

// EachPrimarySequence streams the (xref id, sequence) pairs a dump predicate
// selects. An empty where clause falls back to the bare sequence-type filter.
func (s *Store) EachPrimarySequence(kind rules.SequenceKind, where string, fn func(id int64, seq string) error) error {
	if where == "" {
		where = fmt.Sprintf("primary_xref.sequence_type = '%s'", kind)
	}

	query := `SELECT primary_xref.xref_id, primary_xref.sequence
		FROM primary_xref JOIN xref USING (xref_id)
		WHERE ` + where + `
		ORDER BY primary_xref.xref_id`

	rows, err := s.db.Queryx(query)
	if err != nil {
		return fmt.Errorf("primary sequences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var seq string
		if err := rows.Scan(&id, &seq); err != nil {
			return err
		}
		if err := fn(id, seq); err != nil {
			return err
		}
	}
	return rows.Err()
}

const xrefColumns = `xref.xref_id, xref.accession, COALESCE(xref.version, 0) AS version,
	COALESCE(xref.label, '') AS label, COALESCE(xref.description, '') AS description,
	xref.source_id, xref.species_id`

// XrefsByIDs fetches full xref records for the given ids. Callers batch the
// id list to keep IN clauses bounded.
func (s *Store) XrefsByIDs(ids []int64) ([]Xref, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		"SELECT "+xrefColumns+" FROM xref WHERE xref.xref_id IN (?) ORDER BY xref.xref_id", ids)
	if err != nil {
		return nil, fmt.Errorf("xrefs by id: %w", err)
	}

	var out []Xref
	if err := s.db.Select(&out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("xrefs by id: %w", err)
	}
	return out, nil
}

// Dependents fetches the dependent xrefs of the given master xrefs.
func (s *Store) Dependents(masterIDs []int64) ([]Dependent, error) {
	if len(masterIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT dependent_xref.master_xref_id,
		COALESCE(dependent_xref.linkage_annotation, '') AS linkage_annotation, `+xrefColumns+`
		FROM dependent_xref JOIN xref ON xref.xref_id = dependent_xref.dependent_xref_id
		WHERE dependent_xref.master_xref_id IN (?)
		ORDER BY dependent_xref.master_xref_id, xref.xref_id`, masterIDs)
	if err != nil {
		return nil, fmt.Errorf("dependent xrefs: %w", err)
	}

	var out []Dependent
	if err := s.db.Select(&out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("dependent xrefs: %w", err)
	}
	return out, nil
}

// DirectXrefs fetches every hand-curated direct xref for the species.
func (s *Store) DirectXrefs(speciesID int64) ([]Direct, error) {
	var out []Direct
	err := s.db.Select(&out, `SELECT direct_xref.ensembl_stable_id, direct_xref.type,
		COALESCE(direct_xref.linkage_xref, '') AS linkage_xref, `+xrefColumns+`
		FROM direct_xref JOIN xref ON xref.xref_id = direct_xref.general_xref_id
		WHERE xref.species_id = ?
		ORDER BY xref.xref_id`, speciesID)
	if err != nil {
		return nil, fmt.Errorf("direct xrefs: %w", err)
	}
	return out, nil
}

// Synonyms fetches the synonyms of the given xrefs.
func (s *Store) Synonyms(xrefIDs []int64) ([]Synonym, error) {
	if len(xrefIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		"SELECT xref_id, synonym FROM synonym WHERE xref_id IN (?) ORDER BY xref_id, synonym", xrefIDs)
	if err != nil {
		return nil, fmt.Errorf("synonyms: %w", err)
	}

	var out []Synonym
	if err := s.db.Select(&out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("synonyms: %w", err)
	}
	return out, nil
}

// OrphanXrefs fetches the species' xrefs reachable through none of the
// primary, dependent and direct tables.
func (s *Store) OrphanXrefs(speciesID int64) ([]Xref, error) {
	var out []Xref
	err := s.db.Select(&out, "SELECT "+xrefColumns+` FROM xref
		WHERE xref.species_id = ?
		  AND xref.xref_id NOT IN (SELECT xref_id FROM primary_xref)
		  AND xref.xref_id NOT IN (SELECT dependent_xref_id FROM dependent_xref)
		  AND xref.xref_id NOT IN (SELECT general_xref_id FROM direct_xref)
		ORDER BY xref.xref_id`, speciesID)
	if err != nil {
		return nil, fmt.Errorf("orphan xrefs: %w", err)
	}
	return out, nil
}

// InterproPairs fetches the interpro table, passed through to the output
// verbatim.
func (s *Store) InterproPairs() ([]Interpro, error) {
	var out []Interpro
	err := s.db.Select(&out, "SELECT interpro, pfam FROM interpro ORDER BY interpro, pfam")
	if err != nil {
		return nil, fmt.Errorf("interpro pairs: %w", err)
	}
	return out, nil
}

// Descriptions returns xref_id→(accession, description) for the species,
// the raw material for gene descriptions.
func (s *Store) Descriptions(speciesID int64) (map[int64][2]string, error) {
	rows, err := s.db.Queryx(`SELECT xref_id, accession, COALESCE(description, '')
		FROM xref WHERE species_id = ?`, speciesID)
	if err != nil {
		return nil, fmt.Errorf("descriptions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][2]string)
	for rows.Next() {
		var id int64
		var acc, desc string
		if err := rows.Scan(&id, &acc, &desc); err != nil {
			return nil, err
		}
		out[id] = [2]string{acc, desc}
	}
	return out, rows.Err()
}
