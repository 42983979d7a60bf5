// Package coredb reads the core annotation store (genes, transcripts,
// translations, sequences) and is the upload target for mapped xrefs.
package coredb

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"
)

// Store wraps a connection to the core store.
type Store struct {
	db *sqlx.DB
}

// Open opens the core store at path. An empty path opens an in-memory
// database, which is only useful in tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open core store: %w", err)
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

// MaxID returns the largest value of col in table, or 0 if the table is
// empty. Table and column names come from a fixed internal set, never from
// user input.
func (s *Store) MaxID(table, col string) (int64, error) {
	var max int64
	err := s.db.Get(&max, fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", col, table))
	if err != nil {
		return 0, fmt.Errorf("max %s.%s: %w", table, col, err)
	}
	return max, nil
}

// ExternalDBs returns the db_name→external_db_id registry. A source name
// missing here filters its xrefs out of every output.
func (s *Store) ExternalDBs() (map[string]int64, error) {
	rows, err := s.db.Queryx("SELECT db_name, external_db_id FROM external_db")
	if err != nil {
		return nil, fmt.Errorf("external dbs: %w", err)
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

// StableIDs returns the stable→internal id map for one of the gene,
// transcript or translation tables.
func (s *Store) StableIDs(table string) (map[string]int64, error) {
	rows, err := s.db.Queryx(fmt.Sprintf("SELECT stable_id, %s_id FROM %s", table, table))
	if err != nil {
		return nil, fmt.Errorf("%s stable ids: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var stable string
		var id int64
		if err := rows.Scan(&stable, &id); err != nil {
			return nil, err
		}
		out[stable] = id
	}
	return out, rows.Err()
}

// TranscriptTranslations returns transcript_id→translation_id for every
// transcript that has a translation.
func (s *Store) TranscriptTranslations() (map[int64]int64, error) {
	rows, err := s.db.Queryx("SELECT transcript_id, translation_id FROM translation")
	if err != nil {
		return nil, fmt.Errorf("transcript translations: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var transcriptID, translationID int64
		if err := rows.Scan(&transcriptID, &translationID); err != nil {
			return nil, err
		}
		out[transcriptID] = translationID
	}
	return out, rows.Err()
}

// TranscriptStableToTranslationStable returns the stable-id level
// transcript→translation map used by CCDS retargeting.
func (s *Store) TranscriptStableToTranslationStable() (map[string]string, error) {
	rows, err := s.db.Queryx(`SELECT transcript.stable_id, translation.stable_id
		FROM translation JOIN transcript USING (transcript_id)`)
	if err != nil {
		return nil, fmt.Errorf("transcript→translation stable ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var transcriptStable, translationStable string
		if err := rows.Scan(&transcriptStable, &translationStable); err != nil {
			return nil, err
		}
		out[transcriptStable] = translationStable
	}
	return out, rows.Err()
}

// GeneTranscripts returns gene_id→transcript ids.
func (s *Store) GeneTranscripts() (map[int64][]int64, error) {
	rows, err := s.db.Queryx("SELECT gene_id, transcript_id FROM transcript ORDER BY gene_id, transcript_id")
	if err != nil {
		return nil, fmt.Errorf("gene transcripts: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var geneID, transcriptID int64
		if err := rows.Scan(&geneID, &transcriptID); err != nil {
			return nil, err
		}
		out[geneID] = append(out[geneID], transcriptID)
	}
	return out, rows.Err()
}

// TranscriptLengths returns transcript_id→genomic span length.
func (s *Store) TranscriptLengths() (map[int64]int, error) {
	rows, err := s.db.Queryx("SELECT transcript_id, seq_region_end - seq_region_start + 1 FROM transcript")
	if err != nil {
		return nil, fmt.Errorf("transcript lengths: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var length int
		if err := rows.Scan(&id, &length); err != nil {
			return nil, err
		}
		out[id] = length
	}
	return out, rows.Err()
}

// AnalysisIDs returns logic_name→analysis_id for the xref alignment
// analyses. Missing logic names simply have no entry.
func (s *Store) AnalysisIDs() (map[string]int64, error) {
	rows, err := s.db.Queryx(`SELECT logic_name, analysis_id FROM analysis
		WHERE logic_name IN ('XrefExonerateDNA', 'XrefExonerateProtein')`)
	if err != nil {
		return nil, fmt.Errorf("analysis ids: %w", err)
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

// EachTranscriptSeq streams (transcript_id, spliced cDNA). A non-empty
// location restricts to that seq region; max > 0 truncates the dump.
func (s *Store) EachTranscriptSeq(location string, max int, fn func(id int64, seq string) error) error {
	query := `SELECT transcript.transcript_id, transcript_sequence.cdna
		FROM transcript JOIN transcript_sequence USING (transcript_id)`
	var args []any
	if location != "" {
		query += " WHERE transcript.seq_region_name = ?"
		args = append(args, location)
	}
	query += " ORDER BY transcript.transcript_id"
	if max > 0 {
		query += fmt.Sprintf(" LIMIT %d", max)
	}

	return s.eachSeq(query, args, fn)
}

// EachTranslationSeq streams (translation_id, peptide), restricted to the
// given location when non-empty.
func (s *Store) EachTranslationSeq(location string, fn func(id int64, seq string) error) error {
	query := `SELECT translation.translation_id, translation_sequence.peptide
		FROM translation
		JOIN translation_sequence USING (translation_id)
		JOIN transcript USING (transcript_id)`
	var args []any
	if location != "" {
		query += " WHERE transcript.seq_region_name = ?"
		args = append(args, location)
	}
	query += " ORDER BY translation.translation_id"

	return s.eachSeq(query, args, fn)
}

func (s *Store) eachSeq(query string, args []any, fn func(id int64, seq string) error) error {
	rows, err := s.db.Queryx(query, args...)
	if err != nil {
		return fmt.Errorf("sequence dump query: %w", err)
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
