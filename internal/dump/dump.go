package dump

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/coredb"
	"github.com/inodb/xrefmap/internal/rules"
	"github.com/inodb/xrefmap/internal/xrefdb"
)

// XrefFASTAName is the per-rule xref dump name: xref_<i>_<kind>.fasta.
func XrefFASTAName(ruleIndex int, kind rules.SequenceKind) string {
	return fmt.Sprintf("xref_%d_%s.fasta", ruleIndex, kind)
}

// CoreFASTAName is the core dump name: <species>_dna.fasta holds spliced
// transcript cDNA, <species>_protein.fasta holds translation peptides.
func CoreFASTAName(species string, kind rules.SequenceKind) string {
	if kind == rules.Peptide {
		return species + "_protein.fasta"
	}
	return species + "_dna.fasta"
}

// Dumper emits the FASTA inputs for the alignment jobs.
type Dumper struct {
	xref   *xrefdb.Store
	core   *coredb.Store
	dir    string
	logger *zap.Logger

	// Skip all work when every expected file already exists.
	DumpCheck bool

	// Optional genomic slice restricting the core dump.
	Location string

	// Truncate the transcript dump after this many records; 0 is no cap.
	MaxDump int
}

// New creates a dumper writing under dir.
func New(xref *xrefdb.Store, core *coredb.Store, dir string) *Dumper {
	return &Dumper{xref: xref, core: core, dir: dir, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (d *Dumper) SetLogger(l *zap.Logger) {
	d.logger = l
}

// DumpXrefs writes xref_<i>_dna.fasta and xref_<i>_peptide.fasta for each
// rule, selecting primary xrefs through the rule's predicates.
func (d *Dumper) DumpXrefs(speciesIDs, sourceIDs map[string]int64, ruleList []rules.Rule) error {
	if d.DumpCheck && d.xrefFilesPresent(ruleList) {
		d.logger.Info("xref FASTA files present, skipping dump")
		return nil
	}

	for i, rule := range ruleList {
		preds, err := rules.Predicates(rule, speciesIDs, sourceIDs)
		if err != nil {
			return err
		}

		for _, pred := range preds {
			path := filepath.Join(d.dir, XrefFASTAName(i, pred.Kind))
			fw, err := createFASTA(path)
			if err != nil {
				return err
			}

			err = d.xref.EachPrimarySequence(pred.Kind, pred.Where, fw.write)
			if err != nil {
				fw.close()
				return fmt.Errorf("dump %s: %w", path, err)
			}
			if err := fw.close(); err != nil {
				return fmt.Errorf("dump %s: %w", path, err)
			}

			d.logger.Info("dumped xref sequences",
				zap.String("file", filepath.Base(path)), zap.Int("records", fw.n))
		}
	}
	return nil
}

// DumpCore writes the species' transcript cDNA and translation peptide
// FASTAs, the alignment targets.
func (d *Dumper) DumpCore(species string) error {
	dnaPath := filepath.Join(d.dir, CoreFASTAName(species, rules.DNA))
	pepPath := filepath.Join(d.dir, CoreFASTAName(species, rules.Peptide))

	if d.DumpCheck && fileExists(dnaPath) && fileExists(pepPath) {
		d.logger.Info("core FASTA files present, skipping dump")
		return nil
	}

	fw, err := createFASTA(dnaPath)
	if err != nil {
		return err
	}
	if err := d.core.EachTranscriptSeq(d.Location, d.MaxDump, fw.write); err != nil {
		fw.close()
		return fmt.Errorf("dump transcripts: %w", err)
	}
	if err := fw.close(); err != nil {
		return fmt.Errorf("dump transcripts: %w", err)
	}
	d.logger.Info("dumped transcript cDNA", zap.Int("records", fw.n))

	fw, err = createFASTA(pepPath)
	if err != nil {
		return err
	}
	if err := d.core.EachTranslationSeq(d.Location, fw.write); err != nil {
		fw.close()
		return fmt.Errorf("dump translations: %w", err)
	}
	if err := fw.close(); err != nil {
		return fmt.Errorf("dump translations: %w", err)
	}
	d.logger.Info("dumped translation peptides", zap.Int("records", fw.n))

	return nil
}

func (d *Dumper) xrefFilesPresent(ruleList []rules.Rule) bool {
	for i := range ruleList {
		for _, kind := range []rules.SequenceKind{rules.DNA, rules.Peptide} {
			if !fileExists(filepath.Join(d.dir, XrefFASTAName(i, kind))) {
				return false
			}
		}
	}
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
