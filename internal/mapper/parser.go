package mapper

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/emit"
)

// Parser reads alignment map files and records the mappings that pass the
// per-method identity thresholds.
type Parser struct {
	ctx    *Context
	files  *emit.Files
	logger *zap.Logger
}

// NewParser creates a parser writing through the given output files.
func NewParser(ctx *Context, files *emit.Files) *Parser {
	return &Parser{ctx: ctx, files: files, logger: zap.NewNop()}
}

// SetLogger sets the logger for warning messages.
func (p *Parser) SetLogger(l *zap.Logger) {
	p.logger = l
}

// ParseDir parses every .map file under dir in lexical order.
func (p *Parser) ParseDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.map"))
	if err != nil {
		return fmt.Errorf("glob map files: %w", err)
	}

	for _, path := range paths {
		if err := p.ParseFile(path); err != nil {
			return err
		}
	}
	return nil
}

// ParseFile parses one map file. The alignment method and the object type
// come from the file name: <Method>_<dna|peptide>_<N>.map.
func (p *Parser) ParseFile(path string) error {
	method, kind, ok := splitMapName(filepath.Base(path))
	if !ok {
		p.logger.Warn("unrecognized map file name, skipping", zap.String("file", path))
		return nil
	}

	objType := Transcript
	if kind == "peptide" {
		objType = Translation
	}

	thr, ok := p.ctx.MethodThresholds[method]
	if !ok {
		p.logger.Warn("no thresholds recorded for method, skipping file",
			zap.String("method", method), zap.String("file", path))
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open map file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := p.parseRecord(line, objType, kind, thr); err != nil {
			p.logger.Warn("bad alignment record",
				zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

// parseRecord handles one colon-separated alignment record:
// label:query_id:target_id:identity:query_len:target_len:q_start:q_end:t_start:t_end:cigar:score
func (p *Parser) parseRecord(line string, objType ObjectType, kind string, thr Thresholds) error {
	fields := strings.Split(line, ":")
	if len(fields) != 12 {
		return fmt.Errorf("expected 12 fields, got %d", len(fields))
	}

	xrefID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("query id: %w", err)
	}
	objectID, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("target id: %w", err)
	}

	ints := make([]int, 7)
	for i, idx := range []int{3, 4, 5, 6, 7, 8, 9} {
		v, err := strconv.Atoi(fields[idx])
		if err != nil {
			return fmt.Errorf("field %d: %w", idx, err)
		}
		ints[i] = v
	}
	identity, queryLen, targetLen := ints[0], ints[1], ints[2]
	queryStart, queryEnd, targetStart, targetEnd := ints[3], ints[4], ints[5], ints[6]

	cigar := strings.ReplaceAll(fields[10], " ", "")
	score, err := strconv.ParseFloat(fields[11], 64)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	if queryLen <= 0 || targetLen <= 0 {
		return fmt.Errorf("non-positive sequence length")
	}

	queryIdentity := 100 * identity / queryLen
	targetIdentity := 100 * identity / targetLen

	// Keep the mapping if either side clears its method threshold.
	if queryIdentity < thr.Query && targetIdentity < thr.Target {
		return nil
	}

	// An xref whose source has no external_db entry is invisible to the
	// outputs and must stay invisible to the in-memory indices too.
	if _, ok := p.ctx.ExternalDBID(xrefID); !ok {
		return nil
	}

	obj := ObjectKey{Type: objType, ID: objectID}
	if !p.ctx.MarkObjectXrefWritten(obj, xrefID) {
		return nil
	}

	objectXrefID := p.ctx.NextObjectXrefID()
	if err := p.files.ObjectXref(objectXrefID, objectID, string(objType), p.ctx.ShiftXref(xrefID), false); err != nil {
		return err
	}

	// Alignment coordinates are 0-based half-open; starts move to 1-based,
	// ends are already right.
	if err := p.files.IdentityXref(objectXrefID, queryIdentity, targetIdentity,
		queryStart+1, queryEnd, targetStart+1, targetEnd,
		cigar, score, p.ctx.AnalysisIDs[kind]); err != nil {
		return err
	}

	p.ctx.AddMapping(obj, xrefID)
	p.ctx.SetIdentity(obj, xrefID, Identity{Query: queryIdentity, Target: targetIdentity})
	p.ctx.AddPrimaryObject(xrefID, obj)
	return nil
}

// splitMapName extracts the method name and sequence kind from a map file
// name of the form <Method>_<dna|peptide>_<N>.map.
func splitMapName(name string) (method, kind string, ok bool) {
	name = strings.TrimSuffix(name, ".map")
	for _, k := range []string{"_dna_", "_peptide_"} {
		if idx := strings.LastIndex(name, k); idx > 0 {
			return name[:idx], strings.Trim(k, "_"), true
		}
	}
	return "", "", false
}
