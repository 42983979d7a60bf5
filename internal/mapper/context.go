// Package mapper turns alignment output into object↔xref mappings and
// propagates them across the dependent and direct xref relations.
package mapper

import (
	"sort"
)

// ObjectType is the kind of core object an xref attaches to.
type ObjectType string

const (
	Gene        ObjectType = "Gene"
	Transcript  ObjectType = "Transcript"
	Translation ObjectType = "Translation"
)

// ObjectKey identifies one core object across the in-memory indices.
type ObjectKey struct {
	Type ObjectType
	ID   int64
}

// Identity holds the percent identities of one aligned (object, xref) edge.
// Dependent xrefs inherit their master's values.
type Identity struct {
	Query  int
	Target int
}

// Thresholds are the keep/drop identity cutoffs of one alignment method.
type Thresholds struct {
	Query  int
	Target int
}

type objectXrefKey struct {
	obj  ObjectKey
	xref int64
}

// Context is the process-wide state threaded through the pipeline stages.
// Each index is filled before the stages that read it; Mappings and
// Identities are written by the parser and extended by the propagator.
type Context struct {
	SpeciesID int64

	// xref id offset and the next object_xref id, both seeded past the
	// target store's existing ids.
	xrefOffset    int64
	nextObjectXref int64

	// Mappings collects the xref ids attached to each core object, in
	// emission order.
	Mappings map[ObjectKey][]int64

	// Identities holds per (object, xref) alignment identities.
	Identities map[ObjectKey]map[int64]Identity

	// PrimaryObjects records, per primary xref, the objects it aligned to.
	PrimaryObjects map[int64]map[ObjectKey]bool

	// XrefSource maps xref id→source id for the whole species.
	XrefSource map[int64]int64

	// SourceNames maps source id→name.
	SourceNames map[int64]string

	// ExternalDB maps source id→external_db id in the target store. A
	// source with no entry filters its xrefs out of every output.
	ExternalDB map[int64]int64

	// MethodThresholds is keyed by alignment method name.
	MethodThresholds map[string]Thresholds

	// AnalysisIDs maps alignment kind ("dna"|"peptide") to the target
	// store's analysis id; missing entries emit 0.
	AnalysisIDs map[string]int64

	// Core-store lookups.
	StableIDs                   map[ObjectType]map[string]int64
	TranscriptToTranslation     map[int64]int64
	TranslationToTranscript     map[int64]int64
	TranscriptStableTranslation map[string]string
	GeneTranscripts             map[int64][]int64
	TranscriptLengths           map[int64]int

	xrefsWritten       map[int64]bool
	objectXrefsWritten map[objectXrefKey]bool
}

// NewContext creates an empty context with the id ranges seeded from the
// target store's current maxima. With an empty target both maxima are 0 and
// ids start at 1.
func NewContext(maxXrefID, maxObjectXrefID int64) *Context {
	return &Context{
		xrefOffset:         maxXrefID + 1,
		nextObjectXref:     maxObjectXrefID + 1,
		Mappings:           make(map[ObjectKey][]int64),
		Identities:         make(map[ObjectKey]map[int64]Identity),
		PrimaryObjects:     make(map[int64]map[ObjectKey]bool),
		XrefSource:         make(map[int64]int64),
		SourceNames:        make(map[int64]string),
		ExternalDB:         make(map[int64]int64),
		MethodThresholds:   make(map[string]Thresholds),
		AnalysisIDs:        make(map[string]int64),
		StableIDs:          make(map[ObjectType]map[string]int64),
		xrefsWritten:       make(map[int64]bool),
		objectXrefsWritten: make(map[objectXrefKey]bool),
	}
}

// ShiftXref maps a source-store xref id into the emitted id range.
func (c *Context) ShiftXref(id int64) int64 {
	return id + c.xrefOffset
}

// NextObjectXrefID allocates the next object_xref id. Single-writer: the
// pipeline stages run sequentially.
func (c *Context) NextObjectXrefID() int64 {
	id := c.nextObjectXref
	c.nextObjectXref++
	return id
}

// ExternalDBID resolves an xref's external_db id. ok is false when either
// the xref's source is unknown or the source has no external_db mapping;
// such xrefs are dropped from every output.
func (c *Context) ExternalDBID(xrefID int64) (int64, bool) {
	srcID, ok := c.XrefSource[xrefID]
	if !ok {
		return 0, false
	}
	dbID, ok := c.ExternalDB[srcID]
	return dbID, ok
}

// SourceName resolves an xref's source name. ok is false for xrefs whose
// source is unknown.
func (c *Context) SourceName(xrefID int64) (string, bool) {
	srcID, ok := c.XrefSource[xrefID]
	if !ok {
		return "", false
	}
	name, ok := c.SourceNames[srcID]
	return name, ok
}

// MarkXrefWritten records an xref emission; the return is false if the xref
// was already written, in which case the caller skips it.
func (c *Context) MarkXrefWritten(xrefID int64) bool {
	if c.xrefsWritten[xrefID] {
		return false
	}
	c.xrefsWritten[xrefID] = true
	return true
}

// XrefWritten reports whether the xref row was already emitted.
func (c *Context) XrefWritten(xrefID int64) bool {
	return c.xrefsWritten[xrefID]
}

// WrittenXrefIDs returns the emitted xref ids in ascending order.
func (c *Context) WrittenXrefIDs() []int64 {
	ids := make([]int64, 0, len(c.xrefsWritten))
	for id := range c.xrefsWritten {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarkObjectXrefWritten records an (object, xref) emission; false means the
// pair was already written.
func (c *Context) MarkObjectXrefWritten(obj ObjectKey, xrefID int64) bool {
	k := objectXrefKey{obj: obj, xref: xrefID}
	if c.objectXrefsWritten[k] {
		return false
	}
	c.objectXrefsWritten[k] = true
	return true
}

// AddMapping appends an xref to an object's pool.
func (c *Context) AddMapping(obj ObjectKey, xrefID int64) {
	c.Mappings[obj] = append(c.Mappings[obj], xrefID)
}

// SetIdentity records the identities of one (object, xref) edge.
func (c *Context) SetIdentity(obj ObjectKey, xrefID int64, id Identity) {
	m, ok := c.Identities[obj]
	if !ok {
		m = make(map[int64]Identity)
		c.Identities[obj] = m
	}
	m[xrefID] = id
}

// IdentityFor looks up the identities of one (object, xref) edge.
func (c *Context) IdentityFor(obj ObjectKey, xrefID int64) (Identity, bool) {
	m, ok := c.Identities[obj]
	if !ok {
		return Identity{}, false
	}
	id, ok := m[xrefID]
	return id, ok
}

// AddPrimaryObject records that a primary xref aligned to an object.
func (c *Context) AddPrimaryObject(xrefID int64, obj ObjectKey) {
	m, ok := c.PrimaryObjects[xrefID]
	if !ok {
		m = make(map[ObjectKey]bool)
		c.PrimaryObjects[xrefID] = m
	}
	m[obj] = true
}

// PrimaryXrefIDs returns the aligned primary xref ids in ascending order.
func (c *Context) PrimaryXrefIDs() []int64 {
	ids := make([]int64, 0, len(c.PrimaryObjects))
	for id := range c.PrimaryObjects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ObjectsOf returns the objects linked to a primary xref in a stable order.
func (c *Context) ObjectsOf(xrefID int64) []ObjectKey {
	objs := make([]ObjectKey, 0, len(c.PrimaryObjects[xrefID]))
	for obj := range c.PrimaryObjects[xrefID] {
		objs = append(objs, obj)
	}
	sort.Slice(objs, func(i, j int) bool {
		if objs[i].Type != objs[j].Type {
			return objs[i].Type < objs[j].Type
		}
		return objs[i].ID < objs[j].ID
	})
	return objs
}
