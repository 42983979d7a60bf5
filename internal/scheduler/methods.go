// Package scheduler submits alignment jobs to a batch scheduler and blocks
// until every job has ended.
package scheduler

import (
	"strconv"
)

// Method is one alignment strategy: a pair of identity thresholds plus the
// command line that runs it.
type Method struct {
	Name string

	// Keep a mapping when either side clears its threshold (percent).
	QueryThreshold  int
	TargetThreshold int

	// Command builds the argv aligning query against target. The job's
	// stdout is the map file.
	Command func(query, target string) []string
}

// Registry resolves method names from the rule table to handlers.
type Registry struct {
	methods map[string]Method
}

// NewRegistry creates a registry preloaded with the default exonerate
// methods.
func NewRegistry() *Registry {
	r := &Registry{methods: make(map[string]Method)}
	r.Register(Method{
		Name:            "ExonerateGappedBest1",
		QueryThreshold:  90,
		TargetThreshold: 90,
		Command:         exonerateArgs(1),
	})
	r.Register(Method{
		Name:            "ExonerateGappedBest5",
		QueryThreshold:  50,
		TargetThreshold: 50,
		Command:         exonerateArgs(5),
	})
	return r
}

// Register adds or replaces a method handler.
func (r *Registry) Register(m Method) {
	r.methods[m.Name] = m
}

// Lookup resolves a method by name.
func (r *Registry) Lookup(name string) (Method, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// exonerateArgs builds the shared exonerate invocation. The ryo format
// prints the colon-separated record the map parser consumes.
func exonerateArgs(bestN int) func(query, target string) []string {
	return func(query, target string) []string {
		return []string{
			"exonerate",
			"--showalignment", "false",
			"--showvulgar", "false",
			"--bestn", strconv.Itoa(bestN),
			"--ryo", `xref:%qi:%ti:%ei:%ql:%tl:%qab:%qae:%tab:%tae:%C:%s\n`,
			"--query", query,
			"--target", target,
		}
	}
}
