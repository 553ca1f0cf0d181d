package sqlmapper

import (
	"reflect"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"sqlmapper/cache"
	"sqlmapper/model"
)

// Snapshot is a serializable view of everything a session has resolved. It
// lets callers review what a set of mapping documents linked into before
// wiring the descriptors to an executor.
type Snapshot struct {
	Statements      []StatementSummary `json:"statements" yaml:"statements"`
	ResultShapes    []ShapeSummary     `json:"resultShapes" yaml:"resultShapes"`
	ParameterShapes []ShapeSummary     `json:"parameterShapes" yaml:"parameterShapes"`
	Caches          []CacheSummary     `json:"caches" yaml:"caches"`
}

// StatementSummary describes one resolved statement.
type StatementSummary struct {
	ID            string   `json:"id" yaml:"id"`
	Resource      string   `json:"resource" yaml:"resource"`
	Command       string   `json:"command" yaml:"command"`
	SQL           string   `json:"sql" yaml:"sql"`
	ParameterType string   `json:"parameterType,omitempty" yaml:"parameterType,omitempty"`
	ResultShapes  []string `json:"resultShapes,omitempty" yaml:"resultShapes,omitempty"`
	UseCache      bool     `json:"useCache" yaml:"useCache"`
	FlushCache    bool     `json:"flushCache" yaml:"flushCache"`
	Vendor        string   `json:"vendor,omitempty" yaml:"vendor,omitempty"`
}

// ShapeSummary describes one resolved result or parameter shape.
type ShapeSummary struct {
	ID       string           `json:"id" yaml:"id"`
	Type     string           `json:"type,omitempty" yaml:"type,omitempty"`
	Bindings []BindingSummary `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// BindingSummary describes one property/column binding of a shape.
type BindingSummary struct {
	Property string `json:"property" yaml:"property"`
	Column   string `json:"column,omitempty" yaml:"column,omitempty"`
	Nested   string `json:"nested,omitempty" yaml:"nested,omitempty"`
}

// CacheSummary describes one namespace cache with its decorator chain, listed
// outermost first.
type CacheSummary struct {
	Namespace string   `json:"namespace" yaml:"namespace"`
	Chain     []string `json:"chain" yaml:"chain"`
}

// Snapshot builds a serializable view of the session's resolved state.
func (s *Session) Snapshot() *Snapshot {
	snap := &Snapshot{}

	for _, id := range s.reg.StatementIDs() {
		st, _ := s.reg.Statement(id)
		snap.Statements = append(snap.Statements, summarizeStatement(st))
	}

	for _, id := range s.reg.ResultShapeIDs() {
		sh, _ := s.reg.ResultShape(id)
		sum := ShapeSummary{ID: sh.ID}
		if sh.Type != nil {
			sum.Type = sh.Type.String()
		}
		for _, b := range sh.Bindings {
			nested := b.NestedShapeID
			if nested == "" {
				nested = b.NestedSelectID
			}
			sum.Bindings = append(sum.Bindings, BindingSummary{
				Property: b.Property,
				Column:   b.Column,
				Nested:   nested,
			})
		}
		snap.ResultShapes = append(snap.ResultShapes, sum)
	}

	for _, id := range s.reg.ParameterShapeIDs() {
		sh, _ := s.reg.ParameterShape(id)
		sum := ShapeSummary{ID: sh.ID}
		if sh.Type != nil {
			sum.Type = sh.Type.String()
		}
		for _, b := range sh.Bindings {
			sum.Bindings = append(sum.Bindings, BindingSummary{Property: b.Property})
		}
		snap.ParameterShapes = append(snap.ParameterShapes, sum)
	}

	for _, ns := range s.reg.CacheNamespaces() {
		c, _ := s.reg.Cache(ns)
		snap.Caches = append(snap.Caches, CacheSummary{
			Namespace: ns,
			Chain:     cacheChain(c),
		})
	}

	return snap
}

// SnapshotJSON serializes the session's resolved state as JSON.
func (s *Session) SnapshotJSON() ([]byte, error) {
	return json.MarshalIndent(s.Snapshot(), "", "  ")
}

// SnapshotYAML serializes the session's resolved state as YAML.
func (s *Session) SnapshotYAML() ([]byte, error) {
	return yaml.Marshal(s.Snapshot())
}

func summarizeStatement(st *model.StatementDescriptor) StatementSummary {
	sum := StatementSummary{
		ID:         st.ID,
		Resource:   st.Resource,
		Command:    st.Command.String(),
		UseCache:   st.UseCache,
		FlushCache: st.FlushCache,
		Vendor:     st.Vendor,
	}
	if st.Source != nil {
		sum.SQL = st.Source.SQL()
	}
	if st.ParameterShape != nil && st.ParameterShape.Type != nil {
		sum.ParameterType = st.ParameterShape.Type.String()
	}
	for _, rs := range st.ResultShapes {
		sum.ResultShapes = append(sum.ResultShapes, rs.ID)
	}
	return sum
}

// cacheChain names the decorators of a cache outermost first, ending with
// the base implementation.
func cacheChain(c cache.Cache) []string {
	var chain []string
	for c != nil {
		t := reflect.TypeOf(c)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		chain = append(chain, t.Name())

		dec, ok := c.(cache.Decorator)
		if !ok {
			break
		}
		c = dec.Inner()
	}
	return chain
}
