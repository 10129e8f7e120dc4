package phi

import (
	"fmt"
	"reflect"

	"mercator-hq/prognos/pkg/prediction"
)

// maxDepth bounds traversal of acyclic payloads. Every map, slice, pointer
// and interface hop counts as one level.
const maxDepth = 1024

// Guard scans request payloads for protected health information and rejects
// any payload that contains it.
//
// A Guard is immutable after construction and safe for concurrent use.
type Guard struct {
	tier      Tier
	values    []Detector
	keys      []Detector
	reporting []string
}

// NewGuard creates a guard that applies every detector whose tier is at or
// below tier. With no detectors, DefaultDetectors is used.
func NewGuard(tier Tier, detectors ...Detector) *Guard {
	if len(detectors) == 0 {
		detectors = DefaultDetectors()
	}

	g := &Guard{tier: tier}
	seen := make(map[string]bool)
	for _, d := range detectors {
		if d.Matcher == nil || d.Tier > tier {
			continue
		}
		if d.Keys {
			g.keys = append(g.keys, d)
		} else {
			g.values = append(g.values, d)
		}
		if !seen[d.Label] {
			seen[d.Label] = true
			g.reporting = append(g.reporting, d.Label)
		}
	}
	return g
}

// Tier returns the guard's privacy tier.
func (g *Guard) Tier() Tier {
	return g.tier
}

// Scan walks v and returns every distinct PHI label found, in detector
// order. Matched text is never returned. A payload nested beyond the
// traversal bound yields LabelDepthExceeded.
//
// Strings, maps with any key and value types, slices, arrays, pointers,
// exported struct fields and fmt.Stringer values are inspected.
func (g *Guard) Scan(v any) []string {
	s := &scan{guard: g, found: make(map[string]bool), visited: make(map[visit]bool)}
	s.walk(reflect.ValueOf(v), 0)

	var labels []string
	for _, label := range g.reporting {
		if s.found[label] {
			labels = append(labels, label)
		}
	}
	if s.tooDeep {
		labels = append(labels, LabelDepthExceeded)
	}
	return labels
}

// Check scans payload exhaustively and returns a *prediction.DataPrivacyError
// listing every label found, or nil when the payload is clean.
func (g *Guard) Check(payload map[string]any) error {
	labels := g.Scan(payload)
	if len(labels) == 0 {
		return nil
	}
	return &prediction.DataPrivacyError{
		PatternTypes: labels,
		Message:      fmt.Sprintf("request payload contains protected health information (privacy level %s)", g.tier),
	}
}

type scan struct {
	guard   *Guard
	found   map[string]bool
	visited map[visit]bool
	tooDeep bool
}

// visit identifies a container already walked. Slices sharing a backing
// array with a different length are distinct.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// seen records v and reports whether it was walked before.
func (s *scan) seen(v reflect.Value) bool {
	if v.IsNil() {
		return false
	}
	k := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		k.len = v.Len()
	}
	if s.visited[k] {
		return true
	}
	s.visited[k] = true
	return false
}

func (s *scan) value(str string) {
	for _, d := range s.guard.values {
		if !s.found[d.Label] && d.Matcher.Match(str) {
			s.found[d.Label] = true
		}
	}
}

func (s *scan) key(str string) {
	for _, d := range s.guard.keys {
		if !s.found[d.Label] && d.Matcher.Match(str) {
			s.found[d.Label] = true
		}
	}
}

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

func (s *scan) walk(v reflect.Value, depth int) {
	if !v.IsValid() || s.tooDeep {
		return
	}
	if depth > maxDepth {
		s.tooDeep = true
		return
	}

	// Stringers such as custom identifier types are scanned by their text.
	if v.Kind() != reflect.String && v.Type().Implements(stringerType) && v.CanInterface() {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			return
		}
		s.value(v.Interface().(fmt.Stringer).String())
		return
	}

	switch v.Kind() {
	case reflect.String:
		s.value(v.String())

	case reflect.Interface:
		if !v.IsNil() {
			s.walk(v.Elem(), depth+1)
		}

	case reflect.Pointer:
		if !v.IsNil() && !s.seen(v) {
			s.walk(v.Elem(), depth+1)
		}

	case reflect.Map:
		if s.seen(v) {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key()
			for k.Kind() == reflect.Interface && !k.IsNil() {
				k = k.Elem()
			}
			if k.Kind() == reflect.String {
				s.key(k.String())
			}
			s.walk(iter.Value(), depth+1)
		}

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			s.value(string(v.Bytes()))
			return
		}
		if v.Kind() == reflect.Slice && s.seen(v) {
			return
		}
		for i := 0; i < v.Len(); i++ {
			s.walk(v.Index(i), depth+1)
		}

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			s.key(t.Field(i).Name)
			s.walk(v.Field(i), depth+1)
		}
	}
}
