package phi

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"mercator-hq/prognos/pkg/prediction"
)

type patientRef string

func (p patientRef) String() string { return "ref " + string(p) }

type visitNote struct {
	Summary string
	secret  string
}

func TestGuard_CleanClinicalPayload(t *testing.T) {
	payload := map[string]any{
		"severity":    "severe",
		"symptoms":    []any{"insomnia", "anhedonia"},
		"phq9_score":  21,
		"medications": map[string]any{"sertraline": "100mg daily"},
		"notes":       "Patient reports worsening mood over 3 weeks.",
	}

	for _, tier := range []Tier{Standard, Enhanced, Maximum} {
		t.Run(tier.String(), func(t *testing.T) {
			if err := NewGuard(tier).Check(payload); err != nil {
				t.Errorf("expected clean payload to pass, got %v", err)
			}
		})
	}
}

func TestGuard_DetectsByTier(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		label  string
		lowest Tier
	}{
		{"ssn", "ssn 123-45-6789", LabelSSN, Standard},
		{"mrn", "MRN: 0012345", LabelMRN, Standard},
		{"email", "reach me at jane@example.com", LabelEmail, Standard},
		{"phone", "call (555) 123-4567", LabelPhone, Standard},
		{"name", "seen by Mrs. Jane Doe", LabelName, Enhanced},
		{"address", "lives at 42 Maple Street", LabelAddress, Enhanced},
		{"dob", "DOB: 04/12/1980", LabelDOB, Enhanced},
		{"zip", "postcode 94110", LabelZIP, Maximum},
	}

	for _, tt := range tests {
		for _, tier := range []Tier{Standard, Enhanced, Maximum} {
			t.Run(tt.name+"/"+tier.String(), func(t *testing.T) {
				labels := NewGuard(tier).Scan(map[string]any{"note": tt.value})
				found := false
				for _, l := range labels {
					if l == tt.label {
						found = true
					}
				}
				want := tier >= tt.lowest
				if found != want {
					t.Errorf("Scan(%q) at %s: found %s = %v, want %v (labels %v)",
						tt.value, tier, tt.label, found, want, labels)
				}
			})
		}
	}
}

func TestGuard_ExhaustiveAndOrdered(t *testing.T) {
	payload := map[string]any{
		"z": "phone 555-123-4567",
		"a": map[string]any{
			"deep": []any{"contact jane@example.com", "ssn 123-45-6789"},
		},
		"m": "another ssn 987-65-4321",
	}

	err := NewGuard(Standard).Check(payload)

	var privacyErr *prediction.DataPrivacyError
	if !errors.As(err, &privacyErr) {
		t.Fatalf("expected DataPrivacyError, got %v", err)
	}

	want := []string{LabelSSN, LabelEmail, LabelPhone}
	if !reflect.DeepEqual(privacyErr.PatternTypes, want) {
		t.Errorf("PatternTypes = %v, want %v", privacyErr.PatternTypes, want)
	}
}

func TestGuard_ErrorNeverCarriesMatchedText(t *testing.T) {
	err := NewGuard(Maximum).Check(map[string]any{
		"note": "SSN 123-45-6789, email jane@example.com",
	})
	if err == nil {
		t.Fatal("expected privacy error")
	}
	for _, leaked := range []string{"123-45-6789", "jane@example.com"} {
		if strings.Contains(err.Error(), leaked) {
			t.Errorf("error message leaked %q: %s", leaked, err.Error())
		}
	}
}

func TestGuard_KeyNamesAtMaximum(t *testing.T) {
	payload := map[string]any{"first_name": "x", "severity": "mild"}

	if labels := NewGuard(Enhanced).Scan(payload); len(labels) != 0 {
		t.Errorf("expected no findings below maximum tier, got %v", labels)
	}

	labels := NewGuard(Maximum).Scan(payload)
	if !reflect.DeepEqual(labels, []string{LabelKey}) {
		t.Errorf("expected [%s], got %v", LabelKey, labels)
	}
}

func TestGuard_TraversesArbitraryShapes(t *testing.T) {
	ssn := "123-45-6789"
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"string slice", map[string]any{"v": []string{"ok", ssn}}},
		{"array", map[string]any{"v": [2]string{"ok", ssn}}},
		{"pointer", map[string]any{"v": &ssn}},
		{"typed map", map[string]any{"v": map[int]string{1: ssn}}},
		{"any-keyed map", map[string]any{"v": map[any]any{"k": ssn}}},
		{"stringer", map[string]any{"v": patientRef(ssn)}},
		{"struct", map[string]any{"v": visitNote{Summary: ssn}}},
		{"bytes", map[string]any{"v": []byte(ssn)}},
	}

	guard := NewGuard(Standard)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.Check(tt.payload); err == nil {
				t.Error("expected SSN to be found")
			}
		})
	}
}

func TestGuard_SkipsUnexportedFieldsAndNils(t *testing.T) {
	var nilRef *patientRef
	payload := map[string]any{
		"note":  visitNote{Summary: "stable", secret: "123-45-6789"},
		"nil":   nil,
		"nilp":  nilRef,
		"empty": map[string]any{},
	}
	if err := NewGuard(Standard).Check(payload); err != nil {
		t.Errorf("expected no findings, got %v", err)
	}
}

func TestGuard_SelfReferenceTerminates(t *testing.T) {
	loop := map[string]any{}
	loop["self"] = loop
	loop["note"] = "fine"

	if err := NewGuard(Maximum).Check(loop); err != nil {
		t.Errorf("expected no findings, got %v", err)
	}
}

// nest wraps leaf in levels single-key maps.
func nest(levels int, leaf any) map[string]any {
	v := map[string]any{"n": leaf}
	for range levels - 1 {
		v = map[string]any{"n": v}
	}
	return v
}

func TestGuard_DeeplyNestedPHI(t *testing.T) {
	payload := nest(70, "123-45-6789")

	err := NewGuard(Maximum).Check(payload)
	var privacyErr *prediction.DataPrivacyError
	if !errors.As(err, &privacyErr) {
		t.Fatalf("expected DataPrivacyError, got %v", err)
	}
	if !reflect.DeepEqual(privacyErr.PatternTypes, []string{LabelSSN}) {
		t.Errorf("expected [SSN], got %v", privacyErr.PatternTypes)
	}
}

func TestGuard_DepthExceededFailsClosed(t *testing.T) {
	payload := nest(maxDepth, "fine")

	err := NewGuard(Standard).Check(payload)
	var privacyErr *prediction.DataPrivacyError
	if !errors.As(err, &privacyErr) {
		t.Fatalf("expected DataPrivacyError, got %v", err)
	}
	if !reflect.DeepEqual(privacyErr.PatternTypes, []string{LabelDepthExceeded}) {
		t.Errorf("expected [DEPTH_EXCEEDED], got %v", privacyErr.PatternTypes)
	}
}

func TestGuard_SharedValuesScanned(t *testing.T) {
	shared := []any{"ok"}
	payload := map[string]any{
		"a": shared,
		"b": shared,
		"c": shared[:0],
		"d": map[string]any{"notes": []any{"jane@example.com"}},
	}

	labels := NewGuard(Standard).Scan(payload)
	if !reflect.DeepEqual(labels, []string{LabelEmail}) {
		t.Errorf("expected [EMAIL], got %v", labels)
	}
}

func TestGuard_PointerCycleTerminates(t *testing.T) {
	type node struct {
		Text string
		Next *node
	}
	n := &node{Text: "123-45-6789"}
	n.Next = n

	labels := NewGuard(Standard).Scan(n)
	if !reflect.DeepEqual(labels, []string{LabelSSN}) {
		t.Errorf("expected [SSN], got %v", labels)
	}
}

func TestGuard_CustomDetectors(t *testing.T) {
	guard := NewGuard(Standard,
		Detector{Label: "PATIENT_REF", Tier: Standard, Matcher: MustRegexMatcher(`PT-\d{6}`)},
		Detector{Label: "DIAGNOSIS_KEY", Tier: Maximum, Matcher: NewKeywordMatcher("diagnosis"), Keys: true},
	)

	labels := guard.Scan(map[string]any{"diagnosis": "PT-123456", "ssn": "123-45-6789"})
	if !reflect.DeepEqual(labels, []string{"PATIENT_REF"}) {
		t.Errorf("expected only the custom standard detector, got %v", labels)
	}
}

func TestKeywordMatcher(t *testing.T) {
	m := NewKeywordMatcher("name", "zip")

	tests := map[string]bool{
		"name":         true,
		"First_Name":   true,
		"patient-name": true,
		"zip_code":     true,
		"zipper":       false,
		"severity":     false,
		"patient_id":   false,
	}
	for in, want := range tests {
		if got := m.Match(in); got != want {
			t.Errorf("Match(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseTier(t *testing.T) {
	tests := map[string]Tier{
		"standard": Standard,
		"Enhanced": Enhanced,
		"maximum":  Maximum,
		"":         Standard,
	}
	for in, want := range tests {
		got, err := ParseTier(in)
		if err != nil || got != want {
			t.Errorf("ParseTier(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseTier("paranoid"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestNewRegexMatcher_Invalid(t *testing.T) {
	if _, err := NewRegexMatcher("("); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
