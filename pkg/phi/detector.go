package phi

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Tier is a privacy level. Tiers are cumulative: a guard at a given tier
// applies every detector of that tier and of the tiers below it.
type Tier int

const (
	// Standard detects direct identifiers: SSN, MRN, email and phone.
	Standard Tier = iota + 1

	// Enhanced adds names, street addresses and dates of birth.
	Enhanced

	// Maximum adds ZIP codes and PHI-suggestive key names.
	Maximum
)

// String returns the configuration name of the tier.
func (t Tier) String() string {
	switch t {
	case Standard:
		return "standard"
	case Enhanced:
		return "enhanced"
	case Maximum:
		return "maximum"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a privacy level name into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "":
		return Standard, nil
	case "enhanced":
		return Enhanced, nil
	case "maximum":
		return Maximum, nil
	default:
		return 0, fmt.Errorf("unknown privacy level %q: must be standard, enhanced or maximum", s)
	}
}

// Matcher decides whether a string contains PHI.
type Matcher interface {
	Match(s string) bool
}

// Detector pairs a PHI label with a matcher.
type Detector struct {
	// Label is reported in DataPrivacyError.PatternTypes (e.g., "SSN")
	Label string

	// Tier is the lowest privacy tier that applies this detector
	Tier Tier

	// Matcher performs the detection
	Matcher Matcher

	// Keys makes the detector inspect map keys and struct field names
	// instead of string values
	Keys bool
}

// RegexMatcher matches strings against a regular expression.
type RegexMatcher struct {
	re *regexp.Regexp
}

// NewRegexMatcher compiles pattern into a RegexMatcher.
func NewRegexMatcher(pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid PHI pattern %q: %w", pattern, err)
	}
	return &RegexMatcher{re: re}, nil
}

// MustRegexMatcher is like NewRegexMatcher but panics on an invalid pattern.
func MustRegexMatcher(pattern string) *RegexMatcher {
	m, err := NewRegexMatcher(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Match implements Matcher.
func (m *RegexMatcher) Match(s string) bool {
	return m.re.MatchString(s)
}

// KeywordMatcher matches strings containing any of a set of tokens. Input is
// lower-cased and split on every non-alphanumeric rune, so "First_Name" and
// "patient-name" both contain the token "name".
type KeywordMatcher struct {
	keywords map[string]bool
}

// NewKeywordMatcher creates a matcher for the given tokens.
func NewKeywordMatcher(keywords ...string) *KeywordMatcher {
	m := &KeywordMatcher{keywords: make(map[string]bool, len(keywords))}
	for _, k := range keywords {
		m.keywords[strings.ToLower(k)] = true
	}
	return m
}

// Match implements Matcher.
func (m *KeywordMatcher) Match(s string) bool {
	lower := strings.ToLower(s)
	if m.keywords[lower] {
		return true
	}
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if m.keywords[tok] {
			return true
		}
	}
	return false
}

// PHI labels reported by the default detectors.
const (
	LabelSSN     = "SSN"
	LabelMRN     = "MRN"
	LabelName    = "NAME"
	LabelEmail   = "EMAIL"
	LabelPhone   = "PHONE"
	LabelAddress = "ADDRESS"
	LabelZIP     = "ZIP"
	LabelDOB     = "DOB"
	LabelKey     = "PHI_KEY"
)

// LabelDepthExceeded is reported when a payload nests deeper than the guard
// traverses. Such payloads are rejected unscanned.
const LabelDepthExceeded = "DEPTH_EXCEEDED"

// DefaultDetectors returns the built-in detectors in reporting order.
func DefaultDetectors() []Detector {
	return []Detector{
		{
			Label:   LabelSSN,
			Tier:    Standard,
			Matcher: MustRegexMatcher(`\b\d{3}[- ]\d{2}[- ]\d{4}\b`),
		},
		{
			Label:   LabelMRN,
			Tier:    Standard,
			Matcher: MustRegexMatcher(`(?i)\b(?:MRN|medical record(?: number)?)[:#\s-]*\d{5,10}\b`),
		},
		{
			Label:   LabelName,
			Tier:    Enhanced,
			Matcher: MustRegexMatcher(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`),
		},
		{
			Label:   LabelEmail,
			Tier:    Standard,
			Matcher: MustRegexMatcher(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		},
		{
			Label:   LabelPhone,
			Tier:    Standard,
			Matcher: MustRegexMatcher(`(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
		},
		{
			Label: LabelAddress,
			Tier:  Enhanced,
			Matcher: MustRegexMatcher(
				`\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl)\b`),
		},
		{
			Label:   LabelZIP,
			Tier:    Maximum,
			Matcher: MustRegexMatcher(`\b\d{5}(?:-\d{4})?\b`),
		},
		{
			Label:   LabelDOB,
			Tier:    Enhanced,
			Matcher: MustRegexMatcher(`(?i)\b(?:DOB|D\.O\.B\.?|date of birth|birth ?date|born(?: on)?)[:\s]*\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}\b`),
		},
		{
			Label: LabelKey,
			Tier:  Maximum,
			Matcher: NewKeywordMatcher(
				"name", "first_name", "last_name", "ssn", "social_security",
				"dob", "birth", "address", "street", "email", "phone",
				"mrn", "zip", "postal",
			),
			Keys: true,
		},
	}
}
