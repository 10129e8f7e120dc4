// Package phi detects protected health information in prediction request
// payloads.
//
// A Guard holds an ordered list of Detectors, each a label plus a Matcher,
// filtered by privacy Tier. Check walks a payload of arbitrary shape, collects
// every distinct label before failing, and returns a
// *prediction.DataPrivacyError that names the labels but never the matched
// text. Detection is unconditional: there is no allowlist for test data.
//
//	guard := phi.NewGuard(phi.Enhanced)
//	if err := guard.Check(map[string]any{"note": "call 555-123-4567"}); err != nil {
//	    // err lists ["PHONE"]
//	}
//
// Detectors are plain values, so a deployment can replace the regular
// expressions with a lexicon or model-based Matcher without touching the
// traversal.
package phi
