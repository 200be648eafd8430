// Package jsonx recovers JSON values embedded in free-form model output.
//
// Generated text frequently wraps JSON in prose or markdown fences, drops
// commas between adjacent objects, or leaves trailing commas. Extract is a
// best-effort cleaner for those specific slips, not a general-purpose
// grammar repairer.
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// snippetLimit caps how much offending text a ParseError carries.
const snippetLimit = 500

var (
	missingCommaRe  = regexp.MustCompile(`}\s*{`)
	trailingArrayRe = regexp.MustCompile(`,\s*]`)
	trailingObjRe   = regexp.MustCompile(`,\s*}`)
)

// ParseError reports that no valid JSON could be recovered even after
// repair. It carries the decode error from the unrepaired text and a
// truncated snippet of the text that failed.
type ParseError struct {
	Err     error
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonx: parse failed after repair: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Extract locates and returns the JSON value embedded in text. It strips
// markdown fences, trims surrounding prose by bracket matching, and if a
// strict parse fails applies two textual repairs (insert commas between
// adjacent objects, drop trailing commas) before giving up with a
// *ParseError.
func Extract(text string) ([]byte, error) {
	text = stripFences(text)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, eris.New("jsonx: no JSON content found in output")
	}
	text = text[start:]

	closer := "}"
	if text[0] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < 0 {
		return nil, eris.Errorf("jsonx: mismatched braces: no closing %q", closer)
	}
	text = text[:end+1]

	var probe any
	strictErr := json.Unmarshal([]byte(text), &probe)
	if strictErr == nil {
		return []byte(text), nil
	}

	repaired := missingCommaRe.ReplaceAllString(text, "}, {")
	repaired = trailingArrayRe.ReplaceAllString(repaired, "]")
	repaired = trailingObjRe.ReplaceAllString(repaired, "}")

	if json.Valid([]byte(repaired)) {
		return []byte(repaired), nil
	}

	// Report the error from the text as received, not from the repair
	// attempt.
	return nil, &ParseError{Err: strictErr, Snippet: truncate(text, snippetLimit)}
}

// ExtractInto extracts the embedded JSON and decodes it into v.
func ExtractInto(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ParseError{Err: err, Snippet: truncate(string(raw), snippetLimit)}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
