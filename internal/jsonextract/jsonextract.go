// Package jsonextract pulls structured payloads out of noisy free-text
// model output. The reasoning model cannot emit native tool calls, so the
// agent's entire trust boundary is here: prose, markdown fences, and
// half-broken fragments surround (at best) one well-formed JSON value.
package jsonextract

import (
	"encoding/json"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ErrNoJSONFound is returned when no substring of the input parses as a
// JSON value.
var ErrNoJSONFound = errors.New("no JSON found in text")

var fast = jsoniter.ConfigCompatibleWithStandardLibrary

// Largest scans text for every parseable JSON value and returns the raw
// bytes of the one whose re-encoded form is longest. The length heuristic
// favors the main structured payload over incidental fragments (ids,
// inline examples) that models scatter through their prose. Ties keep the
// earliest value.
func Largest(text string) (json.RawMessage, error) {
	var best json.RawMessage
	bestLen := -1

	pos := 0
	for {
		next := nextCandidate(text, pos)
		if next < 0 {
			break
		}

		value, consumed, err := decodeOne(text[next:])
		if err != nil {
			// Not a valid value at this position; resume one character on.
			pos = next + 1
			continue
		}

		encoded, err := fast.Marshal(value)
		if err == nil && len(encoded) > bestLen {
			bestLen = len(encoded)
			best = json.RawMessage(encoded)
		}
		pos = next + consumed
	}

	if best == nil {
		return nil, ErrNoJSONFound
	}
	return best, nil
}

// nextCandidate returns the index of the next '{' or '[' at or after pos,
// or -1 when neither occurs.
func nextCandidate(text string, pos int) int {
	if pos >= len(text) {
		return -1
	}
	idx := strings.IndexAny(text[pos:], "{[")
	if idx < 0 {
		return -1
	}
	return pos + idx
}

// decodeOne strictly parses a single JSON value from the start of s,
// reporting how many bytes it consumed. Content after the value is
// ignored.
func decodeOne(s string) (any, int, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, 0, err
	}
	return value, int(dec.InputOffset()), nil
}
