package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jonathan/eligibility-intake/internal/types"
)

// DecodeResult is the outcome of decoding one stored group: either
// Decoded(group) or DecodeFailed(err).
type DecodeResult struct {
	Group types.Group
	OK    bool
	Err   error
}

// Decoded wraps a successfully decoded group.
func Decoded(g types.Group) DecodeResult {
	if g == nil {
		g = types.Group{}
	}
	return DecodeResult{Group: g, OK: true}
}

// DecodeFailed records why a group could not be decoded.
func DecodeFailed(err error) DecodeResult {
	return DecodeResult{Err: err}
}

// DecodeGroup decodes a stored group that is either a JSON object or a JSON
// string containing an encoded object. Empty and null values decode to an
// empty group.
func DecodeGroup(raw json.RawMessage) DecodeResult {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Decoded(nil)
	}

	switch trimmed[0] {
	case '{':
		var g types.Group
		if err := json.Unmarshal(trimmed, &g); err != nil {
			return DecodeFailed(fmt.Errorf("malformed group object: %w", err))
		}
		return Decoded(g)
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return DecodeFailed(fmt.Errorf("malformed group text: %w", err))
		}
		return decodeText(text)
	default:
		return DecodeFailed(fmt.Errorf("unexpected group encoding starting with %q", trimmed[0]))
	}
}

// decodeText handles groups stored as encoded text.
func decodeText(text string) DecodeResult {
	body := bytes.TrimSpace([]byte(text))
	if len(body) == 0 {
		return Decoded(nil)
	}
	var g types.Group
	if err := json.Unmarshal(body, &g); err != nil {
		return DecodeFailed(fmt.Errorf("group text is not an encoded object: %w", err))
	}
	return Decoded(g)
}
