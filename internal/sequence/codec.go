package sequence

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/url"
	"strings"

	"github.com/satindergrewal/jianpu/internal/pitch"
)

const upperhex = "0123456789ABCDEF"

// Encode serializes seq into a share token: URL-safe base64 over the
// percent-escaped JSON array of [offsetMs, pitchClass, octave] triples.
// Durations are not carried.
func Encode(seq Sequence) string {
	triples := make([][3]any, len(seq))
	for i, n := range seq {
		triples[i] = [3]any{int64(math.Floor(n.OffsetMs + 0.5)), n.Pitch.String(), n.Octave}
	}
	// Marshal of ints, wire names and a fixed-size array cannot fail.
	data, _ := json.Marshal(triples)
	return base64.URLEncoding.EncodeToString([]byte(escapeComponent(data)))
}

// Decode parses a share token in either base64 alphabet, padded or not.
// ok is false when the token is not base64, not a valid escape sequence, not
// JSON, or any entry is not an [integer, pitch class, integer] triple. A
// valid token may decode to an empty sequence.
func Decode(token string) (Sequence, bool) {
	raw, ok := decodeBase64(strings.TrimSpace(token))
	if !ok {
		return nil, false
	}
	text, err := url.PathUnescape(string(raw))
	if err != nil {
		return nil, false
	}

	var entries []json.RawMessage
	if isNull([]byte(text)) || json.Unmarshal([]byte(text), &entries) != nil {
		return nil, false
	}

	seq := make(Sequence, 0, len(entries))
	for _, e := range entries {
		n, ok := decodeTriple(e)
		if !ok {
			return nil, false
		}
		seq = append(seq, n)
	}
	return seq, true
}

func decodeTriple(raw json.RawMessage) (Note, bool) {
	var parts []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &parts) != nil || len(parts) != 3 {
		return Note{}, false
	}
	for _, p := range parts {
		if isNull(p) {
			return Note{}, false
		}
	}

	var offset float64
	var name string
	var octave float64
	if json.Unmarshal(parts[0], &offset) != nil ||
		json.Unmarshal(parts[1], &name) != nil ||
		json.Unmarshal(parts[2], &octave) != nil {
		return Note{}, false
	}
	if offset < 0 || octave != math.Trunc(octave) {
		return Note{}, false
	}
	c, ok := pitch.ParseClass(name)
	if !ok {
		return Note{}, false
	}
	return Note{OffsetMs: offset, Pitch: c, Octave: int(octave)}, true
}

// isNull reports whether raw is the JSON literal null, which Unmarshal
// accepts for any target and leaves the zero value.
func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeBase64(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}

// escapeComponent percent-escapes every byte outside the URI component
// unreserved set A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func escapeComponent(b []byte) string {
	var buf bytes.Buffer
	buf.Grow(len(b) * 3)
	for _, c := range b {
		if unreserved(c) {
			buf.WriteByte(c)
			continue
		}
		buf.WriteByte('%')
		buf.WriteByte(upperhex[c>>4])
		buf.WriteByte(upperhex[c&15])
	}
	return buf.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
