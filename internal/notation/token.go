// Package notation compiles numbered musical notation (jianpu) text into a
// timed note sequence.
//
// A note token is a scale degree 1-7 (0 is a rest), then optionally an
// accidental (# ♯ b ♭), any mix of octave marks ('.' up, ',' down), zero to
// two underscores (half and quarter beat), any number of '-' each adding a
// beat, and a trailing '~' tying into the next note. Standalone '|' or '/'
// align to the next beat and a standalone '-' holds for one beat.
package notation

import (
	"strings"
	"unicode/utf8"
)

// Token is one parsed note or rest.
type Token struct {
	Degree      int // 0 is a rest
	Accidental  int // -1, 0, +1
	OctaveShift int
	Divisor     int // 1, 2 or 4
	ExtendBeats int
	Tie         bool
}

// IsRest reports whether the token is a rest.
func (t Token) IsRest() bool {
	return t.Degree == 0
}

// DurationMs is the token's own length at the given beat length.
func (t Token) DurationMs(beatMs float64) float64 {
	return beatMs/float64(t.Divisor) + float64(t.ExtendBeats)*beatMs
}

// Kind classifies a whitespace-separated word.
type Kind int

const (
	KindMalformed Kind = iota
	KindNote
	KindRest
	KindBar
	KindHold
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindRest:
		return "rest"
	case KindBar:
		return "bar"
	case KindHold:
		return "hold"
	default:
		return "malformed"
	}
}

// Item is a classified word of notation text.
type Item struct {
	Text  string
	Kind  Kind
	Token Token // set for KindNote and KindRest
}

// Tokenize splits text on whitespace and classifies every word.
func Tokenize(text string) []Item {
	words := strings.Fields(text)
	items := make([]Item, 0, len(words))
	for _, w := range words {
		items = append(items, classify(w))
	}
	return items
}

func classify(word string) Item {
	switch word {
	case "|", "/":
		return Item{Text: word, Kind: KindBar}
	case "-":
		return Item{Text: word, Kind: KindHold}
	}
	tok, ok := Parse(word)
	if !ok {
		return Item{Text: word, Kind: KindMalformed}
	}
	kind := KindNote
	if tok.IsRest() {
		kind = KindRest
	}
	return Item{Text: word, Kind: kind, Token: tok}
}

// Parse reads a single note or rest word. ok is false if the word does not
// match the note grammar in full.
func Parse(word string) (Token, bool) {
	s := scanner{src: word}

	d := s.peek()
	if d < '0' || d > '7' {
		return Token{}, false
	}
	s.next()
	tok := Token{Degree: int(d - '0'), Divisor: 1}

	switch s.peek() {
	case '#', '♯':
		tok.Accidental = 1
		s.next()
	case 'b', '♭':
		tok.Accidental = -1
		s.next()
	}

	for {
		switch s.peek() {
		case '.':
			tok.OctaveShift++
			s.next()
			continue
		case ',':
			tok.OctaveShift--
			s.next()
			continue
		}
		break
	}

	underscores := 0
	for s.peek() == '_' {
		underscores++
		s.next()
	}
	switch underscores {
	case 0:
	case 1:
		tok.Divisor = 2
	case 2:
		tok.Divisor = 4
	default:
		return Token{}, false
	}

	for s.peek() == '-' {
		tok.ExtendBeats++
		s.next()
	}

	if s.peek() == '~' {
		tok.Tie = true
		s.next()
	}

	if !s.done() {
		return Token{}, false
	}
	return tok, true
}

const eof = -1

type scanner struct {
	src string
	pos int
}

func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.pos:])
	return r
}

func (s *scanner) next() {
	_, w := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += w
}

func (s *scanner) done() bool {
	return s.pos >= len(s.src)
}
