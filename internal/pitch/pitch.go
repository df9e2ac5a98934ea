// Package pitch maps scale degrees to pitch classes, octaves and frequencies.
package pitch

import (
	"fmt"
	"math"
	"strings"
)

// Class is one of the twelve equal-tempered pitch classes, C = 0 through B = 11.
type Class int

const (
	C Class = iota
	Cs
	D
	Ds
	E
	F
	Fs
	G
	Gs
	A
	As
	B
)

// Wire names, as they appear in share tokens and capture data.
var names = [12]string{"C", "Cs", "D", "Ds", "E", "F", "Fs", "G", "Gs", "A", "As", "B"}

// Semitones above the tonic for degrees 1..7 of the major scale.
var degreeSemitones = [8]int{0, 0, 2, 4, 5, 7, 9, 11}

const (
	// ReferenceHz is the tuning of A4.
	ReferenceHz = 440.0
	// ReferenceOctave is the octave number A4 lives in.
	ReferenceOctave = 4
)

func (c Class) String() string {
	if c < 0 || c > B {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return names[c]
}

// Valid reports whether c is one of the twelve classes.
func (c Class) Valid() bool {
	return c >= C && c <= B
}

// MarshalText encodes the class by its wire name.
func (c Class) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid pitch class %d", int(c))
	}
	return []byte(names[c]), nil
}

// UnmarshalText accepts any name ParseClass accepts.
func (c *Class) UnmarshalText(b []byte) error {
	pc, ok := ParseClass(string(b))
	if !ok {
		return fmt.Errorf("unknown pitch class %q", string(b))
	}
	*c = pc
	return nil
}

// ParseClass resolves a wire name ("Cs") or a conventional spelling ("C#", "Db").
func ParseClass(name string) (Class, bool) {
	for i, n := range names {
		if n == name {
			return Class(i), true
		}
	}
	if name == "" {
		return 0, false
	}

	letter := strings.ToUpper(name[:1])
	base := -1
	for i, n := range names {
		if n == letter {
			base = i
			break
		}
	}
	if base < 0 {
		return 0, false
	}
	switch name[1:] {
	case "":
		return Class(base), true
	case "#", "♯", "s":
		return Class(mod12(base + 1)), true
	case "b", "♭":
		return Class(mod12(base - 1)), true
	}
	return 0, false
}

// Resolve turns a scale degree (1..7) with an accidental (-1, 0, +1) and an
// octave shift into a concrete pitch class and octave relative to baseOctave.
// Accidentals may cross octave boundaries: degree 1 flat lands on B of the
// octave below. Degree 0 is a rest and must never be resolved.
func Resolve(degree, accidental, octaveShift, baseOctave int) (Class, int) {
	if degree < 1 || degree > 7 {
		panic(fmt.Sprintf("pitch: degree %d out of range", degree))
	}
	abs := (baseOctave+octaveShift)*12 + degreeSemitones[degree] + accidental
	return Class(mod12(abs)), floorDiv(abs, 12)
}

// Frequency returns the equal-tempered frequency of class c in octave, with A4 at 440 Hz.
func Frequency(c Class, octave int) float64 {
	semis := int(c-A) + (octave-ReferenceOctave)*12
	return ReferenceHz * math.Pow(2, float64(semis)/12)
}

// MIDINote returns the MIDI key number, with C4 = 60.
func MIDINote(c Class, octave int) int {
	return (octave+1)*12 + int(c)
}

// FromMIDI is the inverse of MIDINote.
func FromMIDI(key int) (Class, int) {
	return Class(mod12(key)), floorDiv(key, 12) - 1
}

func mod12(n int) int {
	return ((n % 12) + 12) % 12
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
