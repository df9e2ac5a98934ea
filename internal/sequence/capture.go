package sequence

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// MarshalCapture renders seq in the live capture format: a JSON array of
// {t, note, octave, d?} objects. d is omitted when the duration is unknown.
func MarshalCapture(seq Sequence) ([]byte, error) {
	if seq == nil {
		seq = Sequence{}
	}
	data, err := json.Marshal(seq)
	if err != nil {
		return nil, errors.Wrap(err, "marshal capture")
	}
	return data, nil
}

// ParseCapture reads the live capture format. Entries are stably sorted by
// offset so the result is a valid sequence even if the input was not.
func ParseCapture(data []byte) (Sequence, error) {
	var seq Sequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, errors.Wrap(err, "parse capture")
	}
	for i, n := range seq {
		if n.OffsetMs < 0 {
			return nil, errors.Errorf("parse capture: note %d has negative offset %v", i, n.OffsetMs)
		}
		if n.DurationMs < 0 {
			return nil, errors.Errorf("parse capture: note %d has negative duration %v", i, n.DurationMs)
		}
	}
	sort.SliceStable(seq, func(i, j int) bool { return seq[i].OffsetMs < seq[j].OffsetMs })
	return seq, nil
}
