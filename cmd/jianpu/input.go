package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/jianpu/internal/catalog"
	"github.com/satindergrewal/jianpu/internal/notation"
	"github.com/satindergrewal/jianpu/internal/sequence"
)

// addInputFlags registers the ways a command can be given a sequence.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("text", "", "notation text instead of a file")
	f.String("token", "", "share token instead of notation")
	f.String("capture", "", "capture JSON file instead of notation")
	f.String("song", "", "song ID from the catalog instead of notation")
}

func newCatalog() *catalog.Catalog {
	var src catalog.Source
	if cfg.SongsURL != "" {
		src = catalog.NewHTTPSource(cfg.SongsURL)
	} else {
		src = catalog.NewDirSource(cfg.SongsDir)
	}
	return catalog.New(src, cfg.BaseOctave, cfg.Tempo)
}

// readNotation reads args[0], or stdin when it is "-" or absent, unless
// --text was given.
func readNotation(cmd *cobra.Command, args []string) (string, error) {
	if text, _ := cmd.Flags().GetString("text"); text != "" {
		return text, nil
	}
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(args[0])
	return string(data), errors.Wrap(err, "read notation")
}

// loadSequence resolves the command's input into a sequence, from a token,
// a capture file, a catalog song or notation text, in that order.
func loadSequence(ctx context.Context, cmd *cobra.Command, args []string) (sequence.Sequence, error) {
	f := cmd.Flags()
	if token, _ := f.GetString("token"); token != "" {
		seq, ok := sequence.Decode(token)
		if !ok {
			return nil, errors.New("invalid share token")
		}
		return seq, nil
	}
	if path, _ := f.GetString("capture"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read capture")
		}
		return sequence.ParseCapture(data)
	}
	if id, _ := f.GetString("song"); id != "" {
		song, err := newCatalog().Song(ctx, id)
		if err != nil {
			return nil, err
		}
		return notation.Compile(song.Notation, song.BaseOctave, song.Tempo), nil
	}
	text, err := readNotation(cmd, args)
	if err != nil {
		return nil, err
	}
	return notation.Compile(text, cfg.BaseOctave, cfg.Tempo), nil
}
