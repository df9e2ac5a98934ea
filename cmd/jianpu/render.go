package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/jianpu/internal/audio"
	"github.com/satindergrewal/jianpu/internal/piano"
)

var renderCmd = &cobra.Command{
	Use:   "render [file|-]",
	Short: "Render a sequence to a WAV file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		pcm, err := renderInput(cmd, args)
		if err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		if err := audio.WriteWAV(f, pcm); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "close output")
		}
		log.WithFields(log.Fields{
			"file":    out,
			"seconds": audio.SamplesToDuration(int64(len(pcm) / audio.Channels)).Seconds(),
		}).Info("rendered")
		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play [file|-]",
	Short: "Play a sequence on the local speaker",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pcm, err := renderInput(cmd, args)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return audio.Play(ctx, pcm)
	},
}

func renderInput(cmd *cobra.Command, args []string) ([]int16, error) {
	seq, err := loadSequence(cmd.Context(), cmd, args)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, errors.New("nothing to play")
	}
	log.WithFields(log.Fields{
		"notes":  len(seq),
		"spanMs": seq.SpanMs(),
	}).Debug("rendering")
	return piano.Render(seq, piano.RenderTail), nil
}

func init() {
	addInputFlags(renderCmd)
	renderCmd.Flags().StringP("output", "O", "out.wav", "WAV file to write")
	addInputFlags(playCmd)
	rootCmd.AddCommand(renderCmd, playCmd)
}

