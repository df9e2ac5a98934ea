package main

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/jianpu/internal/sequence"
)

var exportCmd = &cobra.Command{
	Use:   "export [file|-]",
	Short: "Export a sequence as a Standard MIDI File",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		seq, err := loadSequence(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		w := bufio.NewWriter(f)
		if err := sequence.WriteMIDI(w, seq, cfg.Tempo); err != nil {
			f.Close()
			return err
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return errors.Wrap(err, "write output")
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "close output")
		}
		log.WithFields(log.Fields{"file": out, "notes": len(seq)}).Info("exported")
		return nil
	},
}

func init() {
	addInputFlags(exportCmd)
	exportCmd.Flags().StringP("output", "O", "out.mid", "MIDI file to write")
	rootCmd.AddCommand(exportCmd)
}
