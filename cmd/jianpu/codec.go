package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/jianpu/internal/sequence"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [file|-]",
	Short: "Print the share token of a sequence",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := loadSequence(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), sequence.Encode(seq))
		return err
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Decode a share token into capture JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, ok := sequence.Decode(strings.TrimSpace(args[0]))
		if !ok {
			return errors.New("invalid share token")
		}
		data, err := sequence.MarshalCapture(seq)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	addInputFlags(encodeCmd)
	rootCmd.AddCommand(encodeCmd, decodeCmd)
}
