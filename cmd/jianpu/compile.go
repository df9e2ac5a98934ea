package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/jianpu/internal/notation"
	"github.com/satindergrewal/jianpu/internal/sequence"
)

var compileCmd = &cobra.Command{
	Use:   "compile [file|-]",
	Short: "Compile notation into a capture JSON sequence",
	Long: `Compile reads numbered notation from a file, stdin, --text, --token,
--capture or --song and prints the timed sequence as capture JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := loadSequence(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}
		data, err := sequence.MarshalCapture(seq)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens [file|-]",
	Short: "Show how notation is tokenized",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readNotation(cmd, args)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WORD\tKIND\tDEGREE\tACC\tOCT\tDIV\tEXTEND\tTIE")
		for _, it := range notation.Tokenize(text) {
			if it.Kind != notation.KindNote && it.Kind != notation.KindRest {
				fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t\t\n", it.Text, it.Kind)
				continue
			}
			t := it.Token
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%+d\t%d\t%d\t%t\n",
				it.Text, it.Kind, t.Degree, t.Accidental, t.OctaveShift, t.Divisor, t.ExtendBeats, t.Tie)
		}
		return tw.Flush()
	},
}

func init() {
	addInputFlags(compileCmd)
	tokensCmd.Flags().String("text", "", "notation text instead of a file")
	rootCmd.AddCommand(compileCmd, tokensCmd)
}
