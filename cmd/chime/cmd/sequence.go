package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	sequenceCmd = &cobra.Command{
		Use:   "sequence",
		Short: "Inspect sequence documents.",
	}

	sequenceListCmd = &cobra.Command{
		Use:   "list",
		Short: "List sequence names.",
		RunE: func(*cobra.Command, []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := a.Sequences.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Printf("no sequences in %s\n", a.Sequences.Dir())
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	sequenceShowCmd = &cobra.Command{
		Use:   "show <name>",
		Short: "Print a sequence document.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			seq, err := a.Sequences.Load(args[0])
			if err != nil {
				return err
			}
			out, err := seq.Encode()
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", out)
			return nil
		},
	}
)

func init() {
	sequenceCmd.AddCommand(sequenceListCmd, sequenceShowCmd)
	rootCmd.AddCommand(sequenceCmd)
}
