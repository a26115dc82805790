package commands

import (
	"errors"
	"fmt"
	"os"
	"vhrscraper/internal/export"
	"vhrscraper/internal/extract"

	"github.com/spf13/cobra"
)

var (
	extractVin  *string
	extractText *string
	extractFull *bool
)

func init() {
	extractVin = extractCmd.Flags().String("vin", "", "The vin the page belongs to.")
	extractText = extractCmd.Flags().String("text", "", "A file with the visible text of the page, derived from the html when omitted.")
	extractFull = extractCmd.Flags().Bool("full", false, "Extract the detailed report.")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <page.html> --vin <vin>",
	Short: "Extracts a report from a saved report page without going online.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if *extractVin == "" {
			return errors.New("--vin is required")
		}
		markup, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var text []byte
		if *extractText != "" {
			text, err = os.ReadFile(*extractText)
			if err != nil {
				return err
			}
		}
		doc := extract.NewTextDocument(string(text), string(markup))
		if extract.RequiresLogin(doc) {
			return fmt.Errorf("%s is a login page, save the report page while signed in", args[0])
		}

		assembler := extract.NewAssembler(app.time, app.tel)
		var value any
		if *extractFull {
			value = assembler.AssembleFull(*extractVin, doc)
		} else {
			value = assembler.Assemble(*extractVin, doc)
		}
		return export.NewJSONWriter(cmd.OutOrStdout(), export.WithIndent("  ")).Write([]any{value})
	},
}
