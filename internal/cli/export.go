package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportOutput string

var caseExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Write a Markdown dossier of a case",
	Long: `Renders the case with its questionnaire, the subject's latest screening
and risk assessment, documents, comments and full history.`,
	Args: cobra.ExactArgs(1),
	RunE: runCaseExport,
}

func init() {
	caseExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	caseCmd.AddCommand(caseExportCmd)
}

func runCaseExport(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := parseID("case", args[0])
	if err != nil {
		return err
	}
	doc, err := a.dossier().Build(cmd.Context(), id)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		fmt.Print(doc)
		return nil
	}
	if err := os.WriteFile(exportOutput, []byte(doc), 0644); err != nil {
		return fmt.Errorf("write dossier: %w", err)
	}
	fmt.Printf("Wrote case #%d to %s\n", id, exportOutput)
	return nil
}
