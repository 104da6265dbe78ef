package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/erazemk/knjiznica/internal/codec"
	"github.com/erazemk/knjiznica/internal/config"
	"github.com/erazemk/knjiznica/internal/exchange"
	"github.com/erazemk/knjiznica/internal/library"
)

func newExportCmd(cfg *config.Config) *cobra.Command {
	var formatName, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := codec.ParseFormat(formatName)
			if err != nil {
				return err
			}
			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				f, err := lib.Export(cmd.Context(), format)
				if err != nil {
					return err
				}

				if out == "-" {
					_, err := cmd.OutOrStdout().Write(f.Data)
					return err
				}
				if out == "" {
					out = f.Name
				}
				if err := os.WriteFile(out, f.Data, 0644); err != nil {
					return fmt.Errorf("writing export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d books to %s.\n", f.Records, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", string(codec.FormatJSON), "export format: json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default: books-YYYY-MM-DD.<format>)`)
	return cmd
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the catalog with the contents of a JSON or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading import file: %w", err)
			}

			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				current := len(lib.View())
				confirm := func(candidates int) bool {
					if yes {
						return true
					}
					return promptReplace(cmd.OutOrStdout(), current, candidates, path)
				}

				result, err := lib.Import(cmd.Context(), path, data, confirm)
				if err != nil {
					return err
				}
				printImportResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "replace the catalog without asking")
	return cmd
}

// promptReplace asks for a single y/n keypress on an interactive terminal.
// Without a terminal the import is declined.
func promptReplace(w io.Writer, current, candidates int, path string) bool {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fmt.Fprintln(w, "Refusing to replace the catalog without confirmation; pass --yes.")
		return false
	}

	fmt.Fprintf(w, "This replaces all %d books with %d records from %s. Continue? [y/N] ", current, candidates, path)

	state, err := term.MakeRaw(fd)
	if err != nil {
		return false
	}
	key := make([]byte, 1)
	_, err = os.Stdin.Read(key)
	term.Restore(fd, state)
	fmt.Fprintln(w)

	return err == nil && (key[0] == 'y' || key[0] == 'Y')
}

func printImportResult(w io.Writer, result *exchange.Result) {
	fmt.Fprintf(w, "Imported %d of %d records (%d replaced).\n", result.Imported, result.Candidates, result.Replaced)
	for _, s := range result.Skipped {
		label := s.CatalogNumber
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "  skipped record %d (%s): %s\n", s.Index+1, label, s.Reason)
	}
}
