package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/knjiznica/internal/config"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/model"
)

// withLibrary opens the catalog for the duration of fn.
func withLibrary(cmd *cobra.Command, cfg *config.Config, fn func(lib *library.Manager) error) error {
	lib, database, err := openLibrary(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(lib)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid book id %q", model.ErrValidation, arg)
	}
	return id, nil
}

func newListCmd(cfg *config.Config) *cobra.Command {
	var query string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				entries := lib.Search(query)
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}
				return printEntries(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by catalog number, title, author or publisher")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printEntries(w io.Writer, entries []library.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATALOG\tTITLE\tAUTHOR\tPUBLISHER\tSTATUS\tBORROWER\tDUE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.CatalogNumber, e.Title, e.Author, e.Publisher, e.Status, e.BorrowerName, e.DueDate)
	}
	return tw.Flush()
}

func newAddCmd(cfg *config.Config) *cobra.Command {
	var b model.Book

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				created, err := lib.AddBook(cmd.Context(), b)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added book %d (%s).\n", created.ID, created.CatalogNumber)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&b.ID, "id", 0, "book id (default: next free id)")
	cmd.Flags().StringVarP(&b.CatalogNumber, "catalog-number", "c", "", "catalog number (required)")
	cmd.Flags().StringVarP(&b.Title, "title", "t", "", "title (required)")
	cmd.Flags().StringVar(&b.Author, "author", "", "author (required)")
	cmd.Flags().StringVar(&b.Publisher, "publisher", "", "publisher (required)")
	return cmd
}

func newLendCmd(cfg *config.Config) *cobra.Command {
	var req lending.Request

	cmd := &cobra.Command{
		Use:   "lend <id>",
		Short: "Lend a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				lent, err := lib.Lend(cmd.Context(), id, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Lent %q to %s until %s.\n", lent.Title, lent.BorrowerName, lent.DueDate)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.BorrowerName, "borrower", "b", "", "borrower name (required)")
	cmd.Flags().StringVar(&req.LoanDate, "loan-date", "", "loan date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&req.DueDate, "due", "", "due date YYYY-MM-DD (required)")
	return cmd
}

func newReturnCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "return <id>",
		Short: "Return a lent book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				returned, err := lib.Return(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%q is available.\n", returned.Title)
				return nil
			})
		},
	}
}

func newDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a book from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				if err := lib.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted book %d.\n", id)
				return nil
			})
		},
	}
}

func newStatsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, cfg, func(lib *library.Manager) error {
				s := lib.Stats()
				info, err := lib.Info(cmd.Context())
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Catalog: %s (created %s)\n", info.DatabaseName, info.CreatedAt)
				fmt.Fprintf(w, "Total: %d\nAvailable: %d\nOn loan: %d\nOverdue: %d\n",
					s.Total, s.Available, s.OnLoan, s.Overdue)
				if info.LastImportAt != "" {
					fmt.Fprintf(w, "Last import: %s from %s\n", info.LastImportAt, info.LastImportFile)
				}
				if info.LastExportAt != "" {
					fmt.Fprintf(w, "Last export: %s\n", info.LastExportAt)
				}
				return nil
			})
		},
	}
}
