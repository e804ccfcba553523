package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-library/internal/importer"
)

func bindFilters(cmd *cobra.Command, f *importer.Filters) {
	cmd.Flags().StringVar(&f.Title, "title", "", "Title contains")
	cmd.Flags().StringVar(&f.Author, "author", "", "Author name")
	cmd.Flags().StringVar(&f.ISBN, "isbn", "", "ISBN")
	cmd.Flags().IntVar(&f.Year, "year", 0, "First publish year")
	cmd.Flags().StringVar(&f.Subject, "subject", "", "Open Library subject (see 'import subjects')")
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Find books on Open Library and add them to the catalog",
	}
	cmd.AddCommand(newImportSearchCmd(), newImportAddCmd(), newImportSubjectsCmd())
	return cmd
}

func newImportSearchCmd() *cobra.Command {
	var f importer.Filters
	cmd := &cobra.Command{
		Use:   "search",
		Short: "List ranked Open Library candidates",
		Example: `  libraryctl import search --title dune
  libraryctl import search --author calvino --subject fiction`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cands, err := svc.Importer.Search(cmd.Context(), cliOwner, f)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cands)
			}
			if len(cands) == 0 {
				warn("no candidates")
				return nil
			}
			for i, c := range cands {
				mark := " "
				if c.Preferred {
					mark = color.GreenString("★")
				}
				author := importer.UnknownAuthor
				if len(c.AuthorName) > 0 {
					author = strings.Join(c.AuthorName, ", ")
				}
				fmt.Printf("%2d %s %-14s %s  %s",
					i+1, mark, color.CyanString(strings.TrimPrefix(c.Key, "/works/")), color.WhiteString(c.Title), author)
				if c.FirstPublishYear > 0 {
					fmt.Printf(" (%d)", c.FirstPublishYear)
				}
				fmt.Println()
			}
			return nil
		},
	}
	bindFilters(cmd, &f)
	return cmd
}

func newImportAddCmd() *cobra.Command {
	var f importer.Filters
	cmd := &cobra.Command{
		Use:   "add <work-key>",
		Short: "Search, then import the candidate with <work-key>",
		Long: `The candidate must appear in the ranked results of the given filters,
so pass the same filters used with 'import search'.`,
		Example: "  libraryctl import add OL893415W --title dune",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := svc.Importer.Search(cmd.Context(), cliOwner, f); err != nil {
				return err
			}
			it, err := svc.Importer.Import(cmd.Context(), cliOwner, args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(it)
			}
			ok("imported %q by %s as item %d", it.Title, it.Author, it.ID)
			return nil
		},
	}
	bindFilters(cmd, &f)
	return cmd
}

func newImportSubjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "subjects",
		Short:       "List the subject values accepted by --subject",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			subjects, err := importer.Subjects()
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(subjects)
			}
			for _, s := range subjects {
				fmt.Printf("%-32s %s\n", s.Value, s.Label)
			}
			return nil
		},
	}
}
