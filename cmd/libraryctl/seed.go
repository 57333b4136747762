package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/practicalwork/library-server/internal/domain"
)

var seedBooks = []domain.BookDraft{
	{Title: "Dune", Authors: []string{"Frank Herbert"}, Year: 1965, Category: domain.CategoryFiction},
	{Title: "The Left Hand of Darkness", Authors: []string{"Ursula K. Le Guin"}, Year: 1969, Category: domain.CategoryFiction},
	{Title: "Emma", Authors: []string{"Jane Austen"}, Year: 1815, Category: domain.CategoryFiction},
	{Title: "Cosmos", Authors: []string{"Carl Sagan"}, Year: 1980, Category: domain.CategoryScientific},
	{Title: "The Selfish Gene", Authors: []string{"Richard Dawkins"}, Year: 1976, Category: domain.CategoryScientific},
	{Title: "Structure and Interpretation of Computer Programs", Authors: []string{"Harold Abelson", "Gerald Jay Sussman"}, Year: 1985, Category: domain.CategoryEducational},
	{Title: "The Elements of Style", Authors: []string{"William Strunk Jr.", "E. B. White"}, Year: 1959, Category: domain.CategoryEducational},
	{Title: "A Pattern Language", Authors: []string{"Christopher Alexander"}, Year: 1977},
}

var seedReaders = []domain.ReaderDraft{
	{FullName: "Ada Lovelace", PhoneNumber: "+44 20 7946 0001"},
	{FullName: "Grace Hopper", PhoneNumber: "+1 202 555 0102"},
	{FullName: "Alan Turing", PhoneNumber: "+44 20 7946 0003"},
	{FullName: "Katherine Johnson", PhoneNumber: "+1 202 555 0104"},
}

type seedSummary struct {
	Books   []string `json:"books"`
	Readers []string `json:"readers"`
	Borrows []string `json:"borrows"`
}

func (a *app) seedCommand() *cobra.Command {
	var (
		lend int
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty library with sample books, readers and borrows",
		Long:  "Creates a small sample catalogue and a few readers, then lends random books.\nReaders whose phone number is already registered are skipped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var summary seedSummary

			for _, draft := range seedBooks {
				bookID, err := a.books.CreateBook(ctx, draft)
				if err != nil {
					return fmt.Errorf("create book %q: %w", draft.Title, err)
				}
				summary.Books = append(summary.Books, bookID)
			}

			for _, draft := range seedReaders {
				readerID, err := a.readers.CreateReader(ctx, draft)
				if err != nil {
					fmt.Fprintf(a.errOut, "skipping reader %s: %v\n", draft.FullName, err)
					continue
				}
				summary.Readers = append(summary.Readers, readerID)
			}

			if len(summary.Readers) > 0 {
				rng := rand.New(rand.NewPCG(seed, seed))
				books := append([]string(nil), summary.Books...)
				rng.Shuffle(len(books), func(i, j int) {
					books[i], books[j] = books[j], books[i]
				})

				for _, bookID := range books[:min(lend, len(books))] {
					readerID := summary.Readers[rng.IntN(len(summary.Readers))]
					borrowID, err := a.borrows.CreateBorrow(ctx, bookID, readerID)
					if err != nil {
						fmt.Fprintf(a.errOut, "skipping borrow of %s: %v\n", bookID, err)
						continue
					}
					summary.Borrows = append(summary.Borrows, borrowID)
				}
			}

			return a.print(summary, func(w io.Writer) {
				fmt.Fprintf(w, "Books:\t%d\n", len(summary.Books))
				fmt.Fprintf(w, "Readers:\t%d\n", len(summary.Readers))
				fmt.Fprintf(w, "Borrows:\t%d\n", len(summary.Borrows))
			})
		},
	}

	cmd.Flags().IntVar(&lend, "lend", 3, "Number of books to lend")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed for choosing borrows")
	return cmd
}
