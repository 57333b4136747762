package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/practicalwork/library-server/internal/domain"
	"github.com/practicalwork/library-server/internal/search"
)

func (a *app) booksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage the catalogue",
	}
	cmd.AddCommand(
		a.booksCreateCommand(),
		a.booksListCommand(),
		a.booksShowCommand(),
		a.booksArchiveCommand(),
		a.booksSearchCommand(),
		a.booksReindexCommand(),
	)
	return cmd
}

func (a *app) booksCreateCommand() *cobra.Command {
	var (
		draft    domain.BookDraft
		category string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a book to the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if category != "" {
				c, err := domain.ParseBookCategory(category)
				if err != nil {
					return err
				}
				draft.Category = c
			}

			bookID, err := a.books.CreateBook(cmd.Context(), draft)
			if err != nil {
				return err
			}
			return a.print(map[string]string{"id": bookID}, func(w io.Writer) {
				fmt.Fprintln(w, bookID)
			})
		},
	}

	cmd.Flags().StringVar(&draft.Title, "title", "", "Book title")
	cmd.Flags().StringArrayVar(&draft.Authors, "author", nil, "Author name (repeatable)")
	cmd.Flags().IntVar(&draft.Year, "year", 0, "Publication year")
	cmd.Flags().StringVar(&draft.Description, "description", "", "Description (HTML is converted to markdown)")
	cmd.Flags().StringVar(&category, "category", "", "Default, Scientific, Educational or Fiction")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

func (a *app) booksListCommand() *cobra.Command {
	var (
		category, status string
		filter           domain.BookFilter
		page, pageSize   int
		available        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if category != "" {
				c, err := domain.ParseBookCategory(category)
				if err != nil {
					return err
				}
				filter.Category = &c
			}
			if status != "" {
				st, err := domain.ParseBookStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &st
			}

			var (
				books []*domain.Book
				err   error
			)
			if available {
				books, err = a.borrows.GetAvailableBooks(cmd.Context(), filter)
			} else {
				books, err = a.books.GetBooks(cmd.Context(), filter, page, pageSize)
			}
			if err != nil {
				return err
			}
			return a.printBooks(books)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only books in this category")
	cmd.Flags().StringVar(&status, "status", "", "Only books with this status")
	cmd.Flags().StringArrayVar(&filter.Authors, "author", nil, "Only books by this author (repeatable, all must match)")
	cmd.Flags().IntVar(&filter.Year, "year", 0, "Only books published this year")
	cmd.Flags().BoolVar(&filter.ExcludeArchived, "exclude-archived", false, "Hide archived books")
	cmd.Flags().BoolVar(&available, "available", false, "List every non-archived book (ignores paging)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Books per page (max 100)")
	return cmd
}

func (a *app) booksShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.books.GetBookDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(book, func(w io.Writer) {
				fmt.Fprintf(w, "ID:\t%s\n", book.ID)
				fmt.Fprintf(w, "Title:\t%s\n", book.Title)
				fmt.Fprintf(w, "Authors:\t%s\n", strings.Join(book.Authors, ", "))
				fmt.Fprintf(w, "Year:\t%d\n", book.Year)
				fmt.Fprintf(w, "Category:\t%s\n", book.Category)
				fmt.Fprintf(w, "Status:\t%s\n", book.Status)
				if book.CoverImagePath != nil {
					fmt.Fprintf(w, "Cover:\t%s\n", *book.CoverImagePath)
				}
				if book.Description != "" {
					fmt.Fprintf(w, "Description:\t%s\n", book.Description)
				}
			})
		},
	}
}

func (a *app) booksArchiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <book-id>",
		Short: "Withdraw a book from circulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.books.ArchiveBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(book, func(w io.Writer) {
				fmt.Fprintf(w, "Archived %s (%s)\n", book.ID, book.Title)
			})
		},
	}
}

func (a *app) booksSearchCommand() *cobra.Command {
	var (
		params   search.SearchParams
		category string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over titles, authors and descriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Query = args[0]
			if category != "" {
				c, err := domain.ParseBookCategory(category)
				if err != nil {
					return err
				}
				params.Category = &c
			}

			result, err := a.books.SearchBooks(cmd.Context(), params)
			if err != nil {
				return err
			}
			return a.print(result, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tTITLE\tAUTHORS\tSCORE")
				for _, hit := range result.Hits {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\n", hit.ID, hit.Title, hit.Authors, hit.Score)
				}
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only books in this category")
	cmd.Flags().BoolVar(&params.ExcludeArchived, "exclude-archived", false, "Hide archived books")
	cmd.Flags().IntVar(&params.Limit, "limit", 10, "Maximum hits (max 100)")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "Hits to skip")
	return cmd
}

func (a *app) booksReindexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, err := a.books.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(map[string]int{"indexed": count}, func(w io.Writer) {
				fmt.Fprintf(w, "Indexed %d books\n", count)
			})
		},
	}
}

func (a *app) printBooks(books []*domain.Book) error {
	return a.print(books, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tTITLE\tAUTHORS\tYEAR\tCATEGORY\tSTATUS")
		for _, b := range books {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				b.ID, b.Title, strings.Join(b.Authors, ", "), b.Year, b.Category, b.Status)
		}
	})
}
