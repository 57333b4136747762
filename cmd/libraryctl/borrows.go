package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/practicalwork/library-server/internal/domain"
)

func (a *app) borrowsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "borrows",
		Short: "Lend and take back books",
	}
	cmd.AddCommand(
		a.borrowsIssueCommand(),
		a.borrowsReturnCommand(),
		a.borrowsShowCommand(),
		a.borrowsLatestCommand(),
	)
	return cmd
}

func (a *app) borrowsIssueCommand() *cobra.Command {
	var bookID, readerID string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Lend an available book to an active reader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			borrowID, err := a.borrows.CreateBorrow(cmd.Context(), bookID, readerID)
			if err != nil {
				return err
			}
			return a.print(map[string]string{"id": borrowID}, func(w io.Writer) {
				fmt.Fprintln(w, borrowID)
			})
		},
	}

	cmd.Flags().StringVar(&bookID, "book", "", "Book ID")
	cmd.Flags().StringVar(&readerID, "reader", "", "Reader ID")
	_ = cmd.MarkFlagRequired("book")
	_ = cmd.MarkFlagRequired("reader")
	return cmd
}

func (a *app) borrowsReturnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "return <book-id>",
		Short: "Take back a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.borrows.ReturnBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(map[string]string{"book_id": args[0], "status": "returned"}, func(w io.Writer) {
				fmt.Fprintf(w, "Returned %s\n", args[0])
			})
		},
	}
}

func (a *app) borrowsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <borrow-id | reader full name>",
		Short: "Show a borrow by ID, or the latest borrow of a reader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			borrow, err := a.borrows.GetDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printBorrow(borrow)
		},
	}
}

func (a *app) borrowsLatestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <reader-id>",
		Short: "Show the most recent borrow of a reader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			borrow, err := a.borrows.GetByReader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printBorrow(borrow)
		},
	}
}

func (a *app) overdueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Overdue maintenance",
	}

	var asOf string
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Flag every issued borrow past its due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if asOf != "" {
				t, err := parseDate(asOf)
				if err != nil {
					return err
				}
				now = t
			}

			count, err := a.borrows.MarkOverdue(cmd.Context(), now)
			if err != nil {
				return err
			}
			return a.print(map[string]int{"marked": count}, func(w io.Writer) {
				fmt.Fprintf(w, "Marked %d borrows overdue\n", count)
			})
		},
	}
	sweep.Flags().StringVar(&asOf, "as-of", "", "Sweep as if it were this date (YYYY-MM-DD or RFC 3339)")

	cmd.AddCommand(sweep)
	return cmd
}

func (a *app) printBorrow(b *domain.Borrow) error {
	return a.print(b, func(w io.Writer) {
		fmt.Fprintf(w, "ID:\t%s\n", b.ID)
		fmt.Fprintf(w, "Book:\t%s\n", b.BookID)
		fmt.Fprintf(w, "Reader:\t%s\n", b.ReaderID)
		fmt.Fprintf(w, "Borrowed:\t%s\n", b.BorrowDate.Format(dateLayout))
		fmt.Fprintf(w, "Due:\t%s\n", b.DueDate.Format(dateLayout))
		if b.ReturnDate != nil {
			fmt.Fprintf(w, "Returned:\t%s\n", b.ReturnDate.Format(dateLayout))
		}
		fmt.Fprintf(w, "Status:\t%s\n", b.Status)
	})
}
