package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/practicalwork/library-server/internal/domain"
	domainerrors "github.com/practicalwork/library-server/internal/errors"
)

// dateLayout is accepted alongside RFC 3339 wherever the CLI takes a date.
const dateLayout = "2006-01-02"

func (a *app) readersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readers",
		Short: "Manage library cards",
	}
	cmd.AddCommand(
		a.readersCreateCommand(),
		a.readersShowCommand(),
		a.readersLookupCommand(),
		a.readersExtendCommand(),
		a.readersCloseCommand(),
		a.readersBooksCommand(),
	)
	return cmd
}

func (a *app) readersCreateCommand() *cobra.Command {
	var draft domain.ReaderDraft

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a library card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			readerID, err := a.readers.CreateReader(cmd.Context(), draft)
			if err != nil {
				return err
			}
			return a.print(map[string]string{"id": readerID}, func(w io.Writer) {
				fmt.Fprintln(w, readerID)
			})
		},
	}

	cmd.Flags().StringVar(&draft.FullName, "name", "", "Reader full name")
	cmd.Flags().StringVar(&draft.PhoneNumber, "phone", "", "Reader phone number")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func (a *app) readersShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <reader-id>",
		Short: "Show a reader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := a.readers.GetReader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printReader(reader)
		},
	}
}

func (a *app) readersLookupCommand() *cobra.Command {
	var phone, name string

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Find a reader ID by phone number or full name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				readerID string
				err      error
			)
			if phone != "" {
				readerID, err = a.readers.FindReaderIDByPhone(cmd.Context(), phone)
			} else {
				readerID, err = a.readers.FindReaderIDByName(cmd.Context(), name)
			}
			if err != nil {
				return err
			}
			return a.print(map[string]string{"id": readerID}, func(w io.Writer) {
				fmt.Fprintln(w, readerID)
			})
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Phone number in any common format")
	cmd.Flags().StringVar(&name, "name", "", "Exact full name")
	cmd.MarkFlagsOneRequired("phone", "name")
	cmd.MarkFlagsMutuallyExclusive("phone", "name")
	return cmd
}

func (a *app) readersExtendCommand() *cobra.Command {
	var until string

	cmd := &cobra.Command{
		Use:   "extend <reader-id>",
		Short: "Move the card expiry date forward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expiry, err := parseDate(until)
			if err != nil {
				return err
			}
			if err := a.readers.ExtendReader(cmd.Context(), args[0], expiry); err != nil {
				return err
			}
			reader, err := a.readers.GetReader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printReader(reader)
		},
	}

	cmd.Flags().StringVar(&until, "until", "", "New expiry date (YYYY-MM-DD or RFC 3339)")
	_ = cmd.MarkFlagRequired("until")
	return cmd
}

func (a *app) readersCloseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close <reader-id>",
		Short: "Close a library card",
		Long:  "Closes a card. Fails while the reader still has books out.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.readers.CloseReader(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(map[string]string{"id": args[0], "status": "closed"}, func(w io.Writer) {
				fmt.Fprintf(w, "Closed %s\n", args[0])
			})
		},
	}
}

func (a *app) readersBooksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "books <reader-id>",
		Short: "List the books a reader has out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.readers.GetBooksForReader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printBooks(books)
		},
	}
}

func (a *app) printReader(r *domain.Reader) error {
	return a.print(r, func(w io.Writer) {
		fmt.Fprintf(w, "ID:\t%s\n", r.ID)
		fmt.Fprintf(w, "Name:\t%s\n", r.FullName)
		fmt.Fprintf(w, "Phone:\t%s\n", r.PhoneNumber)
		fmt.Fprintf(w, "Expires:\t%s\n", r.ExpiryDate.Format(dateLayout))
		fmt.Fprintf(w, "Active:\t%t\n", r.IsActive)
	})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domainerrors.InvalidInputf("invalid date %q", s)
	}
	return t, nil
}
