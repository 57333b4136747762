package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/di"
	"github.com/practicalwork/library-server/internal/logger"
	"github.com/practicalwork/library-server/internal/service"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// app holds the state shared by every subcommand once the container is up.
type app struct {
	out    io.Writer
	errOut io.Writer

	dataPath     string
	envFile      string
	logLevel     string
	cacheBackend string
	asJSON       bool

	injector *do.RootScope
	books    *service.BookService
	readers  *service.ReaderService
	borrows  *service.BorrowService
}

// run executes libraryctl with args and releases the container afterwards.
func run(args []string, stdout, stderr io.Writer) error {
	a := &app{out: stdout, errOut: stderr}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "libraryctl",
		Short:        "Manage the library catalogue, readers and borrows",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.open()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dataPath, "data-path", "", "Base path for database, objects and indexes")
	flags.StringVar(&a.envFile, "env-file", ".env", "Path to .env file")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.cacheBackend, "cache-backend", "", "Cache backend: memory or badger")
	flags.BoolVar(&a.asJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		a.booksCommand(),
		a.readersCommand(),
		a.borrowsCommand(),
		a.overdueCommand(),
		a.seedCommand(),
	)
	return root
}

// open loads configuration and wires the services through the shared container.
func (a *app) open() error {
	args := []string{"--env-file", a.envFile, "--log-level", a.logLevel}
	if a.dataPath != "" {
		args = append(args, "--data-path", a.dataPath)
	}
	if a.cacheBackend != "" {
		args = append(args, "--cache-backend", a.cacheBackend)
	}

	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	injector := di.NewContainer(cfg)
	// Logs go to stderr so that stdout carries only command output.
	do.OverrideValue(injector, logger.New(logger.Config{
		Writer:      a.errOut,
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	}))
	a.injector = injector

	if err := di.BootstrapServices(injector); err != nil {
		return fmt.Errorf("bootstrap services: %w", err)
	}

	a.books = do.MustInvoke[*service.BookService](injector)
	a.readers = do.MustInvoke[*service.ReaderService](injector)
	a.borrows = do.MustInvoke[*service.BorrowService](injector)
	return nil
}

func (a *app) close() {
	if a.injector == nil {
		return
	}
	if err := a.injector.Shutdown(); err != nil {
		fmt.Fprintf(a.errOut, "shutdown: %v\n", err)
	}
	a.injector = nil
}

// print writes v as indented JSON when --json is set, otherwise calls text.
func (a *app) print(v any, text func(w io.Writer)) error {
	if a.asJSON {
		data, err := jsonCodec.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}
