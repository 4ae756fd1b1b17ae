package main

import (
	"context"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/roster"
	"github.com/trezcool/masomo/storage/database"
	inmemdb "github.com/trezcool/masomo/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo/storage/database/sqlx"
)

var (
	errHelp = errors.New("help provided")

	// mockable
	openDBFunc = openDB
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer

	memdb *inmemdb.DB // memory engine only
}

func newCommandLine(conf *core.Config, logger core.Logger, out io.Writer) *commandLine {
	return &commandLine{conf: conf, logger: logger, out: out}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Masomo Watch administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.SetOut(cli.out)
	cmd.AddCommand(
		cli.migrateCmd(),
		cli.seedCmd(),
		cli.watchCmd(),
		cli.reportCmd(),
	)
	return cmd
}

func (cli *commandLine) run(args []string) error {
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	cmd := cli.rootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func openDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	return database.Open(ctx, conf)
}

// rosterRepository returns the configured store's roster repository and its closer.
func (cli *commandLine) rosterRepository(ctx context.Context) (roster.Repository, func(), error) {
	if cli.conf.Database.IsMemory() {
		if cli.memdb == nil {
			cli.memdb = inmemdb.Open(nil)
		}
		return inmemdb.NewRosterRepository(cli.memdb), func() {}, nil
	}

	db, err := openDBFunc(ctx, cli.conf)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := db.Close(); err != nil {
			cli.logger.Error("closing database", err)
		}
	}
	return sqlxrepos.NewRosterRepository(db), closer, nil
}
