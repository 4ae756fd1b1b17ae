package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/dashboard"
	"github.com/trezcool/masomo/core/incident"
	emailsvc "github.com/trezcool/masomo/services/email"
	"github.com/trezcool/masomo/services/realtime/wsclient"
)

type watchOptions struct {
	apiURL string
	size   int
	bell   bool
	email  bool
}

func (cli *commandLine) watchCmd() *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow incidents live and alert on new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cli.watch(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.apiURL, "api", cli.conf.Dashboard.APIURL, "API base URL")
	cmd.Flags().IntVar(&opts.size, "size", cli.conf.Dashboard.FeedSize, "Live feed size")
	cmd.Flags().BoolVar(&opts.bell, "bell", true, "Ring the terminal bell on new incidents")
	cmd.Flags().BoolVar(&opts.email, "email", len(cli.conf.Alerts.EmailTo) > 0, "Email alerts.emailTo on severe incidents")
	return cmd
}

// watch runs a dashboard session against the API until ctx is done.
func (cli *commandLine) watch(ctx context.Context, opts watchOptions) error {
	broker, err := wsclient.New(opts.apiURL, "admin-watch", cli.conf.Realtime.BufferSize, nil)
	if err != nil {
		return err
	}

	dedup := dashboard.NewDeduplicator(cli.conf.Dashboard.DedupCapacity, cli.conf.Dashboard.DedupTTL)
	session := dashboard.NewSession(broker, cli.logger, dashboard.WithDeduplicator(dedup))
	defer session.Close()

	fetcher := dashboard.NewAPIFetcher(opts.apiURL, nil)
	feed := dashboard.NewLiveFeed(fetcher, opts.size, dashboard.OnFeedChange(cli.printFeed))
	active := dashboard.NewTableView(
		"active-incidents",
		fetcher,
		dashboard.Query{Filter: incident.QueryFilter{Status: incident.StatusActive, Limit: incident.MaxLimit}},
		func(rows []incident.Incident) { fmt.Fprintf(cli.out, "%d active incident(s)\n", len(rows)) },
	)

	var cues []dashboard.AlertSink
	if opts.bell {
		cues = append(cues, dashboard.NewBell(os.Stdout))
	}
	if opts.email && len(cli.conf.Alerts.EmailTo) > 0 {
		cues = append(cues, dashboard.NewEmailSink(
			cli.mailer(), cli.conf.Alerts.EmailTo, incident.Severity(cli.conf.Alerts.EmailMinSeverity),
		))
	}
	notifier := dashboard.NewNotifier(session.Dedup(), dashboard.NewConsoleToast(cli.out), cues...)

	for _, w := range []dashboard.Widget{feed, active, notifier} {
		if err := session.Mount(ctx, w); err != nil {
			return err
		}
	}
	fmt.Fprintf(cli.out, "watching %s (ctrl+c to stop)\n", opts.apiURL)

	<-ctx.Done()
	return nil
}

func (cli *commandLine) printFeed(items []incident.Incident) {
	fmt.Fprintln(cli.out, "--- live feed ---")
	for _, inc := range items {
		fmt.Fprintf(cli.out, "%s  %-6s  room %-6s  %s\n",
			inc.DetectedAt.Local().Format(time.Kitchen), inc.Severity, inc.RoomNumber, inc.IncidentType)
	}
}

func (cli *commandLine) mailer() core.EmailService {
	if cli.conf.Debug || cli.conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(cli.conf, cli.logger)
	}
	return emailsvc.NewSendgridService(cli.conf, cli.logger)
}
