package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo/core/ingest"
)

const ingestPath = "/functions/v1/camera-feed"

var sendRequestFunc = rest.SendWithContext // mockable

func (cli *commandLine) reportCmd() *cobra.Command {
	var (
		apiURL string
		data   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "report ACTION",
		Short: "Send a producer event, eg. report behavior_alert -d behavior=Sleeping -d room_number=203",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evt := ingest.Event{Action: ingest.Action(args[0]), Data: ingest.Payload{}}
			for k, v := range data {
				evt.Data[k] = v
			}
			return cli.report(cmd.Context(), apiURL, evt)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", cli.conf.Dashboard.APIURL, "API base URL")
	cmd.Flags().StringToStringVarP(&data, "data", "d", nil, "Event data as key=value")
	return cmd
}

func (cli *commandLine) report(ctx context.Context, apiURL string, evt ingest.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}

	resp, err := sendRequestFunc(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: strings.TrimRight(apiURL, "/") + ingestPath,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		return errors.Wrap(err, "sending event")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s rejected (%d): %s", evt.Action, resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	fmt.Fprintln(cli.out, strings.TrimSpace(resp.Body))
	return nil
}
