package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo/apps/api/echo"
	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/ingest"
	metricsvc "github.com/trezcool/masomo/services/metrics"
	"github.com/trezcool/masomo/storage/database"
	"github.com/trezcool/masomo/tests"
)

// lockedBuffer is written by the dashboard loop while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setup(t *testing.T, engine string) (*commandLine, *lockedBuffer) {
	conf := testutil.Config()
	conf.Database.Engine = engine
	out := new(lockedBuffer)
	return newCommandLine(conf, testutil.NewLogger(nil), out), out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func checkErr(t *testing.T, tt cliTest, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t, "postgres")

	openDBFunc = func(context.Context, *core.Config) (*sqlx.DB, error) {
		return sqlx.Open("postgres", "postgres://localhost/none?sslmode=disable") // never connects
	}
	migrateFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() {
		openDBFunc = openDB
		migrateFunc = database.Migrate
	})

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(tt.args))
		})
	}

	t.Run("memory engine", func(t *testing.T) {
		memCli, _ := setup(t, "memory")
		checkErr(t, cliTest{wantErrStr: "migrations need the postgres engine"}, memCli.run([]string{"migrate", "up"}))
	})
}

func Test_commandLine_seed(t *testing.T) {
	cli, out := setup(t, "memory")

	require.NoError(t, cli.run([]string{"seed"}))
	assert.True(t, strings.HasPrefix(out.String(), "seeded "), out.String())

	students, err := seededStudentIDs(cli)
	require.NoError(t, err)
	require.NotEmpty(t, students)

	// upserts: seeding twice changes nothing
	require.NoError(t, cli.run([]string{"seed"}))
	again, err := seededStudentIDs(cli)
	require.NoError(t, err)
	assert.ElementsMatch(t, students, again)

	checkErr(t, cliTest{wantErrStr: `unknown command "lol" for "admin seed"`}, cli.run([]string{"seed", "lol"}))
}

func seededStudentIDs(cli *commandLine) ([]string, error) {
	repo, closeRepo, err := cli.rosterRepository(context.Background())
	if err != nil {
		return nil, err
	}
	defer closeRepo()
	students, err := repo.QueryStudents(context.Background())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func Test_commandLine_report(t *testing.T) {
	cli, out := setup(t, "memory")

	var sent []rest.Request
	respond := &rest.Response{StatusCode: 200, Body: `{"success": true}`}
	sendRequestFunc = func(_ context.Context, req rest.Request) (*rest.Response, error) {
		sent = append(sent, req)
		return respond, nil
	}
	t.Cleanup(func() { sendRequestFunc = rest.SendWithContext })

	args := []string{"report", "behavior_alert", "--api", "http://api.test/", "-d", "behavior=Sleeping", "-d", "room_number=203"}
	require.NoError(t, cli.run(args))
	require.Len(t, sent, 1)
	assert.Equal(t, rest.Post, sent[0].Method)
	assert.Equal(t, "http://api.test/functions/v1/camera-feed", sent[0].BaseURL)

	var evt ingest.Event
	require.NoError(t, json.Unmarshal(sent[0].Body, &evt))
	assert.Equal(t, ingest.ActionBehaviorAlert, evt.Action)
	assert.Equal(t, ingest.Payload{"behavior": "Sleeping", "room_number": "203"}, evt.Data)
	assert.Contains(t, out.String(), `{"success": true}`)

	respond = &rest.Response{StatusCode: 400, Body: `{"error":"Unknown action"}`}
	checkErr(t, cliTest{wantErrStr: `dance rejected (400): {"error":"Unknown action"}`}, cli.run([]string{"report", "dance"}))
	checkErr(t, cliTest{wantErrStr: "accepts 1 arg(s), received 0"}, cli.run([]string{"report"}))
}

func Test_commandLine_watch(t *testing.T) {
	stack := testutil.NewStack(t)
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          stack.Conf,
		Logger:        stack.Logger,
		Validate:      stack.Validate,
		Translator:    stack.Translator,
		Dispatcher:    stack.Dispatcher,
		IncidentSvc:   stack.Incidents,
		AttendanceSvc: stack.Attendance,
		RosterSvc:     stack.Roster,
		Broker:        stack.Hub,
		Metrics:       metricsvc.New(),
	})
	srv := httptest.NewServer(app)
	defer srv.Close()

	cli, out := setup(t, "memory")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cli.watch(ctx, watchOptions{apiURL: srv.URL, size: 5}) }()

	// live feed, active incidents and notifier
	require.Eventually(t, func() bool { return stack.Hub.Len(incident.TableName) == 3 }, 3*time.Second, 10*time.Millisecond)

	testutil.CreateIncident(t, stack, ingest.ActionBehaviorAlert, ingest.Payload{"behavior": "Sleeping", "room_number": "203", "severity": "high"})

	wantAlert := "[high] New Incident: Sleeping - Detected in Room 203"
	require.Eventually(t, func() bool { return strings.Contains(out.String(), wantAlert) }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "1 active incident(s)") }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, 1, strings.Count(out.String(), wantAlert))
	assert.Eventually(t, func() bool { return stack.Hub.Len(incident.TableName) == 0 }, 3*time.Second, 10*time.Millisecond)
}
