package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/incident"
)

const incidentAlertTemplate = "incident_alert"

var ErrNoTerminal = errors.New("output is not a terminal")

type (
	// ConsoleToast prints one line per alert.
	ConsoleToast struct {
		mu sync.Mutex
		w  io.Writer
	}

	// Bell rings the terminal bell, when there is a terminal.
	Bell struct {
		w       io.Writer
		enabled bool
	}

	// EmailSink mails alerts at or above a severity.
	EmailSink struct {
		mailer      core.EmailService
		to          []mail.Address
		minSeverity incident.Severity
	}
)

var (
	_ AlertSink = (*ConsoleToast)(nil)
	_ AlertSink = (*Bell)(nil)
	_ AlertSink = (*EmailSink)(nil)
)

func NewConsoleToast(w io.Writer) *ConsoleToast {
	return &ConsoleToast{w: w}
}

func (t *ConsoleToast) Notify(_ context.Context, alert Alert) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.w, formatAlert(alert))
	return err
}

func NewBell(f *os.File) *Bell {
	return &Bell{w: f, enabled: term.IsTerminal(int(f.Fd()))}
}

func (b *Bell) Notify(context.Context, Alert) error {
	if !b.enabled {
		return ErrNoTerminal
	}
	_, err := io.WriteString(b.w, "\a")
	return err
}

func NewEmailSink(mailer core.EmailService, to []mail.Address, minSeverity incident.Severity) *EmailSink {
	if minSeverity == "" {
		minSeverity = incident.SeverityHigh
	}
	return &EmailSink{mailer: mailer, to: to, minSeverity: minSeverity}
}

func (s *EmailSink) Notify(_ context.Context, alert Alert) error {
	if len(s.to) == 0 || !alert.Severity.AtLeast(s.minSeverity) {
		return nil
	}
	s.mailer.SendMessages(&core.EmailMessage{
		To:           s.to,
		Subject:      alert.Title,
		TemplateName: incidentAlertTemplate,
		TemplateData: alert,
	})
	return nil
}
