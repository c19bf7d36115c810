// Package notifications sends build session summaries through Shoutrrr
// services.
package notifications

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"github.com/docker/go-units"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/mlchallenge/forge/internal/util"
	"github.com/mlchallenge/forge/pkg/types"
)

// router defines the interface for sending Shoutrrr notifications.
// It abstracts the underlying service implementation.
type router interface {
	Send(message string, params *shoutrrrTypes.Params) []error
}

// Notifier sends session summaries to the configured Shoutrrr URLs.
// A notifier without URLs is valid and drops every summary silently.
type Notifier struct {
	urls   []string
	router router
	params *shoutrrrTypes.Params
}

// summaryTemplate renders the session summary message.
var summaryTemplate = template.Must(template.New("summary").Parse(
	`Forge session finished in {{.Duration}}: {{.BuiltCount}} built, {{.FailedCount}} failed
{{- range .Results}}
{{- if .Success}}
- {{.Ref}} ({{.Size}}) OK
{{- else}}
- {{.Name}} FAILED: {{.Error}}
{{- end}}
{{- end}}
{{- if .Pruned}}
Pruned {{.Pruned}} stale tags ({{.Reclaimed}} reclaimed)
{{- end}}`,
))

// GetScheme extracts the scheme part of a Shoutrrr URL.
// It returns "invalid" if no scheme is found.
func GetScheme(url string) string {
	schemeEnd := strings.Index(url, ":")
	if schemeEnd <= 0 {
		return "invalid"
	}

	return url[:schemeEnd]
}

// NewNotifier initializes a notifier for the given Shoutrrr URLs.
// Shoutrrr's own log output is directed to the logrus trace level.
func NewNotifier(urls []string) (*Notifier, error) {
	if len(urls) == 0 {
		return &Notifier{}, nil
	}

	logger := log.New(logrus.StandardLogger().WriterLevel(logrus.TraceLevel), "Shoutrrr: ", 0)

	sender, err := shoutrrr.NewSender(logger, urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	params := &shoutrrrTypes.Params{}
	params.SetTitle("Forge")

	return &Notifier{urls: urls, router: sender, params: params}, nil
}

// GetNames returns the notification service names derived from the URLs.
func (n *Notifier) GetNames() []string {
	names := make([]string, len(n.urls))
	for i, u := range n.urls {
		names[i] = GetScheme(u)
	}

	return names
}

// SendSummary renders and sends the session summary to every configured
// service. Send failures are logged and never propagate; a summary is
// best-effort.
func (n *Notifier) SendSummary(
	report types.Report,
	pruned types.PruneResult,
	duration time.Duration,
) {
	if n.router == nil {
		return
	}

	message, err := renderSummary(report, pruned, duration)
	if err != nil {
		logrus.WithError(err).Error("Failed to render session summary")

		return
	}

	for _, err := range n.router.Send(message, n.params) {
		if err != nil {
			logrus.WithError(err).Error("Failed to send session summary")
		}
	}
}

// summaryLine is the per-result view handed to the summary template.
type summaryLine struct {
	Success bool
	Name    string
	Ref     string
	Size    string
	Error   string
}

// renderSummary produces the human readable summary message for a session.
func renderSummary(
	report types.Report,
	pruned types.PruneResult,
	duration time.Duration,
) (string, error) {
	lines := make([]summaryLine, 0, len(report.Results))

	for _, result := range report.Results {
		line := summaryLine{
			Success: result.Success,
			Name:    result.Target.Name,
			Size:    result.Size,
			Error:   result.Error,
		}

		if len(result.Tags) > 0 {
			line.Ref = result.Tags[len(result.Tags)-1].Ref()
		}

		lines = append(lines, line)
	}

	var buf bytes.Buffer

	err := summaryTemplate.Execute(&buf, struct {
		Duration    string
		BuiltCount  int
		FailedCount int
		Results     []summaryLine
		Pruned      int
		Reclaimed   string
	}{
		Duration:    util.FormatDuration(duration),
		BuiltCount:  len(report.Built()),
		FailedCount: len(report.Failed()),
		Results:     lines,
		Pruned:      pruned.Removed,
		Reclaimed:   units.HumanSize(float64(pruned.SpaceReclaimed)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute summary template: %w", err)
	}

	return buf.String(), nil
}
