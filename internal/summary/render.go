package summary

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/brewgator/fixpet/internal/utils"
)

const reportTemplate = `# Daily Summary

_Generated {{ .GeneratedAt.Format "Mon, 02 Jan 2006 15:04 MST" }}_

## Lightning Node

{{ if .NodeBalanceError -}}
> Node balance unavailable: {{ cell .NodeBalanceError }}

{{ end -}}
| Component | Balance |
|---|---|
| Channel | {{ optsats .NodeBalance.ChannelBalance }} |
| Pending | {{ optsats .NodeBalance.PendingBalance }} |
| On-chain | {{ optsats .NodeBalance.OnchainBalance }} |
| **Total** | **{{ optsats .NodeBalance.TotalBalance }}** |

App total balance: **{{ sats .AppTotalBalance }}** ({{ btc .AppTotalBalance }})

## Last 24 Hours

| Metric | Count | Amount |
|---|---|---|
| Deposits | {{ .Last24Hours.Deposits.Count }} | {{ sats .Last24Hours.Deposits.Total }} |
| Withdrawals | {{ .Last24Hours.Withdrawals.Count }} | {{ sats .Last24Hours.Withdrawals.Total }} |
| Posts created | {{ .Last24Hours.PostsCreated.Count }} | {{ sats .Last24Hours.PostsCreated.Rewards }} |
| Posts completed | {{ .Last24Hours.PostsCompleted.Count }} | {{ sats .Last24Hours.PostsCompleted.Rewards }} |
| Active users | {{ .Last24Hours.ActiveUsers }} | |

## Balance Audit: {{ auditLabel .Audit.Status }}

{{ if eq .Audit.Status "error" -}}
The audit could not run: {{ cell .Audit.Error }}
{{- else -}}
Checked {{ .Audit.TotalUsers }} users. {{ .Audit.UsersWithDiscrepancies }} with discrepancies, {{ sats .Audit.TotalDiscrepancy }} in total.
{{- if .Audit.Discrepancies }}

| User | Profile | Calculated | Difference |
|---|---|---|---|
{{ range .Audit.Discrepancies -}}
| {{ cell .Email }} | {{ sats .ProfileBalance }} | {{ sats .CalculatedBalance }} | {{ signed .Difference }} |
{{ end -}}
{{ end }}
{{- end }}

## API Health

| Service | Status |
|---|---|
| Lightning | {{ health .APIHealth.Lightning }} |
| Groq | {{ health .APIHealth.Groq }} |
| Resend | {{ health .APIHealth.Resend }} |
`

const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Subject }}</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; color: #222; max-width: 640px; margin: 0 auto; padding: 16px; }
table { border-collapse: collapse; width: 100%; margin-bottom: 16px; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
th { background: #f5f5f5; }
blockquote { color: #a33; border-left: 3px solid #a33; margin: 0; padding-left: 10px; }
</style>
</head>
<body>
{{ .Body }}
</body>
</html>
`

var (
	reportTmpl = texttemplate.Must(texttemplate.New("report").Funcs(texttemplate.FuncMap{
		"sats":       utils.FormatSats,
		"signed":     utils.FormatSignedSats,
		"btc":        utils.FormatBTC,
		"optsats":    optionalSats,
		"cell":       markdownCell,
		"health":     healthLabel,
		"auditLabel": auditLabel,
	}).Parse(reportTemplate))

	shellTmpl = template.Must(template.New("shell").Parse(htmlShell))

	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Subject is the email subject for data.
func Subject(data *Data) string {
	subject := "FixPet Daily Summary: " + data.GeneratedAt.Format("Jan 2, 2006")
	switch data.Audit.Status {
	case AuditFailed:
		subject += " [audit failed]"
	case AuditError:
		subject += " [audit error]"
	}
	return subject
}

// RenderMarkdown renders the report body as markdown.
func RenderMarkdown(data *Data) (string, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// RenderHTML renders the full email document. Raw HTML in user-supplied
// values is dropped by the markdown renderer.
func RenderHTML(data *Data) (string, error) {
	md, err := RenderMarkdown(data)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}

	var out bytes.Buffer
	err = shellTmpl.Execute(&out, struct {
		Subject string
		Body    template.HTML
	}{
		Subject: Subject(data),
		Body:    template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return out.String(), nil
}

func optionalSats(v *int64) string {
	if v == nil {
		return "n/a"
	}
	return utils.FormatSats(*v)
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", " ", "<", "&lt;", ">", "&gt;")

func markdownCell(s string) string {
	return cellEscaper.Replace(s)
}

func healthLabel(s HealthStatus) string {
	switch s {
	case HealthOnline:
		return "✅ online"
	case HealthOffline:
		return "⚠️ offline"
	default:
		return "❌ error"
	}
}

func auditLabel(status string) string {
	switch status {
	case AuditPassed:
		return "✅ passed"
	case AuditFailed:
		return "❌ failed"
	default:
		return "⚠️ error"
	}
}
