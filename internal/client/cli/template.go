package cli

import (
	"text/template"
	"time"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Local().Format(time.RFC3339) },
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}

const statusTemplate = `
=== Session Status ===

{{- if .Session }}
Email:          {{.Session.Email}}
Server:         {{.Session.ServerURL}}
Expires:        {{date .Session.ExpiresAt}}
{{- if .Expired }}
Status:         expired, please login again
{{- else }}
Time remaining: {{.Remaining}}
{{- end }}
{{- else }}
Status:         not authenticated
{{- end }}
{{- if .Health }}
Server status:  {{.Health.Status}}{{if .Health.Version}} ({{.Health.Version}}){{end}}
{{- else }}
Server status:  unreachable
{{- end }}
`

const dumpTemplate = `
=== Accounts ({{len .Users}}) ===
{{range .Users}}
ID:        {{.ID}}
Email:     {{.Email}}
{{- if or .FirstName .LastName }}
Name:      {{.FirstName}} {{.LastName}}
{{- end }}
Verified:  {{yesno .IsVerified}}
Admin:     {{yesno .Admin}}
Sessions:  {{.Sessions}}
Created:   {{date .CreatedAt}}
{{end}}
{{- if .Purged }}
Purged {{.Purged}} non-admin account(s).
{{- end }}
`

var (
	statusTmpl = template.Must(template.New("status").Funcs(templateFuncs).Parse(statusTemplate))
	dumpTmpl   = template.Must(template.New("dump").Funcs(templateFuncs).Parse(dumpTemplate))
)
