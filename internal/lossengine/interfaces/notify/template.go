package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Grid loss {{.EventLabel}}]
Source: {{.Source}}
{{- if .Version }}
Snapshot: v{{.Version}}
Loss F->Cons: {{.LossFc}}% ({{.LossBand}})
Daily SLA: {{.SLADaily}}% ({{.SLABand}})
{{- end }}
{{- if .Reason }}
Reason: {{.Reason}}
{{- end }}
Time: {{.Time}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Event      string
	EventLabel string
	Source     string
	SnapshotID string
	Version    int64
	Fallback   bool
	LossFc     string
	LossBand   string
	SLADaily   string
	SLABand    string
	Reason     string
	Time       string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("rebuild-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notify template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
