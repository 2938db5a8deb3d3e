package notification

import (
	"bytes"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"
)

func renderText(name, tmpl string, data map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := texttemplate.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		slog.Error("Failed to parse text template", "name", name, "err", err)
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("Failed to execute text template", "name", name, "err", err)
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(name, tmpl string, data map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := htmltemplate.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		slog.Error("Failed to parse HTML template", "name", name, "err", err)
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("Failed to execute HTML template", "name", name, "err", err)
		return "", err
	}
	return buf.String(), nil
}
