// Package render produces the printable certificate document and the bodies
// of outbound emails from embedded html/template files.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	texttemplate "text/template"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrUnknownTemplate is returned when an email template name is not registered.
var ErrUnknownTemplate = errors.New("unknown template")

// subjects maps each email template to its subject line. Subjects are plain
// text and are not HTML escaped.
var subjects = map[string]string{
	"certificate_issued": "Your CE certificate {{.certificate_number}} is ready",
	"event_approved":     "Event approved: {{.event_title}}",
	"event_rejected":     "Event not approved: {{.event_title}}",
}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	pages    *template.Template
	subjects map[string]*texttemplate.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.UTC().Format("January 2, 2006") },
		"ceus": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}

	pages, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	subs := make(map[string]*texttemplate.Template, len(subjects))
	for name, text := range subjects {
		t, err := texttemplate.New(name).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject for %s: %w", name, err)
		}
		subs[name] = t
	}

	return &Renderer{pages: pages, subjects: subs}, nil
}

// RenderCertificate returns the printable HTML document for cert. Revoked
// certificates render with a revocation banner.
func (r *Renderer) RenderCertificate(cert *domain.Certificate) ([]byte, error) {
	if cert == nil {
		return nil, errors.New("certificate cannot be nil")
	}
	var buf bytes.Buffer
	if err := r.pages.ExecuteTemplate(&buf, "certificate.html", cert); err != nil {
		return nil, fmt.Errorf("failed to render certificate %s: %w", cert.CertificateNumber, err)
	}
	return buf.Bytes(), nil
}

// ComposeEmail renders the subject and body of the named email template.
func (r *Renderer) ComposeEmail(name string, data map[string]any) (string, string, error) {
	subjectTmpl, ok := r.subjects[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	var subject bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject for %s: %w", name, err)
	}

	var body bytes.Buffer
	if err := r.pages.ExecuteTemplate(&body, name+".html", data); err != nil {
		return "", "", fmt.Errorf("failed to render body for %s: %w", name, err)
	}
	return subject.String(), body.String(), nil
}
