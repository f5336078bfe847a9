package mailer

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/spf13/afero"
)

//go:embed default.tmpl
var defaultTemplate string

const subjectBlock = "subject"

// Data is what a template sees for one recipient.
type Data struct {
	From       string
	To         string
	Year       string
	GifterName string
	GifteeName string
	Signature  string
	UniqueID   string
	Reminder   string
	Test       string
}

// Template renders a subject and a plain-text body.
//
// The subject comes from a {{define "subject"}} block. Templates without one
// use the fallback subject.
type Template struct {
	tmpl            *template.Template
	fallbackSubject string
}

// ParseTemplate parses text under name.
func ParseTemplate(name, text, fallbackSubject string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("mailer: parsing template %s failed: %w", name, err)
	}
	if strings.TrimSpace(fallbackSubject) == "" {
		fallbackSubject = "Gift Exchange"
	}
	return &Template{tmpl: tmpl, fallbackSubject: fallbackSubject}, nil
}

// LoadTemplate reads and parses the template file at path on fs.
func LoadTemplate(fs afero.Fs, path, fallbackSubject string) (*Template, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("mailer: reading template %s failed: %w", path, err)
	}
	return ParseTemplate(path, string(data), fallbackSubject)
}

// DefaultTemplate returns the embedded template.
func DefaultTemplate() *Template {
	t, err := ParseTemplate("default", defaultTemplate, "")
	if err != nil {
		panic(err)
	}
	return t
}

// Render returns the subject and body for data.
func (t *Template) Render(data Data) (subject string, body string, err error) {
	subject = t.fallbackSubject
	if t.tmpl.Lookup(subjectBlock) != nil {
		var b strings.Builder
		if err := t.tmpl.ExecuteTemplate(&b, subjectBlock, data); err != nil {
			return "", "", fmt.Errorf("mailer: rendering subject failed: %w", err)
		}
		subject = b.String()
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("mailer: rendering body failed: %w", err)
	}
	return sanitizeHeader(subject), strings.TrimSpace(b.String()), nil
}
