package renderer

import (
	"bytes"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/mbolis/newsroom-forms/log"
	"github.com/pkg/errors"
)

// DefaultEmail is sent when a form version has no email template.
const DefaultEmail = "Thank you for participating in a crowdnewsroom investigation!"

var funcs = map[string]any{
	"urlencode": urlencode,
}

// urlencode escapes a value for use inside a query string, spaces as %20.
func urlencode(v any) string {
	return strings.ReplaceAll(url.QueryEscape(FormatValue(v)), "+", "%20")
}

func (r *Renderer) templateData(src Source, tmpl ...string) map[string]any {
	data := map[string]any{"response": src.Response.JSON}
	for _, t := range tmpl {
		if !strings.Contains(t, "field_list") {
			continue
		}
		fields, err := r.EmailFields(src)
		if err != nil {
			log.WithFields(log.Fields{"response": src.Response.ID, "error": err}).Warn("Cannot list fields for email")
		}
		data["field_list"] = fields
		break
	}
	return data
}

// GenerateEmails renders the confirmation email of a response as plain text and HTML. The
// HTML body is empty when the form version has no HTML template.
func (r *Renderer) GenerateEmails(src Source) (text, html string, err error) {
	inst := src.instance()
	if inst == nil {
		return "", "", errors.New("form version not loaded")
	}
	data := r.templateData(src, inst.EmailTemplate, inst.EmailTemplateHTML)

	if inst.EmailTemplate == "" {
		text = DefaultEmail
	} else {
		t, err := texttemplate.New("email").Funcs(funcs).Parse(inst.EmailTemplate)
		if err != nil {
			return "", "", errors.Wrap(err, "email template")
		}
		var buf bytes.Buffer
		if err = t.Execute(&buf, data); err != nil {
			return "", "", errors.Wrap(err, "email template")
		}
		text = buf.String()
	}

	if inst.EmailTemplateHTML != "" {
		t, err := htmltemplate.New("email_html").Funcs(funcs).Parse(inst.EmailTemplateHTML)
		if err != nil {
			return "", "", errors.Wrap(err, "html email template")
		}
		var buf bytes.Buffer
		if err = t.Execute(&buf, data); err != nil {
			return "", "", errors.Wrap(err, "html email template")
		}
		html = buf.String()
	}
	return text, html, nil
}

// RedirectURL renders the URL a submitter is sent to after submitting, or "" when the
// form version has none.
func (r *Renderer) RedirectURL(src Source) (string, error) {
	inst := src.instance()
	if inst == nil || inst.RedirectURLTemplate == "" {
		return "", nil
	}
	t, err := texttemplate.New("redirect").Funcs(funcs).Parse(inst.RedirectURLTemplate)
	if err != nil {
		return "", errors.Wrap(err, "redirect template")
	}
	var buf bytes.Buffer
	if err = t.Execute(&buf, r.templateData(src, inst.RedirectURLTemplate)); err != nil {
		return "", errors.Wrap(err, "redirect template")
	}
	return strings.TrimSpace(buf.String()), nil
}
