// Package render turns landing page configuration into HTML using the
// built-in templates embedded in the binary.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrUnknownTemplate is returned when a page names a template we don't ship.
var ErrUnknownTemplate = errors.New("unknown landing template")

// Defaults applied when the page config leaves a field empty.
const (
	DefaultCTAText      = "Continue"
	DefaultPrimaryColor = "#4F46E5"
)

// PageData is the view model passed to every template.
type PageData struct {
	Template      model.LandingTemplate
	Title         string
	Headline      string
	Subheadline   string
	CTAText       string
	PrimaryColor  string
	LogoURL       string
	ImageURL      string
	RedirectURL   string
	RedirectDelay int
	UTMID         string
	Preview       bool
	Config        map[string]any
}

// NewPageData builds the view model for page. redirectURL has the utm_id
// already substituted.
func NewPageData(page *model.LandingPage, utmID, redirectURL string, preview bool) PageData {
	return PageData{
		Template:      page.Template,
		Title:         page.ConfigString("title", page.Name),
		Headline:      page.ConfigString("headline", page.Name),
		Subheadline:   page.ConfigString("subheadline", ""),
		CTAText:       page.ConfigString("cta_text", DefaultCTAText),
		PrimaryColor:  page.ConfigString("primary_color", DefaultPrimaryColor),
		LogoURL:       page.ConfigString("logo_url", ""),
		ImageURL:      page.ConfigString("image_url", ""),
		RedirectURL:   redirectURL,
		RedirectDelay: page.RedirectDelay,
		UTMID:         utmID,
		Preview:       preview,
		Config:        page.Config,
	}
}

// Renderer holds one parsed template set per landing template.
type Renderer struct {
	templates map[model.LandingTemplate]*template.Template
}

// New parses all embedded templates. It fails if any template is missing
// or malformed.
func New() (*Renderer, error) {
	r := &Renderer{templates: make(map[model.LandingTemplate]*template.Template, len(model.ValidTemplates))}

	for _, name := range model.ValidTemplates {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/"+string(name)+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes the template selected by data.Template.
func (r *Renderer) Render(data PageData) ([]byte, error) {
	tmpl, ok := r.templates[data.Template]
	if !ok {
		return nil, ErrUnknownTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", data.Template, err)
	}
	return buf.Bytes(), nil
}

var funcs = template.FuncMap{
	"cfg": func(cfg map[string]any, key string) string {
		if v, ok := cfg[key].(string); ok {
			return v
		}
		return ""
	},
	"cfgList": func(cfg map[string]any, key string) []string {
		raw, ok := cfg[key].([]any)
		if !ok {
			return nil
		}
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	},
}
