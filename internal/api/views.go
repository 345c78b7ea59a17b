package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
)

//go:embed templates/*.html
var templateFiles embed.FS

const pagerWindow = 2

var errorMessages = map[int]string{
	http.StatusBadRequest:          "Bad request",
	http.StatusNotFound:            "Page not found",
	http.StatusUnprocessableEntity: "Invalid URL",
	http.StatusInternalServerError: "Internal server error",
}

// pageData is the single view model shared by every template.
type pageData struct {
	Title   string
	Flashes []Flash

	Value   string
	Invalid bool

	List  analyzer.URLPage
	Pager pager

	Detail analyzer.URLDetail

	ErrorCode    int
	ErrorMessage string
}

type pager struct {
	Current int
	Total   int
	Pages   []int
	HasPrev bool
	Prev    int
	HasNext bool
	Next    int
}

func newPager(current, total int) pager {
	p := pager{Current: current, Total: total}
	if total <= 0 {
		return p
	}
	last := total
	if current < total-pagerWindow {
		last = current + pagerWindow
	}
	for n := max(1, current-pagerWindow); n <= last; n++ {
		p.Pages = append(p.Pages, n)
	}
	p.HasPrev, p.Prev = current > 1, current-1
	if current < total {
		p.HasNext, p.Next = true, current+1
	}
	return p
}

type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	funcs := template.FuncMap{
		"date":  formatDate,
		"deref": func(p *int) int { return *p },
	}
	v := &views{pages: make(map[string]*template.Template)}
	for _, name := range []string{"index", "urls", "url", "error"} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(
			templateFiles,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		v.pages[name] = tmpl
	}
	return v, nil
}

// render executes a page into a buffer first so a template failure never
// leaves a half-written response.
func (v *views) render(w http.ResponseWriter, status int, name string, data pageData) error {
	tmpl, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	case *time.Time:
		if t == nil {
			return ""
		}
		return formatDate(*t)
	default:
		return ""
	}
}
