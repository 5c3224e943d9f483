package system

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"formd/config"
)

var testTemplates = map[string]string{
	"_partials/header.html": `{{define "header"}}<!doctype html><html><head><title>{{.pageTitle}}</title></head><body>{{end}}`,
	"_partials/footer.html": `{{define "footer"}}<footer>{{.copyrightname}} | {{.hits}} hits</footer></body></html>{{end}}`,
	"index.html":            `{{template "header" .}}<h1>Welcome to {{.sitename}}</h1>{{template "footer" .}}`,
	"contact.html":          `{{template "header" .}}<form action="/submit_form" method="POST">{{.csrfField}}</form>{{template "footer" .}}`,
	"thankyou.html":         `{{template "header" .}}<h1>{{if .visitor}}Thank you, {{.visitor}}!{{else}}Thank you!{{end}}</h1>{{if .receipt}}<p>Receipt: {{.receipt}}</p>{{end}}{{template "footer" .}}`,
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	dir := t.TempDir()

	tpl := filepath.Join(dir, "templates")
	require.NoError(t, os.MkdirAll(filepath.Join(tpl, "_partials"), 0755))
	for name, body := range testTemplates {
		require.NoError(t, os.WriteFile(filepath.Join(tpl, name), []byte(body), 0600))
	}

	pub := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(pub, "css"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pub, "robots.txt"), []byte("User-agent: *\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(pub, "hello.txt"), []byte("hello from public\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(pub, "css", "site.css"), []byte("body{}\n"), 0600))

	cfg := new(config.Config)
	cfg.Meta.Version = "formd test"
	cfg.Meta.SiteName = "Test Site"
	cfg.Meta.SiteURL = "http://localhost:8080"
	cfg.Meta.CopyrightName = "Test Site LLC"
	cfg.Meta.PathTemplates = tpl
	cfg.Meta.PathPublic = pub
	cfg.Sec.HashKey = "0123456789abcdef0123456789abcdef"
	cfg.Sec.BoltDB = filepath.Join(dir, "counters.db")
	cfg.Form.Output = filepath.Join(dir, "database.csv")

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func getPath(h http.Handler, path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func newRecorderFor(s *System, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)
	return w
}

func validForm() url.Values {
	return url.Values{
		"name":    {"Alice"},
		"email":   {"alice@example.com"},
		"subject": {"hello"},
		"message": {"just saying hi"},
	}
}
