package system

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/crewjam/csp"
	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
)

// Router builds the full route table. The caller wraps it with the
// access list and hit counter middleware (and CSRF when enabled).
func (s *System) Router() *mux.Router {
	r := mux.NewRouter()

	// status
	r.HandleFunc("/status", s.StatusHandler).Methods(http.MethodGet)

	// form
	r.HandleFunc("/submit_form", s.SubmitHandler).Methods(http.MethodGet, http.MethodPost)

	// static files
	for _, path := range []string{"/favicon.png", "/favicon.ico", "/robots.txt", "/humans.txt", "/sitemap.xml"} {
		r.HandleFunc(path, s.StaticHandler).Methods(http.MethodGet)
	}
	for _, prefix := range []string{"/css/", "/js/", "/webfonts/", "/.well-known/"} {
		r.PathPrefix(prefix).HandlerFunc(s.StaticHandler).Methods(http.MethodGet)
	}

	// home and named pages (OR rest of files in ./public if config allows)
	r.HandleFunc("/", s.HomeHandler)
	r.HandleFunc("/{page}", s.PageHandler).Methods(http.MethodGet)
	return r
}

func (s *System) SetCSPHeader(w http.ResponseWriter) {
	u, err := url.Parse(s.config.Meta.SiteURL)
	if err != nil {
		log.Println("Cant set Content-Security-Policy:", err)
		return
	}
	val := csp.Header{
		DefaultSrc: []string{"'self'", u.Hostname()},
	}.String()
	w.Header().Set("Content-Security-Policy", val)
}

func (s *System) serveTemplate(w http.ResponseWriter, r *http.Request, tname string, visitor map[string]string) {
	s.SetCSPHeader(w)
	if s.config.Meta.LiveTemplate {
		if err := s.ReloadTemplates(); err != nil {
			log.Println("error reloading templates:", err)
		}
	}
	t, ok := s.templates[tname]
	if !ok {
		if s.config.Sec.ServePublic {
			http.ServeFile(w, r, filepath.Join(s.config.Meta.PathPublic, tname))
			return
		}
		http.NotFound(w, r)
		return
	}

	var pageTitle = s.config.Meta.SiteName
	if pageTitle != "" {
		pageTitle += " | "
	}
	pageTitle += pageName(tname)

	var name, receipt string
	if visitor != nil {
		name = visitor["visitor"]
		receipt = visitor["receipt"]
	}

	err := t.ExecuteTemplate(w, tname, map[string]interface{}{
		csrf.TemplateTag: csrf.TemplateField(r),
		"csrfToken":      csrf.Token(r),
		"visitor":        name,
		"receipt":        receipt,
		"pageTitle":      pageTitle,
		"hits":           s.Stats.Hits,
		"uptime":         time.Since(s.Stats.t1).Truncate(time.Second),
		"sitename":       s.config.Meta.SiteName,
		"copyrightname":  s.config.Meta.CopyrightName,
		"meta":           s.config.Meta.TemplateData,
	})
	if err != nil {
		log.Printf("error executing template %q: %v", tname, err)
	}
}

// pageName turns "thankyou.html" into "Thankyou" for the title bar.
func pageName(tname string) string {
	base := strings.TrimSuffix(tname, ".html")
	if base == "index" || base == "" {
		return "Home"
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

func (s *System) writeCookie(w http.ResponseWriter, value map[string]string) error {
	if s.cookies == nil {
		return nil
	}
	encoded, err := s.cookies.Encode(s.config.Sec.CookieName, value)
	if err == nil {
		cookie := &http.Cookie{
			Name:  s.config.Sec.CookieName,
			Value: encoded,
			Path:  "/",
		}
		http.SetCookie(w, cookie)
	}
	return err
}

// read cookie; a decode failure is treated exactly like no cookie
func (s *System) readCookie(r *http.Request) (map[string]string, error) {
	if s.cookies == nil {
		return nil, http.ErrNoCookie
	}
	cookie, err := r.Cookie(s.config.Sec.CookieName)
	if err != nil {
		return nil, err
	}
	value := make(map[string]string)
	if err := s.cookies.Decode(s.config.Sec.CookieName, cookie.Value, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// visitor returns receipt cookie data, or nil for anonymous requests.
func (s *System) visitor(r *http.Request) map[string]string {
	value, err := s.readCookie(r)
	if err != nil {
		return nil
	}
	return value
}

// HitCounter http middleware that logs and counts
func (s *System) HitCounter(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Println(logr(r))
		s.Stats.Hits++
		s.Stats.LifetimeHits++
		h.ServeHTTP(w, r)
	})
}

func (s *System) HomeHandler(w http.ResponseWriter, r *http.Request) {
	// return OK if OPTIONS or HEAD on main page
	if r.Method == http.MethodOptions || r.Method == http.MethodHead {
		// 200
		return
	}

	// only GET on main page
	if r.Method != http.MethodGet {
		http.Error(w, "bad method", http.StatusMethodNotAllowed)
		return
	}

	s.serveTemplate(w, r, "index.html", s.visitor(r))
}

// PageHandler looks up a template by the request's path segment.
func (s *System) PageHandler(w http.ResponseWriter, r *http.Request) {
	page := mux.Vars(r)["page"]
	if page == "index.html" {
		s.HomeHandler(w, r)
		return
	}
	s.serveTemplate(w, r, page, s.visitor(r))
}

func (s *System) StaticHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "bad method on staticHandler", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Expires", time.Now().Add(time.Hour*24).UTC().Truncate(time.Second).Format(http.TimeFormat))
	filename := filepath.Join(s.config.Meta.PathPublic, r.URL.Path)
	http.ServeFile(w, r, filename)
}

// ez http log
func logr(r *http.Request) string {
	ipaddr, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ipaddr = r.RemoteAddr
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ipaddr += " " + xff
	}
	return fmt.Sprintf("%s %s %.50q %q %s", r.Host, r.Method, r.UserAgent(), ipaddr, r.URL.Path)
}
