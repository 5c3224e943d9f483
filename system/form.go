package system

import (
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"formd/sink"
)

// user-facing strings, kept exactly as the site has always answered
const (
	submitErrText    = "Issue with loading details to database"
	submitMethodText = "something went wrong!!! Try again."
)

// SubmitHandler accepts a contact form POST, appends one row to the
// sink file, and redirects to the thank-you page. Any other method gets
// the fixed error string and appends nothing.
func (s *System) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fmt.Fprint(w, submitMethodText)
		return
	}
	if err := r.ParseForm(); err != nil {
		log.Printf("error parsing form: %v", err)
		fmt.Fprint(w, submitErrText)
		return
	}

	fields := map[string]string{}
	for k, v := range r.PostForm {
		if k == "_csrf" || k == "submit" {
			continue
		}
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	if err := s.sink.Append(fields); err != nil {
		log.Println("error appending submission:", err)
		fmt.Fprint(w, submitErrText)
		return
	}
	s.Stats.LifetimeSubmissions++

	receipt := uuid.NewString()
	log.Printf("accepted submission %s from %s", receipt, getip(r))

	if s.notify != nil {
		s.notify(formatSubmission(r, fields))
	}

	if err := s.writeCookie(w, map[string]string{
		"visitor": fields["name"],
		"receipt": receipt,
	}); err != nil {
		log.Println("error writing receipt cookie:", err)
	}

	http.Redirect(w, r, s.config.Form.Redirect, http.StatusFound)
}

func getip(r *http.Request) string {
	return r.RemoteAddr
}

// formatSubmission renders one submission for the admin chat, known
// columns first, any leftover fields after in stable order.
func formatSubmission(r *http.Request, fields map[string]string) string {
	str := &strings.Builder{}
	fmt.Fprintf(str, "```\n")
	fmt.Fprintf(str, "time: %s\n", time.Now().UTC().Truncate(time.Second))
	fmt.Fprintf(str, "ip: %s\n", getip(r))
	fmt.Fprintf(str, "referer: %s\n", r.Referer())
	seen := map[string]bool{}
	for _, k := range sink.Columns {
		if v, ok := fields[k]; ok {
			fmt.Fprintf(str, "%s: %s\n", k, v)
			seen[k] = true
		}
	}
	var extra []string
	for k := range fields {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		fmt.Fprintf(str, "%s: %s\n", k, fields[k])
	}
	fmt.Fprintf(str, "```\n")
	return str.String()
}
