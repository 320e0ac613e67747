// Package session keeps the portal cookies of a single web client.
package session

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

// DateLayout is the date format of the attendance search cookies.
const DateLayout = "2006-01-02"

const (
	rootPath       = "/"
	searchStartFmt = "Search_%s_date_start"
	searchEndFmt   = "Search_%s_date_end"
)

var ErrInvalidSession = errors.New("invalid session")

// Entry is a stored cookie.
type Entry struct {
	Name    string
	Value   string
	Domain  string
	Path    string
	Expires time.Time // zero means session cookie
}

func (e Entry) key() string {
	return e.Domain + "|" + e.Path + "|" + e.Name
}

func (e Entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

// Jar stores the cookies of one web client. It is safe for concurrent use.
type Jar struct {
	mux      sync.RWMutex
	host     string
	searchID string
	entries  map[string]Entry
	now      func() time.Time
}

// New creates an empty Jar for the portal host.
// searchID is the identifier embedded in the attendance search cookie names.
func New(host, searchID string) *Jar {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return &Jar{
		host:     host,
		searchID: searchID,
		entries:  make(map[string]Entry),
		now:      time.Now,
	}
}

// SearchCookieNames returns the names of the attendance date range cookies.
func (j *Jar) SearchCookieNames() (start, end string) {
	return fmt.Sprintf(searchStartFmt, j.searchID), fmt.Sprintf(searchEndFmt, j.searchID)
}

// PrepareAttendance scopes the attendance query to a single day by setting
// the date range cookies, both equal to today.
func (j *Jar) PrepareAttendance(today time.Time) error {
	if err := validateHost(j.host); err != nil {
		return errors.Join(ErrInvalidSession, err)
	}
	if j.searchID == "" || strings.ContainsAny(j.searchID, " ;=,\t") {
		return errors.Join(ErrInvalidSession, fmt.Errorf("malformed search id %q", j.searchID))
	}

	day := today.Format(DateLayout)
	start, end := j.SearchCookieNames()

	j.mux.Lock()
	defer j.mux.Unlock()
	for _, name := range []string{start, end} {
		e := Entry{Name: name, Value: day, Domain: j.host, Path: rootPath}
		j.entries[e.key()] = e
	}
	return nil
}

// RemoveAll clears every stored cookie.
func (j *Jar) RemoveAll() {
	j.mux.Lock()
	defer j.mux.Unlock()
	j.entries = make(map[string]Entry)
}

// Len returns the number of stored cookies.
func (j *Jar) Len() int {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return len(j.entries)
}

// Cookies returns a snapshot of the stored cookies sorted by name.
func (j *Jar) Cookies() []Entry {
	j.mux.RLock()
	defer j.mux.RUnlock()
	out := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].key() < out[b].key() })
	return out
}

// Capture stores the Set-Cookie values of a portal response.
// Cookies for a foreign domain are ignored, expired ones are removed.
func (j *Jar) Capture(resp *fasthttp.Response) {
	now := j.now()
	var captured []Entry
	resp.Header.VisitAllCookie(func(_, value []byte) {
		c := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(c)
		if err := c.ParseBytes(value); err != nil {
			return
		}
		e := Entry{
			Name:   string(c.Key()),
			Value:  string(c.Value()),
			Domain: strings.TrimPrefix(string(c.Domain()), "."),
			Path:   string(c.Path()),
		}
		if e.Domain == "" {
			e.Domain = j.host
		}
		if !domainMatch(j.host, e.Domain) {
			return
		}
		if e.Path == "" || !strings.HasPrefix(e.Path, rootPath) {
			e.Path = rootPath
		}
		switch {
		case c.MaxAge() > 0:
			e.Expires = now.Add(time.Duration(c.MaxAge()) * time.Second)
		case c.MaxAge() < 0:
			e.Expires = now
		case c.Expire() != fasthttp.CookieExpireUnlimited:
			e.Expires = c.Expire()
		}
		captured = append(captured, e)
	})

	j.mux.Lock()
	defer j.mux.Unlock()
	for _, e := range captured {
		if e.expired(now) || e.Value == "" {
			delete(j.entries, e.key())
			continue
		}
		j.entries[e.key()] = e
	}
}

// Apply attaches the matching stored cookies to the request.
func (j *Jar) Apply(req *fasthttp.Request) {
	host := string(req.URI().Host())
	if i := strings.LastIndexByte(host, ':'); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	path := string(req.URI().Path())
	now := j.now()

	j.mux.RLock()
	defer j.mux.RUnlock()
	for _, e := range j.entries {
		if e.expired(now) || !domainMatch(host, e.Domain) || !pathMatch(path, e.Path) {
			continue
		}
		req.Header.SetCookie(e.Name, e.Value)
	}
}

func validateHost(host string) error {
	if host == "" {
		return errors.New("empty cookie domain")
	}
	if strings.ContainsAny(host, "/ \t;") {
		return fmt.Errorf("malformed cookie domain %q", host)
	}
	return nil
}

func domainMatch(host, domain string) bool {
	host, domain = strings.ToLower(host), strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func pathMatch(path, cookiePath string) bool {
	if path == "" {
		path = rootPath
	}
	if cookiePath == rootPath || path == cookiePath {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(cookiePath, "/")+"/")
}
