package nueip

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"github.com/wlo1561411/HappyTime/session"
)

// scriptedDoer serializes every request the way the transport does and answers with respond.
type scriptedDoer struct {
	mux     sync.Mutex
	raw     []string
	respond func(req *fasthttp.Request, resp *fasthttp.Response)
}

func (d *scriptedDoer) Do(req *fasthttp.Request, resp *fasthttp.Response) error {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := req.Write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	d.mux.Lock()
	d.raw = append(d.raw, buf.String())
	d.mux.Unlock()

	resp.SetStatusCode(fasthttp.StatusOK)
	d.respond(req, resp)
	return nil
}

func (d *scriptedDoer) DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, _ time.Duration) error {
	return d.Do(req, resp)
}

func (d *scriptedDoer) DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, _ time.Time) error {
	return d.Do(req, resp)
}

func (d *scriptedDoer) requests() []string {
	d.mux.Lock()
	defer d.mux.Unlock()
	return append([]string(nil), d.raw...)
}

func respondCookie(resp *fasthttp.Response, name, value string) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(name)
	c.SetValue(value)
	c.SetPath("/")
	resp.Header.SetCookie(c)
}

func cookieValue(jar *session.Jar, name string) string {
	for _, e := range jar.Cookies() {
		if e.Name == name {
			return e.Value
		}
	}
	return ""
}

func TestRedirectHopCarriesNoBodyHeaders(t *testing.T) {
	for _, code := range []int{fasthttp.StatusMovedPermanently, fasthttp.StatusFound, fasthttp.StatusSeeOther} {
		t.Run(fmt.Sprintf("status %d", code), func(t *testing.T) {
			d := &scriptedDoer{respond: func(req *fasthttp.Request, resp *fasthttp.Response) {
				switch string(req.URI().Path()) {
				case LoginPath:
					respondCookie(resp, "PHPSESSID", "sess-alice")
					resp.SetStatusCode(code)
					resp.Header.Set(fasthttp.HeaderLocation, "/home")
				default:
					resp.SetBodyString(fmt.Sprintf(loginPageFmt, "tok-alice"))
				}
			}}
			c := New(Config{Host: portalHost, Scheme: "http", UserAgent: "happytime-test"}, d, nopLogger{})

			tkn, err := c.Login(context.Background(), "acme", "alice", "secret")
			assert.Nil(t, err)
			assert.Equal(t, "tok-alice", tkn)

			reqs := d.requests()
			assert.Len(t, reqs, 2)
			assert.Contains(t, reqs[0], "Content-Length: ")

			head, body, found := strings.Cut(reqs[1], "\r\n\r\n")
			assert.True(t, found)
			assert.True(t, strings.HasPrefix(head, "GET /home HTTP/1.1"))
			assert.NotContains(t, strings.ToLower(head), "content-length")
			assert.NotContains(t, strings.ToLower(head), "content-type")
			assert.Contains(t, head, "User-Agent: happytime-test")
			assert.Contains(t, head, "PHPSESSID=sess-alice")
			assert.Empty(t, body)
		})
	}
}

func TestRedirectKeepsMethodOn307(t *testing.T) {
	d := &scriptedDoer{respond: func(req *fasthttp.Request, resp *fasthttp.Response) {
		switch string(req.URI().Path()) {
		case LoginPath:
			resp.SetStatusCode(fasthttp.StatusTemporaryRedirect)
			resp.Header.Set(fasthttp.HeaderLocation, "/login/retry")
		default:
			resp.SetBodyString(fmt.Sprintf(loginPageFmt, "tok-alice"))
		}
	}}
	c := New(Config{Host: portalHost, Scheme: "http"}, d, nopLogger{})

	_, err := c.Login(context.Background(), "acme", "alice", "secret")
	assert.Nil(t, err)

	reqs := d.requests()
	assert.Len(t, reqs, 2)
	assert.True(t, strings.HasPrefix(reqs[1], "POST /login/retry HTTP/1.1"))
	assert.Contains(t, reqs[1], `name="inputID"`)
}

func TestStaleResponseNeverReplacesNewSession(t *testing.T) {
	var enteredOnce sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	loginSent := make(chan struct{}, 1)

	d := &scriptedDoer{respond: func(req *fasthttp.Request, resp *fasthttp.Response) {
		switch string(req.URI().Path()) {
		case AttendancePath:
			enteredOnce.Do(func() { close(entered) })
			<-release
			respondCookie(resp, "PHPSESSID", "old-session")
			resp.SetBodyString(fmt.Sprintf(attendanceFmt, "2024-03-04"))
		case LoginPath:
			loginSent <- struct{}{}
			respondCookie(resp, "PHPSESSID", "new-session")
			resp.SetBodyString(fmt.Sprintf(loginPageFmt, "tok-new"))
		}
	}}
	c := New(Config{Host: portalHost, Scheme: "http"}, d, nopLogger{}, WithNow(func() time.Time { return workday }))

	attendanceDone := make(chan error, 1)
	go func() {
		_, err := c.Attendance(context.Background())
		attendanceDone <- err
	}()
	<-entered

	loginDone := make(chan error, 1)
	go func() {
		_, err := c.Login(context.Background(), "acme", "alice", "secret")
		loginDone <- err
	}()

	select {
	case <-loginSent:
		t.Fatal("login sent while a request of the previous session was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.Nil(t, <-attendanceDone)
	assert.Nil(t, <-loginDone)
	assert.Equal(t, "new-session", cookieValue(c.Jar(), "PHPSESSID"))
	assert.Equal(t, Authenticated, c.State())
}
