package nueip

import (
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/wlo1561411/HappyTime/logging"
)

const portalHost = "portal.test"

const loginPageFmt = `<html><body>
<div class="desktop_view"><input name="token" value="desktop"></div>
<div class="mobile_view"><form><input type="hidden" name="token" value="%s"></form></div>
</body></html>`

type recorded struct {
	method  string
	path    string
	fields  map[string]string
	cookies map[string]string
}

type fakePortal struct {
	mux      sync.Mutex
	requests []recorded

	loginStatus    int
	loginPage      string
	redirectLogin  bool
	clockStatus    int
	clockBody      string
	attendanceBody string
}

func (p *fakePortal) handle(ctx *fasthttp.RequestCtx) {
	rec := recorded{
		method:  string(ctx.Method()),
		path:    string(ctx.Path()),
		fields:  map[string]string{},
		cookies: map[string]string{},
	}
	ctx.Request.Header.VisitAllCookie(func(k, v []byte) {
		rec.cookies[string(k)] = string(v)
	})
	if form, err := ctx.MultipartForm(); err == nil {
		for k, v := range form.Value {
			if len(v) > 0 {
				rec.fields[k] = v[0]
			}
		}
	}

	p.mux.Lock()
	p.requests = append(p.requests, rec)
	loginStatus, loginPage, redirect := p.loginStatus, p.loginPage, p.redirectLogin
	clockStatus, clockBody, attendanceBody := p.clockStatus, p.clockBody, p.attendanceBody
	p.mux.Unlock()

	switch rec.path {
	case LoginPath:
		if loginStatus != 0 {
			ctx.SetStatusCode(loginStatus)
			ctx.SetBodyString("server error")
			return
		}
		setCookie(ctx, "PHPSESSID", "sess-"+rec.fields["inputID"])
		if redirect {
			ctx.Redirect("/home?account="+rec.fields["inputID"], fasthttp.StatusFound)
			return
		}
		ctx.SetContentType("text/html; charset=utf-8")
		if loginPage != "" {
			ctx.SetBodyString(loginPage)
			return
		}
		ctx.SetBodyString(fmt.Sprintf(loginPageFmt, "tok-"+rec.fields["inputID"]))
	case "/home":
		setCookie(ctx, "home_seen", "1")
		ctx.SetContentType("text/html; charset=utf-8")
		ctx.SetBodyString(fmt.Sprintf(loginPageFmt, "tok-"+string(ctx.QueryArgs().Peek("account"))))
	case ClockPath:
		if clockStatus != 0 {
			ctx.SetStatusCode(clockStatus)
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(clockBody)
	case AttendancePath:
		ctx.SetContentType("application/json")
		ctx.SetBodyString(attendanceBody)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (p *fakePortal) recorded() []recorded {
	p.mux.Lock()
	defer p.mux.Unlock()
	return append([]recorded(nil), p.requests...)
}

func (p *fakePortal) set(fn func(p *fakePortal)) {
	p.mux.Lock()
	defer p.mux.Unlock()
	fn(p)
}

func setCookie(ctx *fasthttp.RequestCtx, name, value string) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(name)
	c.SetValue(value)
	c.SetPath("/")
	ctx.Response.Header.SetCookie(c)
}

// startPortal serves a fake portal on an in memory listener and returns a client dialing it.
func startPortal(t *testing.T, opts ...Option) (*fakePortal, *Client, *fasthttputil.InmemoryListener) {
	t.Helper()

	portal := &fakePortal{}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: portal.handle}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		ln.Close()
	})

	doer := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
	log := logging.New("nueip-test", func(error) {}, func(error) {}, io.Discard)
	c := New(Config{Host: portalHost, Scheme: "http"}, doer, log, opts...)
	return portal, c, ln
}
