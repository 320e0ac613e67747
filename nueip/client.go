// Package nueip is the web client of the NUEIP attendance portal.
// It logs in with form posts, clocks in or out and reads today's attendance record.
package nueip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/wlo1561411/HappyTime/attendance"
	"github.com/wlo1561411/HappyTime/formdata"
	"github.com/wlo1561411/HappyTime/geofence"
	"github.com/wlo1561411/HappyTime/logger"
	"github.com/wlo1561411/HappyTime/session"
	"github.com/wlo1561411/HappyTime/token"
)

const maxRedirects = 10

var (
	ErrInvalidURL     = formdata.ErrInvalidURL
	ErrInvalidSession = session.ErrInvalidSession
	ErrInvalidToken   = token.ErrInvalidToken
	ErrInvalidValue   = attendance.ErrInvalidValue
)

var (
	ErrHTTPResponseFail  = errors.New("http response fail")
	ErrHTTPResponseError = errors.New("http response error")
	ErrRequestFail       = errors.New("request fail")
)

// StatusError carries the status code and body of a non 2xx response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// Doer sends a request and reads the response. *fasthttp.Client satisfies it.
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Option configures the Client.
type Option func(*Client)

// WithNow replaces the clock used to pick today's attendance date.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client talks to the portal. The cookie jar is shared by every call of the client.
// Logins and logouts hold the session lock exclusively, so a login never sends cookies of
// another login and no response of an earlier session lands in the jar after the wipe.
type Client struct {
	cfg        Config
	doer       Doer
	jar        *session.Jar
	log        logger.Logger
	now        func() time.Time
	sessionMux sync.RWMutex
	stateMux   sync.RWMutex
	state      State
}

// New creates a Client. A nil doer uses a fresh fasthttp.Client.
func New(cfg Config, doer Doer, log logger.Logger, opts ...Option) *Client {
	cfg = cfg.Defaults()
	if doer == nil {
		doer = &fasthttp.Client{Name: cfg.UserAgent}
	}
	c := &Client{
		cfg:  cfg,
		doer: doer,
		jar:  session.New(cfg.Host, cfg.SearchID),
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Jar exposes the cookie jar.
func (c *Client) Jar() *session.Jar {
	return c.jar
}

// State returns the current session state.
func (c *Client) State() State {
	c.stateMux.RLock()
	defer c.stateMux.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.stateMux.Lock()
	c.state = s
	c.stateMux.Unlock()
}

func (c *Client) swapState(from, to State) {
	c.stateMux.Lock()
	if c.state == from {
		c.state = to
	}
	c.stateMux.Unlock()
}

// Logout forgets every cookie and returns to the unauthenticated state.
func (c *Client) Logout() {
	c.sessionMux.Lock()
	defer c.sessionMux.Unlock()
	c.jar.RemoveAll()
	c.setState(Unauthenticated)
}

// Login wipes the cookie jar, posts the credentials and returns the token found in the
// returned page. Credentials are never logged.
func (c *Client) Login(ctx context.Context, code, account, password string) (string, error) {
	c.sessionMux.Lock()
	defer c.sessionMux.Unlock()

	c.setState(Authenticating)
	c.jar.RemoveAll()

	body, err := c.post(ctx, LoginPath, formdata.Fields{
		{Name: "inputCompany", Value: code},
		{Name: "inputID", Value: account},
		{Name: "inputPassword", Value: password},
	})
	if err != nil {
		c.setState(Unauthenticated)
		c.log.Warn(fmt.Sprintf("nueip: login failed, %s", err))
		return "", err
	}

	tkn, err := token.Extract(body)
	if err != nil {
		c.setState(Unauthenticated)
		c.log.Warn(fmt.Sprintf("nueip: login page without token, %s", err))
		return "", err
	}

	c.setState(Authenticated)
	c.log.Info("nueip: logged in")
	return tkn, nil
}

// Clock posts a clock in or clock out request. It is not idempotent, each call is a new
// punch on the server side. Coordinates are sent with exactly six fractional digits.
func (c *Client) Clock(ctx context.Context, dir Direction, tkn string, lat, lng float64) (ClockResponse, error) {
	if !dir.valid() {
		return ClockResponse{}, errors.Join(ErrInvalidValue, ErrUnknownDirection, fmt.Errorf("%d", int(dir)))
	}

	c.sessionMux.RLock()
	defer c.sessionMux.RUnlock()

	c.swapState(Authenticated, ClockPending)
	defer c.swapState(ClockPending, Authenticated)

	latValue, lngValue := geofence.Coordinate{Latitude: lat, Longitude: lng}.Fields()
	body, err := c.post(ctx, ClockPath, formdata.Fields{
		{Name: "action", Value: "add"},
		{Name: "id", Value: strconv.Itoa(dir.Param())},
		{Name: "token", Value: tkn},
		{Name: "lat", Value: latValue},
		{Name: "lng", Value: lngValue},
	})
	if err != nil {
		c.log.Warn(fmt.Sprintf("nueip: clock %s failed, %s", dir, err))
		return ClockResponse{}, err
	}

	var res ClockResponse
	if err := json.Unmarshal(body, &res); err != nil {
		c.log.Warn(fmt.Sprintf("nueip: clock %s response not decodable, %s", dir, err))
		return ClockResponse{}, errors.Join(ErrRequestFail, err)
	}
	c.log.Info(fmt.Sprintf("nueip: clock %s answered with status %q", dir, res.Status))
	return res, nil
}

// Attendance reads today's punch record. It scopes the search to today with the date
// range cookies first.
func (c *Client) Attendance(ctx context.Context) (attendance.Record, error) {
	c.sessionMux.RLock()
	defer c.sessionMux.RUnlock()

	today := c.now()
	if err := c.jar.PrepareAttendance(today); err != nil {
		return attendance.Record{}, err
	}

	body, err := c.post(ctx, AttendancePath, formdata.Fields{
		{Name: "action", Value: "attendance"},
		{Name: "loadinBatch", Value: "1"},
		{Name: "loadBatchGroupNum", Value: "6000"},
		{Name: "loadBatchNumber", Value: "1"},
		{Name: "work_status", Value: "1,4"},
	})
	if err != nil {
		c.log.Warn(fmt.Sprintf("nueip: attendance failed, %s", err))
		return attendance.Record{}, err
	}

	rec, err := attendance.Normalize(body, today)
	if err != nil {
		c.log.Warn(fmt.Sprintf("nueip: attendance response not usable, %s", err))
		return attendance.Record{}, err
	}
	return rec, nil
}

func (c *Client) post(ctx context.Context, path string, fields formdata.Fields) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(ErrRequestFail, err)
	}

	req, err := formdata.Build(c.cfg.URL(path), fields)
	if err != nil {
		return nil, err
	}
	defer fasthttp.ReleaseRequest(req)
	if c.cfg.UserAgent != "" {
		req.Header.SetUserAgent(c.cfg.UserAgent)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.exchange(ctx, req, resp); err != nil {
		return nil, err
	}

	code := resp.StatusCode()
	body := bytes.Clone(resp.Body())
	switch {
	case code < 100 || code > 599:
		return nil, errors.Join(ErrHTTPResponseError, fmt.Errorf("status code %d", code))
	case code < 200 || code > 299:
		return nil, errors.Join(ErrHTTPResponseFail, &StatusError{StatusCode: code, Body: body})
	}
	return body, nil
}

// exchange sends req, following redirects the way a browser does: 307 and 308 repeat the
// request, other redirects continue with a GET without body. Cookies are captured on every hop.
func (c *Client) exchange(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	for hop := 0; ; hop++ {
		req.Header.DelAllCookies()
		c.jar.Apply(req)

		if err := c.do(ctx, req, resp); err != nil {
			return errors.Join(ErrRequestFail, err)
		}
		c.jar.Capture(resp)

		code := resp.StatusCode()
		location := resp.Header.Peek(fasthttp.HeaderLocation)
		if !fasthttp.StatusCodeIsRedirect(code) || len(location) == 0 {
			return nil
		}
		if hop == maxRedirects {
			return errors.Join(ErrRequestFail, fmt.Errorf("stopped after %d redirects", maxRedirects))
		}

		next := fasthttp.AcquireURI()
		req.URI().CopyTo(next)
		next.UpdateBytes(location)
		if code != fasthttp.StatusTemporaryRedirect && code != fasthttp.StatusPermanentRedirect {
			// a fresh request, headers of the body such as Content-Length must not survive
			req.Reset()
			req.Header.SetMethod(fasthttp.MethodGet)
			if c.cfg.UserAgent != "" {
				req.Header.SetUserAgent(c.cfg.UserAgent)
			}
		}
		req.SetRequestURIBytes(next.FullURI())
		fasthttp.ReleaseURI(next)
		resp.Reset()

		if err := ctx.Err(); err != nil {
			return errors.Join(ErrRequestFail, err)
		}
	}
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if deadline, ok := ctx.Deadline(); ok {
		return c.doer.DoDeadline(req, resp, deadline)
	}
	if c.cfg.Timeout > 0 {
		return c.doer.DoTimeout(req, resp, c.cfg.Timeout)
	}
	return c.doer.Do(req, resp)
}
