// Package formdata builds the multipart/form-data POST requests the attendance portal expects.
package formdata

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"time"

	"github.com/mr-tron/base58"
	"github.com/valyala/fasthttp"
)

const (
	boundaryPrefix = "Boundary+"
	boundaryBytes  = 12
)

var ErrInvalidURL = errors.New("invalid url")

// Field is a single form field. Value is printed with %v.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered list of form fields.
type Fields []Field

// Get returns the printed value of the first field with the given name.
func (f Fields) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return fmt.Sprint(field.Value), true
		}
	}
	return "", false
}

// Boundary returns a random multipart boundary.
// It only has to be unlikely to appear in field values.
func Boundary() string {
	b := make([]byte, boundaryBytes)
	if _, err := rand.Read(b); err != nil {
		binary.BigEndian.PutUint64(b, uint64(time.Now().UnixNano()))
	}
	return boundaryPrefix + base58.Encode(b)
}

// ParseURL validates that raw is an absolute http or https URL with a host.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Join(ErrInvalidURL, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, errors.Join(ErrInvalidURL, errors.New("missing host"))
	}
	return u, nil
}

// Build creates a POST request to rawURL carrying fields as multipart/form-data.
// The URL is validated before anything is built. Release the request with fasthttp.ReleaseRequest.
func Build(rawURL string, fields Fields) (*fasthttp.Request, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	boundary := Boundary()
	body, err := Encode(boundary, fields)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	req.SetRequestURI(u.String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(ContentType(boundary))
	req.SetBody(body)

	return req, nil
}

// ContentType returns the Content-Type header value for the boundary.
func ContentType(boundary string) string {
	return "multipart/form-data; boundary=" + boundary
}

// Encode serializes fields as multipart parts separated by boundary, closing boundary included.
func Encode(boundary string, fields Fields) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if err := w.WriteField(f.Name, fmt.Sprint(f.Value)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
