package formdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func readParts(t *testing.T, req *fasthttp.Request) map[string]string {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(string(req.Header.ContentType()))
	assert.Nil(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(bytes.NewReader(req.Body()), params["boundary"])
	parts := make(map[string]string)
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		assert.Nil(t, err)
		raw, err := io.ReadAll(p)
		assert.Nil(t, err)
		parts[p.FormName()] = string(raw)
	}
	return parts
}

func TestBuildMultipartRequest(t *testing.T) {
	fields := Fields{
		{Name: "action", Value: "attendance"},
		{Name: "loadinBatch", Value: 1},
		{Name: "loadBatchGroupNum", Value: 6000},
		{Name: "work_status", Value: "1,4"},
		{Name: "lat", Value: "25.080150"},
	}

	req, err := Build("https://cloud.nueip.com/attendance_record/ajax", fields)
	assert.Nil(t, err)
	defer fasthttp.ReleaseRequest(req)

	assert.Equal(t, fasthttp.MethodPost, string(req.Header.Method()))
	assert.Equal(t, "https://cloud.nueip.com/attendance_record/ajax", string(req.URI().FullURI()))
	assert.True(t, strings.HasPrefix(string(req.Header.ContentType()), "multipart/form-data; boundary=Boundary+"))

	parts := readParts(t, req)
	assert.Equal(t, map[string]string{
		"action":            "attendance",
		"loadinBatch":       "1",
		"loadBatchGroupNum": "6000",
		"work_status":       "1,4",
		"lat":               "25.080150",
	}, parts)
}

func TestBuildInvalidURL(t *testing.T) {
	for i, raw := range []string{"", "://cloud", "ftp://cloud.nueip.com/x", "https:///path-only", "https://exa mple.com"} {
		t.Run(fmt.Sprintf("invalid-url-%d", i), func(t *testing.T) {
			req, err := Build(raw, Fields{{Name: "a", Value: "b"}})
			assert.Nil(t, req)
			assert.True(t, errors.Is(err, ErrInvalidURL))
		})
	}
}

func TestBoundaryIsRandom(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		b := Boundary()
		assert.True(t, strings.HasPrefix(b, boundaryPrefix))
		assert.LessOrEqual(t, len(b), 70)
		seen[b] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestFieldsGet(t *testing.T) {
	f := Fields{{Name: "id", Value: 2}, {Name: "token", Value: "abc"}}
	v, ok := f.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = f.Get("missing")
	assert.False(t, ok)
}

func BenchmarkBuild(b *testing.B) {
	fields := Fields{{Name: "action", Value: "add"}, {Name: "id", Value: 1}, {Name: "token", Value: "abc"}}
	for i := 0; i < b.N; i++ {
		req, err := Build("https://cloud.nueip.com/time_clocks/ajax", fields)
		if err != nil {
			b.Fatal(err)
		}
		fasthttp.ReleaseRequest(req)
	}
}
