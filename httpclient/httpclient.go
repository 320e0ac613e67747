package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	ErrStatusCodeMismatch  = errors.New("status code mismatch")
	ErrContentTypeMismatch = errors.New("content type mismatch")
	ErrRequestFailed       = errors.New("request failed")
)

const contentTypeJSON = "application/json"

// MakePost makes a post request with serialized 'out' structure which is send to the given 'url'.
// 'in' is a pointer to the structure to be deserialized from the received json data, may be nil.
func MakePost(timeout time.Duration, url string, out, in any) error {
	return MakePostAuth(timeout, "", url, out, in)
}

// MakePostAuth makes a post request the same way as MakePost adding the authorization header when token is not empty.
func MakePostAuth(timeout time.Duration, token, url string, out, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentTypeJSON)
	req.Header.Set("accept", contentTypeJSON)
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req.SetBody(raw)

	return do(req, timeout, in)
}

// MakeGet makes a get request to the given 'url'.
// 'in' is a pointer to the structure to be deserialized from the received json data, may be nil.
func MakeGet(timeout time.Duration, url string, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("accept", contentTypeJSON)

	return do(req, timeout, in)
}

func do(req *fasthttp.Request, timeout time.Duration, in any) error {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return errors.Join(ErrRequestFailed, err)
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK, fasthttp.StatusCreated, fasthttp.StatusAccepted:
	case fasthttp.StatusNoContent:
		return nil
	default:
		return errors.Join(
			ErrStatusCodeMismatch,
			fmt.Errorf("expected status code %d but got %d", fasthttp.StatusOK, resp.StatusCode()))
	}

	if in == nil {
		return nil
	}

	contentType := resp.Header.ContentType()
	if !bytes.HasPrefix(contentType, []byte(contentTypeJSON)) {
		return errors.Join(
			ErrContentTypeMismatch,
			fmt.Errorf("expected content type %s but got %s", contentTypeJSON, contentType))
	}

	return json.Unmarshal(resp.Body(), in)
}
