package zincaddapter

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestZincClientWritesDocuments(t *testing.T) {
	var mux sync.Mutex
	var docs []document
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	defer ln.Close()
	go fasthttp.Serve(ln, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case healthz:
			ctx.SetStatusCode(fasthttp.StatusOK)
		case "/api/happytime/_doc":
			if string(ctx.Request.Header.Peek("Authorization")) != "Basic test" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			var d document
			_ = json.Unmarshal(ctx.PostBody(), &d)
			mux.Lock()
			docs = append(docs, d)
			mux.Unlock()
			ctx.SetStatusCode(fasthttp.StatusCreated)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	z, err := New(Config{Address: "http://" + ln.Addr().String() + "/", Index: "happytime", Token: "Basic test"})
	assert.Nil(t, err)

	n, err := z.Write([]byte(`{"msg":"hello"}`))
	assert.Nil(t, err)
	assert.Equal(t, 15, n)

	mux.Lock()
	defer mux.Unlock()
	assert.Len(t, docs, 1)
	assert.Equal(t, `{"msg":"hello"}`, docs[0].Message)
}

func TestZincClientNotResponding(t *testing.T) {
	_, err := New(Config{Address: "http://127.0.0.1:1", Index: "happytime"})
	assert.True(t, errors.Is(err, ErrZincServerNotResponding))
}
