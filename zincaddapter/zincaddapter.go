package zincaddapter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wlo1561411/HappyTime/httpclient"
)

const (
	healthz              = "/healthz"
	createDocumentWithID = "/api/%s/_doc"
)

const timeout = time.Second * 5

var (
	ErrZincServerNotResponding = errors.New("zinc server not responding on given address")
	ErrZincServerWriteFailed   = errors.New("zinc server write failed")
)

// Config contains configuration for the zincsearch logger back-end.
// Empty Address disables the back-end.
type Config struct {
	Address string `yaml:"address"` // logger back-end server address
	Index   string `yaml:"index"`   // unique index per service to easy search for logs by the service
	Token   string `yaml:"token"`   // authorization header value, for example "Basic <base64>"
}

// Enabled reports whether the back-end is configured.
func (c Config) Enabled() bool {
	return c.Address != ""
}

type document struct {
	Message string `json:"message"`
	Source  string `json:"source"`
}

// ZincClient provides a client that sends logs to the zincsearch backend.
type ZincClient struct {
	url   string
	token string
}

// New creates a new ZincClient checking the back-end health first.
func New(cfg Config) (ZincClient, error) {
	address := strings.TrimSuffix(cfg.Address, "/")
	if err := httpclient.MakeGet(timeout, address+healthz, nil); err != nil {
		return ZincClient{}, errors.Join(ErrZincServerNotResponding, err)
	}
	return ZincClient{
		url:   address + fmt.Sprintf(createDocumentWithID, cfg.Index),
		token: cfg.Token,
	}, nil
}

// Write satisfies io.Writer abstraction.
func (z *ZincClient) Write(p []byte) (n int, err error) {
	doc := document{Message: string(p), Source: "happytime"}
	if err := httpclient.MakePostAuth(timeout, z.token, z.url, doc, nil); err != nil {
		return 0, errors.Join(ErrZincServerWriteFailed, err)
	}
	return len(p), nil
}
