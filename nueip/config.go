package nueip

import (
	"strings"
	"time"
)

const (
	DefaultHost     = "cloud.nueip.com"
	DefaultScheme   = "https"
	DefaultSearchID = "42"
)

const (
	LoginPath      = "/login/index/param"
	ClockPath      = "/time_clocks/ajax"
	AttendancePath = "/attendance_record/ajax"
)

// Config holds the portal client configuration.
type Config struct {
	Host        string        `yaml:"host"`         // portal host, defaults to cloud.nueip.com
	Scheme      string        `yaml:"scheme"`       // defaults to https
	SearchID    string        `yaml:"search_id"`    // id embedded in the attendance search cookie names
	CompanyCode string        `yaml:"company_code"` // when set it replaces the company code typed by the user
	UserAgent   string        `yaml:"user_agent"`   // optional User-Agent header
	Timeout     time.Duration `yaml:"timeout"`      // zero leaves the transport default in place
}

// Defaults returns the config with empty fields set to their default values.
func (c Config) Defaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	if c.SearchID == "" {
		c.SearchID = DefaultSearchID
	}
	return c
}

// URL returns the absolute portal URL of the path.
func (c Config) URL(path string) string {
	return c.Scheme + "://" + strings.TrimSuffix(c.Host, "/") + path
}
