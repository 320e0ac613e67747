package token

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSuccess(t *testing.T) {
	cases := []struct {
		body  string
		token string
	}{
		{`<div class="mobile_view"><input name="token" value="abc123"></div>`, "abc123"},
		{`<html><body><form><div class="row mobile_view"><input type="hidden" name="other" value="x"><input type="hidden" name="token" value="t0k"></div></form></body></html>`, "t0k"},
		{`<div class="mobile_view"><input name="token" value="first"></div><div class="mobile_view"><input name="token" value="last"></div>`, "last"},
		{`<div class="mobile_view"><section><p><input name="token" value="nested"></p></section></div>`, "nested"},
		{`<div class="mobile_view"><input name="token"></div>`, ""},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("extract-%d", i), func(t *testing.T) {
			tkn, err := Extract([]byte(c.body))
			assert.Nil(t, err)
			assert.Equal(t, c.token, tkn)
		})
	}
}

func TestExtractInvalidToken(t *testing.T) {
	cases := []string{
		``,
		`<div class="desktop_view"><input name="token" value="abc123"></div>`,
		`<div class="mobile_view"><input name="csrf" value="abc123"></div>`,
		`<input name="token" value="outside"><div class="mobile_view"></div>`,
		"\xff\xfe\xfd",
	}
	for i, body := range cases {
		t.Run(fmt.Sprintf("invalid-%d", i), func(t *testing.T) {
			tkn, err := Extract([]byte(body))
			assert.True(t, errors.Is(err, ErrInvalidToken))
			assert.Equal(t, "", tkn)
		})
	}
}
