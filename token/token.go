// Package token extracts the login token the portal embeds in its login page.
package token

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	containerSelector = ".mobile_view"
	inputName         = "token"
)

var ErrInvalidToken = errors.New("invalid token")

// Extract returns the value of the <input name="token"> found inside an element with the
// mobile_view class. When several inputs match, the last one in document order wins.
func Extract(htmlBody []byte) (string, error) {
	if !utf8.Valid(htmlBody) {
		return "", errors.Join(ErrInvalidToken, errors.New("body is not valid utf-8"))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	containers := doc.Find(containerSelector)
	if containers.Length() == 0 {
		return "", errors.Join(ErrInvalidToken, fmt.Errorf("no %s element", containerSelector))
	}

	var (
		value string
		found bool
	)
	containers.Each(func(_ int, container *goquery.Selection) {
		container.Find("input").Each(func(_ int, input *goquery.Selection) {
			if name, _ := input.Attr("name"); name == inputName {
				value = input.AttrOr("value", "")
				found = true
			}
		})
	})
	if !found {
		return "", errors.Join(ErrInvalidToken, fmt.Errorf("no %s input in %s", inputName, containerSelector))
	}

	return value, nil
}
