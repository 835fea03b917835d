// Package phone normalizes contact numbers to E.164. Numbers without a
// country prefix are read as Chilean.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "CL"

var ErrInvalid = errors.New("invalid phone number")

// Normalize returns input in E.164 form, or ErrInvalid.
func Normalize(input string) (string, error) {
	number, err := phonenumbers.Parse(strings.TrimSpace(input), defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", ErrInvalid
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}
