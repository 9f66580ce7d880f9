package dto

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

// ValidationErrors collects every problem found in one request.
type ValidationErrors struct {
	Messages []string
}

func (v *ValidationErrors) Error() string {
	return strings.Join(v.Messages, "; ")
}

func (v *ValidationErrors) Add(msg string) {
	v.Messages = append(v.Messages, msg)
}

// Err returns nil when nothing was added.
func (v *ValidationErrors) Err() error {
	if len(v.Messages) == 0 {
		return nil
	}
	return v
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func checkPage(v *ValidationErrors, page, perPage int) {
	if page < 0 {
		v.Add("page must be positive")
	}
	if perPage < 0 || perPage > 100 {
		v.Add("per_page must be between 1 and 100")
	}
}
