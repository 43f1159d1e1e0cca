// Package tag holds the pure rules around tag identifiers, owner channels and
// the scan-page state machine.
package tag

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/model"
)

// NormalizeID trims and uppercases a printed or typed tag identifier.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// MaxIDLength bounds a printed tag identifier.
const MaxIDLength = 64

var idPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]*$`)

// ValidID reports whether a normalized id only uses the printable
// alphabet. Such ids are stable in scan URLs and archive file names.
func ValidID(id string) bool {
	return len(id) <= MaxIDLength && idPattern.MatchString(id)
}

// HasPrefix reports whether a normalized id carries the inventory prefix.
func HasPrefix(id, prefix string) bool {
	return prefix == "" || strings.HasPrefix(id, NormalizeID(prefix))
}

// Sequence returns count inventory ids starting at start, zero padded to
// four digits: FS-0001, FS-0002, ...
func Sequence(prefix string, start, count int) []string {
	if count <= 0 {
		return nil
	}
	p := NormalizeID(prefix)
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%04d", p, start+i)
	}
	return ids
}

// NormalizeChannel turns a locally typed phone number into a relay address:
// digits only, leading zeros dropped, country code digits prefixed.
func NormalizeChannel(raw, countryCode string) (string, error) {
	number := strings.TrimLeft(digits(raw), "0")
	if number == "" {
		return "", apperr.InvalidFormat("Please enter a valid mobile number")
	}
	code := digits(countryCode)
	if code == "" {
		return "", apperr.InvalidFormat("Please select a country code")
	}
	return code + number, nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ScanURL is the canonical URL encoded into a tag's QR code.
func ScanURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/s/" + url.PathEscape(id)
}

// RegisterPath is where scans of unclaimed tags are sent.
func RegisterPath(id string) string {
	return "/register?tag=" + url.QueryEscape(id)
}

// RelayLink builds a deep link that opens the owner's message-relay chat
// with text pre-filled.
func RelayLink(number, text string) string {
	return "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// RelayMessage is the text pre-filled for a GENERAL contact.
func RelayMessage(id string) string {
	return "Hi, I'm at your vehicle (" + id + "). Please check your vehicle status."
}

// ScanState is the outcome of evaluating a tag on scan-page load.
type ScanState string

const (
	StateNotFound     ScanState = "NOT_FOUND"
	StateUnregistered ScanState = "UNREGISTERED"
	StateMuted        ScanState = "MUTED"
	StateActive       ScanState = "ACTIVE"
)

// Classify evaluates the scan state for a freshly fetched row. A fetch error
// and an absent row are treated alike.
func Classify(t *model.Tag, fetchErr error) ScanState {
	switch {
	case fetchErr != nil || t == nil:
		return StateNotFound
	case !t.IsRegistered:
		return StateUnregistered
	case !t.PushEnabled:
		return StateMuted
	default:
		return StateActive
	}
}

// Actions lists the alert categories offered to a scanner in a state.
func (s ScanState) Actions() []model.Category {
	if s != StateActive {
		return nil
	}
	return model.Categories
}

// NeedsRegistration reports whether the scanner should be sent to the
// registration flow.
func (s ScanState) NeedsRegistration() bool {
	return s == StateNotFound || s == StateUnregistered
}
