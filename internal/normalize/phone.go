package normalize

import (
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var (
	jidPattern   = regexp.MustCompile(`\d{5,20}(?::\d+)?@(?:c\.us|s\.whatsapp\.net)`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
)

// minPhoneDigits is the shortest digit run accepted as a phone number.
const minPhoneDigits = 7

// suffixMatchDigits is the shortest number compared by suffix in PhonesMatch.
const suffixMatchDigits = 8

// NormalizePhone strips everything but digits. A leading '+' is kept only when
// the input itself starts with one. Returns "" if the input has no digits.
func NormalizePhone(text string) string {
	digits := PhoneDigits(text)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(text), "+") {
		return "+" + digits
	}
	return digits
}

// PhoneDigits returns only the ASCII digits of text.
func PhoneDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractPhoneCandidate finds a phone number inside free text. The chat-network
// id form ("34612345678@c.us", optionally with a ":device" suffix) wins over a
// generic phone-shaped run of digits.
func ExtractPhoneCandidate(text string) string {
	if text == "" {
		return ""
	}
	if m := jidPattern.FindString(text); m != "" {
		if jid, err := types.ParseJID(m); err == nil && jid.User != "" {
			return PhoneDigits(jid.User)
		}
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		if len(PhoneDigits(m)) >= minPhoneDigits {
			return NormalizePhone(m)
		}
	}
	return ""
}

// LooksLikePhone reports whether text is essentially a phone number, as chat
// titles are for unsaved contacts.
func LooksLikePhone(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	digits := PhoneDigits(trimmed)
	if len(digits) < minPhoneDigits {
		return false
	}
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		case r == '\u00a0' || r == '\u202a' || r == '\u202c':
		default:
			return false
		}
	}
	return true
}

// PhonesMatch compares two phone numbers by digits. Numbers match when equal,
// or when the shorter one has at least eight digits and is a suffix of the
// longer one (country code present on one side only).
func PhonesMatch(a, b string) bool {
	da, db := PhoneDigits(a), PhoneDigits(b)
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	if len(da) > len(db) {
		da, db = db, da
	}
	return len(da) >= suffixMatchDigits && strings.HasSuffix(db, da)
}

// ParseChannelToken returns the first chat-network id embedded in a message id
// such as "false_34612345678@c.us_3EB0C7D1". ok is false when none is present.
func ParseChannelToken(id string) (types.JID, bool) {
	for _, part := range strings.Split(id, "_") {
		if !strings.Contains(part, "@") {
			continue
		}
		jid, err := types.ParseJID(part)
		if err != nil || jid.User == "" {
			continue
		}
		switch jid.Server {
		case types.DefaultUserServer, types.LegacyUserServer, types.GroupServer, types.HiddenUserServer:
			return jid, true
		}
	}
	return types.JID{}, false
}

// IsGroupJID reports whether jid addresses a group conversation.
func IsGroupJID(jid types.JID) bool {
	return jid.Server == types.GroupServer
}
