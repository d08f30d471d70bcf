package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+34 612 345 678", "+34612345678"},
		{"34 612-345-678", "34612345678"},
		{"  +1 (555) 010-9999 ", "+15550109999"},
		{"no digits", ""},
		{"", ""},
		{"tel 612+345", "612345"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestExtractPhoneCandidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"chat network id", "34612345678@c.us", "34612345678"},
		{"device suffix", "34612345678:12@c.us", "34612345678"},
		{"multi device server", "5511999998888@s.whatsapp.net", "5511999998888"},
		{"id wins over generic", "call +1 555 0100 or 34612345678@c.us", "34612345678"},
		{"generic phone", "Ana (+34 600 111 222)", "+34600111222"},
		{"too short", "room 12345", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPhoneCandidate(tt.in))
		})
	}
}

func TestPhonesMatch(t *testing.T) {
	assert.True(t, PhonesMatch("+34600111222", "34 600 111 222"))
	assert.True(t, PhonesMatch("+34600111222", "600111222"))
	assert.False(t, PhonesMatch("+34600111222", "+34600111333"))
	assert.False(t, PhonesMatch("1222", "+34600111222"), "short suffix must not match")
	assert.False(t, PhonesMatch("", "600111222"))
}

func TestLooksLikePhone(t *testing.T) {
	assert.True(t, LooksLikePhone("+34 600 11 12 22"))
	assert.False(t, LooksLikePhone("Ana 600111222"))
	assert.False(t, LooksLikePhone("123"))
}

func TestNormalizeLookupToken(t *testing.T) {
	assert.Equal(t, "jose maria", NormalizeLookupToken("  José   MARÍA "))
	assert.Equal(t, "nino", NormalizeLookupToken("Niño"))
	assert.Equal(t, "", NormalizeLookupToken(""))
}

func TestToStableHash(t *testing.T) {
	// FNV-1a reference vectors.
	assert.Equal(t, uint32(0x811c9dc5), ToStableHash(""))
	assert.Equal(t, uint32(0xe40c292c), ToStableHash("a"))
	assert.Equal(t, ToStableHash("hola"), ToStableHash("hola"))
	assert.NotEqual(t, StableHashString("hola"), StableHashString("hola!"))
}

func TestParseChannelToken(t *testing.T) {
	jid, ok := ParseChannelToken("false_34612345678@c.us_3EB0C7D1A2")
	assert.True(t, ok)
	assert.Equal(t, "34612345678", jid.User)
	assert.False(t, IsGroupJID(jid))

	jid, ok = ParseChannelToken("true_120363025246125486@g.us_3EB0AA_34600111222@c.us")
	assert.True(t, ok)
	assert.True(t, IsGroupJID(jid))

	_, ok = ParseChannelToken("3EB0C7D1A2")
	assert.False(t, ok)
}
