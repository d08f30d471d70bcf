package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"quit", Command{Name: "quit"}},
		{"  Search   hello world ", Command{Name: "search", Args: "hello world"}},
		{"open +34 600 111 222", Command{Name: "open", Args: "+34 600 111 222"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.in))
		})
	}
}

func TestResolveAliases(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"q", "quit"},
		{"chat Ana", "open"},
		{"h", "help"},
		{"ob", "outbox"},
		{"events", "events"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cmd, err := ParseCommand(tt.in).Resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Name)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	_, err := ParseCommand("logout").Resolve()
	assert.ErrorContains(t, err, "unknown command")

	_, err = ParseCommand("send").Resolve()
	assert.ErrorContains(t, err, "needs a text")

	_, err = ParseCommand("o").Resolve()
	assert.ErrorContains(t, err, ":open needs")
}

func TestCompleteCommand(t *testing.T) {
	assert.Equal(t, []string{"open", "outbox"}, CompleteCommand("o"))
	assert.Equal(t, []string{"search", "send"}, CompleteCommand("SE"))
	assert.Empty(t, CompleteCommand("open Ana"), "arguments are not completed")
	assert.Empty(t, CompleteCommand("zz"))
}
