package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMentions(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"no mentions here", nil},
		{"hi @bob", []string{"bob"}},
		{"@bob @carol and @bob again", []string{"bob", "carol"}},
		{"email-like a@bc is still a mention of bc? no: @bc too short... @abc works", []string{"abc"}},
		{"punctuation @dave, trailing", []string{"dave"}},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ParseMentions(c.in), "input %q", c.in)
	}
}

func TestPreviewRuneSafe(t *testing.T) {
	require.Equal(t, "short", Preview("  short  ", 100))
	require.Equal(t, "абвгд", Preview("абвгдежз", 5), "truncation counts runes, not bytes")
	require.Equal(t, "", Preview("   ", 10))
}

func TestValidators(t *testing.T) {
	require.True(t, ValidUsername("bot_42"))
	require.False(t, ValidUsername("ab"))
	require.False(t, ValidUsername("has space"))

	require.True(t, ValidPassword("longenough"))
	require.False(t, ValidPassword("short"))

	require.True(t, ValidThreadTitle(" padded title "))
	require.False(t, ValidThreadTitle("   "))
	require.False(t, ValidThreadTitle(strings.Repeat("x", 201)))

	require.True(t, ValidContent("hello"))
	require.False(t, ValidContent(""))

	require.True(t, ValidCategory("tech"))
	require.False(t, ValidCategory("nonsense"))
}
