package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWiring(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token string
		want  Endpoint
	}{
		{"a", Endpoint{"a", "STDIN", "STDOUT"}},
		{"  a  ", Endpoint{"a", "STDIN", "STDOUT"}},
		{"a >o", Endpoint{"a", "STDIN", "o"}},
		{"a>o", Endpoint{"a", "STDIN", "o"}},
		{"i< b", Endpoint{"b", "i", "STDOUT"}},
		{"i<b", Endpoint{"b", "i", "STDOUT"}},
		{"<i b", Endpoint{"b", "i", "STDOUT"}},
		{"b o>", Endpoint{"b", "STDIN", "o"}},
		{"<i b o>", Endpoint{"b", "i", "o"}},
		{"x< b >y", Endpoint{"b", "x", "y"}},
		{"x<b>y", Endpoint{"b", "x", "y"}},
	}
	for _, tt := range tests {
		eps, err := ParseWiring(tt.token)
		require.NoError(t, err, tt.token)
		require.Equal(t, []Endpoint{tt.want}, eps, tt.token)
	}
}

func TestParseWiringSkipsBlankTokens(t *testing.T) {
	t.Parallel()

	eps, err := ParseWiring("", "a", "   ", "b")
	require.NoError(t, err)
	require.Len(t, eps, 2)
	require.Equal(t, "a", eps[0].Element)
	require.Equal(t, "b", eps[1].Element)
}

func TestParseWiringErrors(t *testing.T) {
	t.Parallel()

	for _, token := range []string{
		"<i",
		"a >",
		"< b",
		"a b",
		"i< ",
		"a >o >p",
		"x<<b",
	} {
		_, err := ParseWiring("ok", token)
		require.ErrorIs(t, err, ErrWiring, "%q", token)
		require.ErrorContains(t, err, token)
	}
}

func TestEndpointString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "i< b >o", Endpoint{"b", "i", "o"}.String())
}
