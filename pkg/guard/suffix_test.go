package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: ".log", want: ".log", ok: true},
		{in: "LOG", want: ".log", ok: true},
		{in: " .TxT ", want: ".txt", ok: true},
		{in: "*", want: AllSuffixes, ok: true},
		{in: ".*", want: AllSuffixes, ok: true},
		{in: "", ok: false},
		{in: "   ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := normalizeSuffix(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSuffixSet(t *testing.T) {
	var s SuffixSet
	s.AddAll([]string{"log", ".LOG", ".txt", ""})
	require.Equal(t, []string{".log", ".txt"}, s.List())

	s.Remove("TXT")
	require.Equal(t, []string{".log"}, s.List())

	s.Add("*")
	require.True(t, s.IsWildcard())
	require.Equal(t, []string{AllSuffixes}, s.List())

	// the wildcard absorbs later additions
	s.Add(".doc")
	require.Equal(t, []string{AllSuffixes}, s.List())

	s.collapse()
	require.Empty(t, s.List())

	s.AddAll([]string{".a", ".b"})
	s.RemoveAll([]string{"a", "b", "c"})
	require.Empty(t, s.List())

	s.Add(".a")
	s.Clear()
	require.Empty(t, s.List())
}

func TestSuffixSet_Match(t *testing.T) {
	var s SuffixSet
	require.True(t, s.Match("/data/anything"), "empty set matches everything.")

	s.Add(".txt")
	require.True(t, s.Match("/data/report.TXT"))
	require.True(t, s.Match("/data/a.b.txt"))
	require.False(t, s.Match("/data/report.doc"))
	require.False(t, s.Match("/data/README"))

	s.Add("*")
	require.True(t, s.Match("/data/report.doc"))
	require.True(t, s.Match("/data/README"))
}
