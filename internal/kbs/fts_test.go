package kbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinTags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   []string
		want string
	}{
		{in: nil, want: ""},
		{in: []string{"color", "concepts"}, want: "color concepts"},
		{in: []string{"", "color", "  "}, want: "color"},
		{in: []string{"two words", "x"}, want: "two words x"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, JoinTags(tc.in), "JoinTags(%q)", tc.in)
	}
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "color concepts", want: []string{"color", "concepts"}},
		{in: "'color' 'concepts'", want: []string{"color", "concepts"}},
		{in: `"name"  names ''`, want: []string{"name", "names"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SplitTags(tc.in), "SplitTags(%q)", tc.in)
	}
}

func TestTagsRoundTrip(t *testing.T) {
	t.Parallel()

	tags := []string{"color", "concepts"}
	assert.Equal(t, tags, SplitTags(JoinTags(tags)))
}

func TestSearchTerms(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"color", "concepts"}, SearchTerms("color\tconcepts"))
	assert.Equal(t, []string{"its", "a"}, SearchTerms(" it's  \n'a' \"\" "))
	assert.Empty(t, SearchTerms("   "))
}

func TestBuildFTSQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: `""`, want: ""},
		{in: "pr-review", want: `"pr-review"`},
		{in: "release plan", want: `"release" "plan"`},
		{in: `hello "world"`, want: `"hello" "world"`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BuildFTSQuery(tc.in), "BuildFTSQuery(%q)", tc.in)
	}
}

func TestBuildTSQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "color", want: "'color'"},
		{in: "'color' names", want: "'color' & 'names'"},
		{in: `back\slash`, want: "'backslash'"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BuildTSQuery(tc.in), "BuildTSQuery(%q)", tc.in)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rick", EscapeLike("rick"))
	assert.Equal(t, `50\%\_off`, EscapeLike("50%_off"))
	assert.Equal(t, `a\\b`, EscapeLike(`a\b`))
}
