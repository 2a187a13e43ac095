package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveShorthand(t *testing.T) {
	cases := map[string]string{
		"user/repo":                         "https://github.com/user/repo",
		"gh:user/repo":                      "https://github.com/user/repo",
		"github:user/repo":                  "https://github.com/user/repo",
		"srht:user/repo":                    "https://git.sr.ht/~user/repo",
		"sourcehut:user/repo":               "https://git.sr.ht/~user/repo",
		"berg:user/repo":                    "https://codeberg.org/user/repo",
		"codeberg:user/repo":                "https://codeberg.org/user/repo",
		"https://example.org/user/repo.git": "https://example.org/user/repo.git",
	}
	for in, want := range cases {
		got, err := ResolveShorthand(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestResolveShorthand_UnknownService(t *testing.T) {
	_, err := ResolveShorthand("svn:user/repo")
	require.Error(t, err)
}

func TestSemverOrdering(t *testing.T) {
	assert.True(t, semverLess("v1.2.3", "v1.10.0"))
	assert.True(t, semverLess("0.9.9", "1.0.0"))
	assert.False(t, semverLess("2.0.0", "1.9.9"))
}

func TestIsSemverTag(t *testing.T) {
	assert.True(t, isSemverTag("1.2.3"))
	assert.True(t, isSemverTag("v1.2.3"))
	assert.False(t, isSemverTag("release-1"))
	assert.False(t, isSemverTag("1.2"))
}

func TestMajorOf(t *testing.T) {
	assert.Equal(t, "1", majorOf("v1.4.2"))
	assert.Equal(t, "2", majorOf("2.0.0"))
}
