package scope

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.example.co.uk", "example.co.uk"},
		{"example.com", "example.com"},
		{"a.b.Example.COM", "example.com"},
		{"example.com:8080", "example.com"},
		{"127.0.0.1", "127.0.0.1"},
		{"[::1]", "::1"},
		{"localhost", "localhost"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, RegistrableDomain(tt.host))
		})
	}
}

func TestSameScope(t *testing.T) {
	assert.True(t, SameScope(mustParse(t, "http://www.example.com/a"), mustParse(t, "https://cdn.example.com/b")))
	assert.False(t, SameScope(mustParse(t, "http://example.com"), mustParse(t, "http://other.com")))
	assert.False(t, SameScope(mustParse(t, "http://example.co.uk"), mustParse(t, "http://other.co.uk")))
	assert.False(t, SameScope(nil, mustParse(t, "http://example.com")))
	assert.False(t, SameScope(mustParse(t, "/relative"), mustParse(t, "/other")))
}

func TestResolve(t *testing.T) {
	base := mustParse(t, "http://example.com")

	got, ok := Resolve(base, "admin/login")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/admin/login", got.String(), "empty base path resolves as /")

	page := mustParse(t, "http://example.com/docs/page")
	got, ok = Resolve(page, "next")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/docs/page/next", got.String(), "base path is treated as a directory")

	got, ok = Resolve(page, "../x?y=1")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/docs/x?y=1", got.String())

	got, ok = Resolve(page, "/root.js")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/root.js", got.String())

	for _, ref := range []string{"", "   ", "#top", "javascript:void(0)", "JavaScript:alert(1)", "mailto:a@b.c"} {
		_, ok := Resolve(base, ref)
		assert.False(t, ok, "ref %q should be discarded", ref)
	}

	_, ok = Resolve(base, "http://[::1")
	assert.False(t, ok, "malformed references are dropped")
	assert.Equal(t, "", ResolveString(base, "#x"))
}

func TestIsHTTP(t *testing.T) {
	assert.True(t, IsHTTP(mustParse(t, "https://example.com/x")))
	assert.True(t, IsHTTP(mustParse(t, "HTTP://example.com")))
	assert.False(t, IsHTTP(mustParse(t, "ftp://example.com")))
	assert.False(t, IsHTTP(mustParse(t, "/path")))
	assert.False(t, IsHTTP(nil))
}

func TestBaseAndRoot(t *testing.T) {
	u := mustParse(t, "https://example.com:8443?q=1#frag")
	b := Base(u)
	assert.Equal(t, "https://example.com:8443/?q=1", b.String())
	assert.Equal(t, "https://example.com:8443?q=1#frag", u.String(), "input is not modified")
	assert.Equal(t, "https://example.com:8443/", Root(u).String())
}

func TestBaseAppendsTrailingSlash(t *testing.T) {
	u := mustParse(t, "http://example.com/docs/page?v=2#s")
	assert.Equal(t, "http://example.com/docs/page/?v=2", Base(u).String())
	assert.Equal(t, "http://example.com/docs/page", u.Path, "input is not modified")

	dir := mustParse(t, "http://example.com/docs/")
	assert.Equal(t, "http://example.com/docs/", Base(dir).String(), "existing slash is kept")

	escaped := mustParse(t, "http://example.com/a%2Fb")
	assert.Equal(t, "/a/b/", Base(escaped).Path)
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Dedup([]string{"b", "a", "", "b", "c", "a"}))
	assert.Equal(t, []string{}, Dedup(nil))
}
