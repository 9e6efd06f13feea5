package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-gateway/atrium/config"
)

func testApps() []config.App {
	return []config.App{
		{
			ID:      1,
			Name:    "Files",
			IsProxy: true,
			Host:    "files",
			Target:  "http://127.0.0.1:9000",
		},
		{
			ID:         2,
			Name:       "Docs",
			Host:       "docs",
			Target:     "./data/docs",
			Subdomains: []string{"wiki", "notes"},
		},
	}
}

func TestBuild(t *testing.T) {
	c := &config.Config{
		Hostname: "atrium.io",
		Domain:   "atrium.io",
		Apps:     testApps(),
	}
	table, err := Build(c)
	require.NoError(t, err)

	// one base entry per app plus one per declared subdomain
	assert.Equal(t, 4, table.Len())

	files := table.Resolve("files.atrium.io")
	require.NotNil(t, files)
	reverse, ok := files.(*ReverseApp)
	require.True(t, ok)
	assert.Equal(t, "http", reverse.AppScheme)
	assert.Equal(t, "files.atrium.io:8080", reverse.AppAuthority)
	assert.Equal(t, "http", reverse.ForwardScheme)
	assert.Equal(t, "127.0.0.1:9000", reverse.ForwardAuthority)
	assert.Equal(t, "9000", reverse.ForwardPort())

	docs := table.Resolve("docs.atrium.io")
	require.NotNil(t, docs)
	_, ok = docs.(*StaticApp)
	assert.True(t, ok)
	assert.Same(t, docs, table.Resolve("wiki.docs.atrium.io"))
	assert.Same(t, docs, table.Resolve("notes.docs.atrium.io"))

	assert.Nil(t, table.Resolve("atrium.io"), "management host has no binding")
	assert.Nil(t, table.Resolve("unknown.atrium.io"))
}

func TestBuildSecure(t *testing.T) {
	c := &config.Config{
		Hostname: "atrium.io",
		Domain:   "atrium.io",
		TLSMode:  config.TLSModeAuto,
		Apps:     testApps()[:1],
	}
	table, err := Build(c)
	require.NoError(t, err)

	reverse := table.Resolve("files.atrium.io").(*ReverseApp)
	assert.Equal(t, "https", reverse.AppScheme)
	assert.Equal(t, "files.atrium.io", reverse.AppAuthority, "no port appended when TLS terminates upstream")
}

func TestBuildPartitioning(t *testing.T) {
	apps := []config.App{
		{ID: 1, Name: "local", Host: "files", Target: "http://a:1", IsProxy: true},
		{ID: 2, Name: "tenant", Host: "files.tenant.io", Target: "http://b:1", IsProxy: true},
	}

	// hostname == domain: keep only apps that do not name another hostname
	c := &config.Config{Hostname: "atrium.io", Domain: "atrium.io", Apps: apps}
	table, err := Build(c)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.NotNil(t, table.Resolve("files.atrium.io"))

	// hostname != domain: keep only apps that name this hostname
	c = &config.Config{Hostname: "tenant.io", Domain: "atrium.io", Apps: apps}
	table, err = Build(c)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	binding := table.Resolve("files.tenant.io")
	require.NotNil(t, binding)
	assert.Equal(t, "files.tenant.io", binding.(*ReverseApp).AppAuthority[:len("files.tenant.io")])
}

func TestBuildInvalidTarget(t *testing.T) {
	for _, target := range []string{"", "127.0.0.1:9000", "ftp://x", "http://"} {
		c := &config.Config{
			Hostname: "atrium.io",
			Domain:   "atrium.io",
			Apps: []config.App{
				{ID: 1, Name: "broken", Host: "x", Target: target, IsProxy: true},
			},
		}
		_, err := Build(c)
		assert.Error(t, err, "target %q must fail loudly", target)
	}
}

func TestResolveNormalizesHost(t *testing.T) {
	c := &config.Config{Hostname: "atrium.io", Domain: "atrium.io", Apps: testApps()}
	table, err := Build(c)
	require.NoError(t, err)

	assert.NotNil(t, table.Resolve("FILES.Atrium.IO"))
	assert.NotNil(t, table.Resolve("files.atrium.io:8080"))
	assert.NotNil(t, table.Resolve("Docs.atrium.io:443"))
}

func TestDomains(t *testing.T) {
	c := &config.Config{Hostname: "atrium.io", Domain: "atrium.io", Apps: testApps()}
	table, err := Build(c)
	require.NoError(t, err)

	domains := table.Domains()
	assert.Equal(t, "atrium.io", domains[0])
	assert.ElementsMatch(t, []string{
		"atrium.io",
		"files.atrium.io",
		"docs.atrium.io",
		"wiki.docs.atrium.io",
		"notes.docs.atrium.io",
	}, domains)
}

func TestNormalizeHost(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"Files.Atrium.IO", "files.atrium.io"},
		{"files.atrium.io:8080", "files.atrium.io"},
		{"atrium.io", "atrium.io"},
		{"", ""},
	} {
		assert.Equal(t, tt.want, NormalizeHost(tt.in))
	}
}
