package entries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/keystone/internal/discovery"
	"github.com/wolfeidau/keystone/internal/fsprobe"
	"github.com/wolfeidau/keystone/internal/target"
)

const (
	hoistedClient = "/repo/node_modules/@msdyn365-commerce/bootloader/entry/client.js"
	localClient   = "/repo/packages/site/node_modules/@msdyn365-commerce/bootloader/entry/client.js"
	hoistedModule = "/repo/node_modules/@msdyn365-commerce/bootloader/entry/module-entrypoints-client.js"
	localModule   = "/repo/packages/site/node_modules/@msdyn365-commerce/bootloader/entry/module-entrypoints-client.js"
)

var layout = Layout{AppPath: "/repo/packages/site", EntryDir: "/opt/keystone/entry"}

func TestResolve_AggregateClient(t *testing.T) {
	tests := []struct {
		name   string
		exists fsprobe.Exists
		want   string
	}{
		{name: "hoisted wins", exists: fsprobe.Set(hoistedClient, localClient), want: hoistedClient},
		{name: "local fallback", exists: fsprobe.Set(localClient), want: localClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{Layout: layout, Exists: tt.exists}
			got, err := r.Resolve(Request{Target: target.New(target.Client, target.Production)})
			require.NoError(t, err)
			require.Equal(t, EntryMap{
				ClientEntry: {"/opt/keystone/entry/webpack-public-path.js", tt.want},
			}, got)
		})
	}
}

func TestResolve_BootstrapMissing(t *testing.T) {
	r := &Resolver{Layout: layout, Exists: fsprobe.Set()}

	_, err := r.Resolve(Request{Target: target.New(target.Client, target.Production)})
	require.ErrorIs(t, err, ErrBootstrapMissing)
	require.ErrorIs(t, err, fsprobe.ErrNoCandidate)

	_, err = r.Resolve(Request{Target: target.New(target.Client, target.Production), ModuleEntryPoints: true})
	require.ErrorIs(t, err, ErrBootstrapMissing)
}

func TestResolve_ModuleEntryPoints(t *testing.T) {
	r := &Resolver{Layout: layout, Exists: fsprobe.Set(localModule), DevServerURL: "http://localhost:3001/"}

	got, err := r.Resolve(Request{
		Target:            target.New(target.Client, target.Production),
		Discovered:        discovery.NewSet("promo-banner", "hero-block", discovery.LocalPackage),
		Excluded:          map[string]struct{}{"promo-banner": {}},
		ModuleEntryPoints: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{discovery.LocalPackage, ClientEntry, "hero-block"}, got.Names())
	assert.Equal(t, []string{"/repo/packages/site/lib/hero-block/module-registration.js"}, got["hero-block"])
	assert.Equal(t, []string{"/opt/keystone/entry/webpack-public-path.js", localModule}, got[ClientEntry])
	assert.NotContains(t, got, "promo-banner")
}

func TestResolve_ModuleEntryPointsDev(t *testing.T) {
	r := &Resolver{Layout: layout, Exists: fsprobe.Set(hoistedModule, localModule), DevServerURL: "http://localhost:3001/"}

	got, err := r.Resolve(Request{
		Target:            target.New(target.Client, target.Development),
		Discovered:        discovery.NewSet(discovery.LocalPackage),
		ModuleEntryPoints: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"webpack-dev-server/client?http://localhost:3001/",
		"/opt/keystone/entry/webpack-public-path.js",
		hoistedModule,
	}, got[ClientEntry])
}

func TestResolve_ServerRewritesEntries(t *testing.T) {
	r := &Resolver{Layout: layout, Exists: fsprobe.Set()}

	got, err := r.Resolve(Request{
		Target: target.New(target.Server, target.Production),
		Base: EntryMap{
			"server": {"/repo/packages/site/src/server.ts", "/somewhere/else.js"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, EntryMap{
		"server": {"/opt/keystone/entry/server.ts", "/somewhere/else.js"},
	}, got)
}

func TestResolve_ServerDefault(t *testing.T) {
	r := &Resolver{Layout: layout}

	got, err := r.Resolve(Request{Target: target.New(target.Server, target.Development)})
	require.NoError(t, err)
	assert.Equal(t, EntryMap{ServerEntry: {"/opt/keystone/entry/server.js"}}, got)
}

func TestEntryMapClone(t *testing.T) {
	m := EntryMap{"client": {"a", "b"}}
	c := m.Clone()
	c["client"][0] = "z"
	assert.Equal(t, "a", m["client"][0])
}
