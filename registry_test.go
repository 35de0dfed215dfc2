package mockldap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActiveRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry(nil)
	require.NoError(t, r.Register(testContent()))
	require.NoError(t, r.Activate())
	t.Cleanup(r.Deactivate)
	return r
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(testContent()))

	// Not active yet: nothing resolves.
	_, err := r.Resolve("ldap://directory.test")
	require.Error(t, err)

	require.NoError(t, r.Activate())
	assert.Error(t, r.Activate(), "double activation")

	conn, err := r.Resolve("ldap://directory.test")
	require.NoError(t, err)
	assert.NotNil(t, conn)

	r.Deactivate()
	r.Deactivate() // idempotent

	_, err = r.Resolve("ldap://directory.test")
	assert.Error(t, err)
}

func TestRegistryRejectsReconfigurationWhileActive(t *testing.T) {
	r := newActiveRegistry(t)

	err := r.SetDirectory("ldap://late.test", testContent())
	assert.Error(t, err)
}

func TestRegistryPerURIDirectories(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(testContent()))
	require.NoError(t, r.SetDirectory("ldap://other.test", Content{
		"o=other": {"o": {"other"}},
	}))
	require.NoError(t, r.Activate())
	defer r.Deactivate()

	main, err := r.Resolve("ldap://main.test")
	require.NoError(t, err)
	other, err := r.Resolve("ldap://other.test")
	require.NoError(t, err)

	_, err = main.Directory().Entry("o=test")
	assert.NoError(t, err)
	_, err = other.Directory().Entry("o=other")
	assert.NoError(t, err)
	_, err = other.Directory().Entry("o=test")
	assert.True(t, IsNoSuchEntry(err))
}

func TestRegistryUnknownURIUsesDefaultContent(t *testing.T) {
	r := newActiveRegistry(t)

	first, err := r.Resolve("ldap://unknown.test")
	require.NoError(t, err)

	// Repeated resolutions of the same URI share one connection.
	again, err := r.Resolve("ldap://unknown.test")
	require.NoError(t, err)
	assert.Same(t, first, again)

	// Different URIs get independent state.
	second, err := r.Resolve("ldap://elsewhere.test")
	require.NoError(t, err)
	require.NoError(t, first.Delete("cn=alice,ou=people,o=test"))

	_, err = second.Directory().Entry("cn=alice,ou=people,o=test")
	assert.NoError(t, err)
}

func TestRegistryUnknownURIWithoutDefault(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.SetDirectory("ldap://only.test", testContent()))
	require.NoError(t, r.Activate())
	defer r.Deactivate()

	_, err := r.Resolve("ldap://unknown.test")
	require.Error(t, err)
	assert.True(t, IsNoSuchDirectory(err))
}

func TestRegistryActivationCyclesAreIndependent(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(testContent()))

	require.NoError(t, r.Activate())
	conn, err := r.Resolve("ldap://directory.test")
	require.NoError(t, err)
	require.NoError(t, conn.Add("cn=transient,o=test", Attributes{"cn": {"transient"}}))
	require.NoError(t, conn.Bind("cn=alice,ou=people,o=test", "alicepw"))
	r.Deactivate()

	// The next cycle starts from the registered content, not the mutated
	// directory of the previous one.
	require.NoError(t, r.Activate())
	defer r.Deactivate()

	conn, err = r.Resolve("ldap://directory.test")
	require.NoError(t, err)
	_, err = conn.Directory().Entry("cn=transient,o=test")
	assert.True(t, IsNoSuchEntry(err))
	assert.Empty(t, conn.MethodsCalled())
	assert.False(t, conn.Bound())
}

func TestRegistryInstallAndRestore(t *testing.T) {
	sentinel := errors.New("real directory reached")
	dial := Factory(func(uri string) (*Conn, error) {
		return nil, sentinel
	})

	r := newActiveRegistry(t)
	require.NoError(t, r.Install(&dial))

	conn, err := dial("ldap://directory.test")
	require.NoError(t, err)
	assert.Equal(t, []Operation{OpDial}, conn.MethodsCalled())

	assert.Error(t, r.Install(&dial), "double install")

	require.NoError(t, r.Restore(&dial))
	_, err = dial("ldap://directory.test")
	assert.Same(t, sentinel, err)

	assert.Error(t, r.Restore(&dial), "restore of uninstalled slot")
}

func TestRegistryDeactivateRestoresInstalledSlots(t *testing.T) {
	sentinel := errors.New("real directory reached")
	dial := Factory(func(uri string) (*Conn, error) {
		return nil, sentinel
	})

	r := NewRegistry(nil)
	require.NoError(t, r.Register(testContent()))
	require.NoError(t, r.Activate())
	require.NoError(t, r.Install(&dial))

	r.Deactivate()

	_, err := dial("ldap://directory.test")
	assert.Same(t, sentinel, err)
}

func TestRegistryInstallRequiresActive(t *testing.T) {
	var dial Factory
	r := NewRegistry(nil)
	require.NoError(t, r.Register(testContent()))

	assert.Error(t, r.Install(&dial))
}

func TestRegistryDialRecordsHandOut(t *testing.T) {
	r := newActiveRegistry(t)

	conn, err := r.Dial("ldap://directory.test")
	require.NoError(t, err)

	assert.Equal(t, []Operation{OpDial}, conn.MethodsCalled())
	assert.Equal(t, [][]any{{"ldap://directory.test"}}, conn.CalledWith(OpDial))
}

func TestRegistryDialHonorsSeededFailure(t *testing.T) {
	r := newActiveRegistry(t)

	conn, err := r.Resolve("ldap://directory.test")
	require.NoError(t, err)

	sentinel := errors.New("connection refused")
	conn.Seed(OpDial, "ldap://directory.test").Fail(sentinel)

	_, err = r.Dial("ldap://directory.test")
	assert.Same(t, sentinel, err)
}

func TestRegistryCustomDefaultURI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultURI = "ldap://fallback.test"

	r := NewRegistry(cfg)
	require.NoError(t, r.Register(testContent()))
	require.NoError(t, r.Activate())
	defer r.Deactivate()

	// The default content is itself reachable under its URI key.
	conn, err := r.Resolve("ldap://fallback.test")
	require.NoError(t, err)
	_, err = conn.Directory().Entry("o=test")
	assert.NoError(t, err)
}
