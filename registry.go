package mockldap

import (
	"fmt"
	"sync"
)

// Factory creates a connection for a URI. Code under test that dials through
// an injectable Factory slot can be rerouted to the registry with Install
// and put back with Restore or Deactivate.
type Factory func(uri string) (*Conn, error)

// Registry owns the set of URI-keyed mock directories. Content is registered
// while inactive; Activate builds one independent connection per URI and
// Deactivate tears everything down again, restoring any installed factory
// slots.
//
// Activation state is process-visible, so the registry guards itself with a
// mutex even though individual connections are single-goroutine.
type Registry struct {
	mu       sync.Mutex
	cfg      *Config
	log      Logger
	contents map[string]Content
	conns    map[string]*Conn
	saved    map[*Factory]Factory
	active   bool
}

// NewRegistry creates a registry. A nil config selects DefaultConfig.
func NewRegistry(cfg *Config) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = NewNopLogger()
	}

	return &Registry{
		cfg:      cfg,
		log:      cfg.Logger,
		contents: make(map[string]Content),
		saved:    make(map[*Factory]Factory),
	}
}

// Register sets the default directory content, used for any URI without a
// directory of its own.
func (r *Registry) Register(content Content) error {
	return r.SetDirectory(r.cfg.DefaultURI, content)
}

// SetDirectory sets the directory content for one URI. Configuration is
// only permitted while the registry is inactive; content is snapshotted per
// connection at Activate time.
func (r *Registry) SetDirectory(uri string, content Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return fmt.Errorf("mockldap: directories cannot be reconfigured while active")
	}

	r.contents[uri] = content

	r.log.Debug("Directory content registered", map[string]any{
		"uri":     uri,
		"entries": len(content),
	})

	return nil
}

// Activate builds one connection per registered URI, each from an
// independent deep-copied snapshot of its content. Activating an active
// registry is an error.
func (r *Registry) Activate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return fmt.Errorf("mockldap: registry is already active")
	}

	conns := make(map[string]*Conn, len(r.contents))
	for uri, content := range r.contents {
		conn, err := newConn(uri, content, r.cfg)
		if err != nil {
			return fmt.Errorf("mockldap: building directory for %q: %w", uri, err)
		}
		conns[uri] = conn
	}

	r.conns = conns
	r.active = true

	r.log.Info("Mock LDAP registry activated", map[string]any{
		"directories": len(conns),
	})

	return nil
}

// Deactivate restores every installed factory slot, discards all
// connections, and returns the registry to its configured-but-inactive
// state. Deactivating twice is a no-op.
func (r *Registry) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}

	for slot, previous := range r.saved {
		*slot = previous
	}
	r.saved = make(map[*Factory]Factory)
	r.conns = nil
	r.active = false

	r.log.Info("Mock LDAP registry deactivated", nil)
}

// Install reroutes a factory slot through the registry, remembering the
// previous value for Restore. Installing an already-installed slot is an
// error, as is installing while inactive.
func (r *Registry) Install(slot *Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return fmt.Errorf("mockldap: registry must be active before installing")
	}
	if _, ok := r.saved[slot]; ok {
		return fmt.Errorf("mockldap: factory slot is already installed")
	}

	r.saved[slot] = *slot
	*slot = r.Dial
	return nil
}

// Restore puts one installed factory slot back to its previous value.
func (r *Registry) Restore(slot *Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.saved[slot]
	if !ok {
		return fmt.Errorf("mockldap: factory slot is not installed")
	}

	*slot = previous
	delete(r.saved, slot)
	return nil
}

// Resolve returns the connection registered for uri. An unknown URI gets its
// own connection built from the default content, cached for subsequent
// resolutions, so state still never crosses URIs. With no default content
// registered, unknown URIs fail with ErrNoSuchDirectory.
func (r *Registry) Resolve(uri string) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.resolveLocked(uri)
}

func (r *Registry) resolveLocked(uri string) (*Conn, error) {
	if !r.active {
		return nil, fmt.Errorf("mockldap: registry is not active")
	}

	if conn, ok := r.conns[uri]; ok {
		return conn, nil
	}

	content, ok := r.contents[r.cfg.DefaultURI]
	if !ok {
		return nil, newError(ErrNoSuchDirectory, "", uri)
	}

	conn, err := newConn(uri, content, r.cfg)
	if err != nil {
		return nil, err
	}
	r.conns[uri] = conn

	r.log.Debug("Unregistered URI resolved against default content", map[string]any{
		"uri": uri,
	})

	return conn, nil
}

// Dial resolves uri and records the hand-out on the connection's ledger. It
// is the Factory the registry installs into intercepted slots.
func (r *Registry) Dial(uri string) (*Conn, error) {
	r.mu.Lock()
	conn, err := r.resolveLocked(uri)
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if err := conn.dial(uri); err != nil {
		return nil, err
	}

	return conn, nil
}
