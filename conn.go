package mockldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// Conn is a mock directory connection: one in-memory directory, one call
// recorder, and simulated bind/TLS state. It stands in for a real LDAP
// connection for the duration of one test and is then discarded or Reset.
//
// A Conn is not safe for concurrent use; it is meant to be driven by a
// single test goroutine.
type Conn struct {
	id  string
	uri string
	dir *Directory
	rec *recorder
	log Logger

	bound      bool
	boundAs    string
	tlsEnabled bool
}

// newConn builds a connection around an independent copy of content.
func newConn(uri string, content Content, cfg *Config) (*Conn, error) {
	id := uuid.New().String()[:8]
	log := cfg.Logger

	dir, err := newDirectory(content, log)
	if err != nil {
		return nil, err
	}

	log.Debug("Mock connection created", map[string]any{
		"conn_id": id,
		"uri":     uri,
		"entries": dir.Len(),
	})

	return &Conn{
		id:  id,
		uri: uri,
		dir: dir,
		rec: newRecorder(log, cfg.SingleUseSeeds),
		log: log,
	}, nil
}

// ID returns the connection's correlation ID used in log output.
func (c *Conn) ID() string { return c.id }

// URI returns the URI this connection was resolved under.
func (c *Conn) URI() string { return c.uri }

// Directory exposes the connection's backing store for direct fixture
// inspection in assertions.
func (c *Conn) Directory() *Directory { return c.dir }

// Seed registers a canned response for the exact argument signature of one
// operation. Configure the outcome on the returned slot:
//
//	conn.Seed(mockldap.OpDelete, "cn=alice,ou=people,o=test").Fail(err)
//
// Seeds remain valid until Reset unless Config.SingleUseSeeds is set.
func (c *Conn) Seed(op Operation, args ...any) *SeedSlot {
	return &SeedSlot{rec: c.rec, op: op, args: copyArgs(args)}
}

// Call dispatches an operation that has no default simulation: the call is
// recorded and answered from the seed table, or fails with ErrSeedRequired.
// It is the escape hatch for exercising operations this package does not
// simulate.
func (c *Conn) Call(op Operation, args ...any) (any, error) {
	return c.rec.dispatch(op, args, nil)
}

// MethodsCalled returns the names of all operations invoked on this
// connection, in invocation order.
func (c *Conn) MethodsCalled() []Operation {
	return c.rec.methodsCalled()
}

// CalledWith returns the argument signatures of every invocation of op.
func (c *Conn) CalledWith(op Operation) [][]any {
	return c.rec.calledWith(op)
}

// Calls returns the full ledger.
func (c *Conn) Calls() []Call {
	return c.rec.allCalls()
}

// Reset clears the seed table, the call ledger, and the simulated bind and
// TLS state, so a reused connection starts the next test clean.
func (c *Conn) Reset() {
	c.rec.reset()
	c.bound = false
	c.boundAs = ""
	c.tlsEnabled = false

	c.log.Debug("Mock connection reset", map[string]any{"conn_id": c.id})
}

// BoundAs returns the DN of the last successful bind, or "" when unbound or
// bound anonymously.
func (c *Conn) BoundAs() string { return c.boundAs }

// Bound reports whether a bind has succeeded since creation, Reset, or
// Unbind.
func (c *Conn) Bound() bool { return c.bound }

// TLSEnabled reports whether StartTLS was called.
func (c *Conn) TLSEnabled() bool { return c.tlsEnabled }

// dial records the connection being handed out by the registry.
func (c *Conn) dial(uri string) error {
	_, err := c.rec.dispatch(OpDial, []any{uri}, func() (any, error) {
		return nil, nil
	})
	return err
}

// Bind simulates a simple bind. The anonymous bind ("", "") always
// succeeds. Otherwise the bind succeeds iff dn exists and its userPassword
// attribute holds the password (plaintext or {SHA}/{SSHA} hashed); any other
// outcome is ErrInvalidCredentials, exactly as a real server reports it.
// A successful bind records the bound identity; a failed one leaves the
// previous identity untouched.
func (c *Conn) Bind(dn, password string) error {
	return logOperation(c.log, OpBind, map[string]any{
		"conn_id":  c.id,
		"dn":       dn,
		"password": password,
	}, func() error {
		_, err := c.rec.dispatch(OpBind, []any{dn, password}, func() (any, error) {
			return nil, c.simulateBind(dn, password)
		})
		return err
	})
}

func (c *Conn) simulateBind(dn, password string) error {
	if dn == "" && password == "" {
		c.bound = true
		c.boundAs = ""
		return nil
	}

	ok, err := c.dir.Compare(dn, "userPassword", password)
	if err != nil || !ok {
		e := newError(ErrInvalidCredentials, dn, "")
		e.Op = OpBind
		e.Cause = err
		return e
	}

	canonical, err := NormalizeDN(dn)
	if err != nil {
		return WrapError(OpBind, err)
	}

	c.bound = true
	c.boundAs = canonical
	return nil
}

// Unbind drops the simulated bind state. The connection remains usable;
// there is no closed state.
func (c *Conn) Unbind() error {
	_, err := c.rec.dispatch(OpUnbind, nil, func() (any, error) {
		c.bound = false
		c.boundAs = ""
		return nil, nil
	})
	return err
}

// WhoAmI returns the DN recorded by the last successful bind, or "" for an
// anonymous or unbound connection.
func (c *Conn) WhoAmI() (string, error) {
	v, err := c.rec.dispatch(OpWhoAmI, nil, func() (any, error) {
		return c.boundAs, nil
	})
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", seedTypeError(OpWhoAmI, v, "string")
	}
	return s, nil
}

// StartTLS flips the simulated TLS flag. No negotiation is performed.
func (c *Conn) StartTLS() error {
	_, err := c.rec.dispatch(OpStartTLS, nil, func() (any, error) {
		c.tlsEnabled = true
		return nil, nil
	})
	return err
}

// Compare reports whether the entry at dn holds the given attribute value.
func (c *Conn) Compare(dn, attr, value string) (bool, error) {
	v, err := c.rec.dispatch(OpCompare, []any{dn, attr, value}, func() (any, error) {
		ok, err := c.dir.Compare(dn, attr, value)
		return ok, WrapError(OpCompare, err)
	})
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, seedTypeError(OpCompare, v, "bool")
	}
	return b, nil
}

// Search evaluates the request against the in-memory directory: the filter
// is parsed, candidates are collected per the request scope, and each
// candidate's attributes are tested against the filter.
//
// The seed signature for a search is (BaseDN, Scope, Filter); seeded results
// are returned verbatim, while simulated results additionally honor the
// request's attribute list and TypesOnly flag. Filters that parse but use
// unsupported constructs surface as ErrSeedRequired: the simulation refuses
// to guess, the test must seed that exact search.
func (c *Conn) Search(req *SearchRequest) (*ldap.SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	args := []any{req.BaseDN, req.Scope, req.Filter}
	v, err := c.rec.dispatch(OpSearch, args, func() (any, error) {
		return c.simulateSearch(req, args)
	})
	if err != nil {
		return nil, err
	}

	switch result := v.(type) {
	case *ldap.SearchResult:
		return result, nil
	case []*ldap.Entry:
		// Seeding a bare entry list is a convenience.
		return &ldap.SearchResult{Entries: result}, nil
	default:
		return nil, seedTypeError(OpSearch, v, "*ldap.SearchResult")
	}
}

func (c *Conn) simulateSearch(req *SearchRequest, args []any) (any, error) {
	filter, err := ParseFilter(req.Filter)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFilter) {
			return nil, seedRequired(Call{Op: OpSearch, Args: args}, err.Error())
		}
		return nil, WrapError(OpSearch, err)
	}

	records, err := c.dir.Lookup(req.BaseDN, req.Scope)
	if err != nil {
		return nil, WrapError(OpSearch, err)
	}

	var entries []*ldap.Entry
	for _, record := range records {
		if !filter.Matches(record.Attributes) {
			continue
		}
		entries = append(entries, ldap.NewEntry(record.DN, selectAttrs(record.Attributes, req)))
	}

	c.log.Trace("Search simulated", map[string]any{
		"conn_id":    c.id,
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"candidates": len(records),
		"matches":    len(entries),
	})

	return &ldap.SearchResult{Entries: entries}, nil
}

// selectAttrs applies the request's attribute list and TypesOnly flag to a
// matched record's attributes.
func selectAttrs(attrs Attributes, req *SearchRequest) map[string][]string {
	out := make(map[string][]string, len(attrs))
	for name, values := range attrs {
		if len(req.Attributes) > 0 && !containsFold(req.Attributes, name) {
			continue
		}
		if req.TypesOnly {
			out[name] = []string{}
		} else {
			out[name] = append([]string(nil), values...)
		}
	}
	return out
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Add inserts a new entry at dn.
func (c *Conn) Add(dn string, attrs Attributes) error {
	_, err := c.rec.dispatch(OpAdd, []any{dn, attrs}, func() (any, error) {
		return nil, WrapError(OpAdd, c.dir.Add(dn, attrs))
	})
	return err
}

// Delete removes the entry at dn.
func (c *Conn) Delete(dn string) error {
	_, err := c.rec.dispatch(OpDelete, []any{dn}, func() (any, error) {
		return nil, WrapError(OpDelete, c.dir.Delete(dn))
	})
	return err
}

// Modify applies attribute changes to the entry at dn.
func (c *Conn) Modify(dn string, changes []Change) error {
	_, err := c.rec.dispatch(OpModify, []any{dn, changes}, func() (any, error) {
		return nil, WrapError(OpModify, c.dir.Modify(dn, changes))
	})
	return err
}

// ModifyDN renames the entry at dn to newRDN, optionally moving it below
// newSuperior.
func (c *Conn) ModifyDN(dn, newRDN, newSuperior string) error {
	_, err := c.rec.dispatch(OpModifyDN, []any{dn, newRDN, newSuperior}, func() (any, error) {
		return nil, WrapError(OpModifyDN, c.dir.Rename(dn, newRDN, newSuperior))
	})
	return err
}

// seedTypeError reports a seeded value whose type does not fit the seeded
// operation's result.
func seedTypeError(op Operation, v any, want string) error {
	return fmt.Errorf("mockldap: seeded %s value is %T, want %s", op, v, want)
}
