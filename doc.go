/*
Package mockldap provides an in-memory LDAP test double for code built on
go-ldap style clients.

A Registry owns a set of named (URI-keyed) mock connections, each backed by an
independent in-memory directory tree. Tests register directory content up
front; code under test resolves a connection by URI and drives the usual
operation set (bind, search, add, delete, modify, and friends) against it.

# Architecture Overview

The package is organized into several core components:

  - Filter engine: compiles textual search filters via go-ldap and evaluates
    them against entry attributes (equality, presence, substrings, &, |, !)
  - Directory: an in-memory DN-to-attributes tree answering scope-bounded
    lookups (base, one-level, subtree) and mutations
  - Recorder: per-connection call ledger plus a table of seeded responses
    matched by exact argument signature
  - Conn: binds the directory and filter engine to the operation set, with
    simulated bind/TLS state
  - Registry: configuration, activation, URI resolution, and factory-slot
    interception

# Seeding and Recording

Every operation first consults the seed table: an exact argument match returns
the seeded value (or error) instead of running the simulation. Seeds persist
until Reset. Operations the simulation cannot satisfy fail with
ErrSeedRequired rather than fabricating a result, forcing the test author to
seed explicitly. The ledger preserves invocation order for call assertions:

	conn.Seed(mockldap.OpSearch, "o=test", mockldap.ScopeWholeSubtree, "(cn=alice)").
		Return(&ldap.SearchResult{Entries: entries})

	_ = conn.Bind("cn=alice,ou=people,o=test", "alicepw")
	got := conn.MethodsCalled() // [bind]

# Interception

Rather than patching a process-wide dial function, the registry hands out a
Factory and can Install itself into any caller-provided factory slot,
restoring the previous value on Deactivate.

# Error Handling

Simulated directory failures mirror real LDAP outcomes (invalid credentials,
no such object, entry already exists) and carry go-ldap result codes, so code
under test exercises its production error paths. Authoring mistakes (bad
filters, unknown URIs, missing seeds) surface as distinct error kinds for
precise assertions.

# Thread Safety

A Conn is intended to be driven by one test goroutine at a time; only the
Registry's activation state is guarded for concurrent use.
*/
package mockldap
