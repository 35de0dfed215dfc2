package mockldap

import (
	"strings"

	"github.com/creasty/defaults"
	"github.com/mitchellh/copystructure"
)

// Attributes maps an attribute name to its values. Attribute names are
// matched case-insensitively; values compare case-sensitively.
type Attributes map[string][]string

// Get returns the values of the named attribute, matching the name
// case-insensitively. It returns nil if the attribute is absent.
func (a Attributes) Get(name string) []string {
	if key, ok := a.key(name); ok {
		return a[key]
	}
	return nil
}

// Has reports whether the named attribute exists with at least one value.
func (a Attributes) Has(name string) bool {
	return len(a.Get(name)) > 0
}

// key resolves the stored map key for a case-insensitive attribute name.
func (a Attributes) key(name string) (string, bool) {
	if _, ok := a[name]; ok {
		return name, true
	}
	for k := range a {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Content is the configuration input for one directory: DN to attribute map.
type Content map[string]Attributes

// Record is one directory entry as returned by lookups.
type Record struct {
	DN         string
	Attributes Attributes
}

// Scope defines the breadth of a directory search.
type Scope int

const (
	ScopeBaseObject Scope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

// String returns string representation of a search scope.
func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "onelevel"
	case ScopeWholeSubtree:
		return "subtree"
	default:
		return "unknown"
	}
}

// SearchRequest encapsulates simulated search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      Scope
	Filter     string
	Attributes []string // nil means all attributes
	TypesOnly  bool
}

// ModifyOp defines the kind of a single modify change.
type ModifyOp int

const (
	ModAdd ModifyOp = iota
	ModDelete
	ModReplace
)

// String returns string representation of a modify change kind.
func (m ModifyOp) String() string {
	switch m {
	case ModAdd:
		return "add"
	case ModDelete:
		return "delete"
	case ModReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Change is one attribute-level modification applied by Modify.
type Change struct {
	Op     ModifyOp
	Attr   string
	Values []string
}

// Config holds registry-wide settings.
type Config struct {
	// DefaultURI keys the fallback directory content used for URIs with no
	// registered directory of their own.
	DefaultURI string `default:"__default__"`

	// SingleUseSeeds makes every seeded response valid for exactly one
	// matching call. The default keeps seeds valid until Reset.
	SingleUseSeeds bool

	// Logger receives structured operation logs. Defaults to a no-op logger.
	Logger Logger
}

// DefaultConfig returns a configuration with default values applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	cfg.Logger = NewNopLogger()
	return cfg
}

// deepCopy returns an independent copy of v. Values that the copier cannot
// handle are returned as-is.
func deepCopy(v any) any {
	if v == nil {
		return nil
	}
	c, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return c
}
