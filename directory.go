package mockldap

import (
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"
)

// storeEntry is one node of the in-memory tree, keyed by canonical DN.
type storeEntry struct {
	dn    string   // canonical DN
	parts []string // canonical RDN strings, outermost first
	attrs Attributes
}

// Directory is an in-memory DN-to-attributes tree. It is owned by exactly
// one Conn and is built from an independent deep copy of the seed content,
// so mutations never leak between connections or test runs.
type Directory struct {
	entries map[string]*storeEntry
	log     Logger
}

// newDirectory builds a directory from seed content. Every DN in the content
// must parse; the content itself is deep-copied before use.
func newDirectory(content Content, log Logger) (*Directory, error) {
	d := &Directory{
		entries: make(map[string]*storeEntry, len(content)),
		log:     log,
	}

	copied, ok := deepCopy(content).(Content)
	if !ok {
		copied = content
	}

	for dn, attrs := range copied {
		if attrs == nil {
			attrs = Attributes{}
		}
		if err := d.put(dn, attrs); err != nil {
			return nil, err
		}
	}

	d.log.Debug("Directory initialized", map[string]any{
		"entries": len(d.entries),
	})

	return d, nil
}

// put inserts or overwrites the entry at dn. Used only during construction
// and rename; Add enforces uniqueness separately.
func (d *Directory) put(dn string, attrs Attributes) error {
	parts, err := explodeDN(dn)
	if err != nil {
		return err
	}
	canonical := strings.Join(parts, ",")
	d.entries[canonical] = &storeEntry{dn: canonical, parts: parts, attrs: attrs}
	return nil
}

// get resolves an entry by DN, matching case-insensitively.
func (d *Directory) get(dn string) (*storeEntry, error) {
	canonical, err := NormalizeDN(dn)
	if err != nil {
		return nil, err
	}
	entry, ok := d.entries[canonical]
	if !ok {
		return nil, newError(ErrNoSuchEntry, dn, "")
	}
	return entry, nil
}

// Len returns the number of entries in the directory.
func (d *Directory) Len() int {
	return len(d.entries)
}

// sorted returns all entries ordered by canonical DN. Result ordering is
// unspecified but must be deterministic for a given directory state.
func (d *Directory) sorted() []*storeEntry {
	out := make([]*storeEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dn < out[j].dn })
	return out
}

// Lookup returns the records within the requested scope of baseDN:
// ScopeBaseObject is the node itself, ScopeSingleLevel its immediate
// children (excluding the node), ScopeWholeSubtree the node and all
// descendants. The base entry must exist.
func (d *Directory) Lookup(baseDN string, scope Scope) ([]Record, error) {
	baseParts, err := explodeDN(baseDN)
	if err != nil {
		return nil, err
	}

	canonical := strings.Join(baseParts, ",")
	if _, ok := d.entries[canonical]; !ok {
		return nil, newError(ErrNoSuchEntry, baseDN, "search base does not exist")
	}

	var records []Record
	for _, e := range d.sorted() {
		var in bool
		switch scope {
		case ScopeBaseObject:
			in = sameDN(e.parts, baseParts)
		case ScopeSingleLevel:
			in = len(e.parts) == len(baseParts)+1 && sameDN(e.parts[1:], baseParts)
		case ScopeWholeSubtree:
			in = sameDN(e.parts, baseParts) || underDN(e.parts, baseParts)
		default:
			return nil, newError(ErrProtocol, baseDN, "unrecognized search scope")
		}
		if in {
			records = append(records, Record{DN: e.dn, Attributes: copyAttrs(e.attrs)})
		}
	}

	return records, nil
}

// Entry returns a copy of the attributes stored at dn.
func (d *Directory) Entry(dn string) (Attributes, error) {
	entry, err := d.get(dn)
	if err != nil {
		return nil, err
	}
	return copyAttrs(entry.attrs), nil
}

// Add inserts a new entry. The DN must not already exist.
func (d *Directory) Add(dn string, attrs Attributes) error {
	canonical, err := NormalizeDN(dn)
	if err != nil {
		return err
	}
	if _, ok := d.entries[canonical]; ok {
		return newError(ErrEntryAlreadyExists, dn, "")
	}
	return d.put(dn, copyAttrs(attrs))
}

// Delete removes the entry at dn.
func (d *Directory) Delete(dn string) error {
	entry, err := d.get(dn)
	if err != nil {
		return err
	}
	delete(d.entries, entry.dn)
	return nil
}

// Modify applies a sequence of attribute changes to the entry at dn.
// Every change requires the attribute to already exist, mirroring
// directory servers that reject modifications of undefined types:
//
//   - ModAdd appends values not already present; zero values is a
//     protocol error
//   - ModDelete removes the given values, or empties the attribute when no
//     values are given
//   - ModReplace sets the attribute to the given values, or deletes the
//     attribute entirely when no values are given
func (d *Directory) Modify(dn string, changes []Change) error {
	entry, err := d.get(dn)
	if err != nil {
		return err
	}

	for _, change := range changes {
		key, ok := entry.attrs.key(change.Attr)
		if !ok {
			return newError(ErrNoSuchAttribute, dn, change.Attr)
		}

		switch change.Op {
		case ModAdd:
			if len(change.Values) == 0 {
				return newError(ErrProtocol, dn, "add change with no values")
			}
			for _, v := range change.Values {
				if !contains(entry.attrs[key], v) {
					entry.attrs[key] = append(entry.attrs[key], v)
				}
			}

		case ModDelete:
			if len(change.Values) == 0 {
				entry.attrs[key] = []string{}
				continue
			}
			for _, v := range change.Values {
				entry.attrs[key] = remove(entry.attrs[key], v)
			}

		case ModReplace:
			if len(change.Values) == 0 {
				delete(entry.attrs, key)
			} else {
				entry.attrs[key] = append([]string(nil), change.Values...)
			}

		default:
			return newError(ErrProtocol, dn, "unrecognized modify change kind")
		}
	}

	return nil
}

// Compare reports whether the entry at dn holds the given attribute value.
// The entry and the attribute must exist. For userPassword the candidate is
// additionally verified against {SHA} and {SSHA} hashed values.
func (d *Directory) Compare(dn, attr, value string) (bool, error) {
	entry, err := d.get(dn)
	if err != nil {
		return false, err
	}

	key, ok := entry.attrs.key(attr)
	if !ok {
		return false, newError(ErrNoSuchAttribute, dn, attr)
	}

	if strings.EqualFold(attr, "userPassword") {
		for _, stored := range entry.attrs[key] {
			if passwordMatches(stored, value) {
				return true, nil
			}
		}
		return false, nil
	}

	return contains(entry.attrs[key], value), nil
}

// Rename moves the entry at dn below newSuperior (or its current parent)
// under the new RDN, updating the naming attribute the way a directory
// server maintains RDN attribute values.
func (d *Directory) Rename(dn, newRDN, newSuperior string) error {
	entry, err := d.get(dn)
	if err != nil {
		return err
	}

	newParts, err := explodeDN(newRDN)
	if err != nil {
		return err
	}
	if len(newParts) != 1 {
		return newError(ErrInvalidDNSyntax, newRDN, "new RDN must be a single component")
	}

	superior := parentDN(entry.dn)
	if newSuperior != "" {
		if superior, err = NormalizeDN(newSuperior); err != nil {
			return err
		}
	}

	newDN := newParts[0]
	if superior != "" {
		newDN = newParts[0] + "," + superior
	}
	if _, ok := d.entries[newDN]; ok && newDN != entry.dn {
		return newError(ErrEntryAlreadyExists, newDN, "")
	}

	oldAttr, oldValue, err := firstRDN(entry.dn)
	if err != nil {
		return err
	}
	newAttr, newValue, err := firstRDN(newRDN)
	if err != nil {
		return err
	}

	attrs := entry.attrs
	if key, ok := attrs.key(newAttr); ok {
		if !contains(attrs[key], newValue) {
			attrs[key] = append(attrs[key], newValue)
		}
	} else {
		attrs[newAttr] = []string{newValue}
	}

	if key, ok := attrs.key(oldAttr); ok {
		if strings.EqualFold(oldAttr, newAttr) || len(attrs[key]) > 1 {
			attrs[key] = remove(attrs[key], oldValue)
		} else {
			delete(attrs, key)
		}
	}

	delete(d.entries, entry.dn)
	return d.put(newDN, attrs)
}

// passwordMatches verifies a candidate password against a stored
// userPassword value: plaintext equality, or {SHA}/{SSHA} digests.
func passwordMatches(stored, candidate string) bool {
	switch {
	case strings.HasPrefix(stored, "{SSHA}"):
		raw, err := base64.StdEncoding.DecodeString(stored[len("{SSHA}"):])
		if err != nil || len(raw) < sha1.Size {
			return false
		}
		digest, salt := raw[:sha1.Size], raw[sha1.Size:]
		sum := sha1.Sum(append([]byte(candidate), salt...))
		return string(sum[:]) == string(digest)

	case strings.HasPrefix(stored, "{SHA}"):
		raw, err := base64.StdEncoding.DecodeString(stored[len("{SHA}"):])
		if err != nil {
			return false
		}
		sum := sha1.Sum([]byte(candidate))
		return string(sum[:]) == string(raw)

	default:
		return stored == candidate
	}
}

func copyAttrs(attrs Attributes) Attributes {
	out := make(Attributes, len(attrs))
	for k, values := range attrs {
		out[k] = append([]string(nil), values...)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func remove(values []string, v string) []string {
	out := values[:0]
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
