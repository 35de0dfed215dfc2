package mockldap

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// NormalizeDN canonicalizes a Distinguished Name for matching: the DN is
// parsed per RFC 4514 and reconstructed with attribute types and values
// lowercased and inter-RDN whitespace removed.
//
// Input:  "CN=Alice, OU=People, O=Test"
// Output: "cn=alice,ou=people,o=test"
//
// DNs in this package compare equal when their canonical forms are equal;
// values embedded in DNs are therefore matched case-insensitively, matching
// common directory behavior.
func NormalizeDN(dn string) (string, error) {
	parts, err := explodeDN(dn)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ","), nil
}

// explodeDN parses a DN into its canonical RDN strings, outermost RDN first.
func explodeDN(dn string) ([]string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return nil, newError(ErrInvalidDNSyntax, dn, err.Error())
	}

	parts := make([]string, 0, len(parsed.RDNs))
	for _, rdn := range parsed.RDNs {
		attrStrings := make([]string, 0, len(rdn.Attributes))
		for _, attr := range rdn.Attributes {
			attrStrings = append(attrStrings,
				strings.ToLower(attr.Type)+"="+strings.ToLower(attr.Value))
		}
		// Multiple attributes in the same RDN join with "+".
		parts = append(parts, strings.Join(attrStrings, "+"))
	}

	return parts, nil
}

// firstRDN returns the attribute type and value of a DN's first RDN in
// canonical (lowercased) form.
func firstRDN(dn string) (attr, value string, err error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", "", newError(ErrInvalidDNSyntax, dn, err.Error())
	}
	if len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
		return "", "", newError(ErrInvalidDNSyntax, dn, "empty DN")
	}

	first := parsed.RDNs[0].Attributes[0]
	return strings.ToLower(first.Type), strings.ToLower(first.Value), nil
}

// parentDN returns the canonical parent of a canonical DN, or "" for a
// single-RDN DN.
func parentDN(canonical string) string {
	if i := strings.Index(canonical, ","); i >= 0 {
		return canonical[i+1:]
	}
	return ""
}

// sameDN reports whether two RDN part sequences identify the same node.
func sameDN(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// underDN reports whether parts sits strictly below base in the tree, at any
// depth. The parent relation is a suffix relation on RDN sequences.
func underDN(parts, base []string) bool {
	if len(parts) <= len(base) {
		return false
	}
	return sameDN(parts[len(parts)-len(base):], base)
}
