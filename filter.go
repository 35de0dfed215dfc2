package mockldap

import (
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// Filter is a parsed search filter. Matches is a pure predicate over one
// entry's attributes.
//
// Attribute names are matched case-insensitively; attribute values compare
// case-sensitively. This follows common directory convention for the subset
// simulated here.
type Filter interface {
	Matches(attrs Attributes) bool
	String() string
}

// ParseFilter compiles a textual search filter into an evaluable expression
// tree. Malformed input fails with ErrFilterSyntax. Constructs outside the
// simulated subset (>=, <=, ~=, extensible match) fail with
// ErrUnsupportedFilter so callers can tell "no filter support" apart from
// "no match".
func ParseFilter(filterstr string) (Filter, error) {
	packet, err := ldap.CompileFilter(filterstr)
	if err != nil {
		e := newError(ErrFilterSyntax, "", filterstr)
		e.Cause = err
		return nil, e
	}

	return filterFromPacket(packet)
}

// filterFromPacket converts a compiled BER filter packet into the expression
// tree. Tag layout follows go-ldap's filter encoding.
func filterFromPacket(packet *ber.Packet) (Filter, error) {
	switch packet.Tag {
	case ldap.FilterAnd:
		terms, err := filterTerms(packet)
		if err != nil {
			return nil, err
		}
		return &andFilter{terms: terms}, nil

	case ldap.FilterOr:
		terms, err := filterTerms(packet)
		if err != nil {
			return nil, err
		}
		return &orFilter{terms: terms}, nil

	case ldap.FilterNot:
		if len(packet.Children) != 1 {
			return nil, newError(ErrFilterSyntax, "", "NOT filter requires exactly one term")
		}
		term, err := filterFromPacket(packet.Children[0])
		if err != nil {
			return nil, err
		}
		return &notFilter{term: term}, nil

	case ldap.FilterEqualityMatch:
		if len(packet.Children) != 2 {
			return nil, newError(ErrFilterSyntax, "", "malformed equality match")
		}
		return &equalityFilter{
			attr:  ber.DecodeString(packet.Children[0].Data.Bytes()),
			value: ber.DecodeString(packet.Children[1].Data.Bytes()),
		}, nil

	case ldap.FilterPresent:
		return &presenceFilter{attr: ber.DecodeString(packet.Data.Bytes())}, nil

	case ldap.FilterSubstrings:
		return substringFromPacket(packet)

	case ldap.FilterGreaterOrEqual, ldap.FilterLessOrEqual,
		ldap.FilterApproxMatch, ldap.FilterExtensibleMatch:
		return nil, newError(ErrUnsupportedFilter, "",
			"filter construct is not simulated; seed the call instead")

	default:
		return nil, newError(ErrUnsupportedFilter, "", "unrecognized filter tag")
	}
}

func filterTerms(packet *ber.Packet) ([]Filter, error) {
	if len(packet.Children) == 0 {
		return nil, newError(ErrFilterSyntax, "", "empty filter set")
	}

	terms := make([]Filter, 0, len(packet.Children))
	for _, child := range packet.Children {
		term, err := filterFromPacket(child)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func substringFromPacket(packet *ber.Packet) (Filter, error) {
	if len(packet.Children) != 2 {
		return nil, newError(ErrFilterSyntax, "", "malformed substring match")
	}

	f := &substringFilter{attr: ber.DecodeString(packet.Children[0].Data.Bytes())}

	for _, sub := range packet.Children[1].Children {
		segment := ber.DecodeString(sub.Data.Bytes())
		switch sub.Tag {
		case ldap.FilterSubstringsInitial:
			f.initial = segment
		case ldap.FilterSubstringsAny:
			f.any = append(f.any, segment)
		case ldap.FilterSubstringsFinal:
			f.final = segment
		default:
			return nil, newError(ErrFilterSyntax, "", "unrecognized substring segment")
		}
	}

	return f, nil
}

type andFilter struct {
	terms []Filter
}

func (f *andFilter) Matches(attrs Attributes) bool {
	for _, term := range f.terms {
		if !term.Matches(attrs) {
			return false
		}
	}
	return true
}

func (f *andFilter) String() string { return combineString("&", f.terms) }

type orFilter struct {
	terms []Filter
}

func (f *orFilter) Matches(attrs Attributes) bool {
	for _, term := range f.terms {
		if term.Matches(attrs) {
			return true
		}
	}
	return false
}

func (f *orFilter) String() string { return combineString("|", f.terms) }

type notFilter struct {
	term Filter
}

func (f *notFilter) Matches(attrs Attributes) bool {
	return !f.term.Matches(attrs)
}

func (f *notFilter) String() string { return "(!" + f.term.String() + ")" }

type equalityFilter struct {
	attr  string
	value string
}

func (f *equalityFilter) Matches(attrs Attributes) bool {
	for _, v := range attrs.Get(f.attr) {
		if v == f.value {
			return true
		}
	}
	return false
}

func (f *equalityFilter) String() string { return "(" + f.attr + "=" + f.value + ")" }

type presenceFilter struct {
	attr string
}

func (f *presenceFilter) Matches(attrs Attributes) bool {
	return attrs.Has(f.attr)
}

func (f *presenceFilter) String() string { return "(" + f.attr + "=*)" }

type substringFilter struct {
	attr    string
	initial string
	any     []string
	final   string
}

func (f *substringFilter) Matches(attrs Attributes) bool {
	for _, v := range attrs.Get(f.attr) {
		if matchSubstring(v, f.initial, f.any, f.final) {
			return true
		}
	}
	return false
}

func (f *substringFilter) String() string {
	var b strings.Builder
	b.WriteString("(" + f.attr + "=" + f.initial + "*")
	for _, seg := range f.any {
		b.WriteString(seg + "*")
	}
	b.WriteString(f.final + ")")
	return b.String()
}

// matchSubstring checks one value against an initial*any*...*any*final
// pattern. Each wildcard matches any run of zero or more characters; segments
// must appear in order without overlapping.
func matchSubstring(v, initial string, anys []string, final string) bool {
	if initial != "" {
		if !strings.HasPrefix(v, initial) {
			return false
		}
		v = v[len(initial):]
	}

	if final != "" {
		if !strings.HasSuffix(v, final) {
			return false
		}
		v = v[:len(v)-len(final)]
	}

	for _, seg := range anys {
		i := strings.Index(v, seg)
		if i < 0 {
			return false
		}
		v = v[i+len(seg):]
	}

	return true
}

func combineString(op string, terms []Filter) string {
	var b strings.Builder
	b.WriteString("(" + op)
	for _, term := range terms {
		b.WriteString(term.String())
	}
	b.WriteString(")")
	return b.String()
}
