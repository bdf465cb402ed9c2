package config

import (
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
)

// DNSEntry is one [[dns]] table. Keys other than the known ones are kept
// in Options and forwarded to the provider verbatim.
type DNSEntry struct {
	Index    int
	Domain   string
	Provider string
	Type     string
	Line     string
	TTL      *int
	Options  map[string]string

	err error
}

var knownKeys = map[string]bool{
	"domain":       true,
	"provider":     true,
	"type":         true,
	"line":         true,
	"routing_line": true,
	"ttl":          true,
}

func parseEntry(index int, raw map[string]any) DNSEntry {
	e := DNSEntry{Index: index, Options: map[string]string{}}

	e.Domain = stringValue(raw["domain"])
	e.Provider = stringValue(raw["provider"])
	e.Type = strings.ToUpper(stringValue(raw["type"]))
	e.Line = stringValue(raw["line"])
	if e.Line == "" {
		e.Line = stringValue(raw["routing_line"])
	}

	if v, ok := raw["ttl"]; ok && v != nil {
		ttl, err := intValue(v)
		if err != nil {
			e.err = &dns.ConfigurationError{Index: index, Field: "ttl", Reason: err.Error()}
		} else {
			e.TTL = &ttl
		}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if knownKeys[k] || raw[k] == nil {
			continue
		}
		e.Options[k] = stringValue(raw[k])
	}
	return e
}

// Validate reports the first problem with the entry as a
// *dns.ConfigurationError, or nil when the entry can be applied.
func (e DNSEntry) Validate() error {
	if e.err != nil {
		return e.err
	}
	if e.Domain == "" {
		return &dns.ConfigurationError{Index: e.Index, Field: "domain", Reason: "missing required field"}
	}
	if e.Provider == "" {
		return &dns.ConfigurationError{Index: e.Index, Field: "provider", Reason: "missing required field"}
	}
	if !dns.ValidDomain(e.Domain) {
		return &dns.ConfigurationError{Index: e.Index, Field: "domain", Reason: fmt.Sprintf("invalid domain name %q", e.Domain)}
	}
	if e.Type != "" && !dns.ValidType(e.Type) {
		return &dns.ConfigurationError{Index: e.Index, Field: "type", Reason: fmt.Sprintf("unknown record type %q", e.Type)}
	}
	return nil
}

// UpdateRequest builds the request that points the entry at ip. Without an
// explicit type the record is AAAA for IPv6 addresses and A otherwise.
func (e DNSEntry) UpdateRequest(ip netip.Addr) dns.UpdateRequest {
	typ := e.Type
	if typ == "" && ip.Is6() {
		typ = "AAAA"
	}
	return dns.UpdateRequest{
		Domain:  e.Domain,
		Type:    typ,
		Value:   ip.String(),
		Line:    e.Line,
		TTL:     e.TTL,
		Options: e.Options,
	}.WithDefaults()
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case uint64:
		return int(t), nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("not an integer: %v", t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", t)
	}
}
