package dns

import (
	"fmt"
	"strings"

	mdns "github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// NormalizeDomain lowercases an FQDN, strips the trailing root dot and
// converts internationalised labels to their ASCII form.
// e.g. "WWW.Example.COM." → "www.example.com"
// e.g. "www.例子.中国" → "www.xn--fsqu00a.xn--fiqs8s"
func NormalizeDomain(fqdn string) (string, error) {
	fqdn = strings.TrimSuffix(strings.TrimSpace(fqdn), ".")
	if fqdn == "" {
		return "", fmt.Errorf("empty domain")
	}
	ascii, err := idna.ToASCII(fqdn)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", fqdn, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidDomain reports whether fqdn is a syntactically valid domain name
// with at least two labels.
func ValidDomain(fqdn string) bool {
	normalized, err := NormalizeDomain(fqdn)
	if err != nil {
		return false
	}
	labels, ok := mdns.IsDomainName(normalized)
	return ok && labels >= 2
}

// ValidType reports whether t names a known DNS resource record type.
func ValidType(t string) bool {
	_, ok := mdns.StringToType[strings.ToUpper(t)]
	return ok
}
