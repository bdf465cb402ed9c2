package dns

import "context"

// DefaultLine is the routing line used when an update request does not set one.
const DefaultLine = "default"

// DefaultType is the record type used when an update request does not set one.
const DefaultType = "A"

// Record is a DNS record as it exists at the provider.
type Record struct {
	ID         string // provider-assigned, required for updates
	HostRecord string // e.g. "www", "@" for the apex
	RootDomain string // e.g. "example.com"
	Line       string // routing line, e.g. "default", "telecom"
	Type       string // "A", "AAAA", "CNAME"
	Value      string
	TTL        int
}

// UpdateRequest describes the record a provider should converge to.
type UpdateRequest struct {
	Domain  string            // FQDN, e.g. "www.example.com"
	Type    string            // defaults to DefaultType
	Value   string            // target, usually an IP address
	Line    string            // defaults to DefaultLine
	TTL     *int              // nil lets the provider apply its own default
	Options map[string]string // provider-specific, forwarded verbatim
}

// WithDefaults returns a copy of r with Type and Line filled in.
func (r UpdateRequest) WithDefaults() UpdateRequest {
	if r.Type == "" {
		r.Type = DefaultType
	}
	if r.Line == "" {
		r.Line = DefaultLine
	}
	return r
}

// Action is the decision taken for one update request.
type Action string

const (
	ActionSkip   Action = "skipped"
	ActionUpdate Action = "updated"
	ActionCreate Action = "created"
)

// Outcome reports what a provider did for one update request.
type Outcome struct {
	Action   Action
	RecordID string // set for updates, and for creates when the provider returns one
	Reason   string
}

// Provider is the interface that DNS providers must implement.
type Provider interface {
	// SetDNSRecord makes the record for req.Domain resolve to req.Value,
	// creating or updating it as needed. It is a no-op when the record
	// already matches.
	SetDNSRecord(ctx context.Context, req UpdateRequest) (Outcome, error)
}

// Plan decides how to converge existing towards want. A nil existing
// record means none matched the host record and routing line.
func Plan(existing *Record, want UpdateRequest) Action {
	if existing == nil {
		return ActionCreate
	}
	if existing.Type == want.Type && existing.Value == want.Value {
		return ActionSkip
	}
	return ActionUpdate
}
