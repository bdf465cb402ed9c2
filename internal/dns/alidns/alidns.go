package alidns

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
)

// DefaultEndpoint is the public Alidns RPC endpoint.
const DefaultEndpoint = "https://alidns.aliyuncs.com/"

const (
	defaultTimeout = 10 * time.Second

	// pageSize is the single page fetched by FindRecord. Hosts with more
	// matching records than this are not paginated.
	pageSize = 100
)

func init() {
	dns.Register("alidns", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for Aliyun Alidns.
type Provider struct {
	client *Client
	log    logr.Logger
	dryRun bool
}

// Option configures a Provider.
type Option func(*providerOptions)

type providerOptions struct {
	signerOpts []SignerOption
}

// WithSignerOptions forwards options to the request signer.
func WithSignerOptions(opts ...SignerOption) Option {
	return func(o *providerOptions) { o.signerOpts = append(o.signerOpts, opts...) }
}

// New creates an Alidns provider from the given settings map.
// Required settings: access_key_id, access_key_secret.
// Optional settings: endpoint (default DefaultEndpoint), timeout (default 10s),
// dry_run (default false).
func New(log logr.Logger, settings map[string]string, opts ...Option) (*Provider, error) {
	accessKeyID := settings["access_key_id"]
	if accessKeyID == "" {
		return nil, fmt.Errorf("alidns: missing required setting 'access_key_id'")
	}
	accessKeySecret := settings["access_key_secret"]
	if accessKeySecret == "" {
		return nil, fmt.Errorf("alidns: missing required setting 'access_key_secret'")
	}

	endpoint := settings["endpoint"]
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := defaultTimeout
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("alidns: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	signer := NewSigner(accessKeyID, accessKeySecret, o.signerOpts...)
	httpClient := resty.New().SetTimeout(timeout)

	return &Provider{
		client: NewClient(log, endpoint, signer, httpClient),
		log:    log,
		dryRun: settings["dry_run"] == "true",
	}, nil
}

// ResolveDomain splits fqdn into its host record and registrable root
// domain, e.g. "www.example.com" → ("www", "example.com"). The split is
// done by the API because public-suffix rules are vendor-maintained.
func (p *Provider) ResolveDomain(ctx context.Context, fqdn string) (rr, rootDomain string, err error) {
	const action = "GetMainDomainName"

	data, err := p.client.Request(ctx, Params{"Action": action, "InputString": fqdn})
	if err != nil {
		return "", "", fmt.Errorf("alidns: resolve %s: %w", fqdn, err)
	}
	rr, err = stringField(action, data, "RR")
	if err != nil {
		return "", "", fmt.Errorf("alidns: resolve %s: %w", fqdn, err)
	}
	rootDomain, err = stringField(action, data, "DomainName")
	if err != nil {
		return "", "", fmt.Errorf("alidns: resolve %s: %w", fqdn, err)
	}
	return rr, rootDomain, nil
}

// FindRecord returns the record under rootDomain whose host record and
// routing line both match exactly, or nil when none does. Only the first
// page of keyword matches is inspected.
func (p *Provider) FindRecord(ctx context.Context, rootDomain, rr, line string) (*dns.Record, error) {
	if line == "" {
		line = dns.DefaultLine
	}

	data, err := p.client.Request(ctx, Params{
		"Action":     "DescribeDomainRecords",
		"DomainName": rootDomain,
		"RRKeyWord":  rr,
		"Line":       line,
		"PageSize":   pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("alidns: describe records of %s: %w", rootDomain, err)
	}

	rows, err := recordList(data)
	if err != nil {
		return nil, fmt.Errorf("alidns: describe records of %s: %w", rootDomain, err)
	}
	for _, row := range rows {
		record, err := toRecord(row)
		if err != nil {
			return nil, fmt.Errorf("alidns: describe records of %s: %w", rootDomain, err)
		}
		// RRKeyWord is a fuzzy filter, so the exact match happens here.
		if record.HostRecord == rr && record.Line == line {
			if record.RootDomain == "" {
				record.RootDomain = rootDomain
			}
			return &record, nil
		}
	}
	return nil, nil
}

// SetDNSRecord makes req.Domain resolve to req.Value on req.Line, creating
// the record when missing and updating it when type or value differ.
func (p *Provider) SetDNSRecord(ctx context.Context, req dns.UpdateRequest) (dns.Outcome, error) {
	req = req.WithDefaults()

	domain, err := dns.NormalizeDomain(req.Domain)
	if err != nil {
		return dns.Outcome{}, fmt.Errorf("alidns: %w", err)
	}

	rr, rootDomain, err := p.ResolveDomain(ctx, domain)
	if err != nil {
		return dns.Outcome{}, err
	}
	p.log.V(1).Info("resolved domain", "domain", domain, "rr", rr, "rootDomain", rootDomain)

	existing, err := p.FindRecord(ctx, rootDomain, rr, req.Line)
	if err != nil {
		return dns.Outcome{}, err
	}

	action := dns.Plan(existing, req)
	if p.dryRun {
		out := dns.Outcome{Action: action, Reason: "dry run"}
		if existing != nil {
			out.RecordID = existing.ID
		}
		p.log.Info("dry run, not sending changes", "domain", domain, "action", action, "value", req.Value, "recordId", out.RecordID)
		return out, nil
	}

	switch action {
	case dns.ActionSkip:
		reason := fmt.Sprintf("%s already resolved to %s, no update needed", domain, req.Value)
		p.log.Info("already resolved, no update needed", "domain", domain, "value", req.Value, "recordId", existing.ID)
		return dns.Outcome{Action: dns.ActionSkip, RecordID: existing.ID, Reason: reason}, nil

	case dns.ActionUpdate:
		p.log.Info("updating record", "domain", domain, "recordId", existing.ID,
			"type", req.Type, "oldValue", existing.Value, "value", req.Value)
		_, err := p.client.Request(ctx, Params{
			"Action":   "UpdateDomainRecord",
			"RecordId": existing.ID,
			"RR":       rr,
			"Type":     req.Type,
			"Value":    req.Value,
			"TTL":      req.TTL,
			"Priority": optional(req.Options["priority"]),
		})
		if err != nil {
			return dns.Outcome{}, fmt.Errorf("alidns: update record %s: %w", existing.ID, err)
		}
		return dns.Outcome{Action: dns.ActionUpdate, RecordID: existing.ID}, nil

	default:
		p.log.Info("creating record", "domain", domain, "type", req.Type, "value", req.Value, "line", req.Line)
		data, err := p.client.Request(ctx, Params{
			"Action":     "AddDomainRecord",
			"DomainName": rootDomain,
			"RR":         rr,
			"Type":       req.Type,
			"Value":      req.Value,
			"TTL":        req.TTL,
			"Line":       req.Line,
			"Priority":   optional(req.Options["priority"]),
		})
		if err != nil {
			return dns.Outcome{}, fmt.Errorf("alidns: add record for %s: %w", domain, err)
		}
		recordID, _ := data["RecordId"].(string)
		return dns.Outcome{Action: dns.ActionCreate, RecordID: recordID}, nil
	}
}

// optional maps an empty string to a nil parameter.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
