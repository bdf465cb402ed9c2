package controller

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/config"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/retry"
	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/speedtest"
)

// Providers hands out the provider for an id. *dns.Registry satisfies it.
type Providers interface {
	Get(id string) (dns.Provider, error)
}

// Runner applies every configured DNS entry to the selected IP, one entry
// at a time and in configuration order.
type Runner struct {
	Log       logr.Logger
	Providers Providers
	Metrics   *metrics.Metrics // optional
	// Retry is the policy for provider calls. The zero value disables retries.
	Retry retry.Config
}

// Result is what happened to one entry.
type Result struct {
	Index    int
	Domain   string
	Provider string
	Outcome  dns.Outcome
	Err      error
}

// Summary collects the results of a run.
type Summary struct {
	Best    speedtest.Result
	Results []Result
}

// Failed returns the number of entries that were not applied.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Run reconciles entries against best. A failing entry is logged and
// counted; it never stops the entries after it. Run only returns early when
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context, entries []config.DNSEntry, best speedtest.Result) Summary {
	summary := Summary{Best: best, Results: make([]Result, 0, len(entries))}
	if r.Metrics != nil {
		r.Metrics.ObserveBest(best)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			r.Log.Info("run cancelled, remaining entries not processed", "next", entry.Index)
			break
		}
		res := r.apply(ctx, entry, best)
		summary.Results = append(summary.Results, res)
		r.count(res)
	}
	return summary
}

func (r *Runner) apply(ctx context.Context, entry config.DNSEntry, best speedtest.Result) Result {
	res := Result{Index: entry.Index, Domain: entry.Domain, Provider: entry.Provider}

	if err := entry.Validate(); err != nil {
		r.Log.Error(err, "skipping invalid dns entry", "entry", entry.Index)
		res.Err = err
		return res
	}

	provider, err := r.Providers.Get(entry.Provider)
	if err != nil {
		r.Log.Error(err, "no usable DNS provider for entry", "entry", entry.Index, "domain", entry.Domain, "provider", entry.Provider)
		res.Err = err
		return res
	}

	req := entry.UpdateRequest(best.IP)
	log := r.Log.WithValues("domain", req.Domain, "provider", entry.Provider, "type", req.Type, "line", req.Line)

	policy := r.Retry
	if policy.MaxAttempts <= 0 {
		policy = retry.Disabled()
	}
	err = retry.Do(ctx, policy, retry.IsTransient, func(attempt int) error {
		if attempt > 1 {
			log.Info("retrying DNS record update", "attempt", attempt)
		}
		out, err := provider.SetDNSRecord(ctx, req)
		if err != nil {
			log.V(1).Info("DNS record update attempt failed", "attempt", attempt, "error", err.Error())
			return err
		}
		res.Outcome = out
		return nil
	})
	if err != nil {
		log.Error(err, "failed to set DNS record", "value", req.Value)
		res.Err = err
		return res
	}

	log.Info("DNS record set", "action", res.Outcome.Action, "recordId", res.Outcome.RecordID, "value", req.Value)
	return res
}

func (r *Runner) count(res Result) {
	if r.Metrics == nil {
		return
	}
	outcome := string(res.Outcome.Action)
	switch {
	case dns.IsConfigurationError(res.Err):
		outcome = metrics.OutcomeInvalid
	case res.Err != nil:
		outcome = metrics.OutcomeFailed
	}
	r.Metrics.IncOutcome(res.Provider, outcome)
}

// IsUnknownProvider reports whether err names a provider nobody registered.
func IsUnknownProvider(err error) bool {
	var unknown *dns.UnknownProviderError
	return errors.As(err, &unknown)
}
