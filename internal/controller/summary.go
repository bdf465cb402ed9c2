package controller

import (
	"fmt"
	"strings"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
)

// FormatSummary returns a human-readable report of a run.
func FormatSummary(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Best IP %s", s.Best.IP)
	if s.Best.AvgLatencyMS > 0 || s.Best.DownloadSpeed > 0 {
		fmt.Fprintf(&b, " (loss %.2f, latency %.2fms, speed %.2fMB/s)",
			s.Best.LossRate, s.Best.AvgLatencyMS, s.Best.DownloadSpeed)
	}
	fmt.Fprintln(&b)

	counts := map[string]int{}
	for _, r := range s.Results {
		domain := r.Domain
		if domain == "" {
			domain = "<no domain>"
		}
		provider := r.Provider
		if provider == "" {
			provider = "<no provider>"
		}

		switch {
		case dns.IsConfigurationError(r.Err):
			counts["invalid"]++
			fmt.Fprintf(&b, "  [%d] %s via %s: invalid: %v\n", r.Index, domain, provider, r.Err)
		case IsUnknownProvider(r.Err):
			counts["failed"]++
			fmt.Fprintf(&b, "  [%d] %s via %s: unknown provider\n", r.Index, domain, provider)
		case r.Err != nil:
			counts["failed"]++
			fmt.Fprintf(&b, "  [%d] %s via %s: failed: %v\n", r.Index, domain, provider, r.Err)
		default:
			counts[string(r.Outcome.Action)]++
			fmt.Fprintf(&b, "  [%d] %s via %s: %s", r.Index, domain, provider, r.Outcome.Action)
			if r.Outcome.RecordID != "" {
				fmt.Fprintf(&b, " (record %s)", r.Outcome.RecordID)
			}
			if r.Outcome.Reason != "" {
				fmt.Fprintf(&b, ": %s", r.Outcome.Reason)
			}
			fmt.Fprintln(&b)
		}
	}

	fmt.Fprintf(&b, "Total %d: created=%d updated=%d skipped=%d invalid=%d failed=%d\n",
		len(s.Results),
		counts[string(dns.ActionCreate)], counts[string(dns.ActionUpdate)], counts[string(dns.ActionSkip)],
		counts["invalid"], counts["failed"])

	return b.String()
}
