// Package fraud scores participant records with email, timing and shared
// wallet heuristics.
package fraud

import (
	"fmt"
	"strings"
	"time"

	"github.com/certhub/backend/internal/domain/participant"
)

// Signal weights
const (
	WeightEmailAlias       = 15
	WeightDisposableEmail  = 40
	WeightBotActivity      = 60
	WeightSpeedRun         = 30
	WeightRapidCompletion  = 15
	WeightCAFlagged        = 25
	WeightSybil            = 35
	MaxRiskScore           = 100
	reasonSeparator        = "; "
	botActivityThreshold   = 30 * time.Minute
	speedRunThreshold      = 4 * time.Hour
	rapidCompletionCeiling = 5 * time.Hour
)

// Reason texts
const (
	ReasonEmailAlias      = "Email alias"
	ReasonDisposableEmail = "Disposable email"
	ReasonBotActivity     = "Bot activity (<30min)"
	ReasonSpeedRun        = "Speed run (<4h)"
	ReasonRapidCompletion = "Rapid completion"
	ReasonCAFlagged       = "CA flagged"
)

// DefaultDisposableDomains are always treated as throwaway mailboxes
var DefaultDisposableDomains = []string{
	"yopmail.com",
	"tempmail.com",
	"guerrillamail.com",
	"mailinator.com",
	"10minutemail.com",
}

// Engine runs the per-record and cross-record heuristics. It is safe for
// concurrent use once built.
type Engine struct {
	disposable map[string]struct{}
}

// Option configures an Engine
type Option func(*Engine)

// WithDisposableDomains adds domains to the built-in disposable list
func WithDisposableDomains(domains ...string) Option {
	return func(e *Engine) {
		for _, d := range domains {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				e.disposable[d] = struct{}{}
			}
		}
	}
}

// NewEngine creates an engine with the default disposable domains plus options
func NewEngine(opts ...Option) *Engine {
	e := &Engine{disposable: make(map[string]struct{}, len(DefaultDisposableDomains))}
	WithDisposableDomains(DefaultDisposableDomains...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsDisposable reports whether domain is a known disposable-mail domain
func (e *Engine) IsDisposable(domain string) bool {
	_, ok := e.disposable[strings.ToLower(domain)]
	return ok
}

// PerformFraudCheck scores one record on its own
func (e *Engine) PerformFraudCheck(r participant.Record) participant.Assessment {
	var (
		reasons []string
		score   int
	)
	flag := func(reason string, weight int) {
		reasons = append(reasons, reason)
		score += weight
	}

	if !r.EmailSynthesized {
		local, domain := splitEmail(r.Email)
		if strings.Contains(local, "+") {
			flag(ReasonEmailAlias, WeightEmailAlias)
		}
		if domain != "" && e.IsDisposable(domain) {
			flag(ReasonDisposableEmail, WeightDisposableEmail)
		}
	}

	if d, ok := r.CompletionTime(); ok {
		switch {
		case d < botActivityThreshold:
			flag(ReasonBotActivity, WeightBotActivity)
		case d < speedRunThreshold:
			flag(ReasonSpeedRun, WeightSpeedRun)
		case d < rapidCompletionCeiling:
			flag(ReasonRapidCompletion, WeightRapidCompletion)
		}
	}

	if strings.Contains(strings.ToLower(r.CAStatus), "flag") {
		flag(ReasonCAFlagged, WeightCAFlagged)
	}

	return participant.Assessment{
		IsSuspicious:    len(reasons) > 0,
		SuspicionReason: strings.Join(reasons, reasonSeparator),
		RiskScore:       min(score, MaxRiskScore),
	}
}

// DetectSybilAccounts counts normalized wallet addresses across records and
// returns those used by more than one record.
func DetectSybilAccounts(records []participant.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		if w := r.WalletKey(); w != "" {
			counts[w]++
		}
	}
	for w, n := range counts {
		if n < 2 {
			delete(counts, w)
		}
	}
	return counts
}

// EnrichRecords scores every record, then adds the shared-wallet signal. It
// needs the whole record set: the wallet counts must be complete before any
// record is annotated. The input slice is not modified.
func (e *Engine) EnrichRecords(records []participant.Record) []participant.Record {
	sybils := DetectSybilAccounts(records)

	out := make([]participant.Record, len(records))
	for i, r := range records {
		a := e.PerformFraudCheck(r)
		if n, ok := sybils[r.WalletKey()]; ok {
			a = withSybil(a, n)
		}
		r.Assessment = a
		out[i] = r
	}
	return out
}

// SybilReason is the reason text for a wallet shared by n records
func SybilReason(n int) string {
	return fmt.Sprintf("Sybil (%d accounts)", n)
}

func withSybil(a participant.Assessment, n int) participant.Assessment {
	a.IsSuspicious = true
	a.RiskScore = min(a.RiskScore+WeightSybil, MaxRiskScore)
	if a.SuspicionReason == "" {
		a.SuspicionReason = SybilReason(n)
	} else {
		a.SuspicionReason += reasonSeparator + SybilReason(n)
	}
	return a
}

// splitEmail splits at the last '@'; an address without one has no domain
func splitEmail(email string) (local, domain string) {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return email, ""
	}
	return email[:i], strings.ToLower(strings.TrimSpace(email[i+1:]))
}

// Summary counts flagged records in an enriched set
type Summary struct {
	Suspicious   int
	SybilWallets int
	ByReason     map[string]int
}

// Summarize tallies enriched records for reporting
func Summarize(records []participant.Record) Summary {
	s := Summary{ByReason: make(map[string]int)}
	for _, r := range records {
		if !r.IsSuspicious {
			continue
		}
		s.Suspicious++
		for _, reason := range strings.Split(r.SuspicionReason, reasonSeparator) {
			if strings.HasPrefix(reason, "Sybil (") {
				reason = "Sybil"
			}
			s.ByReason[reason]++
		}
	}
	s.SybilWallets = len(DetectSybilAccounts(records))
	return s
}
