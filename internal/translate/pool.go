package translate

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown is how long a rate-limited credential stays ineligible.
const DefaultCooldown = time.Hour

// CredentialPool rotates translation credentials round-robin, skipping ones
// that recently hit their quota. Eligibility is re-evaluated lazily on each
// Acquire using the configured cooldown. The pool is not safe for concurrent
// use; the pipeline is strictly sequential.
type CredentialPool struct {
	credentials []string
	cursor      int
	limitedAt   map[string]time.Time
	cooldown    time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewCredentialPool constructs a pool over the ordered credential list.
func NewCredentialPool(credentials []string, cooldown time.Duration, logger zerolog.Logger) *CredentialPool {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CredentialPool{
		credentials: credentials,
		limitedAt:   make(map[string]time.Time),
		cooldown:    cooldown,
		now:         time.Now,
		logger:      logger.With().Str("component", "credential_pool").Logger(),
	}
}

// Size returns the number of configured credentials.
func (p *CredentialPool) Size() int {
	return len(p.credentials)
}

// Acquire scans forward from the cursor for the first eligible credential and
// advances the cursor past it. When every credential is rate-limited it
// returns the first one anyway and warns: the system never blocks waiting for
// quota to free up.
func (p *CredentialPool) Acquire() string {
	if len(p.credentials) == 0 {
		return ""
	}

	for i := 0; i < len(p.credentials); i++ {
		idx := (p.cursor + i) % len(p.credentials)
		cred := p.credentials[idx]
		if p.eligible(cred) {
			p.cursor = (idx + 1) % len(p.credentials)
			return cred
		}
	}

	p.logger.Warn().Int("credentials", len(p.credentials)).Msg("all translation credentials rate-limited; proceeding with first anyway")
	p.cursor = 1 % len(p.credentials)
	return p.credentials[0]
}

// MarkLimited records the current time against a credential, taking it out
// of rotation for the cooldown window.
func (p *CredentialPool) MarkLimited(credential string) {
	p.limitedAt[credential] = p.now()
	p.logger.Warn().Msg("translation credential rate-limited; rotating")
}

func (p *CredentialPool) eligible(credential string) bool {
	limited, ok := p.limitedAt[credential]
	if !ok {
		return true
	}
	return p.now().Sub(limited) >= p.cooldown
}
