package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tholander/bagwatch/internal/port"
)

type pollerState int

const (
	stateIdle pollerState = iota
	stateFetching
)

type PollerConfig struct {
	// Interval is the base sleep between cycles.
	Interval time.Duration

	// MaxBackoff caps the sleep after consecutive failures.
	MaxBackoff time.Duration

	// CycleTimeout bounds one fetch+reconcile+notify pass.
	CycleTimeout time.Duration

	// AuthFailureThreshold is how many consecutive auth failures trigger the
	// re-authentication prompt.
	AuthFailureThreshold int

	// AdminChannel receives the re-authentication prompt.
	AdminChannel string
}

// Poller drives fetch -> reconcile -> notify on an interval. Cycles are
// strictly serialized; one must fully complete, persistence included, before
// the next begins. A cycle's error never stops the loop.
type Poller struct {
	cfg        PollerConfig
	fetcher    port.Fetcher
	reconciler *Reconciler
	notifier   *Notifier
	creds      port.CredentialRepository
	sink       port.NotificationSink

	state        pollerState
	failures     int
	authFailures int

	// promptSentAt is the credential timestamp recorded when the re-auth
	// prompt fired; cycles stay suppressed until a newer bundle appears.
	promptSent   bool
	promptSentAt time.Time
}

func NewPoller(cfg PollerConfig, fetcher port.Fetcher, reconciler *Reconciler, notifier *Notifier, creds port.CredentialRepository, sink port.NotificationSink) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Second
	}
	if cfg.AuthFailureThreshold <= 0 {
		cfg.AuthFailureThreshold = 5
	}
	return &Poller{
		cfg:        cfg,
		fetcher:    fetcher,
		reconciler: reconciler,
		notifier:   notifier,
		creds:      creds,
		sink:       sink,
	}
}

// Run loops until ctx is cancelled. Cancellation is honored between cycles
// only: an in-flight cycle finishes its persistence step rather than abort
// mid-write.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("poller: starting, interval %s", p.cfg.Interval)

	for {
		if p.shouldRunCycle(ctx) {
			p.state = stateFetching
			cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CycleTimeout)
			p.observe(p.runCycle(cycleCtx))
			cancel()
			p.state = stateIdle
		}

		select {
		case <-ctx.Done():
			log.Printf("poller: stopping")
			return
		case <-time.After(p.nextDelay()):
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) error {
	fetched, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	res, err := p.reconciler.Run(ctx, fetched)
	if err != nil {
		return err
	}

	enqueued := p.notifier.Notify(ctx, res.Transitioned, res.Items)
	log.Printf("poller: cycle done, %d items fetched, %d transitioned, %d notifications queued",
		len(fetched), len(res.Transitioned), enqueued)
	return nil
}

// shouldRunCycle suppresses fetching while a re-auth prompt is outstanding
// and no newer credential bundle has been stored.
func (p *Poller) shouldRunCycle(ctx context.Context) bool {
	if !p.promptSent {
		return true
	}

	creds, err := p.creds.GetCredentials(ctx)
	if err != nil {
		log.Printf("poller: credential check failed: %v", err)
		return false
	}
	if creds == nil || !creds.UpdatedAt.After(p.promptSentAt) {
		log.Printf("poller: waiting for fresh credentials")
		return false
	}

	log.Printf("poller: credentials restored, resuming cycles")
	p.promptSent = false
	p.authFailures = 0
	return true
}

func (p *Poller) observe(err error) {
	if err == nil {
		if p.failures > 0 || p.authFailures > 0 {
			log.Printf("poller: recovered after %d consecutive failures", p.failures+p.authFailures)
		}
		p.failures = 0
		p.authFailures = 0
		p.promptSent = false
		return
	}

	p.failures++

	if errors.Is(err, port.ErrAuthRequired) || errors.Is(err, port.ErrNoCredentials) {
		p.authFailures++
		log.Printf("poller: cycle failed (auth, %d consecutive): %v", p.authFailures, err)
		if p.authFailures >= p.cfg.AuthFailureThreshold && !p.promptSent {
			p.sendReauthPrompt()
		}
		return
	}

	log.Printf("poller: cycle failed (%d consecutive): %v", p.failures, err)
}

func (p *Poller) sendReauthPrompt() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	text := "Marketplace credentials are no longer accepted. Run the login flow and store a fresh token bundle; polling is paused until then."
	if err := p.sink.Send(ctx, p.cfg.AdminChannel, text); err != nil {
		// Leave promptSent unset so the next auth failure retries the prompt.
		log.Printf("poller: failed to send re-auth prompt: %v", err)
		return
	}

	p.promptSent = true
	p.promptSentAt = time.Now()
	if creds, err := p.creds.GetCredentials(ctx); err == nil && creds != nil {
		p.promptSentAt = creds.UpdatedAt
	}
	log.Printf("poller: re-auth prompt sent to %s, cycles suspended", p.cfg.AdminChannel)
}

// nextDelay applies exponential backoff to the base interval, doubling per
// consecutive failure up to MaxBackoff.
func (p *Poller) nextDelay() time.Duration {
	if p.failures == 0 {
		return p.cfg.Interval
	}

	delay := p.cfg.Interval
	for i := 0; i < p.failures && delay < p.cfg.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > p.cfg.MaxBackoff {
		delay = p.cfg.MaxBackoff
	}
	return delay
}
