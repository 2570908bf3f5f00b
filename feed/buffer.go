package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"goldengine/market"
	"goldengine/metrics"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultErrorBackoff = time.Second
)

// Snapshot is the immutable latest view of one symbol's sanitized candles.
// Version is monotonic per symbol: a consumer never sees it regress.
type Snapshot struct {
	Symbol       string
	Version      uint64
	Rows         []market.Candle
	LastModified time.Time
}

// LastClose returns the most recent close, ok=false when the snapshot is empty.
func (s Snapshot) LastClose() (float64, bool) {
	if len(s.Rows) == 0 {
		return 0, false
	}
	return s.Rows[len(s.Rows)-1].Close, true
}

// Tick derives a two-sided quote from the last close using the instrument's
// configured spread.
func (s Snapshot) Tick(meta market.InstrumentMeta) (market.Tick, bool) {
	mid, ok := s.LastClose()
	if !ok {
		return market.Tick{}, false
	}
	half := meta.Spread / 2
	return market.Tick{
		Symbol: s.Symbol,
		Time:   s.LastModified,
		Bid:    mid - half,
		Ask:    mid + half,
	}, true
}

// Buffer polls one symbol's source in the background and publishes sanitized
// snapshots. The mutex is held only for the reference swap and copy, never
// across I/O or parsing.
type Buffer struct {
	symbol       string
	source       Source
	log          zerolog.Logger
	pollInterval time.Duration
	errorBackoff time.Duration

	mu       sync.Mutex
	snap     Snapshot
	ready    bool
	lastSeen time.Time
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithPollInterval overrides the change-detection cadence.
func WithPollInterval(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// WithErrorBackoff overrides the sleep after a failed read.
func WithErrorBackoff(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.errorBackoff = d
		}
	}
}

func NewBuffer(symbol string, source Source, log zerolog.Logger, opts ...Option) *Buffer {
	b := &Buffer{
		symbol:       symbol,
		source:       source,
		log:          log.With().Str("component", "feed").Str("symbol", symbol).Logger(),
		pollInterval: defaultPollInterval,
		errorBackoff: defaultErrorBackoff,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run polls until ctx is cancelled. Read failures are logged and retried with
// the longer backoff; they never terminate the loop.
func (b *Buffer) Run(ctx context.Context) error {
	for {
		delay := b.pollInterval
		if err := b.refresh(); err != nil {
			b.log.Warn().Err(err).Msg("snapshot refresh failed, backing off")
			delay = b.errorBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (b *Buffer) refresh() error {
	modified, err := b.source.LastModified()
	if err != nil {
		return err
	}
	if !modified.After(b.lastSeen) {
		return nil
	}

	rows, err := b.source.Load()
	if err != nil {
		return err
	}
	clean := Sanitize(rows)

	b.mu.Lock()
	b.snap = Snapshot{
		Symbol:       b.symbol,
		Version:      b.snap.Version + 1,
		Rows:         clean,
		LastModified: modified,
	}
	b.ready = true
	b.mu.Unlock()

	b.lastSeen = modified
	metrics.SnapshotsTotal.WithLabelValues(b.symbol).Inc()
	b.log.Debug().Uint64("version", b.snap.Version).Int("rows", len(clean)).Msg("snapshot published")
	return nil
}

// Latest copies out the cached snapshot reference. ok=false until the first
// successful refresh.
func (b *Buffer) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap, b.ready
}
