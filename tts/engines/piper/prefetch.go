package piper

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/tts"
)

// ErrPrefetcherClosed is returned for requests after Close.
var ErrPrefetcherClosed = errors.New("prefetcher is closed")

// Warmer renders utterances ahead of time. *Engine implements it.
type Warmer interface {
	Warm(ctx context.Context, u tts.Utterance) error
}

// Prefetcher synthesizes upcoming sentences in the background so they play
// from the cache. Requests beyond the lookahead are dropped.
type Prefetcher struct {
	warmer   Warmer
	requests chan tts.Utterance
	log      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	stats  PrefetchStats
}

// PrefetchStats counts prefetch outcomes.
type PrefetchStats struct {
	Requested int64
	Dropped   int64
	Warmed    int64
	Failed    int64
}

// NewPrefetcher starts a prefetcher holding up to lookahead requests.
func NewPrefetcher(w Warmer, lookahead int, logger *log.Logger) *Prefetcher {
	if lookahead < 1 {
		lookahead = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Prefetcher{
		warmer:   w,
		requests: make(chan tts.Utterance, lookahead),
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	p.wg.Add(1)
	go p.process()
	return p
}

// Request queues an utterance without blocking. It reports false when the
// request was dropped.
func (p *Prefetcher) Request(u tts.Utterance) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrPrefetcherClosed
	}
	p.stats.Requested++
	select {
	case p.requests <- u:
		return true, nil
	default:
		// Worker is behind; the sentence will be synthesized when played.
		p.stats.Dropped++
		return false, nil
	}
}

// Stats returns the counters.
func (p *Prefetcher) Stats() PrefetchStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close cancels the running synthesis and waits for the worker.
func (p *Prefetcher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.requests)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	return nil
}

func (p *Prefetcher) process() {
	defer p.wg.Done()
	for u := range p.requests {
		if p.ctx.Err() != nil {
			continue
		}
		err := p.warmer.Warm(p.ctx, u)
		p.mu.Lock()
		if err != nil {
			p.stats.Failed++
		} else {
			p.stats.Warmed++
		}
		p.mu.Unlock()
		if err != nil && p.ctx.Err() == nil {
			p.log.Debug("prefetch failed", "lang", u.Language, "err", err)
		}
	}
}
