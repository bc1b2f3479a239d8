// Package narration turns streamed model text into spoken sentences.
//
// A Pipeline accepts text chunks as they arrive, cuts them into sentences
// and speaks the sentences one at a time, in order, while later chunks are
// still streaming in. Once the source is flushed and every queued sentence
// has been spoken, the pipeline reports completion exactly once.
package narration

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/observability/metrics"
	"ai-scene-narrator-service/internal/service/segment"
	"ai-scene-narrator-service/internal/service/tts"
)

// Options configures a Pipeline.
type Options struct {
	Language string
	Rate     float64

	// OnComplete runs once the pipeline has drained after Flush. It never
	// runs for a cancelled pipeline. It may run on the goroutine that called
	// Flush when nothing was left to speak.
	OnComplete func()

	// OnUtterance runs after each sentence has been spoken successfully.
	OnUtterance func(text string)

	Logger  *zerolog.Logger
	Metrics *metrics.Metrics
}

// Pipeline is a sentence-segmenting speech queue bound to one session.
//
// State transitions:
//
//	open ── Flush() ──→ flushed ── queue drained ──→ done
//	  │                   │
//	  └──── Cancel() ─────┴──→ cancelled (terminal, silent)
type Pipeline struct {
	ctx     context.Context
	speaker tts.Speaker
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	buffer    string
	queue     []string
	speaking  bool
	flushed   bool
	cancelled bool
	done      bool
}

// New creates a pipeline that speaks through speaker for as long as ctx is live.
func New(ctx context.Context, speaker tts.Speaker, opts Options) *Pipeline {
	p := &Pipeline{
		ctx:     ctx,
		speaker: speaker,
		opts:    opts,
		metrics: opts.Metrics,
	}
	if opts.Logger != nil {
		p.logger = *opts.Logger
	} else {
		p.logger = logging.WithComponent("narration")
	}
	if p.metrics == nil {
		p.metrics = metrics.DefaultMetrics
	}
	return p
}

// AddChunk appends streamed text. Every complete sentence in the buffer is
// queued; the unterminated remainder stays buffered. No-op once cancelled.
func (p *Pipeline) AddChunk(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return
	}

	var sentences []string
	sentences, p.buffer = segment.SplitSentences(p.buffer + text)
	p.enqueueLocked(sentences...)
	p.startLocked()
}

// Flush marks the source as exhausted and queues the buffered remainder.
// If nothing is playing and nothing is queued, completion fires before
// Flush returns. No-op once cancelled.
func (p *Pipeline) Flush() {
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return
	}

	p.flushed = true
	if rest := strings.TrimSpace(p.buffer); rest != "" {
		p.enqueueLocked(rest)
	}
	p.buffer = ""

	if p.speaking || len(p.queue) > 0 {
		p.startLocked()
		p.mu.Unlock()
		return
	}
	fire := p.markDoneLocked()
	p.mu.Unlock()

	if fire {
		p.complete()
	}
}

// Cancel stops the pipeline for good: buffered and queued text is dropped,
// the speaker is silenced and completion will never fire.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return
	}
	p.cancelled = true
	p.buffer = ""
	p.queue = nil
	p.mu.Unlock()

	p.speaker.CancelAll()
}

// Cancelled reports whether Cancel has been called.
func (p *Pipeline) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// Done reports whether completion has fired.
func (p *Pipeline) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Pipeline) enqueueLocked(sentences ...string) {
	if len(sentences) == 0 {
		return
	}
	p.queue = append(p.queue, sentences...)
	p.metrics.RecordSentencesQueued(len(sentences))
}

// startLocked launches the drain goroutine if there is work and none is running.
func (p *Pipeline) startLocked() {
	if p.speaking || len(p.queue) == 0 {
		return
	}
	p.speaking = true
	go p.drain()
}

// markDoneLocked flips done if the completion condition holds and it has
// not fired yet. It reports whether the caller must fire completion.
func (p *Pipeline) markDoneLocked() bool {
	if p.done || p.cancelled || !p.flushed || p.speaking || len(p.queue) > 0 {
		return false
	}
	p.done = true
	return true
}

func (p *Pipeline) drain() {
	for {
		p.mu.Lock()
		if p.cancelled || p.ctx.Err() != nil {
			p.speaking = false
			p.mu.Unlock()
			return
		}
		if len(p.queue) == 0 {
			p.speaking = false
			fire := p.markDoneLocked()
			p.mu.Unlock()
			if fire {
				p.complete()
			}
			return
		}
		sentence := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		err := p.speaker.Speak(p.ctx, sentence, p.opts.Language, p.opts.Rate)
		p.metrics.RecordUtterance(err)
		if err != nil {
			p.logger.Warn().
				Err(err).
				Str("sentence", sentence).
				Msg("Utterance failed, skipping")
			continue
		}
		if p.opts.OnUtterance != nil && p.ctx.Err() == nil && !p.Cancelled() {
			p.opts.OnUtterance(sentence)
		}
	}
}

func (p *Pipeline) complete() {
	p.metrics.RecordPipelineDone()
	if p.opts.OnComplete != nil {
		p.opts.OnComplete()
	}
}
