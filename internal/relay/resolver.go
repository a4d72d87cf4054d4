// Package relay decouples the slow upstream dispatch from the HTTP
// response path. Each chat or voice submission becomes a job; a
// bounded worker pool dispatches it upstream and resolves the timeline
// placeholder once the reply (or its failure) is known.
package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/AlphonseHQ/console/internal/alphonse"
	"github.com/AlphonseHQ/console/internal/timeline"
)

// UnavailableReply is the user-visible fallback when the upstream
// dispatch fails or carries no reply text. The placeholder must never
// stay stuck at "Thinking...".
const UnavailableReply = "The agent is unavailable right now. Your message was recorded and will be picked up once the link recovers."

// Sender is the upstream dispatch the resolver depends on.
type Sender interface {
	SendMessage(ctx context.Context, text, correlationID string, args map[string]any) alphonse.SendResult
	SendVoice(ctx context.Context, filename string, audio []byte, correlationID, audioMode string) alphonse.SendResult
}

// Job is one pending dispatch-and-resolve. A job with Audio set is
// relayed as voice, otherwise as a chat message.
type Job struct {
	Text          string
	CorrelationID string
	Args          map[string]any

	Filename  string
	Audio     []byte
	AudioMode string
}

// Resolver runs a fixed pool of workers over a bounded job queue.
type Resolver struct {
	sender Sender
	store  *timeline.Store
	jobs   chan Job
	wg     sync.WaitGroup
}

// Options configures a Resolver. Zero values get defaults.
type Options struct {
	Workers   int
	QueueSize int
}

// NewResolver creates a resolver pool and starts its workers.
func NewResolver(sender Sender, store *timeline.Store, opts Options) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	r := &Resolver{
		sender: sender,
		store:  store,
		jobs:   make(chan Job, opts.QueueSize),
	}
	r.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go r.worker()
	}
	return r
}

// Submit enqueues a job and reports whether the relay accepted it. It
// never blocks the HTTP path: when the queue is full the placeholder
// is resolved immediately with the unavailable fallback and Submit
// returns false so the handler can surface the degradation.
func (r *Resolver) Submit(job Job) bool {
	select {
	case r.jobs <- job:
		return true
	default:
		log.Warn().Str("correlation_id", job.CorrelationID).Msg("relay queue full, resolving with fallback")
		r.store.ResolvePendingReply(job.CorrelationID, UnavailableReply)
		return false
	}
}

// Close drains the queue and stops the workers. In-flight upstream
// calls run to completion.
func (r *Resolver) Close() {
	close(r.jobs)
	r.wg.Wait()
}

func (r *Resolver) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		r.resolve(job)
	}
}

func (r *Resolver) resolve(job Job) {
	var res alphonse.SendResult
	if len(job.Audio) > 0 {
		res = r.sender.SendVoice(context.Background(), job.Filename, job.Audio, job.CorrelationID, job.AudioMode)
	} else {
		res = r.sender.SendMessage(context.Background(), job.Text, job.CorrelationID, job.Args)
	}
	reply := UnavailableReply
	if res.OK {
		if text := res.ReplyText(); text != "" {
			reply = text
		}
	}
	r.store.ResolvePendingReply(job.CorrelationID, reply)
	log.Debug().
		Str("correlation_id", job.CorrelationID).
		Bool("upstream_ok", res.OK).
		Msg("reply resolved")
}
