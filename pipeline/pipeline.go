// Package pipeline implements RobinHood's event pipeline glue (spec
// §4.M): `run(source, enricher?, sink) = for ev in (enricher ∘ source ∘
// no_partial): sink.update([ev])`, with EAGAIN-retry-once pulling,
// ENODATA termination, per-batch coalescing by logical entry, and a
// no-partial guard that refuses to hand an unresolved enrichment hint to
// a sink.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/minio/highwayhash"
	"github.com/rs/zerolog"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/iterator"
	"github.com/viant/robinhood/source"
)

// Enricher resolves a partial event's enrichment hint (spec §4.L).
// enrich.Enricher satisfies this directly; a nil Enricher is valid and
// means the source's events are already complete (e.g. a yamlsrc replay
// of already-enriched events).
type Enricher interface {
	Enrich(ev *fsevent.Fsevent) (*fsevent.Fsevent, error)
}

// Sink is the write side of the pipeline: a backend.Backend satisfies
// this directly.
type Sink interface {
	Update(events iterator.Iterator[*fsevent.Fsevent]) (applied int, err error)
}

// Options configures a Pipeline. The zero value is a valid, single-event-
// per-batch, silently-logging configuration.
type Options struct {
	// ChunkSize is how many events are grouped into one sink.Update call
	// (spec §4.M: "a backend's update batches events, caller can
	// chunkify"). ChunkSize <= 0 defaults to 1.
	ChunkSize int
	// Logger receives one structured line per batch and per retry event.
	// nil (the default) discards everything; a zero-value zerolog.Logger
	// is not safe to log through, so New always substitutes zerolog.Nop()
	// for a nil Logger rather than using the zero value directly.
	Logger *zerolog.Logger
}

// Pipeline drives events from a Source, through an optional Enricher and
// the no-partial guard, into a Sink, in fixed-size batches.
type Pipeline struct {
	source    source.Source
	enricher  Enricher
	sink      Sink
	chunkSize int
	logger    zerolog.Logger
}

// New builds a Pipeline. enricher may be nil.
func New(src source.Source, enricher Enricher, sink Sink, opts Options) *Pipeline {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Pipeline{source: src, enricher: enricher, sink: sink, chunkSize: chunkSize, logger: logger}
}

// Run drains p's source to completion, returning the total number of
// events applied across every sink.Update call. A terminal error from
// pulling, enriching, guarding, or sinking aborts the run; events already
// applied in prior batches are not rolled back (spec §4.M: "sink I/O
// errors abort the current batch").
func (p *Pipeline) Run() (int, error) {
	guarded := &guardedIterator{pipeline: p}
	chunks := iterator.Chunkify[*fsevent.Fsevent](guarded, p.chunkSize)

	applied := 0
	for {
		chunk, err := chunks.Next()
		if errors.Is(err, errs.ErrEndOfStream) {
			return applied, nil
		}
		if err != nil {
			return applied, err
		}

		batch, err := iterator.Collect(chunk)
		if err != nil {
			return applied, err
		}
		if len(batch) == 0 {
			continue
		}

		batch = coalesce(batch)
		p.logger.Debug().Int("batch_size", len(batch)).Msg("pipeline: applying batch")

		n, err := p.sink.Update(iterator.Array(batch, nil))
		applied += n
		if err != nil {
			p.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("pipeline: sink update failed")
			return applied, err
		}
	}
}

// guardedIterator pulls from the pipeline's source, applies the
// enricher, and enforces the no-partial guard, one event at a time;
// iterator.Chunkify groups its output into batches.
type guardedIterator struct {
	pipeline *Pipeline
}

func (g *guardedIterator) Next() (*fsevent.Fsevent, error) {
	ev, err := g.pullWithRetry()
	if err != nil {
		return nil, err
	}

	if g.pipeline.enricher != nil {
		ev, err = g.pipeline.enricher.Enrich(ev)
		if err != nil {
			return nil, err
		}
	}

	if ev.HasRbhFseventsHint() {
		return nil, fmt.Errorf("%w: event for id %x still carries an unresolved rbh-fsevents hint", errs.ErrInvalid, ev.ID.Bytes())
	}
	return ev, nil
}

// pullWithRetry pulls one event from the source, retrying exactly once
// on a resource-exhaustion (EAGAIN-equivalent) error (spec §4.M:
// "propagates EAGAIN by retrying the current batch exactly once").
// errs.ErrEndOfStream (ENODATA) and any other error pass straight
// through.
func (g *guardedIterator) pullWithRetry() (*fsevent.Fsevent, error) {
	ev, err := g.pipeline.source.Next()
	if err != nil && errors.Is(err, errs.ErrResource) {
		g.pipeline.logger.Warn().Msg("pipeline: source pull returned EAGAIN, retrying once")
		ev, err = g.pipeline.source.Next()
	}
	return ev, err
}

// fingerprintKey is distinct from value.Value's own fingerprint key
// (value/value.go), since this hashes an event's logical identity rather
// than a Value's content.
var fingerprintKey = [32]byte{
	'r', 'b', 'h', '-', 'c', 'o', 'r', 'e', '-', 'p', 'i', 'p', 'e', 'l', 'i', 'n',
	'e', '-', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0,
}

// logicalFingerprint hashes the (tag, id) pair identifying which
// logical entry an event targets, for the coalescing step (spec §4.M:
// "honors ... per-fingerprint ordering").
func logicalFingerprint(ev *fsevent.Fsevent) uint64 {
	h, _ := highwayhash.New64(fingerprintKey[:])
	_, _ = h.Write([]byte{byte(ev.Tag)})
	_, _ = h.Write(ev.ID.Bytes())
	return h.Sum64()
}

// coalesce squashes a batch down to one event per logical entry,
// keeping the last update seen for that entry but the position of its
// first occurrence (spec §4.M's "per-fingerprint ordering": repeated
// updates to the same entry within a single batch apply as their most
// recent state, in the batch's original relative order).
func coalesce(batch []*fsevent.Fsevent) []*fsevent.Fsevent {
	order := make([]uint64, 0, len(batch))
	latest := make(map[uint64]*fsevent.Fsevent, len(batch))
	for _, ev := range batch {
		fp := logicalFingerprint(ev)
		if _, ok := latest[fp]; !ok {
			order = append(order, fp)
		}
		latest[fp] = ev
	}
	if len(order) == len(batch) {
		return batch
	}
	out := make([]*fsevent.Fsevent, len(order))
	for i, fp := range order {
		out[i] = latest[fp]
	}
	return out
}
