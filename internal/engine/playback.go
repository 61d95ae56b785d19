package engine

import (
	"context"
	"log"
	"sync"

	"github.com/danghoangsqtt-sys/nana-app/internal/audio"
)

// playbackChunk is one raw PCM chunk awaiting container wrapping. seq ties a
// background-preloaded unit to the exact chunk it was built from.
type playbackChunk struct {
	seq int64
	pcm []byte
}

type preloadedUnit struct {
	seq  int64
	unit []byte
}

// playbackQueue plays response audio chunks strictly in arrival order with
// one-chunk lookahead preloading. Flush cuts the current unit, drops the
// preloaded one, and clears the queue; a generation counter keeps a stale
// completion from resurrecting playback afterwards.
type playbackQueue struct {
	device     audio.PlaybackDevice
	sampleRate int
	wrap       func(pcm []byte, sampleRate int) ([]byte, error)

	onDrained func()
	onSkipped func(err error)
	onDevice  func(err error)

	mu         sync.Mutex
	queue      []playbackChunk
	preloaded  *preloadedUnit
	playing    bool
	gen        int64
	nextSeq    int64
	cancelPlay context.CancelFunc
}

func newPlaybackQueue(device audio.PlaybackDevice, sampleRate int) *playbackQueue {
	return &playbackQueue{
		device:     device,
		sampleRate: sampleRate,
		wrap:       audio.WrapPCM,
	}
}

// Enqueue appends a chunk. If nothing is playing the queue starts advancing
// immediately; otherwise the head is preloaded in the background so the gap
// between chunks stays bounded by playback, not wrapping.
func (q *playbackQueue) Enqueue(pcm []byte) {
	q.mu.Lock()
	q.queue = append(q.queue, playbackChunk{seq: q.nextSeq, pcm: pcm})
	q.nextSeq++
	gen := q.gen
	if !q.playing {
		q.playing = true
		q.mu.Unlock()
		go q.run(gen)
		return
	}
	q.mu.Unlock()
	q.preloadNext(gen)
}

// Flush stops current playback, releases the preloaded unit, and empties the
// queue. Safe to call at any time, including during an in-flight completion.
func (q *playbackQueue) Flush() {
	q.mu.Lock()
	q.gen++
	q.queue = nil
	q.preloaded = nil
	q.playing = false
	cancel := q.cancelPlay
	q.cancelPlay = nil
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Idle reports whether nothing is playing and nothing is queued.
func (q *playbackQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.playing && len(q.queue) == 0
}

func (q *playbackQueue) run(gen int64) {
	for {
		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			return
		}
		if len(q.queue) == 0 {
			q.playing = false
			q.mu.Unlock()
			if q.onDrained != nil {
				q.onDrained()
			}
			return
		}
		head := q.queue[0]
		q.queue = q.queue[1:]
		var unit []byte
		if q.preloaded != nil && q.preloaded.seq == head.seq {
			unit = q.preloaded.unit
		}
		q.preloaded = nil
		q.mu.Unlock()

		if unit == nil {
			wrapped, err := q.wrap(head.pcm, q.sampleRate)
			if err != nil {
				// Drop the chunk and advance rather than stalling the queue.
				if q.onSkipped != nil {
					q.onSkipped(err)
				}
				continue
			}
			unit = wrapped
		}

		q.preloadNext(gen)

		playCtx, cancel := context.WithCancel(context.Background())
		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			cancel()
			return
		}
		q.cancelPlay = cancel
		q.mu.Unlock()

		err := q.device.Play(playCtx, unit)
		cancel()

		q.mu.Lock()
		q.cancelPlay = nil
		stale := q.gen != gen
		q.mu.Unlock()
		if stale {
			// Flushed mid-play; the queue was already cleared.
			return
		}
		if err != nil && playCtx.Err() == nil {
			// Device failure: report and halt playback for this session.
			q.mu.Lock()
			q.playing = false
			q.mu.Unlock()
			if q.onDevice != nil {
				q.onDevice(err)
			}
			return
		}
	}
}

// preloadNext wraps the head of the queue in the background, at most one
// unit ahead of the currently playing one.
func (q *playbackQueue) preloadNext(gen int64) {
	q.mu.Lock()
	if q.gen != gen || q.preloaded != nil || len(q.queue) == 0 {
		q.mu.Unlock()
		return
	}
	head := q.queue[0]
	q.mu.Unlock()

	go func() {
		unit, err := q.wrap(head.pcm, q.sampleRate)
		if err != nil {
			// The advance path will re-wrap and report the failure.
			log.Printf("playback: preload wrap failed: %v", err)
			return
		}
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.gen != gen || q.preloaded != nil {
			return
		}
		if len(q.queue) == 0 || q.queue[0].seq != head.seq {
			return
		}
		q.preloaded = &preloadedUnit{seq: head.seq, unit: unit}
	}()
}
