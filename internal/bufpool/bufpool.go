// Package bufpool implements a fixed-capacity LRU cache of pages sitting in
// front of the page manager, with dirty tracking and pin counts.
package bufpool

import (
	"container/list"
	"sync"

	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/internal/logger"
	"github.com/nainya/miniql/internal/obs"
	"github.com/nainya/miniql/internal/page"
	"github.com/nainya/miniql/internal/pager"
)

type frame struct {
	page   *page.Page
	dirty  bool
	pins   int
	lruEl  *list.Element // nil while pinned (not eligible for eviction)
}

// Pool is a single-threaded, fixed-capacity buffer pool. Re-entrant fetches
// of the same page within one caller must reuse the returned pin rather
// than fetching twice.
type Pool struct {
	mu sync.Mutex

	capacity int
	pager    *pager.Pager
	log      *logger.Logger
	metrics  *obs.Metrics

	frames map[page.ID]*frame
	lru    *list.List // front = most recently used, back = least

	hits   uint64
	misses uint64
}

// New creates a buffer pool of the given frame capacity over pgr.
func New(pgr *pager.Pager, capacity int, log *logger.Logger, metrics *obs.Metrics) *Pool {
	if capacity <= 0 {
		capacity = 256
	}
	return &Pool{
		capacity: capacity,
		pager:    pgr,
		log:      log,
		metrics:  metrics,
		frames:   make(map[page.ID]*frame),
		lru:      list.New(),
	}
}

// Fetch returns a page pinned for read. Callers must Unpin exactly once per
// Fetch/FetchForWrite call.
func (p *Pool) Fetch(id page.ID) (*page.Page, error) {
	return p.fetch(id, false)
}

// FetchForWrite returns a page pinned for write. The caller is responsible
// for calling MarkDirty after mutating the returned page's payload in
// place.
func (p *Pool) FetchForWrite(id page.ID) (*page.Page, error) {
	return p.fetch(id, false)
}

func (p *Pool) fetch(id page.ID, _ bool) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.frames[id]; ok {
		p.hits++
		p.touchLocked(f)
		f.pins++
		p.recordRatioLocked()
		return f.page, nil
	}

	p.misses++
	if err := p.evictIfFullLocked(); err != nil {
		return nil, err
	}

	pg, err := p.pager.ReadPage(id)
	if err != nil {
		return nil, err
	}

	f := &frame{page: pg, pins: 1}
	p.frames[id] = f
	p.recordRatioLocked()
	return pg, nil
}

// NewPage allocates a fresh page of the given kind, inserts it into the
// pool already pinned and dirty, and returns it.
func (p *Pool) NewPage(kind page.Kind) (*page.Page, error) {
	id, err := p.pager.Allocate()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.evictIfFullLocked(); err != nil {
		return nil, err
	}

	pg := page.New(id, kind)
	p.frames[id] = &frame{page: pg, pins: 1, dirty: true}
	return pg, nil
}

// MarkDirty flags a pinned page as modified so it will be flushed before
// eviction.
func (p *Pool) MarkDirty(id page.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.frames[id]; ok {
		f.dirty = true
	}
}

// Unpin decrements the pin count on id. A frame becomes eligible for
// eviction only once its pin count reaches zero.
func (p *Pool) Unpin(id page.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.frames[id]
	if !ok {
		return
	}
	if f.pins > 0 {
		f.pins--
	}
	if f.pins == 0 {
		f.lruEl = p.lru.PushFront(id)
	}
}

// FlushAll writes every dirty frame to the page manager and syncs the data
// file.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	dirty := make([]*page.Page, 0)
	for _, f := range p.frames {
		if f.dirty {
			dirty = append(dirty, f.page)
		}
	}
	p.mu.Unlock()

	for _, pg := range dirty {
		if err := p.pager.WritePage(pg); err != nil {
			return err
		}
	}
	if err := p.pager.Sync(); err != nil {
		return err
	}

	p.mu.Lock()
	for _, f := range p.frames {
		f.dirty = false
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.BufferPoolFlushes.Inc()
	}
	return nil
}

// HitRatio returns the cumulative fetch hit ratio, for observability.
func (p *Pool) HitRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.hits + p.misses
	if total == 0 {
		return 0
	}
	return float64(p.hits) / float64(total)
}

func (p *Pool) touchLocked(f *frame) {
	if f.lruEl != nil {
		p.lru.Remove(f.lruEl)
		f.lruEl = nil
	}
}

func (p *Pool) recordRatioLocked() {
	if p.metrics == nil {
		return
	}
	total := p.hits + p.misses
	if total == 0 {
		return
	}
	p.metrics.BufferPoolHitRatio.Set(float64(p.hits) / float64(total))
}

func (p *Pool) evictIfFullLocked() error {
	if len(p.frames) < p.capacity {
		return nil
	}
	el := p.lru.Back()
	if el == nil {
		// every frame is pinned; caller must retry later. This should not
		// happen in the single-threaded model this engine targets.
		return dberr.New(dberr.StorageFailure, "buffer pool exhausted: all frames pinned")
	}
	victimID := el.Value.(page.ID)
	p.lru.Remove(el)
	victim := p.frames[victimID]

	if victim.dirty {
		if err := p.pager.WritePage(victim.page); err != nil {
			return err
		}
		if p.log != nil {
			p.log.Debug("evicted dirty frame, flushed to disk").Uint64("page_id", uint64(victimID)).Send()
		}
	}
	delete(p.frames, victimID)
	return nil
}
