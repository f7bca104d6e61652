package relaylog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// tableKey identifies one (database, table) pair's relay log.
type tableKey struct {
	db, table string
}

// Service owns every (db, table) SegmentManager a running pipeline has
// touched, serializing writes per table behind one goroutine each, and
// runs a background compactor on a fixed interval (spec.md 4.7
// "Scheduling": one writer task per segment manager; compaction every
// compact_interval_ms).
type Service struct {
	cfg   Config
	codec Codec

	mu       sync.Mutex
	managers map[tableKey]*SegmentManager
	queues   map[tableKey]chan appendRequest

	lowWaterMarks   map[tableKey]uint64
	lowWaterMarksMu sync.Mutex

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

type appendRequest struct {
	entry  RelayLogEntry
	result chan error
}

// NewService constructs a relay-log service around cfg, using codec to
// serialize entries into segment payloads.
func NewService(parent context.Context, cfg Config, codec Codec) *Service {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	s := &Service{
		cfg:           cfg,
		codec:         codec,
		managers:      make(map[tableKey]*SegmentManager),
		queues:        make(map[tableKey]chan appendRequest),
		lowWaterMarks: make(map[tableKey]uint64),
		group:         g,
		ctx:           gctx,
		cancel:        cancel,
	}
	s.group.Go(func() error { return s.compactLoop(s.ctx) })
	return s
}

// Stage enqueues one decoded event for durable staging into its table's
// relay log, blocking until the owning writer goroutine has appended it
// (or the service is shutting down).
func (s *Service) Stage(ctx context.Context, e RelayLogEntry) error {
	key := tableKey{db: e.Database, table: e.Table}
	queue, err := s.queueFor(key)
	if err != nil {
		return err
	}
	req := appendRequest{entry: e, result: make(chan error, 1)}
	select {
	case queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) queueFor(key tableKey) (chan appendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[key]; ok {
		return q, nil
	}

	mgr, err := OpenSegmentManager(s.cfg, key.db, key.table)
	if err != nil {
		return nil, err
	}
	bufSize := s.cfg.EntryBufferNum
	if bufSize <= 0 {
		bufSize = 1
	}
	queue := make(chan appendRequest, bufSize)
	s.managers[key] = mgr
	s.queues[key] = queue
	s.group.Go(func() error { return s.writeLoop(s.ctx, key, mgr, queue) })
	return queue, nil
}

// writeLoop is the single goroutine permitted to append to mgr; it
// serializes every Stage call for this table in arrival order.
func (s *Service) writeLoop(ctx context.Context, key tableKey, mgr *SegmentManager, queue chan appendRequest) error {
	for {
		select {
		case req := <-queue:
			payload, err := s.codec.Encode(req.entry)
			if err != nil {
				req.result <- err
				continue
			}
			_, err = mgr.Append(payload)
			req.result <- err
		case <-ctx.Done():
			return mgr.Close()
		}
	}
}

// SetLowWaterMark records the index below which key's entries are safe to
// compact away (typically the highest index every downstream consumer has
// acknowledged). The next compaction pass picks this up.
func (s *Service) SetLowWaterMark(db, table string, index uint64) {
	s.lowWaterMarksMu.Lock()
	defer s.lowWaterMarksMu.Unlock()
	s.lowWaterMarks[tableKey{db: db, table: table}] = index
}

func (s *Service) compactLoop(ctx context.Context) error {
	interval := s.cfg.CompactInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.compactOnce()
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) compactOnce() {
	s.mu.Lock()
	managers := make(map[tableKey]*SegmentManager, len(s.managers))
	for k, v := range s.managers {
		managers[k] = v
	}
	s.mu.Unlock()

	s.lowWaterMarksMu.Lock()
	marks := make(map[tableKey]uint64, len(s.lowWaterMarks))
	for k, v := range s.lowWaterMarks {
		marks[k] = v
	}
	s.lowWaterMarksMu.Unlock()

	for key, mgr := range managers {
		if mark, ok := marks[key]; ok {
			mgr.Compact(mark)
		}
	}
}

// Shutdown seals every active segment (flush + close) and stops the
// compactor, per spec.md 4.7 "Cancellation".
func (s *Service) Shutdown() error {
	s.cancel()
	return s.group.Wait()
}
