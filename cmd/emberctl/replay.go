package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/ember/internal/baseline"
	"github.com/albapepper/ember/internal/checkin"
)

// replayLine is one JSONL record, the same shape as a POST /sync body.
type replayLine struct {
	Identity string            `json:"identity"`
	Snapshot baseline.Snapshot `json:"snapshot"`
}

// replayBatch is one identity's snapshots in file order.
type replayBatch struct {
	identity  string
	snapshots []baseline.Snapshot
}

type replaySummary struct {
	Identities int
	Processed  atomic.Int64
	Invalid    atomic.Int64
	Anomalies  atomic.Int64
	Sent       atomic.Int64
}

// snapshotHandler is the part of checkin.Service replay drives.
type snapshotHandler interface {
	HandleSnapshot(ctx context.Context, identity string, snap baseline.Snapshot) (checkin.SnapshotResult, error)
}

// readReplay parses r and groups lines by identity, keeping file order within
// each identity and first-seen order across identities.
func readReplay(r io.Reader) ([]replayBatch, error) {
	var (
		batches []replayBatch
		index   = map[string]int{}
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var l replayLine
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", lineNo, err)
		}
		i, ok := index[l.Identity]
		if !ok {
			i = len(batches)
			index[l.Identity] = i
			batches = append(batches, replayBatch{identity: l.Identity})
		}
		batches[i].snapshots = append(batches[i].snapshots, l.Snapshot)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}
	return batches, nil
}

// replay runs each identity's snapshots sequentially, with up to workers
// identities in flight. Invalid snapshots are counted and skipped; any other
// error stops the replay.
func replay(ctx context.Context, svc snapshotHandler, batches []replayBatch, workers int, logger *slog.Logger) (*replaySummary, error) {
	sum := &replaySummary{Identities: len(batches)}
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, b := range batches {
		g.Go(func() error {
			for _, snap := range b.snapshots {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := svc.HandleSnapshot(ctx, b.identity, snap)
				var ve *baseline.ValidationError
				switch {
				case errors.As(err, &ve):
					sum.Invalid.Add(1)
					logger.Warn("Skipping invalid snapshot", "identity", b.identity, "error", err)
					continue
				case err != nil:
					return fmt.Errorf("replay %s: %w", b.identity, err)
				}
				sum.Processed.Add(1)
				if res.Anomaly != nil {
					sum.Anomalies.Add(1)
				}
				if res.Sent {
					sum.Sent.Add(1)
				}
			}
			return nil
		})
	}
	return sum, g.Wait()
}
