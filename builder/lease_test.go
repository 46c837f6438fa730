package builder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/store"
)

func TestTryRun_RejectsConcurrent(t *testing.T) {
	c := &RebuildCoordinator{}

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.TryRun(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := c.TryRun(context.Background(), func(ctx context.Context) error {
		t.Error("second build must not start")
		return nil
	})
	if !core.IsAlreadyRunning(err) {
		t.Errorf("err = %v, want ALREADY_RUNNING", err)
	}

	close(release)
	wg.Wait()

	// after the first run finishes, a new run is accepted
	if err := c.TryRun(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("run after release: %v", err)
	}
}

func TestTryRun_PropagatesBuildError(t *testing.T) {
	c := &RebuildCoordinator{}
	boom := errors.New("boom")
	err := c.TryRun(context.Background(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestTryRun_StoreLease(t *testing.T) {
	ms := store.NewMemoryStore()
	defer ms.Close()

	// another process holds the lease
	ok, err := ms.SetNX(context.Background(), "test:lease", []byte("1"), 1)
	if err != nil || !ok {
		t.Fatalf("setnx: ok=%v err=%v", ok, err)
	}

	c := &RebuildCoordinator{Store: ms, Key: "test:lease", TTL: time.Minute}
	err = c.TryRun(context.Background(), func(ctx context.Context) error {
		t.Error("must not run while lease is held")
		return nil
	})
	if !core.IsAlreadyRunning(err) {
		t.Errorf("err = %v, want ALREADY_RUNNING", err)
	}

	// lease expires after its TTL; a crashed holder does not wedge rebuilds forever
	time.Sleep(1100 * time.Millisecond)
	ran := false
	err = c.TryRun(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("run after expiry: %v", err)
	}
	if !ran {
		t.Error("build fn did not run")
	}
}

func TestTryRun_ReleasesStoreLease(t *testing.T) {
	ms := store.NewMemoryStore()
	defer ms.Close()

	c := &RebuildCoordinator{Store: ms, Key: "test:lease", TTL: time.Minute}
	if err := c.TryRun(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// lease was deleted on completion, so the next run acquires it immediately
	if err := c.TryRun(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
