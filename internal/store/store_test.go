package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type backendCase struct {
	name    string
	open    func(t *testing.T) Backend
	advance func(t *testing.T, d time.Duration)
}

func backends(t *testing.T) []backendCase {
	t.Helper()

	var (
		mr     *miniredis.Miniredis
		clock  = time.Unix(1_735_689_600, 0)
		nowFn  = func() time.Time { return clock }
		moveBy = func(_ *testing.T, d time.Duration) { clock = clock.Add(d) }
	)

	return []backendCase{
		{
			name: "memory",
			open: func(*testing.T) Backend {
				mem := NewMemory()
				mem.now = nowFn
				return mem
			},
			advance: moveBy,
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Backend {
				lite, err := NewSQLite(filepath.Join(t.TempDir(), "records.db"))
				if err != nil {
					t.Fatalf("NewSQLite failed: %v", err)
				}
				lite.now = nowFn
				return lite
			},
			advance: moveBy,
		},
		{
			name: "redis",
			open: func(t *testing.T) Backend {
				mr = miniredis.RunT(t)
				return NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
			},
			advance: func(_ *testing.T, d time.Duration) { mr.FastForward(d) },
		},
	}
}

func TestBackendPutGetList(t *testing.T) {
	for _, tc := range backends(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			b := tc.open(t)
			defer func() { _ = b.Close() }()

			conv := b.Namespace(NamespaceConversations)
			dpo := b.Namespace(NamespaceDPO)

			if err := conv.Put(ctx, "s1-1", []byte(`{"a":1}`), time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := conv.Put(ctx, "s1-2", []byte(`{"a":2}`), time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := dpo.Put(ctx, "s1-3", []byte(`{"b":1}`), time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := conv.Get(ctx, "s1-2")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != `{"a":2}` {
				t.Errorf("unexpected value %q", got)
			}

			keys, err := conv.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(keys) != 2 {
				t.Fatalf("expected 2 conversation keys, got %v", keys)
			}

			dpoKeys, err := dpo.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(dpoKeys) != 1 || dpoKeys[0] != "s1-3" {
				t.Fatalf("namespaces leaked into each other: %v", dpoKeys)
			}
		})
	}
}

func TestBackendGetMissingReturnsNil(t *testing.T) {
	for _, tc := range backends(t) {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.open(t)
			defer func() { _ = b.Close() }()

			got, err := b.Namespace(NamespaceDPO).Get(context.Background(), "nope")
			if err != nil {
				t.Fatalf("expected no error for missing key, got %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil value, got %q", got)
			}
		})
	}
}

func TestBackendLastWriteWins(t *testing.T) {
	for _, tc := range backends(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			b := tc.open(t)
			defer func() { _ = b.Close() }()
			kv := b.Namespace(NamespaceConversations)

			_ = kv.Put(ctx, "s-snapshot", []byte("first"), time.Hour)
			_ = kv.Put(ctx, "s-snapshot", []byte("second"), time.Hour)

			got, err := kv.Get(ctx, "s-snapshot")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != "second" {
				t.Fatalf("expected last write to win, got %q", got)
			}
			keys, _ := kv.List(ctx)
			if len(keys) != 1 {
				t.Fatalf("expected a single key, got %v", keys)
			}
		})
	}
}

func TestBackendExpiry(t *testing.T) {
	for _, tc := range backends(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			b := tc.open(t)
			defer func() { _ = b.Close() }()
			kv := b.Namespace(NamespaceConversations)

			_ = kv.Put(ctx, "short", []byte("x"), time.Minute)
			_ = kv.Put(ctx, "long", []byte("y"), time.Hour)

			tc.advance(t, 2*time.Minute)

			if got, _ := kv.Get(ctx, "short"); got != nil {
				t.Errorf("expected expired key to be hidden, got %q", got)
			}
			keys, err := kv.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(keys) != 1 || keys[0] != "long" {
				t.Fatalf("expected only the live key, got %v", keys)
			}
		})
	}
}

func TestListValuesEmptyNamespace(t *testing.T) {
	t.Parallel()

	values, err := ListValues(context.Background(), NewMemory().Namespace(NamespaceDPO))
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if values == nil || len(values) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", values)
	}
}

func TestSQLiteDeleteExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b, err := NewSQLite(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = b.Close() }()

	base := time.Unix(1_735_689_600, 0)
	b.now = func() time.Time { return base }
	kv := b.Namespace(NamespaceConversations)
	_ = kv.Put(ctx, "old", []byte("x"), time.Minute)
	_ = kv.Put(ctx, "forever", []byte("y"), 0)

	deleted, err := b.DeleteExpired(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
	if got, _ := kv.Get(ctx, "forever"); string(got) != "y" {
		t.Fatalf("expected entry without ttl to survive, got %q", got)
	}
}

type countingSweeper struct {
	calls chan time.Time
}

func (c *countingSweeper) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	select {
	case c.calls <- now:
	default:
	}
	return 1, nil
}

func TestStartSweeperRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := &countingSweeper{calls: make(chan time.Time, 10)}
	StartSweeper(ctx, s, 10*time.Millisecond, nil)

	select {
	case <-s.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()
}

func TestMemoryDeleteExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	base := time.Unix(1_735_689_600, 0)
	m.now = func() time.Time { return base }
	_ = m.Namespace(NamespaceDPO).Put(ctx, "a", []byte("1"), time.Second)
	_ = m.Namespace(NamespaceConversations).Put(ctx, "b", []byte("2"), time.Hour)

	deleted, err := m.DeleteExpired(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
}

func TestNewSQLiteFailsOnDirectoryPath(t *testing.T) {
	t.Parallel()

	b, err := NewSQLite(t.TempDir())
	if err == nil {
		_ = b.Close()
		t.Fatal("expected an error opening a directory as a database")
	}
	if b != nil {
		t.Errorf("expected no backend on failure, got %v", b)
	}
}
