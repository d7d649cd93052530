package journal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecord(t *testing.T) {
	var m Memory
	ctx := context.Background()
	_ = m.Record(ctx, Entry{SessionID: "a", Outcome: "deployed"})
	_ = m.Record(ctx, Entry{SessionID: "b", Outcome: "aborted"})

	got := m.Entries()
	if len(got) != 2 || got[0].SessionID != "a" || got[1].SessionID != "b" {
		t.Fatalf("Entries() = %+v", got)
	}
	got[0].SessionID = "mutated"
	if m.Entries()[0].SessionID != "a" {
		t.Error("Entries must return a copy")
	}
}

func TestNopRecord(t *testing.T) {
	if err := (Nop{}).Record(context.Background(), Entry{}); err != nil {
		t.Errorf("Nop.Record() = %v", err)
	}
}

func TestRedisDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	// Port 1 is reserved and never runs redis.
	if _, err := Dial(ctx, "127.0.0.1:1", "", 0); err == nil {
		t.Error("expected ping failure against a closed port")
	}
}

func TestNewRedisDefaults(t *testing.T) {
	r := NewRedis(nil, "", 0)
	if r.key != DefaultKey || r.max != 1000 {
		t.Errorf("defaults = %q/%d", r.key, r.max)
	}
}

func TestRedisRecordCapsList(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	r, err := Dial(ctx, srv.Addr(), "test:journal", 2)
	require.NoError(t, err)
	defer r.Close()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, r.Record(ctx, Entry{SessionID: id, Outcome: "deployed"}))
	}

	raw, err := srv.List("test:journal")
	require.NoError(t, err)
	require.Len(t, raw, 2, "list must be trimmed to max entries")

	var newest Entry
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &newest))
	assert.Equal(t, "third", newest.SessionID)
	assert.False(t, srv.Exists(DefaultKey), "only the configured key is written")
}

func TestRedisRecent(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	r, err := Dial(ctx, srv.Addr(), "", 10)
	require.NoError(t, err)
	defer r.Close()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Record(ctx, Entry{SessionID: id, StartedAt: started, Outcome: "aborted", Reason: "oracle down"}))
	}

	got, err := r.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].SessionID)
	assert.Equal(t, "b", got[1].SessionID)
	assert.True(t, got[0].StartedAt.Equal(started))
	assert.Equal(t, "oracle down", got[0].Reason)

	all, err := r.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRedisRecentBadEntry(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	_, err := srv.Lpush(DefaultKey, "not json")
	require.NoError(t, err)

	r, err := Dial(ctx, srv.Addr(), "", 0)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Recent(ctx, 5)
	assert.Error(t, err)
}

func TestRedisRecordServerGone(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	r, err := Dial(ctx, srv.Addr(), "", 0)
	require.NoError(t, err)
	defer r.Close()

	srv.Close()
	assert.Error(t, r.Record(ctx, Entry{SessionID: "lost"}))
}
