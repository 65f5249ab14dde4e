package archive_test

import (
	"context"
	"testing"
	"time"

	"github.com/danielacorner/frame-host-2/internal/archive"
)

func TestMemory_RoundTrip(t *testing.T) {
	t.Parallel()

	m := archive.NewMemory()
	ctx := context.Background()
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	id, err := m.BeginSession(ctx, start)
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if id == "" {
		t.Fatal("BeginSession: empty session ID")
	}

	captions := []archive.Caption{
		{SessionID: id, Source: "hallo", Translated: "hello", Timestamp: start.Add(time.Second)},
		{SessionID: id, Source: "wie geht's", Translated: "how are you", Timestamp: start.Add(2 * time.Second)},
	}
	for _, c := range captions {
		if err := m.WriteCaption(ctx, c); err != nil {
			t.Fatalf("WriteCaption: %v", err)
		}
	}
	if err := m.EndSession(ctx, id, start.Add(time.Minute)); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	got, err := m.ListCaptions(ctx, id)
	if err != nil {
		t.Fatalf("ListCaptions: %v", err)
	}
	if len(got) != len(captions) {
		t.Fatalf("ListCaptions: got %d captions, want %d", len(got), len(captions))
	}
	for i := range captions {
		if got[i] != captions[i] {
			t.Errorf("caption %d: got %+v, want %+v", i, got[i], captions[i])
		}
	}
}

func TestMemory_SessionsAreIsolated(t *testing.T) {
	t.Parallel()

	m := archive.NewMemory()
	ctx := context.Background()
	now := time.Now()

	a, _ := m.BeginSession(ctx, now)
	b, _ := m.BeginSession(ctx, now)
	if a == b {
		t.Fatalf("BeginSession: duplicate IDs %q", a)
	}

	if err := m.WriteCaption(ctx, archive.Caption{SessionID: a, Translated: "only in a", Timestamp: now}); err != nil {
		t.Fatalf("WriteCaption: %v", err)
	}

	got, err := m.ListCaptions(ctx, b)
	if err != nil {
		t.Fatalf("ListCaptions: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("session %q: got %d captions, want 0", b, len(got))
	}
}
