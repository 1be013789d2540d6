package chatlog

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryLogRoundTrip(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	want := Record{Username: "Bob", Text: "hello", Timestamp: ts}
	if err := l.Append(ctx, want); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	// Username, text and timestamp must survive exactly as written.
	if got[0] != want {
		t.Errorf("expected %+v, got %+v", want, got[0])
	}
}

func TestMemoryLogRecentReturnsTailOldestFirst(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		rec := Record{
			Username:  "u",
			Text:      fmt.Sprintf("msg-%d", i),
			Timestamp: time.Unix(int64(i), 0),
		}
		if err := l.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := l.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, rec := range got {
		expected := fmt.Sprintf("msg-%d", i+5)
		if rec.Text != expected {
			t.Errorf("index %d: expected %q, got %q", i, expected, rec.Text)
		}
	}
}

func TestMemoryLogDefaultLimit(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	for i := 0; i < DefaultRecentLimit+10; i++ {
		_ = l.Append(ctx, Record{Username: "u", Text: "x", Timestamp: time.Unix(int64(i), 0)})
	}

	got, err := l.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != DefaultRecentLimit {
		t.Errorf("expected default limit %d, got %d", DefaultRecentLimit, len(got))
	}
}
