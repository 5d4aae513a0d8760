package rate

import (
	"testing"
	"time"
)

func TestAllowFixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter()
	l.nowFn = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("submit:1.2.3.4", 3, time.Minute); !ok {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	ok, retry := l.Allow("submit:1.2.3.4", 3, time.Minute)
	if ok {
		t.Fatalf("fourth hit should be limited")
	}
	if retry != time.Minute {
		t.Fatalf("unexpected retry-after: %s", retry)
	}
	if ok, _ := l.Allow("submit:5.6.7.8", 3, time.Minute); !ok {
		t.Fatalf("other clients have their own bucket")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Allow("submit:1.2.3.4", 3, time.Minute); !ok {
		t.Fatalf("new window should allow again")
	}
}
