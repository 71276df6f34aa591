package bridge

import (
	"testing"
	"time"
)

func TestDeduper_ShouldEmit(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeduper()
	d.now = func() time.Time { return clock }

	cooldown := 15 * time.Minute

	if !d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("first emit suppressed")
	}
	if d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("immediate repeat emitted")
	}

	clock = clock.Add(10 * time.Minute)
	if d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("emit inside cooldown window")
	}

	clock = clock.Add(6 * time.Minute)
	if !d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("emit suppressed after cooldown expired")
	}
}

func TestDeduper_ExactCooldownStillSuppressed(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeduper()
	d.now = func() time.Time { return clock }

	cooldown := 15 * time.Minute
	d.ShouldEmit("pi-1", "temp_critical", cooldown)

	// Elapsed must exceed the cooldown, not merely reach it.
	clock = clock.Add(cooldown)
	if d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("emit at exactly the cooldown boundary")
	}

	clock = clock.Add(time.Second)
	if !d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("emit suppressed past the cooldown boundary")
	}
}

func TestDeduper_IndependentKeys(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeduper()
	d.now = func() time.Time { return clock }

	cooldown := 15 * time.Minute

	if !d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("first device suppressed")
	}
	if !d.ShouldEmit("pi-2", "temp_critical", cooldown) {
		t.Fatal("same condition on another device suppressed")
	}
	if !d.ShouldEmit("pi-1", "mem_critical", cooldown) {
		t.Fatal("different condition on same device suppressed")
	}
}

func TestDeduper_SuppressedEmitKeepsTimer(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := NewDeduper()
	d.now = func() time.Time { return clock }

	cooldown := 15 * time.Minute
	d.ShouldEmit("pi-1", "temp_critical", cooldown)

	// Repeated suppressed checks must not push the window forward.
	for i := 0; i < 14; i++ {
		clock = clock.Add(time.Minute)
		if d.ShouldEmit("pi-1", "temp_critical", cooldown) {
			t.Fatalf("emit at minute %d inside window", i+1)
		}
	}

	clock = clock.Add(2 * time.Minute)
	if !d.ShouldEmit("pi-1", "temp_critical", cooldown) {
		t.Fatal("emit suppressed after original window expired")
	}
}
