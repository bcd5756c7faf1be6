package registry

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/TheBitDrifter/goarchive/goarchiveerr"
)

func TestRegisterSmallAndLargeTier(t *testing.T) {
	r := New()
	small := r.Register(5, 8, 4)
	large := r.Register(1000, 16, 8)

	if got, ok := r.Get(5); !ok || got != small {
		t.Fatalf("expected small-tier descriptor to round-trip")
	}
	if got, ok := r.Get(1000); !ok || got != large {
		t.Fatalf("expected large-tier descriptor to round-trip")
	}
	if _, ok := r.Get(999); ok {
		t.Fatalf("expected unregistered id to miss")
	}
}

func TestRegisterUpdatesSizeWithoutClearingHooks(t *testing.T) {
	r := New()
	r.Register(5, 8, 4)
	r.SetHooks(5, Hooks{Ctor: func(unsafe.Pointer, int) {}})
	r.Register(5, 16, 8)

	d, _ := r.Get(5)
	if d.Size != 16 || d.Align != 8 {
		t.Fatalf("expected updated size/align, got %d/%d", d.Size, d.Align)
	}
	if !d.HasHooks() {
		t.Fatalf("expected hooks to survive a size update")
	}
}

func TestSetHooksRejectsInconsistentReinstall(t *testing.T) {
	r := New()
	r.Register(5, 8, 4)
	ctorA := func(unsafe.Pointer, int) {}
	ctorB := func(unsafe.Pointer, int) {}

	if _, err := r.SetHooks(5, Hooks{Ctor: ctorA}); err != nil {
		t.Fatalf("unexpected error on first install: %v", err)
	}
	_, err := r.SetHooks(5, Hooks{Ctor: ctorB})
	if err == nil {
		t.Fatal("expected an error reinstalling a different hook set")
	}
	var ae *goarchiveerr.Error
	if !errors.As(err, &ae) || ae.Kind != goarchiveerr.InconsistentComponentAction {
		t.Fatalf("expected InconsistentComponentAction, got %v", err)
	}
}

func TestSetHooksSameFuncIsIdempotent(t *testing.T) {
	r := New()
	r.Register(5, 8, 4)
	ctor := func(unsafe.Pointer, int) {}

	if _, err := r.SetHooks(5, Hooks{Ctor: ctor}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.SetHooks(5, Hooks{Ctor: ctor}); err != nil {
		t.Fatalf("expected reinstalling the identical hook set to succeed, got %v", err)
	}
}

func TestSetHooksSubstitutesZeroingCtor(t *testing.T) {
	r := New()
	r.Register(5, 8, 4)
	var sawDtor bool
	d, err := r.SetHooks(5, Hooks{Dtor: func(unsafe.Pointer, int) { sawDtor = true }})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Hooks.Ctor == nil {
		t.Fatal("expected a substituted zero-initializing ctor")
	}
	buf := make([]byte, 8)
	buf[0] = 0xFF
	d.Hooks.Ctor(unsafe.Pointer(&buf[0]), 1)
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected substituted ctor to zero the buffer, got %v", buf)
		}
	}
	d.Hooks.Dtor(unsafe.Pointer(&buf[0]), 1)
	if !sawDtor {
		t.Fatal("expected Dtor to still run")
	}
}

func TestNewWithThresholdOverridesSmallLargeSplit(t *testing.T) {
	r := NewWithThreshold(4)
	below := r.Register(3, 8, 4)
	above := r.Register(4, 8, 4) // would be small-tier under the default threshold

	if r.Threshold() != 4 {
		t.Fatalf("Threshold() = %d, want 4", r.Threshold())
	}
	if got, ok := r.Get(3); !ok || got != below {
		t.Fatalf("expected id below the configured threshold to round-trip")
	}
	if got, ok := r.Get(4); !ok || got != above {
		t.Fatalf("expected id at the configured threshold to round-trip via the large tier")
	}
}

func TestNewWithThresholdZeroFallsBackToDefault(t *testing.T) {
	r := NewWithThreshold(0)
	if r.Threshold() != HiComponentID {
		t.Fatalf("Threshold() = %d, want default %d", r.Threshold(), HiComponentID)
	}
}

func TestOnChangeNotifiesOnRegisterAndSetHooks(t *testing.T) {
	r := New()
	var seen []ID
	r.OnChange(func(id ID) { seen = append(seen, id) })

	r.Register(5, 8, 4)
	r.SetHooks(5, Hooks{Ctor: func(unsafe.Pointer, int) {}})

	if len(seen) != 2 || seen[0] != 5 || seen[1] != 5 {
		t.Fatalf("expected two notifications for id 5, got %v", seen)
	}
}
