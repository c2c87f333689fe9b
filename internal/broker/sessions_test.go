package broker

import (
	"errors"
	"sort"
	"testing"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("d1", true); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !r.IsConnected("d1") {
		t.Error("IsConnected(d1) = false, want true")
	}
	if !r.IsDevice("d1") {
		t.Error("IsDevice(d1) = false, want true")
	}
}

func TestRegistryDuplicateDevice(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("d1", true); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	err := r.Register("d1", true)
	if !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second Register() error = %v, want ErrAlreadyConnected", err)
	}
}

func TestRegistryReRegisterAfterUnregister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("d1", true); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	r.Unregister("d1", true)

	if r.IsConnected("d1") {
		t.Error("IsConnected(d1) = true after Unregister, want false")
	}
	if err := r.Register("d1", true); err != nil {
		t.Errorf("re-Register() error = %v, want nil", err)
	}
}

func TestRegistryUnregisterAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	// Must not panic or error; disconnects can race with cleanup.
	r.Unregister("never-connected", true)
	r.Unregister("never-connected", false)
}

func TestRegistryObserverDoesNotDisplaceDevice(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("d1", true); err != nil {
		t.Fatalf("device Register() error = %v", err)
	}
	if err := r.Register("d1", false); err != nil {
		t.Fatalf("observer Register() error = %v", err)
	}

	// The device session must survive the observer registration intact.
	if !r.IsDevice("d1") {
		t.Error("IsDevice(d1) = false after observer register, want true")
	}
	if r.IsWebsocket("d1") {
		t.Error("IsWebsocket(d1) = true while a device session exists, want false")
	}

	ids := r.DeviceIdentities()
	if len(ids) != 1 || ids[0] != "d1" {
		t.Errorf("DeviceIdentities() = %v, want [d1]", ids)
	}

	// Observer disconnect leaves the device connected.
	r.Unregister("d1", false)
	if !r.IsDevice("d1") {
		t.Error("IsDevice(d1) = false after observer unregister, want true")
	}

	// Device disconnect clears the slot for re-registration.
	r.Unregister("d1", true)
	if r.IsConnected("d1") {
		t.Error("IsConnected(d1) = true after device unregister, want false")
	}
	if err := r.Register("d1", true); err != nil {
		t.Errorf("re-Register() error = %v, want nil", err)
	}
}

func TestRegistryWebsocketNeverConflicts(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("dashboard", false); err != nil {
		t.Fatalf("websocket Register() error = %v", err)
	}
	if err := r.Register("dashboard", false); err != nil {
		t.Errorf("duplicate websocket Register() error = %v, want nil", err)
	}

	if !r.IsWebsocket("dashboard") {
		t.Error("IsWebsocket(dashboard) = false, want true")
	}
	if r.IsDevice("dashboard") {
		t.Error("IsDevice(dashboard) = true, want false")
	}
}

func TestRegistryDeviceIdentities(t *testing.T) {
	r := NewRegistry()

	for _, id := range []string{"d1", "d2", "d3"} {
		if err := r.Register(id, true); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}
	if err := r.Register("dashboard", false); err != nil {
		t.Fatalf("Register(dashboard) error = %v", err)
	}

	ids := r.DeviceIdentities()
	sort.Strings(ids)

	want := []string{"d1", "d2", "d3"}
	if len(ids) != len(want) {
		t.Fatalf("DeviceIdentities() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("DeviceIdentities()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	if r.Count() != 4 {
		t.Errorf("Count() = %d, want 4", r.Count())
	}
}
