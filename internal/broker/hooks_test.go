package broker

import (
	"context"
	"errors"
	"testing"
)

// fakeCreds implements CredentialChecker for tests.
type fakeCreds struct {
	initialized bool
	username    string
	password    string
}

func (f *fakeCreds) IsInitialized(_ context.Context) (bool, error) {
	return f.initialized, nil
}

func (f *fakeCreds) Verify(_ context.Context, username, password string) error {
	if username != f.username || password != f.password {
		return errors.New("wrong credentials")
	}
	return nil
}

// recordingSink captures dispatched messages and disconnects.
type recordingSink struct {
	messages    []string
	disconnects []string
}

func (s *recordingSink) Handle(sender, topic string, payload []byte) {
	s.messages = append(s.messages, sender+"|"+topic+"|"+string(payload))
}

func (s *recordingSink) HandleDisconnect(identity string) {
	s.disconnects = append(s.disconnects, identity)
}

func newTestHooks(creds CredentialChecker) (*Hooks, *Registry, *recordingSink) {
	registry := NewRegistry()
	hooks := NewHooks(registry, NewAuthorizer(registry), creds)
	sink := &recordingSink{}
	hooks.SetSinks(sink, sink)
	return hooks, registry, sink
}

func TestHooksOnConnect(t *testing.T) {
	creds := &fakeCreds{initialized: true, username: "admin", password: "secret"}
	hooks, registry, _ := newTestHooks(creds)
	ctx := context.Background()

	if err := hooks.OnConnect(ctx, "d1", "admin", "secret", false); err != nil {
		t.Fatalf("OnConnect() error = %v", err)
	}
	if !registry.IsDevice("d1") {
		t.Error("IsDevice(d1) = false after connect, want true")
	}
}

func TestHooksOnConnectNotInitialized(t *testing.T) {
	hooks, _, _ := newTestHooks(&fakeCreds{initialized: false})

	err := hooks.OnConnect(context.Background(), "d1", "admin", "secret", false)
	if !errors.Is(err, ErrServerNotInitialized) {
		t.Errorf("OnConnect() error = %v, want ErrServerNotInitialized", err)
	}
}

func TestHooksOnConnectBadCredentials(t *testing.T) {
	creds := &fakeCreds{initialized: true, username: "admin", password: "secret"}
	hooks, _, _ := newTestHooks(creds)

	err := hooks.OnConnect(context.Background(), "d1", "admin", "wrong", false)
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("OnConnect() error = %v, want ErrBadCredentials", err)
	}
}

func TestHooksOnConnectDuplicate(t *testing.T) {
	hooks, _, _ := newTestHooks(nil)
	ctx := context.Background()

	if err := hooks.OnConnect(ctx, "d1", "", "", false); err != nil {
		t.Fatalf("first OnConnect() error = %v", err)
	}

	err := hooks.OnConnect(ctx, "d1", "", "", false)
	if !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second OnConnect() error = %v, want ErrAlreadyConnected", err)
	}
}

func TestHooksOnDisconnect(t *testing.T) {
	hooks, registry, sink := newTestHooks(nil)
	ctx := context.Background()

	if err := hooks.OnConnect(ctx, "d1", "", "", false); err != nil {
		t.Fatalf("OnConnect() error = %v", err)
	}

	hooks.OnDisconnect("d1", false)

	if registry.IsConnected("d1") {
		t.Error("IsConnected(d1) = true after disconnect, want false")
	}
	if len(sink.disconnects) != 1 || sink.disconnects[0] != "d1" {
		t.Errorf("disconnect sink got %v, want [d1]", sink.disconnects)
	}
}

func TestHooksObserverDisconnectSkipsSink(t *testing.T) {
	hooks, registry, sink := newTestHooks(nil)
	ctx := context.Background()

	if err := hooks.OnConnect(ctx, "d1", "", "", false); err != nil {
		t.Fatalf("device OnConnect() error = %v", err)
	}
	if err := hooks.OnConnect(ctx, "d1", "", "", true); err != nil {
		t.Fatalf("observer OnConnect() error = %v", err)
	}

	// The observer dropping must not run device disconnect cleanup or
	// evict the device session sharing its identity.
	hooks.OnDisconnect("d1", true)

	if !registry.IsDevice("d1") {
		t.Error("IsDevice(d1) = false after observer disconnect, want true")
	}
	if len(sink.disconnects) != 0 {
		t.Errorf("disconnect sink got %v, want none", sink.disconnects)
	}
}

func TestHooksPublishFlow(t *testing.T) {
	hooks, _, sink := newTestHooks(nil)
	ctx := context.Background()

	if err := hooks.OnConnect(ctx, "d1", "", "", false); err != nil {
		t.Fatalf("OnConnect() error = %v", err)
	}

	if err := hooks.OnPublishAttempt("d1", "esp/d1/heartbeat", []byte("ping")); err != nil {
		t.Fatalf("OnPublishAttempt() error = %v", err)
	}
	hooks.OnPublishAccepted("d1", "esp/d1/heartbeat", []byte("ping"))

	if len(sink.messages) != 1 || sink.messages[0] != "d1|esp/d1/heartbeat|ping" {
		t.Errorf("message sink got %v", sink.messages)
	}

	// Cross-device publish never reaches the sink.
	if err := hooks.OnPublishAttempt("d1", "esp/d2/heartbeat", nil); err == nil {
		t.Error("OnPublishAttempt() for foreign namespace = nil, want error")
	}
}
