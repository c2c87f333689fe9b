package broker

import (
	"errors"
	"testing"
)

func newTestAuthorizer(t *testing.T) (*Authorizer, *Registry) {
	t.Helper()
	r := NewRegistry()
	return NewAuthorizer(r), r
}

func TestAuthorizePublish(t *testing.T) {
	tests := []struct {
		name    string
		sender  string
		topic   string
		payload string
		wantErr error
	}{
		{
			name:   "host loopback always allowed",
			sender: "",
			topic:  "esp/d1/watering/setCron",
		},
		{
			name:    "device publishing host-reserved topic denied",
			sender:  "d1",
			topic:   "esp/d1/watering/setCron",
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "device publishing another host-reserved topic denied",
			sender:  "d1",
			topic:   "esp/d1/system/restart",
			wantErr: ErrNotAuthorized,
		},
		{
			name:   "own heartbeat allowed",
			sender: "d1",
			topic:  "esp/d1/heartbeat",
		},
		{
			name:    "heartbeat for another device denied",
			sender:  "d1",
			topic:   "esp/d2/heartbeat",
			wantErr: ErrIdentityMismatch,
		},
		{
			name:   "own watering logs allowed",
			sender: "d1",
			topic:  "esp/d1/watering/logs",
		},
		{
			name:   "own system logs allowed",
			sender: "d1",
			topic:  "esp/d1/system/logs",
		},
		{
			name:    "init with matching payload allowed",
			sender:  "d1",
			topic:   "esp/init",
			payload: "d1",
		},
		{
			name:    "init with spoofed payload denied",
			sender:  "d1",
			topic:   "esp/init",
			payload: "d2",
			wantErr: ErrIdentityMismatch,
		},
		{
			name:   "own retained status allowed",
			sender: "d1",
			topic:  "sprinkler/d1/status",
		},
		{
			name:    "status for another device denied",
			sender:  "d1",
			topic:   "sprinkler/d2/status",
			wantErr: ErrIdentityMismatch,
		},
		{
			name:    "unclassified topic denied",
			sender:  "d1",
			topic:   "esp/d1/firmware/dump",
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "completely foreign topic denied",
			sender:  "d1",
			topic:   "home/livingroom/lights",
			wantErr: ErrNotAuthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAuthorizer(t)
			err := a.AuthorizePublish(tt.sender, tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AuthorizePublish(%q, %q) error = %v, want %v",
					tt.sender, tt.topic, err, tt.wantErr)
			}
		})
	}
}

func TestAuthorizePublishObserverRejected(t *testing.T) {
	a, r := newTestAuthorizer(t)
	if err := r.Register("dashboard", false); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := a.AuthorizePublish("dashboard", "esp/dashboard/heartbeat", nil)
	if !errors.Is(err, ErrObserverPublish) {
		t.Errorf("AuthorizePublish() error = %v, want ErrObserverPublish", err)
	}
}

func TestTopicClassification(t *testing.T) {
	hostTopics := []string{
		"esp/d1/watering/setDurationInMs",
		"esp/d1/watering/setCron",
		"esp/d1/watering/trigger",
		"esp/d1/system/ota",
		"esp/d1/system/restart",
	}
	for _, topic := range hostTopics {
		if !IsHostTopic(topic) {
			t.Errorf("IsHostTopic(%q) = false, want true", topic)
		}
		if IsClientTopic(topic) {
			t.Errorf("IsClientTopic(%q) = true, want false", topic)
		}
	}

	clientTopics := []string{
		"esp/init",
		"esp/d1/heartbeat",
		"esp/d1/system/logs",
		"esp/d1/watering/logs",
		"sprinkler/d1/status",
	}
	for _, topic := range clientTopics {
		if !IsClientTopic(topic) {
			t.Errorf("IsClientTopic(%q) = false, want true", topic)
		}
		if IsHostTopic(topic) {
			t.Errorf("IsHostTopic(%q) = true, want false", topic)
		}
	}
}
