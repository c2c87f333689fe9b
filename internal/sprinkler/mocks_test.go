package sprinkler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// pubRecord is one captured publish.
type pubRecord struct {
	topic   string
	payload string
	qos     byte
	retain  bool
}

// fakePublisher records publishes and can fail selected topics.
type fakePublisher struct {
	mu         sync.Mutex
	records    []pubRecord
	failTopics map[string]error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failTopics: make(map[string]error)}
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failTopics[topic]; ok {
		return err
	}
	p.records = append(p.records, pubRecord{
		topic:   topic,
		payload: string(payload),
		qos:     qos,
		retain:  retained,
	})
	return nil
}

func (p *fakePublisher) published() []pubRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pubRecord, len(p.records))
	copy(out, p.records)
	return out
}

func (p *fakePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
}

// find returns the first record for the topic, if any.
func (p *fakePublisher) find(topic string) (pubRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.records {
		if r.topic == topic {
			return r, true
		}
	}
	return pubRecord{}, false
}

// memStore is an in-memory Repository for tests.
type memStore struct {
	mu      sync.Mutex
	configs map[string]DeviceConfig
	logs    []WateringLog
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{configs: make(map[string]DeviceConfig), nextID: 1}
}

func (s *memStore) GetDeviceConfig(_ context.Context, deviceID string) (*DeviceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[deviceID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	out := cfg
	return &out, nil
}

func (s *memStore) UpsertDeviceConfig(_ context.Context, cfg *DeviceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.DeviceID] = *cfg
	return nil
}

func (s *memStore) ListDeviceConfigs(_ context.Context) ([]DeviceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeviceConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (s *memStore) UpdateLastSeen(_ context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[deviceID]
	if !ok {
		return ErrDeviceNotFound
	}
	cfg.LastSeen = &at
	s.configs[deviceID] = cfg
	return nil
}

func (s *memStore) AppendLog(_ context.Context, entry *WateringLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *memStore) GetLogs(_ context.Context, deviceID string, limit int) ([]WateringLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WateringLog
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.logs[i].DeviceID == deviceID {
			out = append(out, s.logs[i])
		}
	}
	return out, nil
}

func (s *memStore) allLogs() []WateringLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WateringLog, len(s.logs))
	copy(out, s.logs)
	return out
}
