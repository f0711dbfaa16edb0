package engine

import (
	"context"
	"fmt"
	"time"

	"forgewatch/internal/models"
)

// fakeSignalStore 内存信号存储（按教师 KVStore 假实现的思路做测试替身）
type fakeSignalStore struct {
	signals   map[string]*models.Signal
	order     []string
	failAfter int // 创建 N 条之后开始失败；0 表示不失败
	created   int
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{signals: make(map[string]*models.Signal)}
}

func (s *fakeSignalStore) CreateSignal(_ context.Context, signal *models.Signal) error {
	if s.failAfter > 0 && s.created >= s.failAfter {
		return fmt.Errorf("connection reset by peer")
	}
	copied := *signal
	s.signals[signal.SignalID] = &copied
	s.order = append(s.order, signal.SignalID)
	s.created++
	return nil
}

func (s *fakeSignalStore) GetSignal(_ context.Context, signalID string) (*models.Signal, error) {
	signal, ok := s.signals[signalID]
	if !ok {
		return nil, models.ErrSignalNotFound
	}
	copied := *signal
	return &copied, nil
}

func (s *fakeSignalStore) FindByDedupKey(_ context.Context, deviceID, title string, detectedAt time.Time) (*models.Signal, error) {
	for _, signal := range s.signals {
		if signal.DeviceID == deviceID && signal.Title == title && signal.DetectedAt.Equal(detectedAt) {
			copied := *signal
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeSignalStore) UpdateStatus(_ context.Context, signalID string, status models.SignalStatus, processedAt *time.Time) error {
	signal, ok := s.signals[signalID]
	if !ok {
		return models.ErrSignalNotFound
	}
	signal.Status = status
	if processedAt != nil {
		signal.ProcessedAt = processedAt
	}
	return nil
}

func (s *fakeSignalStore) all() []*models.Signal {
	var out []*models.Signal
	for _, id := range s.order {
		out = append(out, s.signals[id])
	}
	return out
}

// fakeReadingStore 内存读数存储
type fakeReadingStore struct {
	byDevice map[string][]models.Reading
}

func newFakeReadingStore() *fakeReadingStore {
	return &fakeReadingStore{byDevice: make(map[string][]models.Reading)}
}

func (s *fakeReadingStore) ListRecentByDevice(_ context.Context, deviceID string, since time.Time, limit int) ([]models.Reading, error) {
	var out []models.Reading
	for _, r := range s.byDevice[deviceID] {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fakeDeviceStore 内存设备存储
type fakeDeviceStore struct {
	devices map[string]*models.Device
}

func newFakeDeviceStore(devices ...*models.Device) *fakeDeviceStore {
	s := &fakeDeviceStore{devices: make(map[string]*models.Device)}
	for _, d := range devices {
		s.devices[d.DeviceID] = d
	}
	return s
}

func (s *fakeDeviceStore) GetDevice(_ context.Context, deviceID string) (*models.Device, error) {
	device, ok := s.devices[deviceID]
	if !ok {
		return nil, models.ErrDeviceNotFound
	}
	return device, nil
}

func (s *fakeDeviceStore) ListActiveDevices(_ context.Context, factoryID string) ([]models.Device, error) {
	var out []models.Device
	for _, d := range s.devices {
		if d.FactoryID == factoryID && d.IsActive {
			out = append(out, *d)
		}
	}
	return out, nil
}

// fakeAnalyzer 可编程的 AI 替身，记录调用次数
type fakeAnalyzer struct {
	enabled  bool
	analysis *models.AIAnalysis
	err      error
	calls    int
}

func (a *fakeAnalyzer) Enabled() bool {
	return a.enabled
}

func (a *fakeAnalyzer) AnalyzeAnomaly(_ context.Context, _ *models.ChannelSnapshot) (*models.AIAnalysis, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.analysis, nil
}
