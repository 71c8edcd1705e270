package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CheckEvent describes one step of a face check request.
type CheckEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	InvocationID   string                 `json:"invocation_id,omitempty"`
	Source         string                 `json:"source"`
	Version        int                    `json:"version,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Acceptable     bool                   `json:"acceptable"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of check event
type EventType string

const (
	CheckStarted EventType = "check_started"
	// CheckCompleted is a check that found a face, acceptable or not
	CheckCompleted EventType = "check_completed"
	// CheckRejected is a check that found no face
	CheckRejected EventType = "check_rejected"
	CheckFailed   EventType = "check_failed"

	ImageFetched      EventType = "image_fetched"
	ImageFetchFailed  EventType = "image_fetch_failed"
	ThresholdsUpdated EventType = "thresholds_updated"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event CheckEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event CheckEvent)
}

// LoggingObserver logs check events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event CheckEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
	}
	if event.InvocationID != "" {
		fields["invocation_id"] = event.InvocationID
	}
	if event.Version != 0 {
		fields["version"] = event.Version
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case CheckStarted:
		entry.Debug("Face check started")
	case CheckCompleted:
		entry.WithField("acceptable", event.Acceptable).Info("Face check completed")
	case CheckRejected:
		entry.Info("Face check rejected, no face found")
	case CheckFailed:
		entry.Error("Face check failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Warn("Image fetch failed")
	case ThresholdsUpdated:
		entry.Info("Thresholds updated")
	default:
		entry.Info("Check event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts check outcomes for /metrics.
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalChecks         int64
	acceptable          int64
	rejectedPortraits   int64
	noFace              int64
	failedChecks        int64
	fetchFailures       int64
	thresholdUpdates    int64
	totalProcessingTime time.Duration
	byVersion           map[int]int64
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{byVersion: make(map[int]int64)}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event CheckEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case CheckStarted:
		o.totalChecks++
		o.byVersion[event.Version]++
	case CheckCompleted:
		if event.Acceptable {
			o.acceptable++
		} else {
			o.rejectedPortraits++
		}
		o.totalProcessingTime += event.ProcessingTime
	case CheckRejected:
		o.noFace++
		o.totalProcessingTime += event.ProcessingTime
	case CheckFailed:
		o.failedChecks++
	case ImageFetchFailed:
		o.fetchFailures++
	case ThresholdsUpdated:
		o.thresholdUpdates++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns a snapshot of the counters.
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	finished := o.acceptable + o.rejectedPortraits + o.noFace
	avgProcessingTime := time.Duration(0)
	if finished > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(finished)
	}
	byVersion := make(map[int]int64, len(o.byVersion))
	for v, n := range o.byVersion {
		byVersion[v] = n
	}

	return map[string]interface{}{
		"total_checks":           o.totalChecks,
		"acceptable":             o.acceptable,
		"rejected":               o.rejectedPortraits,
		"no_face":                o.noFace,
		"failed_checks":          o.failedChecks,
		"fetch_failures":         o.fetchFailures,
		"threshold_updates":      o.thresholdUpdates,
		"checks_by_version":      byVersion,
		"avg_processing_time_ms": avgProcessingTime.Milliseconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	// async delivers each event on its own goroutine
	async bool
}

// NewEventPublisher creates a publisher that notifies observers concurrently.
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{async: true}
}

// NewSyncEventPublisher notifies observers in the calling goroutine, in
// subscription order.
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes the first observer with the same name.
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

func (p *EventPublisher) NotifyObservers(ctx context.Context, event CheckEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		if p.async {
			go deliver(ctx, observer, event)
		} else {
			deliver(ctx, observer, event)
		}
	}
}

func deliver(ctx context.Context, obs Observer, event CheckEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
