package observer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	events := []CheckEvent{
		{EventType: CheckStarted, Version: 1},
		{EventType: CheckCompleted, Acceptable: true, ProcessingTime: 30 * time.Millisecond},
		{EventType: CheckStarted, Version: 2},
		{EventType: CheckCompleted, Acceptable: false, ProcessingTime: 10 * time.Millisecond},
		{EventType: CheckStarted, Version: 1},
		{EventType: CheckRejected, ProcessingTime: 20 * time.Millisecond},
		{EventType: CheckStarted, Version: 1},
		{EventType: CheckFailed},
		{EventType: ImageFetchFailed},
		{EventType: ThresholdsUpdated},
	}
	for _, e := range events {
		m.OnEvent(ctx, e)
	}

	got := m.GetMetrics()
	want := map[string]int64{
		"total_checks":           4,
		"acceptable":             1,
		"rejected":               1,
		"no_face":                1,
		"failed_checks":          1,
		"fetch_failures":         1,
		"threshold_updates":      1,
		"avg_processing_time_ms": 20,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %d", k, got[k], v)
		}
	}
	byVersion := got["checks_by_version"].(map[int]int64)
	if byVersion[1] != 3 || byVersion[2] != 1 {
		t.Errorf("checks_by_version = %v", byVersion)
	}
}

type recorder struct {
	name   string
	events []EventType
}

func (r *recorder) OnEvent(_ context.Context, e CheckEvent) { r.events = append(r.events, e.EventType) }
func (r *recorder) GetObserverName() string                 { return r.name }

type panicker struct{}

func (panicker) OnEvent(context.Context, CheckEvent) { panic("boom") }
func (panicker) GetObserverName() string             { return "panicker" }

func TestSyncEventPublisher(t *testing.T) {
	p := NewSyncEventPublisher()
	a, b := &recorder{name: "a"}, &recorder{name: "b"}
	p.Subscribe(panicker{})
	p.Subscribe(a)
	p.Subscribe(b)

	p.NotifyObservers(context.Background(), CheckEvent{EventType: CheckStarted})
	p.Unsubscribe(&recorder{name: "b"})
	p.NotifyObservers(context.Background(), CheckEvent{EventType: CheckFailed})

	if len(a.events) != 2 {
		t.Errorf("a saw %v, want two events despite the panicking observer", a.events)
	}
	if len(b.events) != 1 {
		t.Errorf("b saw %v after unsubscribing", b.events)
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	o := NewLoggingObserver(l)
	o.OnEvent(context.Background(), CheckEvent{
		EventType:    CheckCompleted,
		InvocationID: "abc",
		Source:       "url",
		Acceptable:   true,
		Metadata:     map[string]interface{}{"faces": 1},
	})

	out := buf.String()
	for _, want := range []string{`"invocation_id":"abc"`, `"acceptable":true`, `"faces":1`, "Face check completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q misses %s", out, want)
		}
	}
}
