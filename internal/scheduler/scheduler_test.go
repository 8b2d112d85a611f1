package scheduler

import (
	"testing"
	"time"
)

func TestScheduleInterval_Validation(t *testing.T) {
	t.Parallel()

	s := New(time.UTC)
	defer s.Stop()

	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := s.ScheduleInterval(-time.Second, func() {}); err == nil {
		t.Error("expected error for negative interval")
	}
	if _, err := s.ScheduleInterval(time.Minute, func() {}); err != nil {
		t.Errorf("ScheduleInterval(1m) error: %v", err)
	}
}

func TestScheduleDaily_Validation(t *testing.T) {
	t.Parallel()

	s := New(time.UTC)
	defer s.Stop()

	tests := []struct {
		name    string
		hour    int
		minute  int
		wantErr bool
	}{
		{name: "valid morning", hour: 8, minute: 30, wantErr: false},
		{name: "midnight", hour: 0, minute: 0, wantErr: false},
		{name: "hour too large", hour: 24, minute: 0, wantErr: true},
		{name: "negative hour", hour: -1, minute: 0, wantErr: true},
		{name: "minute too large", hour: 8, minute: 60, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ScheduleDaily(tt.hour, tt.minute, func() {})
			if (err != nil) != tt.wantErr {
				t.Errorf("ScheduleDaily(%d, %d) error = %v, wantErr %v", tt.hour, tt.minute, err, tt.wantErr)
			}
		})
	}
}

func TestScheduleInterval_Fires(t *testing.T) {
	t.Parallel()

	s := New(time.UTC)
	fired := make(chan struct{}, 1)
	if _, err := s.ScheduleInterval(time.Second, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("ScheduleInterval error: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not fire")
	}
}
