package database

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tandemhq/tandem-api/internal/recurrence"
)

// Note: full integration testing of the repository requires a database.
// These tests cover the serialization helpers the repository relies on.
func TestMarshalRecurrence(t *testing.T) {
	t.Parallel()

	t.Run("nil recurrence stores NULL", func(t *testing.T) {
		t.Parallel()
		data, err := marshalRecurrence(nil)
		if err != nil {
			t.Fatalf("marshalRecurrence(nil) error: %v", err)
		}
		if data != nil {
			t.Errorf("marshalRecurrence(nil) = %s, want nil", data)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		in := &recurrence.Options{
			Pattern:  recurrence.PatternMonthly,
			Interval: 2,
			Timezone: "America/Sao_Paulo",
			EndDate:  &end,
		}
		data, err := marshalRecurrence(in)
		if err != nil {
			t.Fatalf("marshalRecurrence error: %v", err)
		}

		var out recurrence.Options
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		if out.Pattern != in.Pattern || out.Interval != in.Interval || out.Timezone != in.Timezone {
			t.Errorf("round trip = %+v, want %+v", out, in)
		}
		if out.EndDate == nil || !out.EndDate.Equal(end) {
			t.Errorf("EndDate = %v, want %v", out.EndDate, end)
		}
	})
}

func TestNullTime(t *testing.T) {
	t.Parallel()

	if nt := nullTime(nil); nt.Valid {
		t.Error("nullTime(nil) must be invalid")
	}

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	nt := nullTime(&ts)
	if !nt.Valid || !nt.Time.Equal(ts) {
		t.Errorf("nullTime(%v) = %+v", ts, nt)
	}
}
