package validation

import "testing"

func TestValidateRecurrencePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "daily", value: "daily", wantErr: false},
		{name: "weekly", value: "weekly", wantErr: false},
		{name: "biweekly", value: "biweekly", wantErr: false},
		{name: "monthly", value: "monthly", wantErr: false},
		{name: "quarterly", value: "quarterly", wantErr: false},
		{name: "yearly", value: "yearly", wantErr: false},
		{name: "custom is not schedulable", value: "custom", wantErr: true},
		{name: "unknown", value: "fortnightly", wantErr: true},
		{name: "empty", value: "", wantErr: true},
		{name: "case sensitive", value: "Daily", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateRecurrencePattern(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecurrencePattern(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "UTC", value: "UTC", wantErr: false},
		{name: "IANA zone", value: "America/New_York", wantErr: false},
		{name: "empty means UTC", value: "", wantErr: false},
		{name: "garbage", value: "Mars/Olympus_Mons", wantErr: true},
		{name: "offset string", value: "+02:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateTimezone(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimezone(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims whitespace", input: "  hello  ", want: "hello"},
		{name: "removes control characters", input: "hel\x00lo", want: "hello"},
		{name: "keeps newlines and tabs", input: "a\n\tb", want: "a\n\tb"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStructValidation(t *testing.T) {
	t.Parallel()

	type recurrenceInput struct {
		Pattern  string `validate:"required,recurrence_pattern"`
		Timezone string `validate:"omitempty,iana_timezone"`
	}

	tests := []struct {
		name    string
		input   recurrenceInput
		wantErr bool
	}{
		{name: "valid", input: recurrenceInput{Pattern: "weekly", Timezone: "Europe/Berlin"}, wantErr: false},
		{name: "empty timezone ok", input: recurrenceInput{Pattern: "daily"}, wantErr: false},
		{name: "bad pattern", input: recurrenceInput{Pattern: "hourly"}, wantErr: true},
		{name: "bad timezone", input: recurrenceInput{Pattern: "daily", Timezone: "Nowhere"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate.Struct(%+v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
