package backoff

import (
	"fmt"
	"testing"
	"time"
)

func TestParseUsageLimitFromOutput_UnixTimestamp(t *testing.T) {
	futureTime := time.Now().Add(2 * time.Hour).Unix()
	input := fmt.Sprintf("Claude AI usage limit reached|%d", futureTime)

	info := ParseUsageLimitFromOutput(input)

	if info == nil {
		t.Fatal("expected non-nil info")
	}
	if info.Window != UsageWindowSession {
		t.Errorf("expected session window, got %s", info.Window)
	}
	if info.ResetAt.Unix() != futureTime {
		t.Errorf("expected reset at %d, got %d", futureTime, info.ResetAt.Unix())
	}
	if info.Source != "output" {
		t.Errorf("expected source 'output', got %s", info.Source)
	}
}

func TestParseUsageLimitFromOutput_HumanTime(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expectedHr int
	}{
		{"afternoon time", "rate limit - Your limit will reset at 2pm (America/New_York)", 14},
		{"morning time", "usage limit - Your limit will reset at 9am (America/New_York)", 9},
		{"midnight", "429 error - Your limit will reset at 12am (America/New_York)", 0},
		{"noon", "too many requests - Your limit will reset at 12pm (America/New_York)", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(tt.input)
			if info == nil {
				t.Fatalf("expected non-nil info for input %q", tt.input)
			}
			if info.ResetAt.Hour() != tt.expectedHr {
				t.Errorf("expected hour %d, got %d", tt.expectedHr, info.ResetAt.Hour())
			}
		})
	}
}

func TestParseUsageLimitFromOutput_RetrySeconds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"retry in seconds", "rate limit hit, retry in 300 seconds", 300},
		{"retry after seconds", "rate_limit_error: retry after 600 seconds", 600},
		{"retry in s", "429 too many requests, retry in 120s", 120},
		{"retry after s", "rate limit exceeded, retry after 60s", 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(tt.input)
			if info == nil {
				t.Fatal("expected non-nil info")
			}
			if info.WaitSeconds != tt.expected {
				t.Errorf("expected %d seconds, got %d", tt.expected, info.WaitSeconds)
			}
			expectedReset := time.Now().Add(time.Duration(tt.expected) * time.Second)
			if info.ResetAt.Unix() < expectedReset.Unix()-2 || info.ResetAt.Unix() > expectedReset.Unix()+2 {
				t.Errorf("ResetAt mismatch: expected ~%v, got %v", expectedReset, info.ResetAt)
			}
		})
	}
}

func TestParseUsageLimitFromOutput_JSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"json with retry_after number", `{"error": "429 rate_limit_error", "retry_after": 300}`, 300},
		{"json with retry_after string", `{"error": "rate limit exceeded", "retry_after": "600"}`, 600},
		{"json with 429 in error", `{"error": "HTTP 429: rate_limit_error", "retry_after": 120}`, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(tt.input)
			if info == nil {
				t.Fatal("expected non-nil info")
			}
			if info.WaitSeconds != tt.expected {
				t.Errorf("expected %d seconds, got %d", tt.expected, info.WaitSeconds)
			}
			if info.Source != "output" {
				t.Errorf("expected source 'output', got %s", info.Source)
			}
		})
	}
}

func TestParseUsageLimitFromOutput_JSONL(t *testing.T) {
	input := `{"status": "ok"}
{"error": "429 rate_limit_error", "retry_after": 300}
{"status": "pending"}`

	info := ParseUsageLimitFromOutput(input)
	if info == nil {
		t.Fatal("expected non-nil info")
	}
	if info.WaitSeconds != 300 {
		t.Errorf("expected 300 seconds, got %d", info.WaitSeconds)
	}
}

func TestParseUsageLimitFromOutput_NotUsageLimit(t *testing.T) {
	inputs := []string{
		"task completed successfully",
		"no errors detected",
		"",
		"some random error message",
		"processing your request",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(input)
			if info != nil {
				t.Errorf("expected nil for non-usage-limit input %q, got %+v", input, info)
			}
		})
	}
}

func TestParseUsageLimitFromOutput_GenericFallback(t *testing.T) {
	inputs := []string{
		"rate limit exceeded",
		"usage limit reached",
		"HTTP 429 error",
		"too many requests",
		"rate_limit error",
		"ratelimit exceeded",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(input)
			if info == nil {
				t.Fatalf("expected non-nil info for %q", input)
			}
			if info.ResetAt.IsZero() {
				t.Error("expected non-zero reset time")
			}
			if info.Window != UsageWindowSession {
				t.Errorf("expected session window, got %s", info.Window)
			}
			if info.WaitSeconds <= 0 {
				t.Errorf("expected positive wait seconds, got %d", info.WaitSeconds)
			}
		})
	}
}

func TestInferResetTime(t *testing.T) {
	resetTime := InferResetTime()

	if resetTime.Before(time.Now()) {
		t.Error("inferred reset time should be in the future")
	}

	maxFuture := time.Now().Add(5 * time.Hour)
	if resetTime.After(maxFuture) {
		t.Errorf("reset time %v should be within 5 hours of now", resetTime)
	}

	if resetTime.Minute() != 0 || resetTime.Second() != 0 {
		t.Errorf("reset time should be on hour boundary, got minute=%d second=%d",
			resetTime.Minute(), resetTime.Second())
	}

	if resetTime.Hour()%5 != 0 {
		t.Errorf("reset time hour %d should be on 5-hour boundary", resetTime.Hour())
	}
}

func TestInferResetTime_Boundaries(t *testing.T) {
	now := time.Now()
	testHours := []int{0, 1, 4, 5, 9, 10, 14, 15, 19, 20, 23}

	for _, hour := range testHours {
		t.Run(fmt.Sprintf("hour_%d", hour), func(t *testing.T) {
			resetTime := InferResetTime()

			if resetTime.Hour()%5 != 0 {
				t.Errorf("reset time hour %d should be on 5-hour boundary", resetTime.Hour())
			}
			if resetTime.Before(now) {
				t.Error("reset time should be in the future")
			}
		})
	}
}

func TestInferUsageWindow(t *testing.T) {
	tests := []struct {
		name        string
		waitSeconds int64
		expected    UsageWindow
	}{
		{"zero", 0, UsageWindowUnknown},
		{"negative", -100, UsageWindowUnknown},
		{"5 minutes", 300, UsageWindowSession},
		{"1 hour", 3600, UsageWindowSession},
		{"5 hours", 5 * 3600, UsageWindowSession},
		{"6 hours", 6 * 3600, UsageWindowSession},
		{"6 hours 1 second", 6*3600 + 1, UsageWindowWeekly},
		{"7 hours", 7 * 3600, UsageWindowWeekly},
		{"24 hours", 24 * 3600, UsageWindowWeekly},
		{"1 week", 7 * 24 * 3600, UsageWindowWeekly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferUsageWindow(tt.waitSeconds)
			if got != tt.expected {
				t.Errorf("inferUsageWindow(%d) = %s, want %s", tt.waitSeconds, got, tt.expected)
			}
		})
	}
}

func TestUsageLimitInfo_TimeUntilReset(t *testing.T) {
	future := time.Now().Add(30 * time.Minute)
	info := &UsageLimitInfo{ResetAt: future}

	duration := info.TimeUntilReset()

	if duration < 29*time.Minute || duration > 31*time.Minute {
		t.Errorf("expected ~30 minutes, got %v", duration)
	}
}

func TestUsageLimitInfo_TimeUntilReset_Zero(t *testing.T) {
	info := &UsageLimitInfo{}

	duration := info.TimeUntilReset()

	if duration != 0 {
		t.Errorf("expected 0 duration for zero ResetAt, got %v", duration)
	}
}

func TestUsageLimitInfo_TimeUntilReset_Past(t *testing.T) {
	past := time.Now().Add(-1 * time.Hour)
	info := &UsageLimitInfo{ResetAt: past}

	duration := info.TimeUntilReset()

	if duration >= 0 {
		t.Errorf("expected negative duration for past time, got %v", duration)
	}
}

func TestUsageLimitInfo_IsExpired(t *testing.T) {
	tests := []struct {
		name     string
		resetAt  time.Time
		expected bool
	}{
		{"zero", time.Time{}, true},
		{"past", time.Now().Add(-1 * time.Hour), true},
		{"future", time.Now().Add(1 * time.Hour), false},
		{"just past", time.Now().Add(-1 * time.Second), true},
		{"just future", time.Now().Add(1 * time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &UsageLimitInfo{ResetAt: tt.resetAt}
			got := info.IsExpired()
			if got != tt.expected {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseUsageLimitFromError(t *testing.T) {
	info := ParseUsageLimitFromError("rate limit exceeded, retry in 300 seconds")

	if info == nil {
		t.Fatal("expected non-nil info")
	}
	if info.Source != "error" {
		t.Errorf("expected source 'error', got %s", info.Source)
	}
	if info.WaitSeconds != 300 {
		t.Errorf("expected 300 seconds, got %d", info.WaitSeconds)
	}
}

func TestParseUsageLimitFromError_Empty(t *testing.T) {
	info := ParseUsageLimitFromError("")
	if info != nil {
		t.Error("expected nil for empty input")
	}
}

func TestParseUsageLimitFromError_NotUsageLimit(t *testing.T) {
	info := ParseUsageLimitFromError("some other error")
	if info != nil {
		t.Error("expected nil for non-usage-limit error")
	}
}

func TestTryParseJSONBody_InvalidOrUnrelated(t *testing.T) {
	inputs := []string{
		"not json at all",
		"{invalid json}",
		"[]",
		`{"error": "internal server error"}`,
		`{"retry_after": 300}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			info := tryParseJSONBody(input)
			if info != nil {
				t.Errorf("expected nil for invalid/unrelated JSON %q, got %+v", input, info)
			}
		})
	}
}

func TestUsageLimitFromJSON_VariousRetryAfterTypes(t *testing.T) {
	tests := []struct {
		name     string
		obj      map[string]interface{}
		expected int64
	}{
		{"float64", map[string]interface{}{"error": "429 rate_limit", "retry_after": float64(300)}, 300},
		{"int64", map[string]interface{}{"error": "rate limit", "retry_after": int64(600)}, 600},
		{"int", map[string]interface{}{"error": "rate_limit_error", "retry_after": 120}, 120},
		{"string", map[string]interface{}{"error": "429", "retry_after": "450"}, 450},
		{"invalid string", map[string]interface{}{"error": "rate limit", "retry_after": "not a number"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := usageLimitFromJSON(tt.obj)
			if info == nil {
				t.Fatal("expected non-nil info")
			}
			if tt.expected > 0 {
				if info.WaitSeconds != tt.expected {
					t.Errorf("expected %d seconds, got %d", tt.expected, info.WaitSeconds)
				}
			} else {
				if info.ResetAt.IsZero() {
					t.Error("expected non-zero reset time")
				}
			}
		})
	}
}

func TestUsageLimitFromJSON_NoError(t *testing.T) {
	obj := map[string]interface{}{
		"status":      "ok",
		"retry_after": 300,
	}

	info := usageLimitFromJSON(obj)
	if info != nil {
		t.Error("expected nil when no error field present")
	}
}

func TestUsageLimitFromJSON_ErrorNotUsageLimit(t *testing.T) {
	obj := map[string]interface{}{
		"error":       "some other error",
		"retry_after": 300,
	}

	info := usageLimitFromJSON(obj)
	if info != nil {
		t.Error("expected nil when error is not usage-limit related")
	}
}

func TestParseUsageLimitFromOutput_RawMessage(t *testing.T) {
	input := "rate limit exceeded, retry in 300 seconds"
	info := ParseUsageLimitFromOutput(input)

	if info == nil {
		t.Fatal("expected non-nil info")
	}
	if info.RawMessage != input {
		t.Errorf("expected RawMessage to be %q, got %q", input, info.RawMessage)
	}
}

func TestParseUsageLimitFromOutput_DetectedAt(t *testing.T) {
	before := time.Now()
	info := ParseUsageLimitFromOutput("rate limit exceeded")
	after := time.Now()

	if info == nil {
		t.Fatal("expected non-nil info")
	}
	if info.DetectedAt.Before(before) || info.DetectedAt.After(after) {
		t.Errorf("DetectedAt %v should be between %v and %v", info.DetectedAt, before, after)
	}
}

func TestParseUsageLimitFromOutput_CaseInsensitive(t *testing.T) {
	inputs := []string{
		"RATE LIMIT EXCEEDED",
		"Rate Limit Exceeded",
		"usage_limit reached",
		"USAGE_LIMIT REACHED",
		"TOO MANY REQUESTS",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(input)
			if info == nil {
				t.Errorf("expected non-nil info for case-insensitive match %q", input)
			}
		})
	}
}

func TestParseUsageLimitFromOutput_MostSpecificPatternWins(t *testing.T) {
	futureTime := time.Now().Add(3 * time.Hour).Unix()
	input := fmt.Sprintf("rate limit exceeded. Claude AI usage limit reached|%d", futureTime)

	info := ParseUsageLimitFromOutput(input)
	if info == nil {
		t.Fatal("expected non-nil info")
	}

	if info.ResetAt.Unix() != futureTime {
		t.Errorf("expected specific timestamp %d, got %d", futureTime, info.ResetAt.Unix())
	}
}

func TestHumanTimePattern_TimezoneFailure(t *testing.T) {
	input := "rate limit - Your limit will reset at 2pm (Invalid/Timezone)"
	info := ParseUsageLimitFromOutput(input)

	if info == nil {
		t.Fatal("expected non-nil info even with invalid timezone")
	}

	if info.ResetAt.IsZero() {
		t.Error("expected non-zero reset time")
	}
}

func TestParseUsageLimitFromOutput_EdgeCases(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		shouldMatch bool
	}{
		{"newlines with rate limit", "retry in 300 seconds\nrate limit exceeded", true},
		{"multiple spaces in retry pattern", "rate limit hit, retry in  300  seconds", true},
		{"tab instead of space", "rate limit hit, retry in\t300 seconds", true},
		{"no space before number - still matches generic", "rate limit retryafter300s", true},
		{"valid single space", "rate limit, retry in 300 seconds", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(tt.input)
			matched := info != nil
			if matched != tt.shouldMatch {
				t.Errorf("input %q: expected match=%v, got match=%v", tt.input, tt.shouldMatch, matched)
			}
		})
	}
}

func TestUnixTimestampPattern_ExactMatch(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		shouldMatch bool
	}{
		{"exact match", "Claude AI usage limit reached|1234567890", true},
		{"missing prefix", "usage limit reached|1234567890", false},
		{"case sensitive", "claude ai usage limit reached|1234567890", false},
		{"with context", "Error: Claude AI usage limit reached|1234567890. Please wait.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(tt.input)
			if tt.shouldMatch {
				if info == nil {
					t.Error("expected match")
				} else if info.ResetAt.Unix() != 1234567890 {
					t.Errorf("expected timestamp 1234567890, got %d", info.ResetAt.Unix())
				}
			}
		})
	}
}

func TestRetrySecondsPattern_Variations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"retry in seconds", "rate limit, retry in 300 seconds", 300},
		{"retry after seconds", "rate limit, retry after 600 seconds", 600},
		{"retry in second (singular)", "rate limit, retry in 1 second", 1},
		{"retry after second", "rate limit, retry after 1 second", 1},
		{"retry in s", "rate limit, retry in 120s", 120},
		{"retry after s", "rate limit, retry after 60s", 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUsageLimitFromOutput(tt.input)
			if info == nil {
				t.Fatalf("expected non-nil info for %q", tt.input)
			}
			if info.WaitSeconds != tt.expected {
				t.Errorf("expected %d seconds, got %d", tt.expected, info.WaitSeconds)
			}
		})
	}
}

func TestParseUsageLimitFromOutput_FullIntegration(t *testing.T) {
	input := "rate limit exceeded, retry in 3600 seconds"
	info := ParseUsageLimitFromOutput(input)

	if info == nil {
		t.Fatal("expected non-nil info")
	}

	if info.Source != "output" {
		t.Errorf("expected source 'output', got %s", info.Source)
	}
	if info.RawMessage != input {
		t.Errorf("expected RawMessage %q, got %q", input, info.RawMessage)
	}
	if info.WaitSeconds != 3600 {
		t.Errorf("expected 3600 seconds, got %d", info.WaitSeconds)
	}
	if info.Window != UsageWindowSession {
		t.Errorf("expected session window, got %s", info.Window)
	}
	if info.DetectedAt.IsZero() {
		t.Error("expected non-zero DetectedAt")
	}
	if info.ResetAt.IsZero() {
		t.Error("expected non-zero ResetAt")
	}
	if !info.ResetAt.After(time.Now()) {
		t.Error("expected ResetAt to be in the future")
	}
	if info.IsExpired() {
		t.Error("expected non-expired limit")
	}
	if info.TimeUntilReset() <= 0 {
		t.Error("expected positive time until reset")
	}
}
