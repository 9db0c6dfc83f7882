package backoff

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UsageWindow distinguishes a short per-session usage limit from a longer
// weekly one, inferred from how far out the provider's reset time is.
type UsageWindow string

const (
	UsageWindowSession UsageWindow = "session"
	UsageWindowWeekly  UsageWindow = "weekly"
	UsageWindowUnknown UsageWindow = "unknown"
)

// UsageLimitInfo is a TransportError's usage-limit detail, parsed from
// whatever a Provider implementation surfaced: CLIModel shells out to the
// `claude` binary and sees these strings on stdout/stderr, while an HTTP
// Model sees a 429 body instead.
type UsageLimitInfo struct {
	DetectedAt  time.Time
	ResetAt     time.Time
	WaitSeconds int64
	Window      UsageWindow
	RawMessage  string
	// Source is where the limit was observed: "output" (CLI output text)
	// or "error" (an error string).
	Source string
}

// TimeUntilReset returns how long until ResetAt, or zero if unset.
func (r *UsageLimitInfo) TimeUntilReset() time.Duration {
	if r.ResetAt.IsZero() {
		return 0
	}
	return time.Until(r.ResetAt)
}

// IsExpired reports whether ResetAt has already passed (or was never set).
func (r *UsageLimitInfo) IsExpired() bool {
	if r.ResetAt.IsZero() {
		return true
	}
	return time.Now().After(r.ResetAt)
}

var (
	// "Claude AI usage limit reached|<unix_timestamp>" — the CLI's own
	// wire format for a hard session limit.
	unixTimestampPattern = regexp.MustCompile(`Claude AI usage limit reached\|(\d+)`)

	// "Your limit will reset at 2pm (America/New_York)"
	humanTimePattern = regexp.MustCompile(`limit will reset at (\d+)(am|pm)\s*\(([^)]+)\)`)

	// "retry in 300 seconds" / "retry after 300s"
	retrySecondsPattern = regexp.MustCompile(`retry (?:in|after)\s+(\d+)\s*(?:seconds?|s)`)

	// Generic usage-limit indicators across both CLI and HTTP transports.
	usageLimitIndicator = regexp.MustCompile(`(?i)(out of.*usage|rate.?limit|usage.?limit|429|too.?many.?requests)`)

	// "resets 1am (Europe/Dublin)" — a later CLI release's phrasing.
	resetsTimePattern = regexp.MustCompile(`resets\s+(\d+)(am|pm)\s*\(([^)]+)\)`)
)

// ParseUsageLimitFromOutput scans a Provider's raw stdout/stderr for a
// usage-limit message and, if found, parses out its reset time.
func ParseUsageLimitFromOutput(output string) *UsageLimitInfo {
	if output == "" {
		return nil
	}
	if !usageLimitIndicator.MatchString(output) {
		return nil
	}

	info := &UsageLimitInfo{
		DetectedAt: time.Now(),
		RawMessage: output,
		Source:     "output",
		Window:     UsageWindowUnknown,
	}

	if matches := unixTimestampPattern.FindStringSubmatch(output); len(matches) > 1 {
		if ts, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			info.ResetAt = time.Unix(ts, 0)
			info.WaitSeconds = info.ResetAt.Unix() - time.Now().Unix()
			info.Window = inferUsageWindow(info.WaitSeconds)
			return info
		}
	}

	if reset, ok := parseClockTime(humanTimePattern, output); ok {
		info.ResetAt = reset
		info.WaitSeconds = int64(time.Until(reset).Seconds())
		info.Window = inferUsageWindow(info.WaitSeconds)
		return info
	}

	if reset, ok := parseClockTime(resetsTimePattern, output); ok {
		info.ResetAt = reset
		info.WaitSeconds = int64(time.Until(reset).Seconds())
		info.Window = inferUsageWindow(info.WaitSeconds)
		return info
	}

	if matches := retrySecondsPattern.FindStringSubmatch(output); len(matches) > 1 {
		if seconds, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			info.WaitSeconds = seconds
			info.ResetAt = time.Now().Add(time.Duration(seconds) * time.Second)
			info.Window = inferUsageWindow(seconds)
			return info
		}
	}

	if jsonInfo := tryParseJSONBody(output); jsonInfo != nil {
		jsonInfo.DetectedAt = info.DetectedAt
		jsonInfo.Source = info.Source
		jsonInfo.RawMessage = info.RawMessage
		return jsonInfo
	}

	// Matched the generic indicator but none of the specific formats:
	// assume the provider's standard window.
	info.ResetAt = InferResetTime()
	info.WaitSeconds = int64(time.Until(info.ResetAt).Seconds())
	info.Window = UsageWindowSession
	return info
}

// ParseUsageLimitFromError is ParseUsageLimitFromOutput for an error
// string rather than stdout/stderr, tagging Source as "error".
func ParseUsageLimitFromError(errMsg string) *UsageLimitInfo {
	if errMsg == "" {
		return nil
	}
	info := ParseUsageLimitFromOutput(errMsg)
	if info != nil {
		info.Source = "error"
	}
	return info
}

// parseClockTime extracts a 12-hour clock time plus IANA timezone name
// from pattern and resolves it to the next occurrence of that wall-clock
// time, wrapping to tomorrow if it has already passed today.
func parseClockTime(pattern *regexp.Regexp, text string) (time.Time, bool) {
	matches := pattern.FindStringSubmatch(text)
	if len(matches) <= 3 {
		return time.Time{}, false
	}

	hour, _ := strconv.Atoi(matches[1])
	meridiem := matches[2]
	tzName := matches[3]

	if meridiem == "pm" && hour != 12 {
		hour += 12
	} else if meridiem == "am" && hour == 12 {
		hour = 0
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}

	now := time.Now().In(loc)
	reset := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
	if reset.Before(now) {
		reset = reset.Add(24 * time.Hour)
	}
	return reset, true
}

// InferResetTime returns the next 5-hour billing-window boundary when a
// provider's message signals a usage limit but gives no explicit reset
// time.
func InferResetTime() time.Time {
	now := time.Now()
	flooredNow := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())

	currentWindow := (flooredNow.Hour() / 5) * 5
	nextWindow := currentWindow + 5
	if nextWindow >= 24 {
		nextWindow = 0
		flooredNow = flooredNow.Add(24 * time.Hour)
	}

	return time.Date(flooredNow.Year(), flooredNow.Month(), flooredNow.Day(), nextWindow, 0, 0, 0, flooredNow.Location())
}

// inferUsageWindow classifies a wait duration as session-scoped (<=6h) or
// weekly (>6h).
func inferUsageWindow(waitSeconds int64) UsageWindow {
	const sixHours = 6 * 60 * 60
	switch {
	case waitSeconds <= 0:
		return UsageWindowUnknown
	case waitSeconds > sixHours:
		return UsageWindowWeekly
	default:
		return UsageWindowSession
	}
}

// tryParseJSONBody handles a Provider transport that reports usage limits
// as a JSON object (a single object, or JSONL with one match per line).
func tryParseJSONBody(data string) *UsageLimitInfo {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(data), &obj); err == nil {
		return usageLimitFromJSON(obj)
	}

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			if info := usageLimitFromJSON(obj); info != nil {
				return info
			}
		}
	}
	return nil
}

// usageLimitFromJSON looks for an "error" field naming a rate limit and an
// optional "retry_after" of any JSON numeric or string type.
func usageLimitFromJSON(obj map[string]interface{}) *UsageLimitInfo {
	errorField, hasError := obj["error"]
	retryAfter, hasRetryAfter := obj["retry_after"]

	isUsageLimit := false
	if hasError {
		if errStr, ok := errorField.(string); ok {
			lower := strings.ToLower(errStr)
			isUsageLimit = strings.Contains(errStr, "429") ||
				strings.Contains(lower, "rate_limit") ||
				strings.Contains(lower, "rate limit")
		}
	}
	if !isUsageLimit {
		return nil
	}

	info := &UsageLimitInfo{
		DetectedAt: time.Now(),
		Window:     UsageWindowUnknown,
	}

	if hasRetryAfter {
		switch v := retryAfter.(type) {
		case float64:
			info.WaitSeconds = int64(v)
		case int64:
			info.WaitSeconds = v
		case int:
			info.WaitSeconds = int64(v)
		case string:
			if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
				info.WaitSeconds = seconds
			}
		}

		if info.WaitSeconds > 0 {
			info.ResetAt = time.Now().Add(time.Duration(info.WaitSeconds) * time.Second)
			info.Window = inferUsageWindow(info.WaitSeconds)
			return info
		}
	}

	info.ResetAt = InferResetTime()
	info.WaitSeconds = int64(time.Until(info.ResetAt).Seconds())
	info.Window = UsageWindowSession
	return info
}
