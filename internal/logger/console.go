// Package logger provides logging of orchestrator execution progress: phase
// transitions, agent provider events and run summaries. Output is thread-safe,
// level-filtered and colorized when writing to a terminal, the way the
// teacher's internal/logger package does it.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/orchestra/internal/models"
)

const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs orchestrator progress to a writer with timestamps and
// level filtering. Color output is automatically enabled for terminal output.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger writing to writer at logLevel
// (trace, debug, info, warn, error; defaults to info). If writer is nil,
// messages are silently discarded.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

func isTerminal(w io.Writer) bool {
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func (cl *ConsoleLogger) write(level, message string) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var line string
	if cl.colorOutput {
		line = fmt.Sprintf("[%s] [%s] %s\n", ts, cl.colorizeLevel(level), message)
	} else {
		line = fmt.Sprintf("[%s] [%s] %s\n", ts, strings.ToUpper(level), message)
	}
	cl.writer.Write([]byte(line))
}

func (cl *ConsoleLogger) colorizeLevel(level string) string {
	switch level {
	case "trace":
		return color.New(color.FgHiBlack).Sprint("TRACE")
	case "debug":
		return color.New(color.FgCyan).Sprint("DEBUG")
	case "info":
		return color.New(color.FgBlue).Sprint("INFO")
	case "warn":
		return color.New(color.FgYellow).Sprint("WARN")
	case "error":
		return color.New(color.FgRed).Sprint("ERROR")
	default:
		return strings.ToUpper(level)
	}
}

func (cl *ConsoleLogger) LogTrace(message string) { cl.write("trace", message) }
func (cl *ConsoleLogger) LogDebug(message string) { cl.write("debug", message) }
func (cl *ConsoleLogger) LogInfo(message string)  { cl.write("info", message) }
func (cl *ConsoleLogger) LogWarn(message string)  { cl.write("warn", message) }
func (cl *ConsoleLogger) LogError(message string) { cl.write("error", message) }

func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.LogInfo(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.LogWarn(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.LogError(fmt.Sprintf(format, args...))
}

// LogPhaseEvent renders one orchestrator phase event at INFO level (spec.md §6.4).
func (cl *ConsoleLogger) LogPhaseEvent(ev models.PhaseEvent) {
	cl.LogInfo(formatPhaseEvent(ev))
}

func formatPhaseEvent(ev models.PhaseEvent) string {
	switch ev.Kind {
	case models.PhaseEventInitializing:
		return "Initializing workspace"
	case models.PhaseEventPlanning:
		return "ROUTA is planning"
	case models.PhaseEventPlanReady:
		return fmt.Sprintf("Plan ready (%d chars)", len(ev.Text))
	case models.PhaseEventTasksRegistered:
		return fmt.Sprintf("Registered %d tasks", ev.Count)
	case models.PhaseEventWaveStarting:
		return fmt.Sprintf("Wave %d starting", ev.Wave)
	case models.PhaseEventCrafterRunning:
		return fmt.Sprintf("CRAFTER %s running task %s", ev.AgentID, ev.TaskID)
	case models.PhaseEventCrafterCompleted:
		return fmt.Sprintf("CRAFTER %s completed task %s", ev.AgentID, ev.TaskID)
	case models.PhaseEventVerificationStarting:
		return fmt.Sprintf("Verification starting (wave %d)", ev.Wave)
	case models.PhaseEventVerificationCompleted:
		return fmt.Sprintf("GATE %s completed verification", ev.AgentID)
	case models.PhaseEventNeedsFix:
		return fmt.Sprintf("Wave %d needs fixes, resetting tasks", ev.Wave)
	case models.PhaseEventCompleted:
		return "Orchestration completed"
	case models.PhaseEventMaxWavesReached:
		return fmt.Sprintf("Max waves reached (%d)", ev.Wave)
	default:
		return string(ev.Kind)
	}
}

// LogBackoffTick implements backoff.BackoffLogger: logged at debug level
// since it fires every second while a provider backs off from a usage limit.
func (cl *ConsoleLogger) LogBackoffTick(remaining, total time.Duration) {
	cl.write("debug", fmt.Sprintf("usage limit backoff: %s remaining of %s", remaining, total))
}

// LogBackoffAnnounce implements backoff.BackoffLogger, logged at warn level
// since it fires only at the announce interval.
func (cl *ConsoleLogger) LogBackoffAnnounce(remaining, total time.Duration) {
	cl.write("warn", fmt.Sprintf("still backing off usage limit: %s remaining of %s", remaining, total))
}

// LogResult logs an orchestrator Result summary at INFO level.
func (cl *ConsoleLogger) LogResult(result models.Result) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var out strings.Builder
	header := fmt.Sprintf("=== Orchestration %s ===", result.Kind)
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	fmt.Fprintf(&out, "[%s] %s\n", ts, header)
	fmt.Fprintf(&out, "[%s] Waves run: %d\n", ts, result.WavesRun)

	if result.Err != nil {
		errLine := fmt.Sprintf("Error: %v", result.Err)
		if cl.colorOutput {
			errLine = color.New(color.FgRed).Sprint(errLine)
		}
		fmt.Fprintf(&out, "[%s] %s\n", ts, errLine)
	}

	completed, other := 0, 0
	for _, t := range result.Tasks {
		if t.Status == models.TaskCompleted {
			completed++
		} else {
			other++
		}
	}
	if len(result.Tasks) > 0 {
		fmt.Fprintf(&out, "[%s] Tasks: %d completed, %d other\n", ts, completed, other)
	}

	cl.writer.Write([]byte(out.String()))
}
