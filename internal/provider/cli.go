package provider

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/orchestra/internal/models"
)

// CLIModel is a Model backed by shelling out to a CLI binary (e.g. the
// `claude` CLI), adapted from the teacher's internal/claude.Invoker: build
// once, reuse per call, default timeout applied via context.
type CLIModel struct {
	// Path is the CLI binary path. Defaults to "claude".
	Path string
	// Timeout bounds a single invocation; zero means no extra timeout
	// beyond the caller's context.
	Timeout time.Duration
	// ExtraArgs are appended after the fixed flags on every invocation
	// (e.g. ["--permission-mode", "bypassPermissions"]).
	ExtraArgs []string
}

// NewCLIModel returns a CLIModel with Path defaulted to "claude".
func NewCLIModel() *CLIModel {
	return &CLIModel{Path: "claude"}
}

// Complete invokes the CLI once per call (no native multi-turn session;
// the full conversation is flattened into the prompt) and streams stdout
// line-by-line into onChunk as it arrives.
func (m *CLIModel) Complete(ctx context.Context, systemPrompt string, conversation []models.Message, onChunk func(string)) (string, error) {
	ctxToUse := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctxToUse, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	prompt := flattenConversation(conversation)

	path := m.Path
	if path == "" {
		path = "claude"
	}
	args := append([]string{"--system-prompt", systemPrompt, "-p", prompt, "--output-format", "text"}, m.ExtraArgs...)

	cmd := exec.CommandContext(ctxToUse, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("cli model: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("cli model: start: %w", err)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text() + "\n"
		full.WriteString(line)
		if onChunk != nil {
			onChunk(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return full.String(), fmt.Errorf("cli model: %w", err)
	}
	return full.String(), nil
}

// flattenConversation renders a conversation as a single prompt, since the
// CLI has no native structured-turns API.
func flattenConversation(conversation []models.Message) string {
	var b strings.Builder
	for _, msg := range conversation {
		fmt.Fprintf(&b, "[%s]: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}
