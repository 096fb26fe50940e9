package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/assetmill/internal/digest"
	"github.com/roach88/assetmill/internal/engines"
	"github.com/roach88/assetmill/internal/pipeline"
	"github.com/roach88/assetmill/internal/testutil"
)

// rootPlaceholder replaces the scenario directory in recorded errors.
const rootPlaceholder = "$root"

// Harness executes one scenario in its own directory.
type Harness struct {
	root   string
	env    *pipeline.Environment
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory that is removed
// afterwards. Execution flow:
//  1. Write the initial files, one clock tick apart
//  2. Build an Environment over the scenario's search paths
//  3. Execute steps, checking expect clauses
//  4. Evaluate assertions against the trace
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "assetmill-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(root)

	// Resolve symlinks so recorded pathnames match what the pipeline sees
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	h := &Harness{
		root:   root,
		clock:  testutil.NewDeterministicClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in scenarios
	}
	if err := h.setup(scenario); err != nil {
		return nil, fmt.Errorf("failed to set up scenario: %w", err)
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) setup(s *Scenario) error {
	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.write(name, s.Files[name]); err != nil {
			return err
		}
	}

	alg := digest.Default
	if s.Digest != "" {
		parsed, err := digest.Parse(s.Digest)
		if err != nil {
			return err
		}
		alg = parsed
	}

	h.env = pipeline.NewEnvironment(h.root,
		pipeline.WithLogger(h.logger),
		pipeline.WithDigestAlgorithm(alg),
		pipeline.WithVersion(s.Version),
	)
	for _, p := range s.Paths {
		dir := h.path(p)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := h.env.AppendPath(dir); err != nil {
			return err
		}
	}
	return engines.Register(h.env)
}

// executeSteps runs steps in order, appending one trace event per step.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		seq := int64(i + 1)
		switch {
		case step.Find != "":
			ev := h.find(ctx, step, seq)
			result.Trace = append(result.Trace, ev)
			if step.Expect != nil {
				for _, msg := range checkExpect(ev, step.Expect) {
					result.AddError(fmt.Sprintf("steps[%d] find %s: %s", i, step.Find, msg))
				}
			} else if ev.Error != "" {
				result.AddError(fmt.Sprintf("steps[%d] find %s: unexpected error: %s", i, step.Find, ev.Error))
			}

		case step.Write != "":
			if err := h.write(step.Write, step.Content); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			result.Trace = append(result.Trace, TraceEvent{Seq: seq, Type: EventWrite, Path: step.Write})

		case step.Touch != "":
			mtime := h.clock.Next()
			if err := os.Chtimes(h.path(step.Touch), mtime, mtime); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			result.Trace = append(result.Trace, TraceEvent{Seq: seq, Type: EventTouch, Path: step.Touch})

		case step.Remove != "":
			if err := h.remove(step.Remove); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			result.Trace = append(result.Trace, TraceEvent{Seq: seq, Type: EventRemove, Path: step.Remove})
		}
	}
	return nil
}

func (h *Harness) find(ctx context.Context, step Step, seq int64) TraceEvent {
	ev := TraceEvent{Seq: seq, Type: EventFind, Path: step.Find, Bundle: step.Bundle}

	asset, err := h.env.FindAsset(ctx, step.Find, pipeline.FindOptions{Bundle: step.Bundle})
	if err == nil {
		err = asset.Compile(ctx)
	}
	if err == nil {
		ev.source, err = asset.Source()
	}
	if err == nil {
		ev.Constituents, err = constituents(asset)
	}
	if err != nil {
		ev.Error = strings.ReplaceAll(err.Error(), h.root, rootPlaceholder)
		ev.source = ""
		ev.Constituents = nil
		return ev
	}

	ev.Kind = string(asset.Kind())
	ev.ContentType = asset.ContentType()
	ev.DigestPath = asset.DigestPath()
	return ev
}

func constituents(asset pipeline.Asset) ([]string, error) {
	bundle, ok := asset.(*pipeline.BundledAsset)
	if !ok {
		return nil, nil
	}
	parts, err := bundle.ToArray()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.LogicalPath()
	}
	return out, nil
}

func checkExpect(ev TraceEvent, want *ExpectClause) []string {
	if want.Error != "" {
		if ev.Error == "" {
			return []string{fmt.Sprintf("expected error containing %q, lookup succeeded", want.Error)}
		}
		if !strings.Contains(ev.Error, want.Error) {
			return []string{fmt.Sprintf("expected error containing %q, got %q", want.Error, ev.Error)}
		}
		return nil
	}
	if ev.Error != "" {
		return []string{fmt.Sprintf("unexpected error: %s", ev.Error)}
	}

	var msgs []string
	if want.Source != nil && *want.Source != ev.source {
		msgs = append(msgs, fmt.Sprintf("source mismatch\n  expected: %q\n  actual:   %q", *want.Source, ev.source))
	}
	if want.ContentType != "" && want.ContentType != ev.ContentType {
		msgs = append(msgs, fmt.Sprintf("content type: expected %s, got %s", want.ContentType, ev.ContentType))
	}
	if want.Kind != "" && want.Kind != ev.Kind {
		msgs = append(msgs, fmt.Sprintf("kind: expected %s, got %s", want.Kind, ev.Kind))
	}
	return msgs
}

// write replaces name with content and stamps it, and every directory
// above it, with the next tick.
func (h *Harness) write(name, content string) error {
	p := h.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return err
	}
	mtime := h.clock.Next()
	if err := os.Chtimes(p, mtime, mtime); err != nil {
		return err
	}
	return h.stampParents(p, mtime)
}

// remove deletes name and stamps the directories above it.
func (h *Harness) remove(name string) error {
	p := h.path(name)
	if err := os.RemoveAll(p); err != nil {
		return err
	}
	return h.stampParents(p, h.clock.Next())
}

func (h *Harness) stampParents(p string, mtime time.Time) error {
	for dir := filepath.Dir(p); dir != h.root && strings.HasPrefix(dir, h.root); dir = filepath.Dir(dir) {
		if err := os.Chtimes(dir, mtime, mtime); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) path(name string) string {
	return filepath.Join(h.root, filepath.FromSlash(name))
}
