// Package vcs runs read-only git queries against project working copies.
// Every failure is logged and reported as empty output.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Default bounds for a single git invocation.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultTodayTimeout = 10 * time.Second
)

// Git executes git in a working copy.
type Git struct {
	logger       *slog.Logger
	timeout      time.Duration
	todayTimeout time.Duration
	binary       string
}

// Option configures Git.
type Option func(*Git)

// WithBinary overrides the git executable name.
func WithBinary(path string) Option {
	return func(g *Git) { g.binary = path }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Git) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithTodayTimeout overrides DefaultTodayTimeout, the bound used by CommitsToday.
func WithTodayTimeout(d time.Duration) Option {
	return func(g *Git) {
		if d > 0 {
			g.todayTimeout = d
		}
	}
}

// NewGit returns a Git adapter.
func NewGit(logger *slog.Logger, opts ...Option) *Git {
	g := &Git{logger: logger, timeout: DefaultTimeout, todayTimeout: DefaultTodayTimeout, binary: "git"}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Run executes git with args inside repo and returns trimmed stdout.
// A missing repo, missing binary, non-zero exit or timeout yields "".
func (g *Git) Run(ctx context.Context, repo string, args ...string) string {
	return g.run(ctx, g.timeout, repo, args...)
}

func (g *Git) run(ctx context.Context, timeout time.Duration, repo string, args ...string) string {
	log := g.logger.With(slog.String("repo", repo), slog.String("args", strings.Join(args, " ")))

	if info, err := os.Stat(repo); err != nil || !info.IsDir() {
		log.Warn("git: working copy not found")
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = repo
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			log.Warn("git: timed out", slog.Duration("timeout", timeout))
		case errors.Is(err, exec.ErrNotFound):
			log.Warn("git: executable not found", slog.String("error", err.Error()))
		default:
			log.Warn("git: command failed",
				slog.String("error", err.Error()),
				slog.String("stderr", strings.TrimSpace(stderr.String())),
			)
		}
		return ""
	}
	return strings.TrimSpace(stdout.String())
}

// CommitsInRange returns "hash subject" lines for commits dated within
// [start, end] by calendar day.
func (g *Git) CommitsInRange(ctx context.Context, repo string, start, end time.Time) []string {
	out := g.Run(ctx, repo, "log",
		fmt.Sprintf("--since=%s 00:00:00", start.Format(time.DateOnly)),
		fmt.Sprintf("--until=%s 23:59:59", end.Format(time.DateOnly)),
		"--oneline",
	)
	return lines(out)
}

// CommitsToday returns "subject (hash)" lines since local midnight, merges excluded.
func (g *Git) CommitsToday(ctx context.Context, repo string) []string {
	out := g.run(ctx, g.todayTimeout, repo, "log", "--since=00:00", "--format=%s (%h)", "--no-merges")
	return lines(out)
}

// RecentLog returns the last n commits in --oneline form.
func (g *Git) RecentLog(ctx context.Context, repo string, n int) string {
	return g.Run(ctx, repo, "log", "-n", fmt.Sprint(n), "--oneline")
}

// LogSince returns --oneline commits from the last days days.
func (g *Git) LogSince(ctx context.Context, repo string, days int) string {
	return g.Run(ctx, repo, "log", fmt.Sprintf("--since=%d days ago", days), "--oneline")
}

func lines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
