package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/livepeer/audio-api/log"
)

// Result holds the captured output of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external programs. The model wrappers depend on this
// interface so that tests never need the real binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec, capturing both output streams and
// echoing them line by line to the log at high verbosity
type ExecRunner struct {
	// Working directory for the command, empty means the current one
	Dir string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	stdoutLog := newLineLogger(ctx, name, "stdout")
	stderrLog := newLineLogger(ctx, name, "stderr")
	cmd.Stdout = io.MultiWriter(&stdout, stdoutLog)
	cmd.Stderr = io.MultiWriter(&stderr, stderrLog)

	start := time.Now()
	err := cmd.Run()
	stdoutLog.Close()
	stderrLog.Close()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		return res, fmt.Errorf("%s failed: %w", name, err)
	}
	return res, nil
}

// lineLogger is an io.WriteCloser that logs every complete line written to it
type lineLogger struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func newLineLogger(ctx context.Context, name, stream string) *lineLogger {
	pr, pw := io.Pipe()
	l := &lineLogger{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		streamOutput(pr, func(line string) {
			if glog.V(5) {
				log.LogCtx(ctx, "subprocess output", "cmd", name, "stream", stream, "line", line)
			}
		})
	}()
	return l
}

func (l *lineLogger) Write(p []byte) (int, error) {
	return l.pw.Write(p)
}

func (l *lineLogger) Close() {
	_ = l.pw.Close()
	<-l.done
}

func streamOutput(src io.Reader, out func(string)) {
	s := bufio.NewScanner(src)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	for s.Scan() {
		out(strings.TrimRight(s.Text(), "\r"))
	}
	if err := s.Err(); err != nil {
		log.LogNoRequestID("streamOutput scan error", "err", err)
		// keep draining so that the writer side never blocks
		_, _ = io.Copy(io.Discard, src)
	}
}
