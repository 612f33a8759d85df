// Package logtest captures structured log records in memory for assertions.
package logtest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/eion/tenantgate/internal/logging"
)

// Sink collects the JSON lines written to the standard and error streams.
type Sink struct {
	mu     sync.Mutex
	out    bytes.Buffer
	errOut bytes.Buffer
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// New returns a debug-level JSON logger writing into a fresh Sink.
func New(t testing.TB) (*logging.ZapLogger, *Sink) {
	t.Helper()
	s := &Sink{}
	l := logging.NewWithWriters(
		lockedWriter{mu: &s.mu, buf: &s.out},
		lockedWriter{mu: &s.mu, buf: &s.errOut},
		logging.Config{Level: "debug", Format: "json"},
	)
	return l, s
}

// Stdout returns records written to the standard stream.
func (s *Sink) Stdout(t testing.TB) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	return decode(t, s.out.Bytes())
}

// Stderr returns records written to the error stream.
func (s *Sink) Stderr(t testing.TB) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	return decode(t, s.errOut.Bytes())
}

// All returns standard records followed by error records.
func (s *Sink) All(t testing.TB) []map[string]any {
	t.Helper()
	return append(s.Stdout(t), s.Stderr(t)...)
}

// Find returns the first record with the given message, or nil.
func (s *Sink) Find(t testing.TB, message string) map[string]any {
	t.Helper()
	for _, rec := range s.All(t) {
		if rec["message"] == message {
			return rec
		}
	}
	return nil
}

// Context returns the context object of rec.
func Context(rec map[string]any) map[string]any {
	if rec == nil {
		return nil
	}
	ctx, _ := rec["context"].(map[string]any)
	return ctx
}

func decode(t testing.TB, data []byte) []map[string]any {
	t.Helper()
	var records []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}
