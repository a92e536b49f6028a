// Package responselog records verbose per-invocation logs and keeps the latest ones.
package responselog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Categories used outside of steps
const (
	CategoryModelFailure = "MODEL FAILURE"
	CategoryGeneration   = "GENERATION"
	CategoryInput        = "INPUT"
	CategorySanitize     = "SANITIZE"
)

// Entry is one logged step
type Entry struct {
	Category string
	Elapsed  time.Duration
	Prompt   string
	Response string
}

// Log is ordered list of entries for one invocation
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Log {
	return &Log{}
}

// Append is no-op on nil log
func (l *Log) Append(e Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Note appends entry without prompt or timing
func (l *Log) Note(category string, text string) {
	l.Append(Entry{Category: category, Response: text})
}

func (l *Log) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Render formats entries deterministically
func (l *Log) Render() string {
	var sb strings.Builder
	for i, e := range l.Entries() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### %d. %s (%d ms)\n", i+1, e.Category, e.Elapsed.Milliseconds())
		if e.Prompt != "" {
			sb.WriteString("--- prompt ---\n")
			sb.WriteString(e.Prompt)
			sb.WriteByte('\n')
		}
		sb.WriteString("--- response ---\n")
		sb.WriteString(e.Response)
	}
	return sb.String()
}

func (l *Log) String() string {
	return l.Render()
}
