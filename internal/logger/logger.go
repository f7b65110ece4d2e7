// Package logger keeps the most recent program log lines in memory and
// builds the node's structured zap logger.
package logger

import (
	"sync"
	"time"
)

// Message is one program or API log line.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	TxID      string    `json:"tx_id,omitempty"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // info, warning, error
}

// Logger is a fixed-capacity ring of messages. Once full, each new message
// overwrites the oldest.
type Logger struct {
	mu    sync.RWMutex
	ring  []Message
	next  int // slot the next message is written to
	count int
}

// New returns a logger holding at most capacity messages.
func New(capacity int) *Logger {
	if capacity <= 0 {
		capacity = 1
	}
	return &Logger{ring: make([]Message, capacity)}
}

// Log appends a message.
func (l *Logger) Log(level, txID, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring[l.next] = Message{Timestamp: time.Now(), TxID: txID, Text: text, Level: level}
	l.next = (l.next + 1) % len(l.ring)
	if l.count < len(l.ring) {
		l.count++
	}
}

// Program records the log lines one transaction produced, in order.
func (l *Logger) Program(txID string, lines []string) {
	for _, line := range lines {
		l.Log("info", txID, line)
	}
}

func (l *Logger) Info(text string) { l.Log("info", "", text) }

func (l *Logger) Warning(text string) { l.Log("warning", "", text) }

func (l *Logger) Error(txID, text string) { l.Log("error", txID, text) }

// Len returns the number of buffered messages.
func (l *Logger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// GetRecent returns up to n messages, newest first. A negative n returns
// everything buffered.
func (l *Logger) GetRecent(n int) []Message {
	return l.collect(n, func(Message) bool { return true })
}

// ForTx returns the buffered lines of one transaction in the order they
// were logged.
func (l *Logger) ForTx(txID string) []Message {
	msgs := l.collect(-1, func(m Message) bool { return m.TxID == txID })
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// GetAll returns all messages, newest first.
func (l *Logger) GetAll() []Message {
	return l.GetRecent(-1)
}

// collect walks the ring from newest to oldest.
func (l *Logger) collect(n int, keep func(Message) bool) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n < 0 || n > l.count {
		n = l.count
	}
	out := make([]Message, 0, n)
	for i := 1; i <= l.count && len(out) < n; i++ {
		m := l.ring[(l.next-i+len(l.ring))%len(l.ring)]
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
