/*
File Name:  Log.go

Subscribable logging, adapted from the teacher's Filter.go multiWriter: a
fan-out io.Writer that the standard logger writes through, to which any
number of observers (a CLI console, a test harness) can subscribe and
unsubscribe at runtime.
*/

package core

import (
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
)

type multiWriter struct {
	writers map[uuid.UUID]io.Writer
	sync.Mutex
}

func newMultiWriter() *multiWriter {
	return &multiWriter{writers: make(map[uuid.UUID]io.Writer)}
}

// Subscribe adds a new writer to the fan-out set.
func (m *multiWriter) Subscribe(writer io.Writer) (id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	id = uuid.New()
	m.writers[id] = writer
	return id
}

// Unsubscribe removes a previously subscribed writer.
func (m *multiWriter) Unsubscribe(id uuid.UUID) {
	m.Lock()
	defer m.Unlock()
	delete(m.writers, id)
}

func (m *multiWriter) Write(p []byte) (n int, err error) {
	m.Lock()
	defer m.Unlock()

	for _, w := range m.writers {
		w.Write(p)
	}
	return len(p), nil
}

// Log is the Backend's subscribable logger; all diagnostic output flows
// through here instead of the global log package directly, so a CLI or
// test harness can tap it without redirecting os.Stdout.
type Log struct {
	writer *multiWriter
	logger *log.Logger
}

func newLog() *Log {
	w := newMultiWriter()
	return &Log{writer: w, logger: log.New(w, "", log.LstdFlags)}
}

// Subscribe attaches an additional writer (e.g. the CLI console) to the log fan-out.
func (l *Log) Subscribe(w io.Writer) uuid.UUID {
	return l.writer.Subscribe(w)
}

// Unsubscribe detaches a previously subscribed writer.
func (l *Log) Unsubscribe(id uuid.UUID) {
	l.writer.Unsubscribe(id)
}

// Printf logs a formatted message tagged with its origin function name.
func (l *Log) Printf(function, format string, v ...interface{}) {
	l.logger.Printf("["+function+"] "+format, v...)
}
