// Copyright 2020 duyanghao
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
	log "github.com/sirupsen/logrus"
)

// Entry is one recorded log line
type Entry struct {
	Time    time.Time
	Level   log.Level
	Message string
}

// History is a bounded FIFO of log entries; the oldest entry is evicted
// once limitSize is exceeded.
type History struct {
	sync.RWMutex
	limitSize int
	entries   deque.Deque[Entry]
}

// NewHistory constructs a History of the given size
func NewHistory(size int) (*History, error) {
	if size <= 0 {
		return nil, errors.New("Must provide a positive size")
	}
	return &History{limitSize: size}, nil
}

// Add appends e. Returns true if an eviction occurred.
func (h *History) Add(e Entry) (evicted bool) {
	h.Lock()
	defer h.Unlock()
	h.entries.PushBack(e)
	for h.entries.Len() > h.limitSize {
		h.entries.PopFront()
		evicted = true
	}
	return evicted
}

// Len returns the number of retained entries
func (h *History) Len() int {
	h.RLock()
	defer h.RUnlock()
	return h.entries.Len()
}

// Tail returns up to n most recent entries, oldest first.
// n <= 0 returns every retained entry.
func (h *History) Tail(n int) []Entry {
	h.RLock()
	defer h.RUnlock()
	total := h.entries.Len()
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Entry, 0, n)
	for i := total - n; i < total; i++ {
		out = append(out, h.entries.At(i))
	}
	return out
}

// Hook records every logrus entry into a History
type Hook struct {
	history *History
}

func NewHook(h *History) *Hook {
	return &Hook{history: h}
}

func (hk *Hook) Levels() []log.Level {
	return log.AllLevels
}

func (hk *Hook) Fire(entry *log.Entry) error {
	hk.history.Add(Entry{
		Time:    entry.Time,
		Level:   entry.Level,
		Message: entry.Message,
	})
	return nil
}
