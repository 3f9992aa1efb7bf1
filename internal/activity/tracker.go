// Package activity counts chat messages per channel since the last quiz question
// closed and releases questions that were held back for a quiet channel.
package activity

import (
	"sync"
	"time"
)

// Pending is a question held back until its channel reaches Threshold messages.
type Pending struct {
	Area      string
	EndTime   time.Time
	Threshold int
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	counts      map[string]int
	initialized map[string]bool
	awaiting    map[string]Pending
}

func NewTracker() *Tracker {
	return &Tracker{
		counts:      make(map[string]int),
		initialized: make(map[string]bool),
		awaiting:    make(map[string]Pending),
	}
}

// Register counts a message. Bot messages are ignored. When a pending entry
// exists for the channel and the count reached its threshold, the entry is
// removed and returned so the caller can post right away.
func (t *Tracker) Register(channelID string, fromBot bool) (Pending, bool) {
	if fromBot || channelID == "" {
		return Pending{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[channelID]++

	pending, ok := t.awaiting[channelID]
	if !ok || t.counts[channelID] < pending.Threshold {
		return Pending{}, false
	}
	delete(t.awaiting, channelID)
	return pending, true
}

func (t *Tracker) Get(channelID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[channelID]
}

// Set overwrites the counter, used by the startup back-fill.
func (t *Tracker) Set(channelID string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[channelID] = count
}

func (t *Tracker) Reset(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[channelID] = 0
}

// IsInitialized reports whether the channel went through back-fill or a close
// since the process started.
func (t *Tracker) IsInitialized(channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialized[channelID]
}

func (t *Tracker) MarkInitialized(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized[channelID] = true
}

// SetAwaiting holds a question back until the channel reaches threshold messages.
func (t *Tracker) SetAwaiting(channelID, area string, end time.Time, threshold int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.awaiting[channelID] = Pending{Area: area, EndTime: end, Threshold: threshold}
}

func (t *Tracker) ClearAwaiting(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.awaiting, channelID)
}

// Awaiting returns the pending entry of a channel.
func (t *Tracker) Awaiting(channelID string) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.awaiting[channelID]
	return p, ok
}
