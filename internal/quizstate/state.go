// Package quizstate is the durable quiz document: the live question, the asked
// history and the scheduler resume point of every area.
//
// Every mutation is applied to a copy, written to the store and only then made
// visible, so readers see either the old or the new document.
package quizstate

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// Store persists the encoded document. Load returns nil data when nothing was saved yet.
type Store interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// Document is the persisted layout.
type Document struct {
	Active   map[string]*types.QuestionInfo   `json:"active"`
	History  map[string][]string              `json:"history"`
	Schedule map[string]*types.ScheduleRecord `json:"schedule"`
}

func newDocument() *Document {
	return &Document{
		Active:   make(map[string]*types.QuestionInfo),
		History:  make(map[string][]string),
		Schedule: make(map[string]*types.ScheduleRecord),
	}
}

func (d *Document) clone() *Document {
	c := newDocument()
	for area, info := range d.Active {
		if info == nil {
			continue
		}
		cp := *info
		cp.Answers = slices.Clone(info.Answers)
		c.Active[area] = &cp
	}
	for area, ids := range d.History {
		c.History[area] = slices.Clone(ids)
	}
	for area, rec := range d.Schedule {
		if rec == nil {
			continue
		}
		cp := *rec
		c.Schedule[area] = &cp
	}
	return c
}

// State is safe for concurrent use.
type State struct {
	mu    sync.Mutex
	store Store
	doc   atomic.Pointer[Document]
}

// Open loads the document from store. A corrupt document is logged and replaced
// by an empty one instead of blocking startup.
func Open(store Store) (*State, error) {
	s := &State{store: store}

	data, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz state: %w", err)
	}

	doc := newDocument()
	if len(data) > 0 {
		if err := json.Unmarshal(data, doc); err != nil {
			logger.Error("Failed to decode quiz state, starting empty", zap.Error(err))
			doc = newDocument()
		}
		// json leaves maps nil when the key is missing
		if doc.Active == nil {
			doc.Active = make(map[string]*types.QuestionInfo)
		}
		if doc.History == nil {
			doc.History = make(map[string][]string)
		}
		if doc.Schedule == nil {
			doc.Schedule = make(map[string]*types.ScheduleRecord)
		}
	}
	s.doc.Store(doc)
	return s, nil
}

func (s *State) update(mutate func(doc *Document) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Load().clone()
	if !mutate(next) {
		return nil
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode quiz state: %w", err)
	}
	if err := s.store.Save(data); err != nil {
		logger.Error("Failed to persist quiz state", zap.Error(err))
		return fmt.Errorf("failed to persist quiz state: %w", err)
	}

	s.doc.Store(next)
	return nil
}

// Snapshot returns a deep copy of the current document.
func (s *State) Snapshot() *Document {
	return s.doc.Load().clone()
}

// Active returns a copy of the live question of an area, or nil.
func (s *State) Active(area string) *types.QuestionInfo {
	info := s.doc.Load().Active[area]
	if info == nil {
		return nil
	}
	cp := *info
	cp.Answers = slices.Clone(info.Answers)
	return &cp
}

// SetActive stores the live question of an area.
func (s *State) SetActive(area string, info types.QuestionInfo) error {
	return s.update(func(doc *Document) bool {
		cp := info
		cp.Answers = slices.Clone(info.Answers)
		doc.Active[area] = &cp
		return true
	})
}

// ClearActive removes the live question of an area and reports whether one existed.
func (s *State) ClearActive(area string) (bool, error) {
	existed := false
	err := s.update(func(doc *Document) bool {
		if _, ok := doc.Active[area]; !ok {
			return false
		}
		existed = true
		delete(doc.Active, area)
		return true
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// AskedIDs returns the asked question IDs of an area.
func (s *State) AskedIDs(area string) []string {
	return slices.Clone(s.doc.Load().History[area])
}

// MarkAsked appends a question ID to the area history. Known IDs are ignored.
func (s *State) MarkAsked(area, questionID string) error {
	return s.update(func(doc *Document) bool {
		if slices.Contains(doc.History[area], questionID) {
			return false
		}
		doc.History[area] = append(doc.History[area], questionID)
		return true
	})
}

// ResetHistory empties the asked history of an area.
func (s *State) ResetHistory(area string) error {
	return s.update(func(doc *Document) bool {
		if len(doc.History[area]) == 0 {
			return false
		}
		doc.History[area] = []string{}
		return true
	})
}

// Schedule returns the persisted resume point of an area, or nil.
func (s *State) Schedule(area string) *types.ScheduleRecord {
	rec := s.doc.Load().Schedule[area]
	if rec == nil {
		return nil
	}
	cp := *rec
	return &cp
}

// SetSchedule persists the resume point of an area.
func (s *State) SetSchedule(area string, rec types.ScheduleRecord) error {
	return s.update(func(doc *Document) bool {
		cp := rec
		doc.Schedule[area] = &cp
		return true
	})
}

// ClearSchedule removes the resume point of an area.
func (s *State) ClearSchedule(area string) error {
	return s.update(func(doc *Document) bool {
		if _, ok := doc.Schedule[area]; !ok {
			return false
		}
		delete(doc.Schedule, area)
		return true
	})
}
