package annotation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds the canonical annotation collection. It is safe for concurrent
// use: interaction handlers write while render loops read.
type Store struct {
	mu   sync.RWMutex
	data Collection
	// order records commit order per drawing ID for undo.
	order map[string]uint64
	seq   uint64

	now   func() time.Time
	newID func() string

	listenersMu sync.Mutex
	listeners   []func()
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the wall clock used for CreatedAt.
func WithClock(now func() time.Time) StoreOption { return func(s *Store) { s.now = now } }

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(fn func() string) StoreOption { return func(s *Store) { s.newID = fn } }

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe registers fn to be called after every mutation. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

func (s *Store) emit() {
	s.listenersMu.Lock()
	ls := make([]func(), len(s.listeners))
	copy(ls, s.listeners)
	s.listenersMu.Unlock()
	for _, fn := range ls {
		if fn != nil {
			fn()
		}
	}
}

func (s *Store) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = s.newID()
	}
	if created.IsZero() {
		*created = s.now()
	}
	if s.order == nil {
		s.order = map[string]uint64{}
	}
	s.seq++
	s.order[*id] = s.seq
}

// AddArrow commits a and returns it with ID and CreatedAt filled in.
func (s *Store) AddArrow(a Arrow) Arrow {
	s.mu.Lock()
	s.stamp(&a.ID, &a.CreatedAt)
	if a.Style == "" {
		a.Style = defaultArrowStyle
	}
	s.data.Arrows = append(s.data.Arrows, a)
	s.mu.Unlock()
	s.emit()
	return a
}

// AddStroke commits st and returns it with ID and CreatedAt filled in.
func (s *Store) AddStroke(st Stroke) Stroke {
	s.mu.Lock()
	s.stamp(&st.ID, &st.CreatedAt)
	st.Points = append(st.Points[:0:0], st.Points...)
	s.data.Strokes = append(s.data.Strokes, st)
	s.mu.Unlock()
	s.emit()
	return st
}

// AddAngle commits a and returns it with ID and CreatedAt filled in.
func (s *Store) AddAngle(a Angle) Angle {
	s.mu.Lock()
	s.stamp(&a.ID, &a.CreatedAt)
	s.data.Angles = append(s.data.Angles, a)
	s.mu.Unlock()
	s.emit()
	return a
}

// RemoveArrow deletes the arrow with id. Unknown ids are ignored.
func (s *Store) RemoveArrow(id string) {
	s.mu.Lock()
	n := len(s.data.Arrows)
	s.data.Arrows = removeByID(s.data.Arrows, func(a Arrow) string { return a.ID }, id)
	changed := n != len(s.data.Arrows)
	delete(s.order, id)
	s.mu.Unlock()
	if changed {
		s.emit()
	}
}

// RemoveStroke deletes the stroke with id. Unknown ids are ignored.
func (s *Store) RemoveStroke(id string) {
	s.mu.Lock()
	n := len(s.data.Strokes)
	s.data.Strokes = removeByID(s.data.Strokes, func(st Stroke) string { return st.ID }, id)
	changed := n != len(s.data.Strokes)
	delete(s.order, id)
	s.mu.Unlock()
	if changed {
		s.emit()
	}
}

// RemoveAngle deletes the angle with id. Unknown ids are ignored.
func (s *Store) RemoveAngle(id string) {
	s.mu.Lock()
	n := len(s.data.Angles)
	s.data.Angles = removeByID(s.data.Angles, func(a Angle) string { return a.ID }, id)
	changed := n != len(s.data.Angles)
	delete(s.order, id)
	s.mu.Unlock()
	if changed {
		s.emit()
	}
}

// Remove deletes the drawing r refers to.
func (s *Store) Remove(r Ref) {
	switch r.Kind {
	case KindArrow:
		s.RemoveArrow(r.ID)
	case KindStroke:
		s.RemoveStroke(r.ID)
	case KindAngle:
		s.RemoveAngle(r.ID)
	}
}

func removeByID[T any](items []T, idOf func(T) string, id string) []T {
	for i, it := range items {
		if idOf(it) == id {
			out := make([]T, 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...)
		}
	}
	return items
}

// SetReferenceLines replaces all reference lines. Positions are clamped.
func (s *Store) SetReferenceLines(lines []ReferenceLine) {
	cp := make([]ReferenceLine, len(lines))
	for i, l := range lines {
		cp[i] = NewReferenceLine(l.ID, l.Orientation, l.Position, l.Color, l.Thickness)
	}
	s.mu.Lock()
	s.data.ReferenceLines = cp
	s.mu.Unlock()
	s.emit()
}

// ReferenceLines returns a copy of the reference lines.
func (s *Store) ReferenceLines() []ReferenceLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ReferenceLine(nil), s.data.ReferenceLines...)
}

// VisibleAt returns every drawing whose timestamp is at or before ts, across
// both channels.
func (s *Store) VisibleAt(ts time.Duration) Visible {
	return s.filter(func(t time.Duration, _ Channel) bool { return t <= ts })
}

// VisibleFor is VisibleAt restricted to one channel.
func (s *Store) VisibleFor(ts time.Duration, ch Channel) Visible {
	return s.filter(func(t time.Duration, c Channel) bool { return t <= ts && c == ch })
}

// NearTime returns the drawings on ch whose timestamp lies within window of
// ts. The eraser uses it to pick candidates.
func (s *Store) NearTime(ts, window time.Duration, ch Channel) Visible {
	return s.filter(func(t time.Duration, c Channel) bool {
		d := t - ts
		if d < 0 {
			d = -d
		}
		return c == ch && d <= window
	})
}

func (s *Store) filter(keep func(time.Duration, Channel) bool) Visible {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v Visible
	for _, a := range s.data.Arrows {
		if keep(a.Timestamp, a.Channel) {
			v.Arrows = append(v.Arrows, a)
		}
	}
	for _, st := range s.data.Strokes {
		if keep(st.Timestamp, st.Channel) {
			v.Strokes = append(v.Strokes, st)
		}
	}
	for _, a := range s.data.Angles {
		if keep(a.Timestamp, a.Channel) {
			v.Angles = append(v.Angles, a)
		}
	}
	return v
}

// Snapshot returns a deep enough copy of the collection for rendering.
func (s *Store) Snapshot() Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Collection{
		Arrows:         append([]Arrow(nil), s.data.Arrows...),
		Strokes:        append([]Stroke(nil), s.data.Strokes...),
		Angles:         append([]Angle(nil), s.data.Angles...),
		ReferenceLines: append([]ReferenceLine(nil), s.data.ReferenceLines...),
	}
}

// MostRecent returns the drawing created last, regardless of its timestamp.
func (s *Store) MostRecent() Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best Ref
	consider := func(k Kind, id string, at time.Time) {
		newer := at.After(best.CreatedAt) || (at.Equal(best.CreatedAt) && s.order[id] > s.order[best.ID])
		if !best.Valid() || newer {
			best = Ref{Kind: k, ID: id, CreatedAt: at}
		}
	}
	for _, a := range s.data.Arrows {
		consider(KindArrow, a.ID, a.CreatedAt)
	}
	for _, st := range s.data.Strokes {
		consider(KindStroke, st.ID, st.CreatedAt)
	}
	for _, a := range s.data.Angles {
		consider(KindAngle, a.ID, a.CreatedAt)
	}
	return best
}

// RemoveMostRecent undoes the last committed drawing. It returns the removed
// reference, or an invalid Ref when the store has no drawings.
func (s *Store) RemoveMostRecent() Ref {
	r := s.MostRecent()
	if r.Valid() {
		s.Remove(r)
	}
	return r
}

// ClearDrawings removes arrows, strokes and angles but keeps reference lines.
func (s *Store) ClearDrawings() {
	s.mu.Lock()
	s.data.Arrows = nil
	s.data.Strokes = nil
	s.data.Angles = nil
	s.order = nil
	s.mu.Unlock()
	s.emit()
}

// ClearAll empties the store.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.data = Collection{}
	s.order = nil
	s.mu.Unlock()
	s.emit()
}
