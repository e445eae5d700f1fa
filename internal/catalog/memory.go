package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"schedulehub.org/internal/auth"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	seq       int64
	faculties map[int64]auth.Faculty
	groups    map[int64]Group
	subgroups map[int64]Subgroup
	teachers  map[int64]Teacher
	schedule  map[int64]ScheduleEntry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(faculties ...auth.Faculty) *MemoryStore {
	s := &MemoryStore{
		faculties: make(map[int64]auth.Faculty),
		groups:    make(map[int64]Group),
		subgroups: make(map[int64]Subgroup),
		teachers:  make(map[int64]Teacher),
		schedule:  make(map[int64]ScheduleEntry),
	}
	for _, f := range faculties {
		s.faculties[f.ID] = f
	}
	return s
}

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) ListFaculties(ctx context.Context) ([]auth.Faculty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Faculty, 0, len(s.faculties))
	for _, f := range s.faculties {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListGroups(ctx context.Context) ([]Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, id int64) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (s *MemoryStore) CreateGroup(ctx context.Context, g Group) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGroupLocked(g); err != nil {
		return Group{}, err
	}
	g.ID = s.nextID()
	s.groups[g.ID] = g
	return g, nil
}

func (s *MemoryStore) UpdateGroup(ctx context.Context, g Group) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		return Group{}, ErrNotFound
	}
	if err := s.checkGroupLocked(g); err != nil {
		return Group{}, err
	}
	s.groups[g.ID] = g
	return g, nil
}

func (s *MemoryStore) DeleteGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return ErrNotFound
	}
	delete(s.groups, id)
	for sid, sg := range s.subgroups {
		if sg.GroupID == id {
			s.deleteSubgroupLocked(sid)
		}
	}
	return nil
}

func (s *MemoryStore) checkGroupLocked(g Group) error {
	if err := s.checkFacultyLocked(g.FacultyID); err != nil {
		return err
	}
	for id, other := range s.groups {
		if id != g.ID && strings.EqualFold(other.Number, g.Number) {
			return ErrConflict
		}
	}
	return nil
}

func (s *MemoryStore) ListSubgroups(ctx context.Context, groupID *int64) ([]Subgroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subgroup, 0, len(s.subgroups))
	for _, sg := range s.subgroups {
		if groupID != nil && sg.GroupID != *groupID {
			continue
		}
		out = append(out, s.resolveSubgroupLocked(sg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetSubgroup(ctx context.Context, id int64) (Subgroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sg, ok := s.subgroups[id]
	if !ok {
		return Subgroup{}, ErrNotFound
	}
	return s.resolveSubgroupLocked(sg), nil
}

func (s *MemoryStore) CreateSubgroup(ctx context.Context, sg Subgroup) (Subgroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[sg.GroupID]; !ok {
		return Subgroup{}, ErrNotFound
	}
	sg.ID = s.nextID()
	sg.FacultyID = nil
	s.subgroups[sg.ID] = sg
	return s.resolveSubgroupLocked(sg), nil
}

func (s *MemoryStore) UpdateSubgroup(ctx context.Context, sg Subgroup) (Subgroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subgroups[sg.ID]; !ok {
		return Subgroup{}, ErrNotFound
	}
	if _, ok := s.groups[sg.GroupID]; !ok {
		return Subgroup{}, ErrNotFound
	}
	sg.FacultyID = nil
	s.subgroups[sg.ID] = sg
	return s.resolveSubgroupLocked(sg), nil
}

func (s *MemoryStore) DeleteSubgroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subgroups[id]; !ok {
		return ErrNotFound
	}
	s.deleteSubgroupLocked(id)
	return nil
}

func (s *MemoryStore) deleteSubgroupLocked(id int64) {
	delete(s.subgroups, id)
	for eid, e := range s.schedule {
		if e.SubgroupID == id {
			delete(s.schedule, eid)
		}
	}
}

func (s *MemoryStore) resolveSubgroupLocked(sg Subgroup) Subgroup {
	sg.FacultyID = nil
	sg.GroupNumber = ""
	if g, ok := s.groups[sg.GroupID]; ok {
		sg.GroupNumber = g.Number
		sg.FacultyID = g.FacultyID
	}
	return sg
}

// AddTeacher stores a teacher record without access checks. Fixtures only.
func (s *MemoryStore) AddTeacher(t Teacher) Teacher {
	created, _ := s.CreateTeacher(context.Background(), t)
	return created
}

// AddScheduleEntry stores a schedule entry for an existing subgroup without
// access checks.
func (s *MemoryStore) AddScheduleEntry(e ScheduleEntry) (ScheduleEntry, error) {
	return s.CreateScheduleEntry(context.Background(), e)
}

func (s *MemoryStore) GetTeacher(ctx context.Context, id int64) (Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teachers[id]
	if !ok {
		return Teacher{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) CreateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFacultyLocked(t.FacultyID); err != nil {
		return Teacher{}, err
	}
	t.ID = s.nextID()
	s.teachers[t.ID] = t
	return t, nil
}

func (s *MemoryStore) UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[t.ID]; !ok {
		return Teacher{}, ErrNotFound
	}
	if err := s.checkFacultyLocked(t.FacultyID); err != nil {
		return Teacher{}, err
	}
	s.teachers[t.ID] = t
	return t, nil
}

// DeleteTeacher removes the teacher and unassigns their classes.
func (s *MemoryStore) DeleteTeacher(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[id]; !ok {
		return ErrNotFound
	}
	delete(s.teachers, id)
	for eid, e := range s.schedule {
		if e.TeacherID != nil && *e.TeacherID == id {
			e.TeacherID = nil
			s.schedule[eid] = e
		}
	}
	return nil
}

func (s *MemoryStore) GetScheduleEntry(ctx context.Context, id int64) (ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.schedule[id]
	if !ok {
		return ScheduleEntry{}, ErrNotFound
	}
	return s.resolveEntryLocked(e), nil
}

func (s *MemoryStore) CreateScheduleEntry(ctx context.Context, e ScheduleEntry) (ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEntryRefsLocked(e); err != nil {
		return ScheduleEntry{}, err
	}
	e.ID = s.nextID()
	e.FacultyID = nil
	s.schedule[e.ID] = e
	return s.resolveEntryLocked(e), nil
}

func (s *MemoryStore) UpdateScheduleEntry(ctx context.Context, e ScheduleEntry) (ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedule[e.ID]; !ok {
		return ScheduleEntry{}, ErrNotFound
	}
	if err := s.checkEntryRefsLocked(e); err != nil {
		return ScheduleEntry{}, err
	}
	e.FacultyID = nil
	s.schedule[e.ID] = e
	return s.resolveEntryLocked(e), nil
}

func (s *MemoryStore) DeleteScheduleEntry(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedule[id]; !ok {
		return ErrNotFound
	}
	delete(s.schedule, id)
	return nil
}

func (s *MemoryStore) checkFacultyLocked(facultyID *int64) error {
	if facultyID == nil {
		return nil
	}
	if _, ok := s.faculties[*facultyID]; !ok {
		return ErrInvalidInput
	}
	return nil
}

func (s *MemoryStore) checkEntryRefsLocked(e ScheduleEntry) error {
	if _, ok := s.subgroups[e.SubgroupID]; !ok {
		return ErrNotFound
	}
	if e.TeacherID != nil {
		if _, ok := s.teachers[*e.TeacherID]; !ok {
			return ErrNotFound
		}
	}
	return nil
}

func (s *MemoryStore) ListTeachers(ctx context.Context) ([]Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Teacher, 0, len(s.teachers))
	for _, t := range s.teachers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListSchedule(ctx context.Context, filter ScheduleFilter) ([]ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ScheduleEntry, 0, len(s.schedule))
	for _, e := range s.schedule {
		if filter.SubgroupID != nil && e.SubgroupID != *filter.SubgroupID {
			continue
		}
		if filter.TeacherID != nil && (e.TeacherID == nil || *e.TeacherID != *filter.TeacherID) {
			continue
		}
		if filter.DayOfWeek != nil && e.DayOfWeek != *filter.DayOfWeek {
			continue
		}
		out = append(out, s.resolveEntryLocked(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) resolveEntryLocked(e ScheduleEntry) ScheduleEntry {
	e.FacultyID = nil
	if sg, ok := s.subgroups[e.SubgroupID]; ok {
		e.FacultyID = s.resolveSubgroupLocked(sg).FacultyID
	}
	return e
}
