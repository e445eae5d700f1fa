package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schedulehub.org/internal/audit"
	"schedulehub.org/internal/auth"
)

// Service exposes faculty-scoped catalog records. Reads are public and are
// narrowed to the caller's faculty for admins; writes require an admin with
// access to every faculty the change touches.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: store}, nil
}

func (s *Service) ListFaculties(ctx context.Context) ([]auth.Faculty, error) {
	return s.store.ListFaculties(ctx)
}

func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	return auth.FilterByAccess(auth.AccessFor(ctx), groups), nil
}

func (s *Service) CreateGroup(ctx context.Context, g Group) (Group, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Group{}, err
	}
	if err := g.normalize(); err != nil {
		return Group{}, err
	}
	if err := access.CheckAccessToResource(g); err != nil {
		return Group{}, err
	}
	g.ID = 0
	created, err := s.store.CreateGroup(ctx, g)
	if err != nil {
		return Group{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.group.created", map[string]any{"group_id": created.ID, "faculty_id": created.FacultyID})
	return created, nil
}

// UpdateGroup requires access both to the group's current faculty and to the
// faculty it is being moved to.
func (s *Service) UpdateGroup(ctx context.Context, id int64, g Group) (Group, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Group{}, err
	}
	if err := g.normalize(); err != nil {
		return Group{}, err
	}
	current, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return Group{}, err
	}
	if err := access.CheckAccessToResource(g); err != nil {
		return Group{}, err
	}
	g.ID = id
	updated, err := s.store.UpdateGroup(ctx, g)
	if err != nil {
		return Group{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.group.updated", map[string]any{"group_id": id, "faculty_id": updated.FacultyID})
	return updated, nil
}

func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return err
	}
	current, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "catalog.group.deleted", map[string]any{"group_id": id})
	return nil
}

// ListSubgroups lists all subgroups, or those of one group when groupID is set.
func (s *Service) ListSubgroups(ctx context.Context, groupID *int64) ([]Subgroup, error) {
	subgroups, err := s.store.ListSubgroups(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return auth.FilterByAccess(auth.AccessFor(ctx), subgroups), nil
}

// ListSubgroupsByGroupNumber resolves a group by its number (case-insensitive)
// and lists its subgroups.
func (s *Service) ListSubgroupsByGroupNumber(ctx context.Context, number string) ([]Subgroup, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("%w: group number is required", ErrInvalidInput)
	}
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if strings.EqualFold(g.Number, number) {
			return s.ListSubgroups(ctx, &g.ID)
		}
	}
	return nil, ErrNotFound
}

func (s *Service) CreateSubgroup(ctx context.Context, sg Subgroup) (Subgroup, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Subgroup{}, err
	}
	if err := sg.normalize(); err != nil {
		return Subgroup{}, err
	}
	if err := s.checkGroupAccess(ctx, access, sg.GroupID); err != nil {
		return Subgroup{}, err
	}
	sg.ID = 0
	created, err := s.store.CreateSubgroup(ctx, sg)
	if err != nil {
		return Subgroup{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.subgroup.created", map[string]any{"subgroup_id": created.ID, "group_id": created.GroupID})
	return created, nil
}

func (s *Service) UpdateSubgroup(ctx context.Context, id int64, sg Subgroup) (Subgroup, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Subgroup{}, err
	}
	if err := sg.normalize(); err != nil {
		return Subgroup{}, err
	}
	current, err := s.store.GetSubgroup(ctx, id)
	if err != nil {
		return Subgroup{}, err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return Subgroup{}, err
	}
	if err := s.checkGroupAccess(ctx, access, sg.GroupID); err != nil {
		return Subgroup{}, err
	}
	sg.ID = id
	updated, err := s.store.UpdateSubgroup(ctx, sg)
	if err != nil {
		return Subgroup{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.subgroup.updated", map[string]any{"subgroup_id": id, "group_id": updated.GroupID})
	return updated, nil
}

func (s *Service) DeleteSubgroup(ctx context.Context, id int64) error {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return err
	}
	current, err := s.store.GetSubgroup(ctx, id)
	if err != nil {
		return err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return err
	}
	if err := s.store.DeleteSubgroup(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "catalog.subgroup.deleted", map[string]any{"subgroup_id": id})
	return nil
}

func (s *Service) ListTeachers(ctx context.Context) ([]Teacher, error) {
	teachers, err := s.store.ListTeachers(ctx)
	if err != nil {
		return nil, err
	}
	return auth.FilterByAccess(auth.AccessFor(ctx), teachers), nil
}

func (s *Service) ListSchedule(ctx context.Context, filter ScheduleFilter) ([]ScheduleEntry, error) {
	entries, err := s.store.ListSchedule(ctx, filter)
	if err != nil {
		return nil, err
	}
	return auth.FilterByAccess(auth.AccessFor(ctx), entries), nil
}

func (s *Service) CreateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Teacher{}, err
	}
	if err := t.normalize(); err != nil {
		return Teacher{}, err
	}
	if err := access.CheckAccessToResource(t); err != nil {
		return Teacher{}, err
	}
	t.ID = 0
	created, err := s.store.CreateTeacher(ctx, t)
	if err != nil {
		return Teacher{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.teacher.created", map[string]any{"teacher_id": created.ID, "faculty_id": created.FacultyID})
	return created, nil
}

// UpdateTeacher checks the teacher's current faculty and the one it moves to.
func (s *Service) UpdateTeacher(ctx context.Context, id int64, t Teacher) (Teacher, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Teacher{}, err
	}
	if err := t.normalize(); err != nil {
		return Teacher{}, err
	}
	current, err := s.store.GetTeacher(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return Teacher{}, err
	}
	if err := access.CheckAccessToResource(t); err != nil {
		return Teacher{}, err
	}
	t.ID = id
	updated, err := s.store.UpdateTeacher(ctx, t)
	if err != nil {
		return Teacher{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.teacher.updated", map[string]any{"teacher_id": id, "faculty_id": updated.FacultyID})
	return updated, nil
}

func (s *Service) DeleteTeacher(ctx context.Context, id int64) error {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return err
	}
	current, err := s.store.GetTeacher(ctx, id)
	if err != nil {
		return err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return err
	}
	if err := s.store.DeleteTeacher(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "catalog.teacher.deleted", map[string]any{"teacher_id": id})
	return nil
}

// CreateScheduleEntry checks access to the faculty of the target subgroup's group.
func (s *Service) CreateScheduleEntry(ctx context.Context, e ScheduleEntry) (ScheduleEntry, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return ScheduleEntry{}, err
	}
	if err := e.normalize(); err != nil {
		return ScheduleEntry{}, err
	}
	if err := s.checkEntryTargets(ctx, access, e); err != nil {
		return ScheduleEntry{}, err
	}
	e.ID = 0
	created, err := s.store.CreateScheduleEntry(ctx, e)
	if err != nil {
		return ScheduleEntry{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.schedule.created", map[string]any{"entry_id": created.ID, "subgroup_id": created.SubgroupID})
	return created, nil
}

// UpdateScheduleEntry checks the entry's current faculty and, when it moves
// to another subgroup, that subgroup's faculty.
func (s *Service) UpdateScheduleEntry(ctx context.Context, id int64, e ScheduleEntry) (ScheduleEntry, error) {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return ScheduleEntry{}, err
	}
	if err := e.normalize(); err != nil {
		return ScheduleEntry{}, err
	}
	current, err := s.store.GetScheduleEntry(ctx, id)
	if err != nil {
		return ScheduleEntry{}, err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return ScheduleEntry{}, err
	}
	if err := s.checkEntryTargets(ctx, access, e); err != nil {
		return ScheduleEntry{}, err
	}
	e.ID = id
	updated, err := s.store.UpdateScheduleEntry(ctx, e)
	if err != nil {
		return ScheduleEntry{}, err
	}
	_ = audit.LogEvent(ctx, "catalog.schedule.updated", map[string]any{"entry_id": id, "subgroup_id": updated.SubgroupID})
	return updated, nil
}

func (s *Service) DeleteScheduleEntry(ctx context.Context, id int64) error {
	access := auth.AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return err
	}
	current, err := s.store.GetScheduleEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := access.CheckAccessToResource(current); err != nil {
		return err
	}
	if err := s.store.DeleteScheduleEntry(ctx, id); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "catalog.schedule.deleted", map[string]any{"entry_id": id})
	return nil
}

// checkEntryTargets resolves the subgroup (and its group's faculty) an entry
// points at. The teacher only has to exist: classes may be taught by
// lecturers of another faculty.
func (s *Service) checkEntryTargets(ctx context.Context, access auth.Access, e ScheduleEntry) error {
	subgroup, err := s.store.GetSubgroup(ctx, e.SubgroupID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown subgroup %d", ErrInvalidInput, e.SubgroupID)
		}
		return err
	}
	if err := access.CheckAccessToResource(subgroup); err != nil {
		return err
	}
	if e.TeacherID != nil {
		if _, err := s.store.GetTeacher(ctx, *e.TeacherID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: unknown teacher %d", ErrInvalidInput, *e.TeacherID)
			}
			return err
		}
	}
	return nil
}

func (s *Service) checkGroupAccess(ctx context.Context, access auth.Access, groupID int64) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown group %d", ErrInvalidInput, groupID)
		}
		return err
	}
	return access.CheckAccessToResource(group)
}
