package catalog

import (
	"context"

	"schedulehub.org/internal/auth"
)

// Store is the record access used by Service. Implementations resolve the
// transitive FacultyID of subgroups and schedule entries and return
// ErrNotFound for missing rows.
type Store interface {
	ListFaculties(ctx context.Context) ([]auth.Faculty, error)

	ListGroups(ctx context.Context) ([]Group, error)
	GetGroup(ctx context.Context, id int64) (Group, error)
	CreateGroup(ctx context.Context, g Group) (Group, error)
	UpdateGroup(ctx context.Context, g Group) (Group, error)
	DeleteGroup(ctx context.Context, id int64) error

	ListSubgroups(ctx context.Context, groupID *int64) ([]Subgroup, error)
	GetSubgroup(ctx context.Context, id int64) (Subgroup, error)
	CreateSubgroup(ctx context.Context, s Subgroup) (Subgroup, error)
	UpdateSubgroup(ctx context.Context, s Subgroup) (Subgroup, error)
	DeleteSubgroup(ctx context.Context, id int64) error

	ListTeachers(ctx context.Context) ([]Teacher, error)
	GetTeacher(ctx context.Context, id int64) (Teacher, error)
	CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
	UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
	DeleteTeacher(ctx context.Context, id int64) error

	ListSchedule(ctx context.Context, filter ScheduleFilter) ([]ScheduleEntry, error)
	GetScheduleEntry(ctx context.Context, id int64) (ScheduleEntry, error)
	CreateScheduleEntry(ctx context.Context, e ScheduleEntry) (ScheduleEntry, error)
	UpdateScheduleEntry(ctx context.Context, e ScheduleEntry) (ScheduleEntry, error)
	DeleteScheduleEntry(ctx context.Context, id int64) error
}
