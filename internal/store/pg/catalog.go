package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/catalog"
)

var _ catalog.Store = (*Store)(nil)

func (s *Store) ListFaculties(ctx context.Context) ([]auth.Faculty, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select id, name from faculties order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.Faculty
	for rows.Next() {
		var f auth.Faculty
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Groups -------------------------------------------------------------------

const groupColumns = `id, number, direction, profile, faculty_id`

func scanGroup(row rowScanner) (catalog.Group, error) {
	var (
		g       catalog.Group
		faculty sql.NullInt64
	)
	if err := row.Scan(&g.ID, &g.Number, &g.Direction, &g.Profile, &faculty); err != nil {
		return catalog.Group{}, err
	}
	g.FacultyID = idPtr(faculty)
	return g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]catalog.Group, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+groupColumns+` from groups order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) GetGroup(ctx context.Context, id int64) (catalog.Group, error) {
	if s.db == nil {
		return catalog.Group{}, errNoDB
	}
	g, err := scanGroup(s.db.QueryRowContext(ctx, `select `+groupColumns+` from groups where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Group{}, catalog.ErrNotFound
	}
	return g, err
}

func (s *Store) CreateGroup(ctx context.Context, g catalog.Group) (catalog.Group, error) {
	if s.db == nil {
		return catalog.Group{}, errNoDB
	}
	created, err := scanGroup(s.db.QueryRowContext(ctx, `
		insert into groups (number, direction, profile, faculty_id)
		values ($1, $2, $3, $4)
		returning `+groupColumns,
		g.Number, g.Direction, g.Profile, nullID(g.FacultyID)))
	if err != nil {
		return catalog.Group{}, mapCatalogError(err)
	}
	return created, nil
}

func (s *Store) UpdateGroup(ctx context.Context, g catalog.Group) (catalog.Group, error) {
	if s.db == nil {
		return catalog.Group{}, errNoDB
	}
	updated, err := scanGroup(s.db.QueryRowContext(ctx, `
		update groups set number = $1, direction = $2, profile = $3, faculty_id = $4
		where id = $5
		returning `+groupColumns,
		g.Number, g.Direction, g.Profile, nullID(g.FacultyID), g.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Group{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Group{}, mapCatalogError(err)
	}
	return updated, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from groups where id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, catalog.ErrNotFound)
}

// Subgroups ----------------------------------------------------------------

const subgroupSelect = `
	select sg.id, sg.number, sg.group_id, g.number, sg.size, g.faculty_id
	from subgroups sg
	join groups g on g.id = sg.group_id`

func scanSubgroup(row rowScanner) (catalog.Subgroup, error) {
	var (
		sg      catalog.Subgroup
		faculty sql.NullInt64
	)
	if err := row.Scan(&sg.ID, &sg.Number, &sg.GroupID, &sg.GroupNumber, &sg.Size, &faculty); err != nil {
		return catalog.Subgroup{}, err
	}
	sg.FacultyID = idPtr(faculty)
	return sg, nil
}

func (s *Store) ListSubgroups(ctx context.Context, groupID *int64) ([]catalog.Subgroup, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	query := subgroupSelect
	var args []any
	if groupID != nil {
		query += ` where sg.group_id = $1`
		args = append(args, *groupID)
	}
	rows, err := s.db.QueryContext(ctx, query+` order by sg.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Subgroup
	for rows.Next() {
		sg, err := scanSubgroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (s *Store) GetSubgroup(ctx context.Context, id int64) (catalog.Subgroup, error) {
	if s.db == nil {
		return catalog.Subgroup{}, errNoDB
	}
	sg, err := scanSubgroup(s.db.QueryRowContext(ctx, subgroupSelect+` where sg.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Subgroup{}, catalog.ErrNotFound
	}
	return sg, err
}

func (s *Store) CreateSubgroup(ctx context.Context, sg catalog.Subgroup) (catalog.Subgroup, error) {
	if s.db == nil {
		return catalog.Subgroup{}, errNoDB
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into subgroups (number, group_id, size)
		values ($1, $2, $3)
		returning id`, sg.Number, sg.GroupID, sg.Size).Scan(&id)
	if err != nil {
		return catalog.Subgroup{}, mapCatalogError(err)
	}
	return s.GetSubgroup(ctx, id)
}

func (s *Store) UpdateSubgroup(ctx context.Context, sg catalog.Subgroup) (catalog.Subgroup, error) {
	if s.db == nil {
		return catalog.Subgroup{}, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update subgroups set number = $1, group_id = $2, size = $3
		where id = $4`, sg.Number, sg.GroupID, sg.Size, sg.ID)
	if err != nil {
		return catalog.Subgroup{}, mapCatalogError(err)
	}
	if err := rowsAffected(res, catalog.ErrNotFound); err != nil {
		return catalog.Subgroup{}, err
	}
	return s.GetSubgroup(ctx, sg.ID)
}

func (s *Store) DeleteSubgroup(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from subgroups where id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, catalog.ErrNotFound)
}

// Teachers -----------------------------------------------------------------

const teacherColumns = `id, full_name, info, faculty_id`

func scanTeacher(row rowScanner) (catalog.Teacher, error) {
	var (
		t       catalog.Teacher
		faculty sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.FullName, &t.Info, &faculty); err != nil {
		return catalog.Teacher{}, err
	}
	t.FacultyID = idPtr(faculty)
	return t, nil
}

func (s *Store) ListTeachers(ctx context.Context) ([]catalog.Teacher, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+teacherColumns+` from teachers order by full_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTeacher(ctx context.Context, id int64) (catalog.Teacher, error) {
	if s.db == nil {
		return catalog.Teacher{}, errNoDB
	}
	t, err := scanTeacher(s.db.QueryRowContext(ctx, `select `+teacherColumns+` from teachers where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Teacher{}, catalog.ErrNotFound
	}
	return t, err
}

func (s *Store) CreateTeacher(ctx context.Context, t catalog.Teacher) (catalog.Teacher, error) {
	if s.db == nil {
		return catalog.Teacher{}, errNoDB
	}
	created, err := scanTeacher(s.db.QueryRowContext(ctx, `
		insert into teachers (full_name, info, faculty_id)
		values ($1, $2, $3)
		returning `+teacherColumns,
		t.FullName, t.Info, nullID(t.FacultyID)))
	if err != nil {
		return catalog.Teacher{}, mapCatalogError(err)
	}
	return created, nil
}

func (s *Store) UpdateTeacher(ctx context.Context, t catalog.Teacher) (catalog.Teacher, error) {
	if s.db == nil {
		return catalog.Teacher{}, errNoDB
	}
	updated, err := scanTeacher(s.db.QueryRowContext(ctx, `
		update teachers set full_name = $1, info = $2, faculty_id = $3
		where id = $4
		returning `+teacherColumns,
		t.FullName, t.Info, nullID(t.FacultyID), t.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Teacher{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Teacher{}, mapCatalogError(err)
	}
	return updated, nil
}

// DeleteTeacher relies on "on delete set null" to unassign the teacher's classes.
func (s *Store) DeleteTeacher(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from teachers where id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, catalog.ErrNotFound)
}

// Schedule -----------------------------------------------------------------

const scheduleSelect = `
	select s.id, s.subgroup_id, s.teacher_id, s.subject, s.day_of_week, s.start_time, s.end_time, s.room, g.faculty_id
	from schedules s
	join subgroups sg on sg.id = s.subgroup_id
	join groups g on g.id = sg.group_id`

func scanScheduleEntry(row rowScanner) (catalog.ScheduleEntry, error) {
	var (
		e       catalog.ScheduleEntry
		teacher sql.NullInt64
		faculty sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.SubgroupID, &teacher, &e.Subject, &e.DayOfWeek, &e.StartTime, &e.EndTime, &e.Room, &faculty); err != nil {
		return catalog.ScheduleEntry{}, err
	}
	e.TeacherID = idPtr(teacher)
	e.FacultyID = idPtr(faculty)
	return e, nil
}

func (s *Store) ListSchedule(ctx context.Context, filter catalog.ScheduleFilter) ([]catalog.ScheduleEntry, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var (
		where []string
		args  []any
	)
	if filter.SubgroupID != nil {
		args = append(args, *filter.SubgroupID)
		where = append(where, fmt.Sprintf("s.subgroup_id = $%d", len(args)))
	}
	if filter.TeacherID != nil {
		args = append(args, *filter.TeacherID)
		where = append(where, fmt.Sprintf("s.teacher_id = $%d", len(args)))
	}
	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		where = append(where, fmt.Sprintf("s.day_of_week = $%d", len(args)))
	}
	query := scheduleSelect
	if len(where) > 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	query += ` order by s.day_of_week, s.start_time, s.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetScheduleEntry(ctx context.Context, id int64) (catalog.ScheduleEntry, error) {
	if s.db == nil {
		return catalog.ScheduleEntry{}, errNoDB
	}
	e, err := scanScheduleEntry(s.db.QueryRowContext(ctx, scheduleSelect+` where s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ScheduleEntry{}, catalog.ErrNotFound
	}
	return e, err
}

func (s *Store) CreateScheduleEntry(ctx context.Context, e catalog.ScheduleEntry) (catalog.ScheduleEntry, error) {
	if s.db == nil {
		return catalog.ScheduleEntry{}, errNoDB
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into schedules (subgroup_id, teacher_id, subject, day_of_week, start_time, end_time, room)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id`,
		e.SubgroupID, nullID(e.TeacherID), e.Subject, e.DayOfWeek, e.StartTime, e.EndTime, e.Room).Scan(&id)
	if err != nil {
		return catalog.ScheduleEntry{}, mapCatalogError(err)
	}
	return s.GetScheduleEntry(ctx, id)
}

func (s *Store) UpdateScheduleEntry(ctx context.Context, e catalog.ScheduleEntry) (catalog.ScheduleEntry, error) {
	if s.db == nil {
		return catalog.ScheduleEntry{}, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update schedules
		set subgroup_id = $1, teacher_id = $2, subject = $3, day_of_week = $4, start_time = $5, end_time = $6, room = $7
		where id = $8`,
		e.SubgroupID, nullID(e.TeacherID), e.Subject, e.DayOfWeek, e.StartTime, e.EndTime, e.Room, e.ID)
	if err != nil {
		return catalog.ScheduleEntry{}, mapCatalogError(err)
	}
	if err := rowsAffected(res, catalog.ErrNotFound); err != nil {
		return catalog.ScheduleEntry{}, err
	}
	return s.GetScheduleEntry(ctx, e.ID)
}

func (s *Store) DeleteScheduleEntry(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from schedules where id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, catalog.ErrNotFound)
}

func mapCatalogError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return catalog.ErrConflict
		case pgErrForeignKeyViolation:
			return catalog.ErrNotFound
		}
	}
	return err
}
