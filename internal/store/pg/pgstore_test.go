package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/catalog"
)

var userCols = []string{"id", "email", "password_hash", "full_name", "role", "faculty_id", "created_at", "updated_at"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestFindByEmail(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select id, email, password_hash.*from users where email = \\$1").
		WithArgs("admin@univ.edu").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(4), "admin@univ.edu", "hash", "Ada Admin", "ADMIN", int64(3), now, now))
	mock.ExpectQuery("select id, email, password_hash.*from users where email = \\$1").
		WithArgs("root@univ.edu").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(1), "root@univ.edu", "hash", "Root", "SUPER_ADMIN", nil, now, now))
	mock.ExpectQuery("select id, email, password_hash.*from users where email = \\$1").
		WithArgs("ghost@univ.edu").
		WillReturnRows(sqlmock.NewRows(userCols))

	ctx := context.Background()
	admin, err := store.FindByEmail(ctx, "admin@univ.edu")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if admin.Role != auth.RoleAdmin || admin.FacultyID == nil || *admin.FacultyID != 3 {
		t.Fatalf("unexpected identity %+v", admin)
	}
	root, err := store.FindByEmail(ctx, "root@univ.edu")
	if err != nil {
		t.Fatal(err)
	}
	if root.FacultyID != nil {
		t.Fatalf("NULL faculty must map to nil, got %v", *root.FacultyID)
	}
	if _, err := store.FindByEmail(ctx, "ghost@univ.edu"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateIdentityMapsUniqueViolation(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	faculty := int64(2)
	mock.ExpectQuery("insert into users").
		WithArgs("new@univ.edu", "hash", "New", "STUDENT", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(9), "new@univ.edu", "hash", "New", "STUDENT", int64(2), now, now))
	mock.ExpectQuery("insert into users").
		WithArgs("new@univ.edu", "hash", "New", "STUDENT", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	ctx := context.Background()
	in := auth.Identity{Email: "new@univ.edu", PasswordHash: "hash", FullName: "New", Role: auth.RoleStudent, FacultyID: &faculty}
	created, err := store.CreateIdentity(ctx, in)
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if created.ID != 9 {
		t.Fatalf("unexpected id %d", created.ID)
	}
	if _, err := store.CreateIdentity(ctx, in); !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteIdentityNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("delete from users where id = \\$1").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.DeleteIdentity(context.Background(), 5); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListIdentitiesByFaculty(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from users where faculty_id = \\$1 order by id").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(4), "a@univ.edu", "h", "A", "ADMIN", int64(3), now, now).
			AddRow(int64(5), "b@univ.edu", "h", "B", "STUDENT", int64(3), now, now))
	list, err := store.ListIdentitiesByFaculty(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListIdentitiesByFaculty: %v", err)
	}
	if len(list) != 2 || list[1].Role != auth.RoleStudent {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSubgroupResolvesFaculty(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from subgroups sg\\s+join groups g on g.id = sg.group_id where sg.id = \\$1").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "group_id", "number", "size", "faculty_id"}).
			AddRow(int64(11), "2", int64(4), "PH-101", 14, int64(3)))
	sg, err := store.GetSubgroup(context.Background(), 11)
	if err != nil {
		t.Fatalf("GetSubgroup: %v", err)
	}
	if id, ok := sg.OwningFaculty(); !ok || id != 3 || sg.GroupNumber != "PH-101" {
		t.Fatalf("unexpected subgroup %+v", sg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateGroupMapsErrors(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into groups").
		WithArgs("PH-101", "", "", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectQuery("insert into groups").
		WithArgs("PH-102", "", "", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	ctx := context.Background()
	faculty := int64(3)
	if _, err := store.CreateGroup(ctx, catalog.Group{Number: "PH-101", FacultyID: &faculty}); !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := store.CreateGroup(ctx, catalog.Group{Number: "PH-102", FacultyID: &faculty}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListScheduleBuildsFilter(t *testing.T) {
	store, mock := newMock(t)
	subgroup := int64(11)
	day := 2
	mock.ExpectQuery("from schedules s.*where s.subgroup_id = \\$1 and s.day_of_week = \\$2 order by").
		WithArgs(int64(11), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subgroup_id", "teacher_id", "subject", "day_of_week", "start_time", "end_time", "room", "faculty_id"}).
			AddRow(int64(1), int64(11), nil, "Optics", 2, "09:00", "10:30", "A-12", int64(3)))
	entries, err := store.ListSchedule(context.Background(), catalog.ScheduleFilter{SubgroupID: &subgroup, DayOfWeek: &day})
	if err != nil {
		t.Fatalf("ListSchedule: %v", err)
	}
	if len(entries) != 1 || entries[0].TeacherID != nil || *entries[0].FacultyID != 3 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCheckPings(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("down"))
	if err := New(db).Check(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTeacherWrites(t *testing.T) {
	store, mock := newMock(t)
	cols := []string{"id", "full_name", "info", "faculty_id"}
	mock.ExpectQuery("insert into teachers \\(full_name, info, faculty_id\\)").
		WithArgs("Ada Lovelace", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), "Ada Lovelace", "", int64(3)))
	mock.ExpectQuery("update teachers set full_name = \\$1, info = \\$2, faculty_id = \\$3 where id = \\$4").
		WithArgs("Ada", "", sqlmock.AnyArg(), int64(99)).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectExec("delete from teachers where id = \\$1").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from teachers where id = \\$1").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	faculty := int64(3)
	created, err := store.CreateTeacher(ctx, catalog.Teacher{FullName: "Ada Lovelace", FacultyID: &faculty})
	if err != nil || created.ID != 5 || *created.FacultyID != 3 {
		t.Fatalf("CreateTeacher: %+v %v", created, err)
	}
	if _, err := store.UpdateTeacher(ctx, catalog.Teacher{ID: 99, FullName: "Ada", FacultyID: &faculty}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteTeacher(ctx, 5); err != nil {
		t.Fatalf("DeleteTeacher: %v", err)
	}
	if err := store.DeleteTeacher(ctx, 5); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateScheduleEntryResolvesFaculty(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into schedules").
		WithArgs(int64(11), sqlmock.AnyArg(), "Optics", 2, "09:00", "10:30", "A-12").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(40)))
	mock.ExpectQuery("from schedules s.*where s.id = \\$1").
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subgroup_id", "teacher_id", "subject", "day_of_week", "start_time", "end_time", "room", "faculty_id"}).
			AddRow(int64(40), int64(11), int64(5), "Optics", 2, "09:00", "10:30", "A-12", int64(3)))
	mock.ExpectQuery("insert into schedules").
		WithArgs(int64(12), sqlmock.AnyArg(), "Optics", 2, "09:00", "10:30", "").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	ctx := context.Background()
	teacher := int64(5)
	entry, err := store.CreateScheduleEntry(ctx, catalog.ScheduleEntry{SubgroupID: 11, TeacherID: &teacher, Subject: "Optics", DayOfWeek: 2, StartTime: "09:00", EndTime: "10:30", Room: "A-12"})
	if err != nil {
		t.Fatalf("CreateScheduleEntry: %v", err)
	}
	if entry.ID != 40 || *entry.TeacherID != 5 || *entry.FacultyID != 3 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, err := store.CreateScheduleEntry(ctx, catalog.ScheduleEntry{SubgroupID: 12, Subject: "Optics", DayOfWeek: 2, StartTime: "09:00", EndTime: "10:30"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
