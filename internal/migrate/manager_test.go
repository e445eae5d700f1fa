package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"

	"schedulehub.org/internal/migrate/schema"
)

func expectTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_users.up.sql":    {Data: []byte("create table users (id int);")},
		"0001_users.down.sql":  {Data: []byte("drop table users;")},
		"0002_groups.up.sql":   {Data: []byte("-- groups; with a comment\ncreate table groups (id int);\ncreate index groups_idx on groups(id);")},
		"0002_groups.down.sql": {Data: []byte("drop table groups;")},
	}

	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("create table groups").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create index groups_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into schema_migrations").
		WithArgs("0002_groups.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := NewManager(db, fsys, nil).Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_users.up.sql":   {Data: []byte("create table users (id int);")},
		"0001_users.down.sql": {Data: []byte("drop table users;")},
	}
	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations order by applied_at").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from schema_migrations where name = \\$1").
		WithArgs("0001_users.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewManager(db, fsys, nil).Down(context.Background()); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fsys := fstest.MapFS{"0001_users.up.sql": {Data: []byte("create table users (id int);")}}
	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("create table users").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = NewManager(db, fsys, nil).Up(context.Background())
	if err == nil || !strings.Contains(err.Error(), "apply migration 0001_users.up.sql") {
		t.Fatalf("expected wrapped apply error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPendingListsUnapplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"0002_groups.up.sql":   {Data: []byte("create table groups (id int);")},
		"0001_users.up.sql":    {Data: []byte("create table users (id int);")},
		"0003_teachers.up.sql": {Data: []byte("create table teachers (id int);")},
	}
	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))

	pending, err := NewManager(db, fsys, nil).Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if strings.Join(pending, ",") != "0002_groups.up.sql,0003_teachers.up.sql" {
		t.Fatalf("unexpected pending list %v", pending)
	}
}

func TestDownWithNothingApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	if err := NewManager(db, fstest.MapFS{}, nil).Down(context.Background()); !errors.Is(err, ErrNothingApplied) {
		t.Fatalf("expected ErrNothingApplied, got %v", err)
	}
}

func TestDownWithoutDownFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))

	fsys := fstest.MapFS{"0001_users.up.sql": {Data: []byte("create table users (id int);")}}
	err = NewManager(db, fsys, nil).Down(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing down migration") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
}

func TestSeedSkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	seeds := fstest.MapFS{
		"0001_faculties.sql": {Data: []byte("insert into faculties (name) values ('Physics');")},
		"0002_groups.sql":    {Data: []byte("insert into groups (number) values ('PH-101');")},
	}
	expectTables(mock)
	mock.ExpectQuery("select name from schema_seeds").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_faculties.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("insert into groups").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into schema_seeds").
		WithArgs("0002_groups.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := NewManager(db, nil, seeds).Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header; ignored\ninsert into t values ('a;b');\nselect 1;")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "'a;b'") {
		t.Fatalf("quoted semicolon split: %q", stmts[0])
	}
	if strings.Contains(stmts[0], "header") {
		t.Fatalf("comment kept: %q", stmts[0])
	}
}

func TestEmbeddedSchemaPairs(t *testing.T) {
	ups, err := collectSQL(schema.Migrations(), ".up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) == 0 {
		t.Fatal("no embedded migrations")
	}
	downs, err := collectSQL(schema.Migrations(), ".down.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(downs) != len(ups) {
		t.Fatalf("every migration needs a down file: %d up, %d down", len(ups), len(downs))
	}
	seeds, err := collectSQL(schema.Seeds(), ".sql")
	if err != nil || len(seeds) == 0 {
		t.Fatalf("seeds: %v (%d)", err, len(seeds))
	}
}
