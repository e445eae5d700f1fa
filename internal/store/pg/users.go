package pg

import (
	"context"
	"database/sql"
	"errors"

	"schedulehub.org/internal/auth"
)

const userColumns = `id, email, password_hash, full_name, role, faculty_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (auth.Identity, error) {
	var (
		identity auth.Identity
		role     string
		faculty  sql.NullInt64
	)
	if err := row.Scan(&identity.ID, &identity.Email, &identity.PasswordHash, &identity.FullName, &role, &faculty, &identity.CreatedAt, &identity.UpdatedAt); err != nil {
		return auth.Identity{}, err
	}
	identity.Role = auth.Role(role)
	identity.FacultyID = idPtr(faculty)
	return identity, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (auth.Identity, error) {
	return s.findIdentity(ctx, `select `+userColumns+` from users where email = $1`, email)
}

func (s *Store) FindByID(ctx context.Context, id int64) (auth.Identity, error) {
	return s.findIdentity(ctx, `select `+userColumns+` from users where id = $1`, id)
}

func (s *Store) findIdentity(ctx context.Context, query string, arg any) (auth.Identity, error) {
	if s.db == nil {
		return auth.Identity{}, errNoDB
	}
	identity, err := scanIdentity(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return identity, nil
}

func (s *Store) CreateIdentity(ctx context.Context, identity auth.Identity) (auth.Identity, error) {
	if s.db == nil {
		return auth.Identity{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (email, password_hash, full_name, role, faculty_id)
		values ($1, $2, $3, $4, $5)
		returning `+userColumns,
		identity.Email, identity.PasswordHash, identity.FullName, string(identity.Role), nullID(identity.FacultyID))
	created, err := scanIdentity(row)
	if err != nil {
		return auth.Identity{}, mapUserError(err)
	}
	return created, nil
}

func (s *Store) UpdateIdentity(ctx context.Context, identity auth.Identity) (auth.Identity, error) {
	if s.db == nil {
		return auth.Identity{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update users
		set email = $1, password_hash = $2, full_name = $3, role = $4, faculty_id = $5, updated_at = now()
		where id = $6
		returning `+userColumns,
		identity.Email, identity.PasswordHash, identity.FullName, string(identity.Role), nullID(identity.FacultyID), identity.ID)
	updated, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, mapUserError(err)
	}
	return updated, nil
}

func (s *Store) DeleteIdentity(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, auth.ErrNotFound)
}

func (s *Store) ListIdentities(ctx context.Context) ([]auth.Identity, error) {
	return s.listIdentities(ctx, `select `+userColumns+` from users order by id`)
}

func (s *Store) ListIdentitiesByFaculty(ctx context.Context, facultyID int64) ([]auth.Identity, error) {
	return s.listIdentities(ctx, `select `+userColumns+` from users where faculty_id = $1 order by id`, facultyID)
}

func (s *Store) listIdentities(ctx context.Context, query string, args ...any) ([]auth.Identity, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindFaculty(ctx context.Context, id int64) (auth.Faculty, error) {
	if s.db == nil {
		return auth.Faculty{}, errNoDB
	}
	var f auth.Faculty
	err := s.db.QueryRowContext(ctx, `select id, name from faculties where id = $1`, id).Scan(&f.ID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Faculty{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Faculty{}, err
	}
	return f, nil
}

func mapUserError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrAlreadyExists
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}
