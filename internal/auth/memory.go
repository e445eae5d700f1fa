package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements CredentialStore with in-process concurrency safety.
// It backs tests and the single-binary demo mode when no DSN is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	seq       int64
	byID      map[int64]Identity
	byEmail   map[string]int64
	faculties map[int64]Faculty
}

var _ CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store seeded with the given faculties.
func NewMemoryStore(faculties ...Faculty) *MemoryStore {
	s := &MemoryStore{
		byID:      make(map[int64]Identity),
		byEmail:   make(map[string]int64),
		faculties: make(map[int64]Faculty),
	}
	for _, f := range faculties {
		s.faculties[f.ID] = f
	}
	return s
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return copyIdentity(s.byID[id]), nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id int64) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return copyIdentity(identity), nil
}

func (s *MemoryStore) CreateIdentity(ctx context.Context, identity Identity) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normalizeEmail(identity.Email)
	if _, exists := s.byEmail[email]; exists {
		return Identity{}, ErrAlreadyExists
	}
	if identity.FacultyID != nil {
		if _, ok := s.faculties[*identity.FacultyID]; !ok {
			return Identity{}, ErrNotFound
		}
	}
	s.seq++
	now := time.Now().UTC()
	identity.ID = s.seq
	identity.Email = email
	identity.CreatedAt = now
	identity.UpdatedAt = now
	identity = copyIdentity(identity)
	s.byID[identity.ID] = identity
	s.byEmail[email] = identity.ID
	return copyIdentity(identity), nil
}

func (s *MemoryStore) UpdateIdentity(ctx context.Context, identity Identity) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[identity.ID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	email := normalizeEmail(identity.Email)
	if owner, taken := s.byEmail[email]; taken && owner != identity.ID {
		return Identity{}, ErrAlreadyExists
	}
	if identity.FacultyID != nil {
		if _, ok := s.faculties[*identity.FacultyID]; !ok {
			return Identity{}, ErrNotFound
		}
	}
	delete(s.byEmail, current.Email)
	identity.Email = email
	identity.CreatedAt = current.CreatedAt
	identity.UpdatedAt = time.Now().UTC()
	identity = copyIdentity(identity)
	s.byID[identity.ID] = identity
	s.byEmail[email] = identity.ID
	return copyIdentity(identity), nil
}

func (s *MemoryStore) DeleteIdentity(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, identity.Email)
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) ListIdentities(ctx context.Context) ([]Identity, error) {
	return s.list(ctx, func(Identity) bool { return true })
}

func (s *MemoryStore) ListIdentitiesByFaculty(ctx context.Context, facultyID int64) ([]Identity, error) {
	return s.list(ctx, func(i Identity) bool {
		return i.FacultyID != nil && *i.FacultyID == facultyID
	})
}

func (s *MemoryStore) FindFaculty(ctx context.Context, id int64) (Faculty, error) {
	if err := ctx.Err(); err != nil {
		return Faculty{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.faculties[id]
	if !ok {
		return Faculty{}, ErrNotFound
	}
	return f, nil
}

func (s *MemoryStore) list(ctx context.Context, keep func(Identity) bool) ([]Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Identity, 0, len(s.byID))
	for _, identity := range s.byID {
		if keep(identity) {
			out = append(out, copyIdentity(identity))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyIdentity(in Identity) Identity {
	out := in
	if in.FacultyID != nil {
		f := *in.FacultyID
		out.FacultyID = &f
	}
	return out
}
