package main

import (
	"context"
	"errors"
	"testing"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/config"
)

func TestBootstrapSuperAdmin(t *testing.T) {
	cfg := config.Config{
		Faculties:              []string{"Faculty of Physics", " ", "Faculty of History"},
		BootstrapAdminEmail:    "Root@Univ.edu",
		BootstrapAdminName:     "Root",
		BootstrapAdminPassword: "rootpass",
	}
	store := auth.NewMemoryStore(cfg.MemoryFaculties()...)
	ctx := context.Background()

	if err := bootstrapSuperAdmin(ctx, store, cfg); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	root, err := store.FindByEmail(ctx, "root@univ.edu")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if root.Role != auth.RoleSuperAdmin || root.FacultyID != nil {
		t.Fatalf("unexpected identity %+v", root)
	}
	if err := bootstrapSuperAdmin(ctx, store, cfg); err != nil {
		t.Fatalf("restart must be a no-op: %v", err)
	}
	if f, err := store.FindFaculty(ctx, 2); err != nil || f.Name != "Faculty of History" {
		t.Fatalf("faculty 2: %+v %v", f, err)
	}
}

func TestBootstrapSuperAdminDisabled(t *testing.T) {
	store := auth.NewMemoryStore()
	if err := bootstrapSuperAdmin(context.Background(), store, config.Config{BootstrapAdminPassword: "rootpass"}); err != nil {
		t.Fatalf("no email means nothing to do: %v", err)
	}
	if users, err := store.ListIdentities(context.Background()); err != nil || len(users) != 0 {
		t.Fatalf("unexpected users %v %v", users, err)
	}
	err := bootstrapSuperAdmin(context.Background(), store, config.Config{BootstrapAdminEmail: "root@univ.edu", BootstrapAdminPassword: "123"})
	if !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("short password: %v", err)
	}
}
