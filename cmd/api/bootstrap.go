package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/config"
	"schedulehub.org/internal/obs"
)

// bootstrapSuperAdmin makes sure the configured SUPER_ADMIN exists so a fresh
// deployment, in-memory mode included, has someone who can create admins.
func bootstrapSuperAdmin(ctx context.Context, store auth.CredentialStore, cfg config.Config) error {
	if strings.TrimSpace(cfg.BootstrapAdminEmail) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	identity, err := auth.EnsureSuperAdmin(ctx, store, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, cfg.BootstrapAdminName)
	switch {
	case errors.Is(err, auth.ErrAlreadyExists):
		if identity.Role != auth.RoleSuperAdmin {
			obs.Log("warn", "bootstrap_admin_role_mismatch", map[string]any{"email": identity.Email, "role": string(identity.Role)})
		}
		return nil
	case err != nil:
		return err
	}
	obs.Log("info", "bootstrap_admin_created", map[string]any{"email": identity.Email, "user_id": identity.ID})
	return nil
}
