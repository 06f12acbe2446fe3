package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/repository"
)

// RosterPolicy names the configurable admin-on-admin rules. With
// ProtectPeerAdmins set (the default), an admin cannot block, demote, or
// delete another admin - the target must be demoted by nobody, i.e. peer
// admins are untouchable. The looser variant allows any admin to act on any
// non-self account. One policy applies to all three operations; it is a
// configuration choice, never a per-operation inconsistency.
type RosterPolicy struct {
	ProtectPeerAdmins bool
}

// AdminService implements the roster operations: block/unblock, promote/
// demote, and permanent deletion. Callers reach it only through the gate's
// admin check, but every operation still verifies the caller's admin flag
// itself - the service does not trust its transport.
type AdminService struct {
	users  repository.UserRepository
	policy RosterPolicy
	logger *slog.Logger
}

// NewAdminService creates an AdminService with the given policy.
func NewAdminService(users repository.UserRepository, policy RosterPolicy, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:  users,
		policy: policy,
		logger: logger,
	}
}

// ListUsers returns the full roster for the admin page, newest first.
func (s *AdminService) ListUsers(ctx context.Context, callerID string) ([]model.User, error) {
	if _, err := s.authorize(ctx, callerID, ""); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/admin: listing users: %w", err)
	}
	return users, nil
}

// SetBlocked blocks or unblocks the target account. Blocking only flips the
// flag; the target's live sessions stay intact until the access gate sees
// the flag on their next request and performs the forced sign-out, so the
// target lands on the login page with the block notice instead of an
// anonymous-looking redirect.
func (s *AdminService) SetBlocked(ctx context.Context, callerID, targetID string, blocked bool) error {
	target, err := s.authorize(ctx, callerID, targetID)
	if err != nil {
		return err
	}
	if s.policy.ProtectPeerAdmins && target.IsAdmin {
		return apperror.Forbidden("cannot block another admin")
	}

	if err := s.users.SetUserBlocked(ctx, targetID, blocked); err != nil {
		return fmt.Errorf("service/admin: setting blocked=%v on %s: %w", blocked, targetID, err)
	}

	s.logger.Info("roster: blocked flag changed",
		slog.String("callerID", callerID),
		slog.String("targetID", targetID),
		slog.Bool("blocked", blocked),
	)
	return nil
}

// SetAdmin grants or revokes the admin role. Promotion of a blocked account
// is refused - unblock first.
func (s *AdminService) SetAdmin(ctx context.Context, callerID, targetID string, admin bool) error {
	target, err := s.authorize(ctx, callerID, targetID)
	if err != nil {
		return err
	}
	if !admin && s.policy.ProtectPeerAdmins && target.IsAdmin {
		return apperror.Forbidden("cannot demote another admin")
	}
	if admin && target.IsBlocked {
		return apperror.Forbidden("cannot promote a blocked account; unblock it first")
	}

	if err := s.users.SetUserAdmin(ctx, targetID, admin); err != nil {
		return fmt.Errorf("service/admin: setting admin=%v on %s: %w", admin, targetID, err)
	}

	s.logger.Info("roster: admin flag changed",
		slog.String("callerID", callerID),
		slog.String("targetID", targetID),
		slog.Bool("admin", admin),
	)
	return nil
}

// DeleteUser permanently deletes the target account. Irreversible: the
// store's foreign-key cascade removes the profile's todos and sessions in
// the same statement - this service only triggers the deletion and relies
// on the schema for the cascade.
func (s *AdminService) DeleteUser(ctx context.Context, callerID, targetID string) error {
	target, err := s.authorize(ctx, callerID, targetID)
	if err != nil {
		return err
	}
	if s.policy.ProtectPeerAdmins && target.IsAdmin {
		return apperror.Forbidden("cannot delete another admin")
	}

	if err := s.users.DeleteUser(ctx, targetID); err != nil {
		return fmt.Errorf("service/admin: deleting user %s: %w", targetID, err)
	}

	s.logger.Info("roster: user permanently deleted",
		slog.String("callerID", callerID),
		slog.String("targetID", targetID),
	)
	return nil
}

// authorize runs the checks shared by every roster operation: the caller
// must exist, be an admin, and not be blocked; the target (when given) must
// exist and must not be the caller. The target profile is returned so the
// caller-specific policy checks can look at its flags without a second
// fetch.
func (s *AdminService) authorize(ctx context.Context, callerID, targetID string) (*model.User, error) {
	caller, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("caller account no longer exists")
		}
		return nil, fmt.Errorf("service/admin: loading caller %s: %w", callerID, err)
	}
	// Blocked overrides admin here exactly as at the gate.
	if caller.IsBlocked {
		return nil, apperror.Blocked()
	}
	if !caller.IsAdmin {
		return nil, apperror.Forbidden("admin access required")
	}

	if targetID == "" {
		return nil, nil
	}
	if targetID == callerID {
		return nil, apperror.Forbidden("cannot perform this action on your own account")
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return target, nil
}
