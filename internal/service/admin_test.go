package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafid/todohub/internal/apperror"
)

func newTestAdminService(store *fakeStore, policy RosterPolicy) *AdminService {
	return NewAdminService(store, policy, testLogger())
}

func strictPolicy() RosterPolicy { return RosterPolicy{ProtectPeerAdmins: true} }
func loosePolicy() RosterPolicy  { return RosterPolicy{ProtectPeerAdmins: false} }

func TestAdminListUsers(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)
	seedUser(t, store, "alice@example.com", false, false)
	seedUser(t, store, "bob@example.com", false, false)

	users, err := svc.ListUsers(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestAdmin_NonAdminCallerForbidden(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	caller := seedUser(t, store, "alice@example.com", false, false)
	target := seedUser(t, store, "bob@example.com", false, false)

	_, err := svc.ListUsers(context.Background(), caller.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	assert.ErrorIs(t, svc.SetBlocked(context.Background(), caller.ID, target.ID, true), apperror.ErrForbidden)
	assert.ErrorIs(t, svc.SetAdmin(context.Background(), caller.ID, target.ID, true), apperror.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteUser(context.Background(), caller.ID, target.ID), apperror.ErrForbidden)
}

func TestAdmin_BlockedAdminCallerRefused(t *testing.T) {
	// Blocked overrides admin: a blocked admin keeps the flag but loses all
	// roster powers.
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	caller := seedUser(t, store, "admin@example.com", true, true)
	target := seedUser(t, store, "bob@example.com", false, false)

	_, err := svc.ListUsers(context.Background(), caller.ID)
	assert.ErrorIs(t, err, apperror.ErrBlocked)
	assert.ErrorIs(t, svc.SetBlocked(context.Background(), caller.ID, target.ID, true), apperror.ErrBlocked)
}

func TestAdmin_SelfActionForbidden(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, loosePolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)

	// Even the loose policy never allows acting on your own account.
	assert.ErrorIs(t, svc.SetBlocked(context.Background(), admin.ID, admin.ID, true), apperror.ErrForbidden)
	assert.ErrorIs(t, svc.SetAdmin(context.Background(), admin.ID, admin.ID, false), apperror.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteUser(context.Background(), admin.ID, admin.ID), apperror.ErrForbidden)
}

func TestAdmin_UnknownCallerUnauthorized(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	target := seedUser(t, store, "bob@example.com", false, false)

	err := svc.SetBlocked(context.Background(), "ghost", target.ID, true)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestAdminSetBlocked_FlipsFlagOnly(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)
	target := seedUser(t, store, "bob@example.com", false, false)

	auth := newTestAuthService(t, store)
	_, err := auth.SignIn(context.Background(), "bob@example.com", "password123")
	require.NoError(t, err)
	_, err = auth.SignIn(context.Background(), "bob@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, 2, store.sessionCount(target.ID))

	require.NoError(t, svc.SetBlocked(context.Background(), admin.ID, target.ID, true))

	got, err := store.GetUserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBlocked)
	// Live sessions survive the flag flip. The access gate revokes them on
	// the target's next request so it can show the block notice.
	assert.Equal(t, 2, store.sessionCount(target.ID))
}

func TestAdminSetBlocked_Unblock(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)
	target := seedUser(t, store, "bob@example.com", false, true)

	require.NoError(t, svc.SetBlocked(context.Background(), admin.ID, target.ID, false))

	got, err := store.GetUserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBlocked)
}

func TestAdmin_PeerAdminProtection(t *testing.T) {
	t.Run("strict policy refuses", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestAdminService(store, strictPolicy())
		caller := seedUser(t, store, "admin@example.com", true, false)
		peer := seedUser(t, store, "peer@example.com", true, false)

		assert.ErrorIs(t, svc.SetBlocked(context.Background(), caller.ID, peer.ID, true), apperror.ErrForbidden)
		assert.ErrorIs(t, svc.SetAdmin(context.Background(), caller.ID, peer.ID, false), apperror.ErrForbidden)
		assert.ErrorIs(t, svc.DeleteUser(context.Background(), caller.ID, peer.ID), apperror.ErrForbidden)

		got, err := store.GetUserByID(context.Background(), peer.ID)
		require.NoError(t, err)
		assert.True(t, got.IsAdmin)
		assert.False(t, got.IsBlocked)
	})

	t.Run("loose policy permits", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestAdminService(store, loosePolicy())
		caller := seedUser(t, store, "admin@example.com", true, false)
		peer := seedUser(t, store, "peer@example.com", true, false)

		require.NoError(t, svc.SetAdmin(context.Background(), caller.ID, peer.ID, false))
		got, err := store.GetUserByID(context.Background(), peer.ID)
		require.NoError(t, err)
		assert.False(t, got.IsAdmin)

		require.NoError(t, svc.SetBlocked(context.Background(), caller.ID, peer.ID, true))
		require.NoError(t, svc.DeleteUser(context.Background(), caller.ID, peer.ID))
		_, err = store.GetUserByID(context.Background(), peer.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestAdminSetAdmin_PromoteAndDemote(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)
	target := seedUser(t, store, "bob@example.com", false, false)

	require.NoError(t, svc.SetAdmin(context.Background(), admin.ID, target.ID, true))
	got, err := store.GetUserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	// Demotion of the freshly promoted peer is now refused under the
	// strict policy.
	assert.ErrorIs(t, svc.SetAdmin(context.Background(), admin.ID, target.ID, false), apperror.ErrForbidden)
}

func TestAdminSetAdmin_PromotionOfBlockedRefused(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)
	target := seedUser(t, store, "bob@example.com", false, true)

	err := svc.SetAdmin(context.Background(), admin.ID, target.ID, true)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	got, lookupErr := store.GetUserByID(context.Background(), target.ID)
	require.NoError(t, lookupErr)
	assert.False(t, got.IsAdmin)
	assert.True(t, got.IsBlocked, "the blocked flag stays; unblock must be explicit")
}

func TestAdminDeleteUser_RemovesAccountAndData(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)
	target := seedUser(t, store, "bob@example.com", false, false)

	todos, _ := newTestTodoService(store)
	_, err := todos.Create(context.Background(), target.ID, "walk the dog", "", nil)
	require.NoError(t, err)

	auth := newTestAuthService(t, store)
	_, err = auth.SignIn(context.Background(), "bob@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(context.Background(), admin.ID, target.ID))

	_, err = store.GetUserByID(context.Background(), target.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	left, err := store.ListTodosByUser(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Empty(t, left, "the cascade removes the target's todos")
	assert.Equal(t, 0, store.sessionCount(target.ID), "the cascade removes the target's sessions")
}

func TestAdminDeleteUser_MissingTarget(t *testing.T) {
	store := newFakeStore()
	svc := newTestAdminService(store, strictPolicy())
	admin := seedUser(t, store, "admin@example.com", true, false)

	err := svc.DeleteUser(context.Background(), admin.ID, "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
