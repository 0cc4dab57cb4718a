package users

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mfsolucoes/backoffice/internal/common"
	"github.com/mfsolucoes/backoffice/internal/storage"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) (*Manager, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return NewManager(store, nil), store
}

func rawUsers(t *testing.T, store storage.Store) []User {
	t.Helper()
	data, ok, err := store.Get(context.Background(), common.SlotUsers)
	require.NoError(t, err)
	require.True(t, ok)
	var users []User
	require.NoError(t, json.Unmarshal([]byte(data), &users))
	return users
}

// flakyStore wraps a MemoryStore and lets a test inject Set failures.
type flakyStore struct {
	*storage.MemoryStore
	failSet func(key string) error
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if s.failSet != nil {
		if err := s.failSet(key); err != nil {
			return err
		}
	}
	return s.MemoryStore.Set(ctx, key, value)
}

// tamperStore silently writes a wrong value into the user slot once, so the
// write appears to succeed but the read-back does not match.
type tamperStore struct {
	*storage.MemoryStore
	tampered bool
}

func (s *tamperStore) Set(ctx context.Context, key, value string) error {
	if key == common.SlotUsers && !s.tampered {
		s.tampered = true
		return s.MemoryStore.Set(ctx, key, "[]")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestLoad_EmptyStore_SeedsAdministrator(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	users := m.Load(ctx)

	require.Len(t, users, 1)
	require.Equal(t, common.AdminID, users[0].ID)
	require.True(t, users[0].IsAdmin)
	require.True(t, users[0].Ativo)
	require.False(t, users[0].PrimeiroAcesso)

	// the seed is committed, not only returned
	persisted := rawUsers(t, store)
	require.Len(t, persisted, 1)
	require.Equal(t, common.AdminID, persisted[0].ID)
}

func TestSave_EmptyList_RejectedAndSlotUntouched(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	m.Load(ctx) // seed
	before, _, err := store.Get(ctx, common.SlotUsers)
	require.NoError(t, err)

	require.ErrorIs(t, m.Save(ctx, nil), common.ErrEmptyCollection)
	require.ErrorIs(t, m.Save(ctx, []User{}), common.ErrEmptyCollection)

	after, _, err := store.Get(ctx, common.SlotUsers)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSave_MissingAdmin_PrependsBeforeCommit(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	seq := []User{{ID: "USR-002", Nome: "Ana", Email: "ana@x.com", Senha: "abc", Ativo: true}}
	require.NoError(t, m.Save(ctx, seq))

	persisted := rawUsers(t, store)
	require.Len(t, persisted, 2)
	require.Equal(t, common.AdminID, persisted[0].ID)

	activeAdmins := 0
	for _, u := range persisted {
		if u.IsAdmin && u.Ativo {
			activeAdmins++
		}
	}
	require.GreaterOrEqual(t, activeAdmins, 1)
}

func TestAdd_DuplicateEmail_RejectedWithoutMutation(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "Ana", Email: "x@y.com", Senha: "abc", Ativo: true})
	require.NoError(t, err)
	lenAfterFirst := len(m.GetAll(ctx))

	_, err = m.Add(ctx, User{Nome: "Bia", Email: "x@y.com", Senha: "def", Ativo: true})
	require.ErrorIs(t, err, common.ErrDuplicateEmail)
	require.Len(t, m.GetAll(ctx), lenAfterFirst)
}

func TestAdd_MissingFields_Rejected(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "", Email: "a@b.com"})
	require.ErrorIs(t, err, common.ErrMissingField)
	_, err = m.Add(ctx, User{Nome: "Ana", Email: ""})
	require.ErrorIs(t, err, common.ErrMissingField)
}

func TestAdd_GeneratesSequentialIDs(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, []User{
		DefaultAdmin(),
		{ID: "USR-002", Nome: "A", Email: "a@x.com", Ativo: true},
		{ID: "USR-005", Nome: "B", Email: "b@x.com", Ativo: true},
	}))

	u, err := m.Add(ctx, User{Nome: "C", Email: "c@x.com", Senha: "s", Ativo: true})
	require.NoError(t, err)
	require.Equal(t, "USR-006", u.ID)
}

func TestAdd_FirstUserAfterSeedGetsUSR002(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	u, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "abc123", Ativo: true})
	require.NoError(t, err)
	require.Equal(t, "USR-002", u.ID)
	require.NotZero(t, u.CreatedAt)
	require.NotZero(t, u.UpdatedAt)
}

func TestUpdate_MergesAndProtectsImmutableFields(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	added, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "abc", Ativo: true})
	require.NoError(t, err)

	nome := "Ana Maria"
	require.NoError(t, m.Update(ctx, added.ID, Patch{Nome: &nome}))

	got, err := m.FindByID(ctx, added.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", got.Nome)
	require.Equal(t, added.ID, got.ID)
	require.Equal(t, added.CreatedAt, got.CreatedAt)
	require.Equal(t, "ana@x.com", got.Email)
}

func TestUpdate_UnknownID_Fails(t *testing.T) {
	m, _ := setupManager(t)
	nome := "X"
	require.ErrorIs(t, m.Update(context.Background(), "USR-999", Patch{Nome: &nome}), common.ErrNotFound)
}

func TestUpdate_EmailCollision_Rejected(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)
	bia, err := m.Add(ctx, User{Nome: "Bia", Email: "bia@x.com", Senha: "b", Ativo: true})
	require.NoError(t, err)

	email := "ana@x.com"
	require.ErrorIs(t, m.Update(ctx, bia.ID, Patch{Email: &email}), common.ErrDuplicateEmail)

	got, err := m.FindByID(ctx, bia.ID)
	require.NoError(t, err)
	require.Equal(t, "bia@x.com", got.Email)
}

func TestRemove_ReservedAdminID_AlwaysRefused(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	require.ErrorIs(t, m.Remove(ctx, common.AdminID, ""), common.ErrProtectedRecord)

	// still refused with plenty of other administrators around
	admin2 := User{ID: "USR-002", Nome: "Duda", Email: "duda@x.com", IsAdmin: true, Ativo: true}
	require.NoError(t, m.Save(ctx, []User{DefaultAdmin(), admin2}))
	require.ErrorIs(t, m.Remove(ctx, common.AdminID, ""), common.ErrProtectedRecord)
}

func TestRemove_SelfRemoval_Refused(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	u, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)
	require.ErrorIs(t, m.Remove(ctx, u.ID, u.ID), common.ErrSelfRemoval)
}

func TestRemove_LastActiveAdmin_Refused(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	// USR-002 is the only active admin; USR-001 exists but is inactive
	admin := DefaultAdmin()
	admin.Ativo = false
	other := User{ID: "USR-002", Nome: "Duda", Email: "duda@x.com", IsAdmin: true, Ativo: true}
	require.NoError(t, m.Save(ctx, []User{admin, other}))

	require.ErrorIs(t, m.Remove(ctx, "USR-002", ""), common.ErrLastActiveAdmin)
}

func TestRemove_RegularUser_Succeeds(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	u, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)
	require.NoError(t, m.Remove(ctx, u.ID, common.AdminID))

	_, err = m.FindByID(ctx, u.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRemove_UnknownID_Fails(t *testing.T) {
	m, _ := setupManager(t)
	require.ErrorIs(t, m.Remove(context.Background(), "USR-999", ""), common.ErrNotFound)
}

func TestLoad_CorruptSlot_RecoversFromBackupAndRecommits(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)
	_, err = m.Add(ctx, User{Nome: "Bia", Email: "bia@x.com", Senha: "b", Ativo: true})
	require.NoError(t, err)
	// backup now holds the 2-record generation, the slot holds 3 records

	require.NoError(t, store.Set(ctx, common.SlotUsers, `{{{not json`))

	users := m.Load(ctx)
	require.Len(t, users, 2)
	require.Equal(t, "ana@x.com", users[1].Email)

	// the recovered state was committed back to the slot
	persisted := rawUsers(t, store)
	require.Len(t, persisted, 2)
}

func TestLoad_NullSlot_RecoversFromBackup(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)
	backup, _, err := store.Get(ctx, common.SlotUsers)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, common.SlotUsersBackup, backup))

	// "null" parses fine but yields no collection; it must be treated as
	// corruption, not as an empty list to reseed over
	require.NoError(t, store.Set(ctx, common.SlotUsers, `null`))

	users := m.Load(ctx)
	require.Len(t, users, 2)
	require.Equal(t, "ana@x.com", users[1].Email)

	persisted := rawUsers(t, store)
	require.Len(t, persisted, 2)
	require.Equal(t, "ana@x.com", persisted[1].Email)
}

func TestLoad_CorruptSlotAndNoBackup_SeedsAdministrator(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, common.SlotUsers, `"just a string"`))

	users := m.Load(ctx)
	require.Len(t, users, 1)
	require.Equal(t, common.AdminID, users[0].ID)
}

func TestSave_WritesBackupOfPriorGeneration(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	m.Load(ctx) // commit generation 1 (admin only)
	_, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)

	backup, ok, err := store.Get(ctx, common.SlotUsersBackup)
	require.NoError(t, err)
	require.True(t, ok)

	var prior []User
	require.NoError(t, json.Unmarshal([]byte(backup), &prior))
	require.Len(t, prior, 1)
	require.Equal(t, common.AdminID, prior[0].ID)
}

func TestSave_WriteFailureRestoresPreviousGeneration(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	m := NewManager(store, nil)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)

	failed := false
	store.failSet = func(key string) error {
		if key == common.SlotUsers && !failed {
			failed = true
			return errors.New("write refused")
		}
		return nil
	}

	_, err = m.Add(ctx, User{Nome: "Bia", Email: "bia@x.com", Senha: "b", Ativo: true})
	require.Error(t, err)

	// the slot holds the pre-save generation again, not a torn write
	persisted := rawUsers(t, store)
	require.Len(t, persisted, 2)
	require.Equal(t, "ana@x.com", persisted[1].Email)
}

func TestSave_VerifyFailureRestoresPreviousGeneration(t *testing.T) {
	mem := storage.NewMemoryStore()
	ctx := context.Background()

	_, err := NewManager(mem, nil).Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)

	store := &tamperStore{MemoryStore: mem}
	m := NewManager(store, nil)

	_, err = m.Add(ctx, User{Nome: "Bia", Email: "bia@x.com", Senha: "b", Ativo: true})
	require.ErrorIs(t, err, common.ErrWriteVerify)

	persisted := rawUsers(t, store)
	require.Len(t, persisted, 2)
	require.Equal(t, "ana@x.com", persisted[1].Email)
}

func TestCount_EndToEndScenario(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	u, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "abc123", Ativo: true})
	require.NoError(t, err)
	require.Equal(t, "USR-002", u.ID)

	require.Equal(t, Stats{Total: 2, Ativos: 2, Admins: 1}, m.Count(ctx))
}

func TestFindByEmail(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "a", Ativo: true})
	require.NoError(t, err)

	got, err := m.FindByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	require.Equal(t, "Ana", got.Nome)

	// case-sensitive, exact match
	_, err = m.FindByEmail(ctx, "ANA@x.com")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestChangeSecret(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	u, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "old", PrimeiroAcesso: true, Ativo: true})
	require.NoError(t, err)

	require.ErrorIs(t, m.ChangeSecret(ctx, u.ID, "wrong", "new"), common.ErrInvalidCredentials)
	require.ErrorIs(t, m.ChangeSecret(ctx, u.ID, "old", ""), common.ErrMissingField)
	require.ErrorIs(t, m.ChangeSecret(ctx, "USR-999", "old", "new"), common.ErrNotFound)

	require.NoError(t, m.ChangeSecret(ctx, u.ID, "old", "new"))

	got, err := m.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new", got.Senha)
	require.False(t, got.PrimeiroAcesso)
}

func TestExport_StripsSecrets(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, User{Nome: "Ana", Email: "ana@x.com", Senha: "top-secret", Ativo: true})
	require.NoError(t, err)

	exported := m.Export(ctx)
	require.Len(t, exported, 2)

	data, err := json.Marshal(exported)
	require.NoError(t, err)
	require.NotContains(t, string(data), "top-secret")
	require.NotContains(t, string(data), "senha")
	require.Contains(t, string(data), "ana@x.com")
}

func TestNextID_IgnoresForeignFormats(t *testing.T) {
	users := []User{
		{ID: "USR-001"},
		{ID: "legacy-7"},
		{ID: "USR-004"},
	}
	require.Equal(t, "USR-005", nextID(users))
	require.Equal(t, "USR-001", nextID(nil))
}
