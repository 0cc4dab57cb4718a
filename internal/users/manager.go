package users

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mfsolucoes/backoffice/internal/common"
	"github.com/mfsolucoes/backoffice/internal/logging"
	"github.com/mfsolucoes/backoffice/internal/storage"
)

// Manager is the user store manager. All reads and writes of the user slot
// must go through it; touching the slot directly reintroduces the races it
// exists to eliminate.
//
// The underlying store provides no isolation between independent writers.
// The manager does not prevent lost updates; it guarantees that whatever
// state wins is structurally valid, non-empty, and contains an administrator.
type Manager struct {
	store storage.Store
	log   logging.Logger
}

// NewManager returns a Manager bound to the given slot store.
func NewManager(store storage.Store, log logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Manager{store: store, log: log.With("component", "users")}
}

// DefaultAdmin returns a fresh copy of the seed administrator record.
func DefaultAdmin() User {
	return User{
		ID:             common.AdminID,
		Nome:           "Olenir",
		Email:          common.AdminEmail,
		Senha:          "admin01",
		PrimeiroAcesso: false,
		IsAdmin:        true,
		Ativo:          true,
		CreatedAt:      nowMillis(),
	}
}

func hasAdmin(users []User) bool {
	for _, u := range users {
		if u.ID == common.AdminID || u.Email == common.AdminEmail {
			return true
		}
	}
	return false
}

// Load reads the user collection from the store. It never fails: a missing
// slot yields the seeded collection, a corrupt slot falls back to the backup,
// and a missing administrator is reinserted. Repairs discovered during a read
// are committed back to the store.
func (m *Manager) Load(ctx context.Context) []User {
	data, ok, err := m.store.Get(ctx, common.SlotUsers)
	if err != nil {
		m.log.Error(ctx, "failed to read user slot, recovering from backup", "error", err)
		return m.LoadFromBackup(ctx)
	}
	if !ok {
		m.log.Warn(ctx, "no users found, seeding default administrator")
		seed := []User{DefaultAdmin()}
		if err := m.Save(ctx, seed); err != nil {
			m.log.Error(ctx, "failed to persist seeded collection", "error", err)
		}
		return seed
	}

	var users []User
	if err := json.Unmarshal([]byte(data), &users); err != nil {
		m.log.Error(ctx, "user slot is corrupt, recovering from backup", "error", err)
		return m.LoadFromBackup(ctx)
	}
	if users == nil {
		// "null" unmarshals without error but is not a collection
		m.log.Error(ctx, "user slot is not a collection, recovering from backup")
		return m.LoadFromBackup(ctx)
	}

	if !hasAdmin(users) {
		m.log.Warn(ctx, "administrator missing, reinserting")
		users = append([]User{DefaultAdmin()}, users...)
		if err := m.Save(ctx, users); err != nil {
			m.log.Error(ctx, "failed to persist administrator repair", "error", err)
		}
	}

	m.log.Debug(ctx, "users loaded", "count", len(users))
	return users
}

// LoadFromBackup restores the collection from the backup slot. A readable,
// non-empty backup becomes the new canonical state. Otherwise the seeded
// collection is returned.
func (m *Manager) LoadFromBackup(ctx context.Context) []User {
	data, ok, err := m.store.Get(ctx, common.SlotUsersBackup)
	if err == nil && ok {
		var users []User
		if err := json.Unmarshal([]byte(data), &users); err == nil && len(users) > 0 {
			m.log.Info(ctx, "restoring users from backup", "count", len(users))
			if err := m.Save(ctx, users); err != nil {
				m.log.Error(ctx, "failed to recommit backup", "error", err)
			}
			return users
		}
	}

	m.log.Warn(ctx, "backup unusable, seeding default administrator")
	seed := []User{DefaultAdmin()}
	if err := m.Save(ctx, seed); err != nil {
		m.log.Error(ctx, "failed to persist seeded collection", "error", err)
	}
	return seed
}

// Save commits the collection: validates it, snapshots the current slot into
// the backup slot, writes, and verifies the write by reading it back. On any
// failure it attempts to restore the previous state from the backup slot.
//
// The collection must never be committed empty, and a committed collection
// always contains an administrator; one is prepended when absent.
func (m *Manager) Save(ctx context.Context, users []User) error {
	if len(users) == 0 {
		m.log.Error(ctx, "refusing to save an empty user list")
		return common.ErrEmptyCollection
	}

	if !hasAdmin(users) {
		m.log.Warn(ctx, "administrator missing from list, prepending")
		users = append([]User{DefaultAdmin()}, users...)
	}

	// Single-generation backup: each save overwrites the previous one.
	current, ok, err := m.store.Get(ctx, common.SlotUsers)
	if err == nil && ok {
		if err := m.store.Set(ctx, common.SlotUsersBackup, current); err != nil {
			m.log.Error(ctx, "failed to write backup", "error", err)
			return fmt.Errorf("failed to write backup: %w", err)
		}
	}

	data, err := json.Marshal(users)
	if err != nil {
		m.restoreFromBackup(ctx)
		return fmt.Errorf("failed to serialize users: %w", err)
	}

	if err := m.store.Set(ctx, common.SlotUsers, string(data)); err != nil {
		m.log.Error(ctx, "failed to write user slot", "error", err)
		m.restoreFromBackup(ctx)
		return fmt.Errorf("failed to write users: %w", err)
	}

	// Read-back verification: detect writes that silently failed or were
	// clobbered by another writer mid-save.
	written, ok, err := m.store.Get(ctx, common.SlotUsers)
	if err != nil || !ok {
		m.restoreFromBackup(ctx)
		return common.ErrWriteVerify
	}
	var verify []User
	if err := json.Unmarshal([]byte(written), &verify); err != nil || len(verify) != len(users) {
		m.log.Error(ctx, "post-write verification failed", "want", len(users), "got", len(verify))
		m.restoreFromBackup(ctx)
		return common.ErrWriteVerify
	}

	m.log.Info(ctx, "users saved", "count", len(users))
	return nil
}

// restoreFromBackup puts the backup generation back into the user slot.
// Best effort: recovery failures are logged, not returned.
func (m *Manager) restoreFromBackup(ctx context.Context) {
	backup, ok, err := m.store.Get(ctx, common.SlotUsersBackup)
	if err != nil || !ok {
		return
	}
	m.log.Info(ctx, "restoring user slot from backup after failed save")
	if err := m.store.Set(ctx, common.SlotUsers, backup); err != nil {
		m.log.Error(ctx, "backup restore failed", "error", err)
	}
}

// Add appends a new record. A missing id is generated sequentially. The email
// must not already exist (exact, case-sensitive match). Returns the stored
// record.
func (m *Manager) Add(ctx context.Context, u User) (*User, error) {
	if u.Nome == "" || u.Email == "" {
		return nil, fmt.Errorf("%w: nome and email are required", common.ErrMissingField)
	}

	users := m.Load(ctx)

	if u.ID == "" {
		u.ID = nextID(users)
	}

	for _, existing := range users {
		if existing.Email == u.Email {
			m.log.Error(ctx, "email already registered", "email", u.Email)
			return nil, common.ErrDuplicateEmail
		}
	}

	now := nowMillis()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	users = append(users, u)
	if err := m.Save(ctx, users); err != nil {
		return nil, err
	}
	return &u, nil
}

// nextID scans existing USR-NNN ids and returns the next one, zero-padded to
// three digits. Ids in other formats are ignored.
func nextID(users []User) string {
	maxID := 0
	for _, u := range users {
		n, err := strconv.Atoi(strings.TrimPrefix(u.ID, "USR-"))
		if err != nil {
			continue
		}
		if n > maxID {
			maxID = n
		}
	}
	return fmt.Sprintf("USR-%03d", maxID+1)
}

// Update merges the patch over the record with the given id. ID and CreatedAt
// are immutable; UpdatedAt is always refreshed. A patched email must remain
// unique across the collection.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) error {
	users := m.Load(ctx)

	index := -1
	for i, u := range users {
		if u.ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		m.log.Error(ctx, "user not found", "id", id)
		return common.ErrNotFound
	}

	if patch.Email != nil {
		for i, u := range users {
			if i != index && u.Email == *patch.Email {
				m.log.Error(ctx, "email already registered", "email", *patch.Email)
				return common.ErrDuplicateEmail
			}
		}
		users[index].Email = *patch.Email
	}
	if patch.Nome != nil {
		users[index].Nome = *patch.Nome
	}
	if patch.Senha != nil {
		users[index].Senha = *patch.Senha
	}
	if patch.PrimeiroAcesso != nil {
		users[index].PrimeiroAcesso = *patch.PrimeiroAcesso
	}
	if patch.IsAdmin != nil {
		users[index].IsAdmin = *patch.IsAdmin
	}
	if patch.Ativo != nil {
		users[index].Ativo = *patch.Ativo
	}
	users[index].UpdatedAt = nowMillis()

	return m.Save(ctx, users)
}

// Remove deletes the record with the given id. It refuses the reserved
// administrator id unconditionally, refuses removing the caller's own record
// (currentUserID may be empty when no session applies), and refuses removing
// the last active administrator.
func (m *Manager) Remove(ctx context.Context, id string, currentUserID string) error {
	if id == common.AdminID {
		m.log.Error(ctx, "refusing to remove the reserved administrator")
		return common.ErrProtectedRecord
	}
	if currentUserID != "" && id == currentUserID {
		m.log.Error(ctx, "refusing self-removal", "id", id)
		return common.ErrSelfRemoval
	}

	users := m.Load(ctx)

	var target *User
	for i := range users {
		if users[i].ID == id {
			target = &users[i]
			break
		}
	}
	if target == nil {
		m.log.Error(ctx, "user not found", "id", id)
		return common.ErrNotFound
	}

	if target.IsAdmin && target.Ativo {
		activeAdmins := 0
		for _, u := range users {
			if u.IsAdmin && u.Ativo {
				activeAdmins++
			}
		}
		if activeAdmins <= 1 {
			m.log.Error(ctx, "refusing to remove the last active administrator", "id", id)
			return common.ErrLastActiveAdmin
		}
	}

	filtered := make([]User, 0, len(users)-1)
	for _, u := range users {
		if u.ID != id {
			filtered = append(filtered, u)
		}
	}

	return m.Save(ctx, filtered)
}

// FindByID returns the first record with the given id.
func (m *Manager) FindByID(ctx context.Context, id string) (*User, error) {
	for _, u := range m.Load(ctx) {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

// FindByEmail returns the first record with the given email (exact match).
func (m *Manager) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.Load(ctx) {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

// GetAll returns the current collection. Mutating the returned records does
// not persist anything; call Update.
func (m *Manager) GetAll(ctx context.Context) []User {
	return m.Load(ctx)
}

// Count derives collection statistics from a fresh load.
func (m *Manager) Count(ctx context.Context) Stats {
	users := m.Load(ctx)
	s := Stats{Total: len(users)}
	for _, u := range users {
		if u.Ativo {
			s.Ativos++
			if u.IsAdmin {
				s.Admins++
			}
		}
	}
	return s
}

// ChangeSecret verifies the old secret and replaces it, clearing the
// force-password-change flag. This is the only sanctioned secret-change path.
func (m *Manager) ChangeSecret(ctx context.Context, id, oldSecret, newSecret string) error {
	if newSecret == "" {
		return fmt.Errorf("%w: new secret must not be empty", common.ErrMissingField)
	}

	u, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(oldSecret), []byte(u.Senha)) != 1 {
		m.log.Error(ctx, "secret change rejected", "id", id)
		return common.ErrInvalidCredentials
	}

	firstAccess := false
	return m.Update(ctx, id, Patch{Senha: &newSecret, PrimeiroAcesso: &firstAccess})
}

// Export returns all records with the secret stripped.
func (m *Manager) Export(ctx context.Context) []PublicUser {
	users := m.Load(ctx)
	result := make([]PublicUser, 0, len(users))
	for _, u := range users {
		result = append(result, u.Public())
	}
	return result
}
