// Package preservation takes versioned snapshots of the critical slots so the
// whole store can be recovered after a bad deploy or a clobbered slot. It is
// a safety net around the per-slot backup the user store manager keeps.
package preservation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfsolucoes/backoffice/internal/common"
	"github.com/mfsolucoes/backoffice/internal/logging"
	"github.com/mfsolucoes/backoffice/internal/storage"
)

// maxHistory bounds the snapshot history kept in the history slot.
const maxHistory = 5

// CriticalSlots are the slot keys captured by every snapshot.
var CriticalSlots = []string{
	common.SlotUsers,
	common.SlotSession,
	common.SlotClients,
	common.SlotOrders,
	common.SlotServices,
	common.SlotLeads,
	common.SlotAdminState,
}

// Snapshot is one full capture of the critical slots.
type Snapshot struct {
	ID        string            `json:"id"`
	Version   string            `json:"version"`
	Timestamp int64             `json:"timestamp"`
	Date      string            `json:"date"`
	Data      map[string]string `json:"data"`
}

// HistoryEntry describes a past snapshot without carrying its payload.
type HistoryEntry struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date"`
	Size      int    `json:"size"`
}

type Keeper struct {
	store   storage.Store
	log     logging.Logger
	version string
}

// NewKeeper returns a Keeper stamping snapshots with the given data version.
func NewKeeper(store storage.Store, log logging.Logger, version string) *Keeper {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Keeper{store: store, log: log.With("component", "preservation"), version: version}
}

// Init stamps the data version on first run and takes a snapshot. When the
// stored version differs from the current one it snapshots the old data
// before restamping, so an upgrade can always be rolled back.
func (k *Keeper) Init(ctx context.Context) error {
	stored, ok, err := k.store.Get(ctx, common.SlotDataVersion)
	if err != nil {
		return fmt.Errorf("failed to read data version: %w", err)
	}

	switch {
	case !ok:
		k.log.Info(ctx, "first run, stamping data version", "version", k.version)
	case stored != k.version:
		k.log.Info(ctx, "data version change detected", "from", stored, "to", k.version)
	default:
		return nil
	}

	if err := k.BackupAll(ctx); err != nil {
		return err
	}
	return k.store.Set(ctx, common.SlotDataVersion, k.version)
}

// BackupAll captures every present critical slot into a new snapshot and
// records it in the bounded history.
func (k *Keeper) BackupAll(ctx context.Context) error {
	now := time.Now()
	snapshot := Snapshot{
		ID:        uuid.NewString(),
		Version:   k.version,
		Timestamp: now.UnixMilli(),
		Date:      now.UTC().Format(time.RFC3339),
		Data:      make(map[string]string),
	}

	for _, key := range CriticalSlots {
		value, ok, err := k.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read slot %s: %w", key, err)
		}
		if ok {
			snapshot.Data[key] = value
		}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	if err := k.store.Set(ctx, common.SlotBackupLatest, string(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	k.log.Info(ctx, "snapshot taken", "id", snapshot.ID, "slots", len(snapshot.Data), "size", len(data))
	return k.pushHistory(ctx, snapshot, len(data))
}

func (k *Keeper) pushHistory(ctx context.Context, snapshot Snapshot, size int) error {
	history, err := k.History(ctx)
	if err != nil {
		// a broken history never blocks a backup; start over
		k.log.Warn(ctx, "backup history unreadable, resetting", "error", err)
		history = nil
	}

	entry := HistoryEntry{
		ID:        snapshot.ID,
		Version:   snapshot.Version,
		Timestamp: snapshot.Timestamp,
		Date:      snapshot.Date,
		Size:      size,
	}
	history = append([]HistoryEntry{entry}, history...)
	if len(history) > maxHistory {
		history = history[:maxHistory]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to serialize history: %w", err)
	}
	return k.store.Set(ctx, common.SlotBackupHistory, string(data))
}

// History lists the recorded snapshots, most recent first.
func (k *Keeper) History(ctx context.Context) ([]HistoryEntry, error) {
	data, ok, err := k.store.Get(ctx, common.SlotBackupHistory)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var history []HistoryEntry
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return history, nil
}

// Latest returns the most recent snapshot.
func (k *Keeper) Latest(ctx context.Context) (*Snapshot, error) {
	data, ok, err := k.store.Get(ctx, common.SlotBackupLatest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrNotFound
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snapshot, nil
}

// RestoreLatest writes every captured slot of the most recent snapshot back
// into the store in one atomic operation.
func (k *Keeper) RestoreLatest(ctx context.Context) error {
	snapshot, err := k.Latest(ctx)
	if err != nil {
		return err
	}

	if err := k.store.SetMany(ctx, snapshot.Data); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	k.log.Info(ctx, "snapshot restored", "id", snapshot.ID, "slots", len(snapshot.Data))
	return nil
}

// Run takes periodic snapshots until the context is canceled. A non-positive
// interval disables periodic snapshots.
func (k *Keeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		k.log.Info(ctx, "periodic snapshots disabled", "interval", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := k.BackupAll(ctx); err != nil {
				k.log.Error(ctx, "periodic backup failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
