// Package common contains shared constants and sentinel errors used across
// backoffice components.
package common

// Slot keys. These mirror the persisted key names of the original browser
// application so that exported/imported payloads stay compatible.
const (
	SlotUsers       = "mfs_usuarios"
	SlotUsersBackup = "mfs_usuarios_backup"
	SlotSession     = "mfs_session"
	SlotSessionKey  = "mfs_session_key"
	SlotClients     = "mfs_clientes"
	SlotOrders      = "mfs_ordens"
	SlotServices    = "mfs_servicos"
	SlotLeads       = "mfs_crm_leads"
	SlotAdminState  = "mfs_admin_state"

	SlotDataVersion   = "mfs_data_version"
	SlotBackupLatest  = "mfs_backup_latest"
	SlotBackupHistory = "mfs_backup_history"
)

// AdminID is the reserved identifier of the default administrator record.
// It can never be removed, regardless of how many administrators exist.
const AdminID = "USR-001"

// AdminEmail is the reserved login of the default administrator record.
const AdminEmail = "admin"
