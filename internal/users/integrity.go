package users

import (
	"context"

	"github.com/mfsolucoes/backoffice/internal/common"
)

// Report is the result of an integrity check over the user collection.
type Report struct {
	Total int `json:"total"`

	// AdminExists reports whether a record with the reserved administrator
	// id or email is present.
	AdminExists bool `json:"adminExists"`

	// DuplicatedEmails lists each email appearing on more than one record,
	// once per duplicate group.
	DuplicatedEmails []string `json:"duplicatedEmails"`

	// InvalidRecords lists the ids of structurally invalid records (missing
	// id, email, or nome). Records without an id are reported as "sem-id".
	InvalidRecords []string `json:"invalidRecords"`

	// OK is true iff there are no duplicates, no invalid records, and the
	// administrator exists.
	OK bool `json:"ok"`
}

// CheckIntegrity inspects a fresh load of the collection.
func (m *Manager) CheckIntegrity(ctx context.Context) Report {
	users := m.Load(ctx)
	report := Report{
		Total:            len(users),
		AdminExists:      hasAdmin(users),
		DuplicatedEmails: []string{},
		InvalidRecords:   []string{},
		OK:               true,
	}

	seen := make(map[string]bool, len(users))
	reported := make(map[string]bool)
	for _, u := range users {
		if seen[u.Email] && !reported[u.Email] {
			report.DuplicatedEmails = append(report.DuplicatedEmails, u.Email)
			reported[u.Email] = true
			report.OK = false
		}
		seen[u.Email] = true
	}

	for _, u := range users {
		if u.ID == "" || u.Email == "" || u.Nome == "" {
			id := u.ID
			if id == "" {
				id = "sem-id"
			}
			report.InvalidRecords = append(report.InvalidRecords, id)
			report.OK = false
		}
	}

	if !report.AdminExists {
		report.OK = false
	}

	return report
}

// Repair brings the collection back to a valid state: reinserts a missing
// administrator, removes duplicate-email records keeping the first occurrence
// in sequence order, and drops structurally invalid records unless they carry
// the reserved administrator id or email. When the collection is already
// valid nothing is written.
func (m *Manager) Repair(ctx context.Context) error {
	users := m.Load(ctx)
	report := m.CheckIntegrity(ctx)

	if report.OK {
		m.log.Debug(ctx, "integrity ok, nothing to repair")
		return nil
	}

	m.log.Warn(ctx, "repairing user collection",
		"duplicates", len(report.DuplicatedEmails),
		"invalid", len(report.InvalidRecords),
		"adminExists", report.AdminExists)

	if !report.AdminExists {
		users = append([]User{DefaultAdmin()}, users...)
	}

	if len(report.DuplicatedEmails) > 0 {
		seen := make(map[string]bool, len(users))
		deduped := users[:0]
		for _, u := range users {
			if seen[u.Email] {
				continue
			}
			seen[u.Email] = true
			deduped = append(deduped, u)
		}
		users = deduped
	}

	valid := users[:0]
	for _, u := range users {
		if u.ID == common.AdminID || u.Email == common.AdminEmail {
			valid = append(valid, u)
			continue
		}
		if u.ID != "" && u.Email != "" && u.Nome != "" {
			valid = append(valid, u)
		}
	}
	users = valid

	return m.Save(ctx, users)
}
