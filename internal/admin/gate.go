// Package admin classifies callers as owner, administrator or operator and
// manages delegated administrator grants.
package admin

import (
	"errors"
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotOwner is returned when a non-owner calls an owner-only operation.
	ErrNotOwner = errors.New("admin: owner only")
	// ErrNotAdmin is returned when a caller without admin rights is rejected.
	ErrNotAdmin = errors.New("admin: admin only")
	// ErrRevokeOwner is returned when revoking the owner identity.
	ErrRevokeOwner = errors.New("admin: the owner cannot be removed")
)

// Role is a caller's privilege level.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "administrator"
	RoleOperator Role = "operator"
)

// Gate answers authorization questions for one desk. The owner comes from
// configuration and is always authorized; other administrators live in the
// admin_grants table.
type Gate struct {
	db    *gorm.DB
	owner string
}

// NewGate creates a Gate for the given owner identity.
func NewGate(db *gorm.DB, owner string) (*Gate, error) {
	if db == nil {
		return nil, fmt.Errorf("admin: db is required")
	}
	if owner == "" {
		return nil, fmt.Errorf("admin: owner is required")
	}
	return &Gate{db: db, owner: owner}, nil
}

// Owner returns the configured owner identity.
func (g *Gate) Owner() string { return g.owner }

// IsOwner reports whether id is the configured owner.
func (g *Gate) IsOwner(id string) bool {
	return id != "" && id == g.owner
}

// IsAdmin reports whether id is the owner or holds a grant.
func (g *Gate) IsAdmin(id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	if g.IsOwner(id) {
		return true, nil
	}
	var count int64
	if err := g.db.Model(&models.AdminGrant{}).Where("operator_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("admin: check %s: %w", id, err)
	}
	return count > 0, nil
}

// Role classifies id.
func (g *Gate) Role(id string) (Role, error) {
	if g.IsOwner(id) {
		return RoleOwner, nil
	}
	ok, err := g.IsAdmin(id)
	if err != nil {
		return "", err
	}
	if ok {
		return RoleAdmin, nil
	}
	return RoleOperator, nil
}

// RequireAdmin returns ErrNotAdmin unless id is an administrator.
func (g *Gate) RequireAdmin(id string) error {
	ok, err := g.IsAdmin(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAdmin
	}
	return nil
}

// Grant makes id an administrator. Only the owner may grant. Granting an
// existing administrator refreshes the username; granting the owner is a
// no-op.
func (g *Gate) Grant(caller, id, username string) error {
	if !g.IsOwner(caller) {
		return ErrNotOwner
	}
	if id == "" {
		return fmt.Errorf("admin: id is required")
	}
	if g.IsOwner(id) {
		return nil
	}
	grant := models.AdminGrant{OperatorID: id, Username: username, AddedBy: caller}
	result := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username"}),
	}).Create(&grant)
	if result.Error != nil {
		return fmt.Errorf("admin: grant %s: %w", id, result.Error)
	}
	return nil
}

// Revoke removes id's grant. Only the owner may revoke, the owner itself
// can never be revoked, and revoking a non-admin is a no-op.
func (g *Gate) Revoke(caller, id string) error {
	if !g.IsOwner(caller) {
		return ErrNotOwner
	}
	if g.IsOwner(id) {
		return ErrRevokeOwner
	}
	if err := g.db.Where("operator_id = ?", id).Delete(&models.AdminGrant{}).Error; err != nil {
		return fmt.Errorf("admin: revoke %s: %w", id, err)
	}
	return nil
}

// List returns all grants, oldest first. The owner is not included.
func (g *Gate) List() ([]models.AdminGrant, error) {
	var grants []models.AdminGrant
	if err := g.db.Order("created_at ASC, id ASC").Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("admin: list: %w", err)
	}
	return grants, nil
}

// Recipients returns every administrator identity, owner first.
func (g *Gate) Recipients() ([]string, error) {
	grants, err := g.List()
	if err != nil {
		return nil, err
	}
	ids := []string{g.owner}
	for _, gr := range grants {
		if gr.OperatorID != g.owner {
			ids = append(ids, gr.OperatorID)
		}
	}
	return ids, nil
}
