package services

import (
	"errors"
	"fmt"

	"github.com/localnerve/crmsync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GetRole retrieves the role record of an identity
func GetRole(db *gorm.DB, userID string) (*models.UserRole, error) {
	var role models.UserRole
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("user_id = ?", userID).
		First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// SetRole upserts a role record. An owner record may only point at itself;
// a delegated record must match the owner's roster entry for the identity.
func SetRole(db *gorm.DB, role models.UserRole) error {
	if !role.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrForbidden, role.Role)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if role.Role == models.RoleOwner {
			if role.OwnerID != "" && role.OwnerID != role.UserID {
				return fmt.Errorf("%w: an owner role cannot reference another owner", ErrForbidden)
			}
			role.OwnerID = ""
		} else {
			member, err := teamMember(tx, role.OwnerID, role.UserID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("%w: %s is not on the roster of %s", ErrForbidden, role.UserID, role.OwnerID)
				}
				return err
			}
			if member.Role != role.Role {
				return fmt.Errorf("%w: roster lists %s as %s", ErrForbidden, role.UserID, member.Role)
			}
		}
		return upsertRole(tx, role)
	})
}

func upsertRole(tx *gorm.DB, role models.UserRole) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "owner_id", "name", "email", "updated_at"}),
	}).Create(&role).Error
}

func teamMember(db *gorm.DB, ownerID, memberID string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("owner_id = ? AND member_id = ?", ownerID, memberID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}

// Roster lists the delegated identities of an owner
func Roster(db *gorm.DB, ownerID string) ([]models.TeamMember, error) {
	var members []models.TeamMember
	if err := db.Where("owner_id = ?", ownerID).
		Order("member_id").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// SetTeamMember adds or changes a roster entry. A member without a role
// record gets one pointing at the owner; an existing role record is left as
// is and reconciled by the member's client.
func SetTeamMember(db *gorm.DB, member models.TeamMember) error {
	if !member.Role.Delegated() {
		return fmt.Errorf("%w: roster members must be secretary or captador", ErrForbidden)
	}
	if member.MemberID == member.OwnerID {
		return fmt.Errorf("%w: an owner cannot be its own team member", ErrForbidden)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "name", "email", "updated_at"}),
		}).Create(&member).Error; err != nil {
			return err
		}

		if _, err := GetRole(tx, member.MemberID); err == nil {
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return upsertRole(tx, models.UserRole{
			UserID:  member.MemberID,
			Role:    member.Role,
			OwnerID: member.OwnerID,
			Name:    member.Name,
			Email:   member.Email,
		})
	})
}

// RemoveTeamMember deletes a roster entry and any role record that still
// delegates the member to this owner
func RemoveTeamMember(db *gorm.DB, ownerID, memberID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("owner_id = ? AND member_id = ?", ownerID, memberID).Delete(&models.TeamMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("user_id = ? AND owner_id = ?", memberID, ownerID).Delete(&models.UserRole{}).Error
	})
}

// CanRead reports whether userID may read and stage writes against ownerID's document
func CanRead(db *gorm.DB, userID, ownerID string) (bool, error) {
	if userID == ownerID {
		return true, nil
	}
	if _, err := teamMember(db, ownerID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
