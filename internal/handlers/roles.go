package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/services"
	"github.com/localnerve/crmsync/internal/utils"
	"gorm.io/gorm"
)

// RoleHandler handles role record and roster routes
type RoleHandler struct {
	DB *gorm.DB
}

// GetRole handles GET /api/roles/:uid
// @Summary Get a role record
// @Description Get the caller's own role record
// @Tags Roles
// @Produce json
// @Param uid path string true "User ID"
// @Success 200 {object} models.UserRole
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /roles/{uid} [get]
func (h *RoleHandler) GetRole(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "roles.authorization")
	}
	uid := c.Params("uid")
	if uid != userID {
		return utils.ForbiddenResponse(c, "Role records are only readable by their identity")
	}

	role, err := services.GetRole(h.DB, uid)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Role for '%s' not found", uid))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getRole")
	}
	return c.Status(fiber.StatusOK).JSON(role)
}

// PutRole handles PUT /api/roles/:uid
// @Summary Set a role record
// @Description Set the caller's own role record. A delegated role must match the owner's roster.
// @Tags Roles
// @Accept json
// @Produce json
// @Param uid path string true "User ID"
// @Param body body models.UserRole true "Role record"
// @Success 200 {object} models.UserRole
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /roles/{uid} [put]
func (h *RoleHandler) PutRole(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "roles.authorization")
	}
	uid := c.Params("uid")
	if uid != userID {
		return utils.ForbiddenResponse(c, "Role records are only writable by their identity")
	}

	var role models.UserRole
	if err := c.BodyParser(&role); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "putRole")
	}
	role.UserID = uid
	if err := validate.Struct(&role); err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "putRole")
	}

	if err := services.SetRole(h.DB, role); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			return utils.ForbiddenResponse(c, err.Error())
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "putRole")
	}
	return c.Status(fiber.StatusOK).JSON(role)
}

// GetTeam handles GET /api/team/:owner
// @Summary List an owner's team
// @Description List the delegated identities of an owner. Readable by the owner and its members.
// @Tags Roles
// @Produce json
// @Param owner path string true "Owner ID"
// @Success 200 {array} models.TeamMember
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /team/{owner} [get]
func (h *RoleHandler) GetTeam(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "team.authorization")
	}
	owner := c.Params("owner")

	allowed, err := services.CanRead(h.DB, userID, owner)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getTeam")
	}
	if !allowed {
		return utils.ForbiddenResponse(c, fmt.Sprintf("'%s' may not read the team of '%s'", userID, owner))
	}

	members, err := services.Roster(h.DB, owner)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getTeam")
	}
	if members == nil {
		members = []models.TeamMember{}
	}
	return c.Status(fiber.StatusOK).JSON(members)
}

// PutTeamMember handles PUT /api/team/:owner/:member
// @Summary Add or change a team member
// @Tags Roles
// @Accept json
// @Produce json
// @Param owner path string true "Owner ID"
// @Param member path string true "Member ID"
// @Param body body models.TeamMember true "Team member"
// @Success 200 {object} models.TeamMember
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /team/{owner}/{member} [put]
func (h *RoleHandler) PutTeamMember(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "team.authorization")
	}
	owner := c.Params("owner")
	if userID != owner {
		return utils.ForbiddenResponse(c, "Only the owner may change its team")
	}

	var member models.TeamMember
	if err := c.BodyParser(&member); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "putTeamMember")
	}
	member.OwnerID = owner
	member.MemberID = c.Params("member")
	if err := validate.Struct(&member); err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "putTeamMember")
	}

	if err := services.SetTeamMember(h.DB, member); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			return utils.ForbiddenResponse(c, err.Error())
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "putTeamMember")
	}
	return c.Status(fiber.StatusOK).JSON(member)
}

// DeleteTeamMember handles DELETE /api/team/:owner/:member
// @Summary Remove a team member
// @Tags Roles
// @Param owner path string true "Owner ID"
// @Param member path string true "Member ID"
// @Success 204
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /team/{owner}/{member} [delete]
func (h *RoleHandler) DeleteTeamMember(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "team.authorization")
	}
	owner := c.Params("owner")
	if userID != owner {
		return utils.ForbiddenResponse(c, "Only the owner may change its team")
	}

	if err := services.RemoveTeamMember(h.DB, owner, c.Params("member")); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Member '%s' not found", c.Params("member")))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "deleteTeamMember")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
