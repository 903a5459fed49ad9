// documents.go
//
// Offline-first sync and persistence for a real-estate CRM
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of crmsync.
// crmsync is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// crmsync is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with crmsync.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

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

// DocumentHandler handles cloud document routes
type DocumentHandler struct {
	DB     *gorm.DB
	Notify Publisher
}

func (h *DocumentHandler) publish(owner string, snap *models.Snapshot) {
	if h.Notify != nil {
		h.Notify.Publish(owner, snap)
	}
}

// GetDocument handles GET /api/docs/:owner?collections=...
// @Summary Get an owner document
// @Description Get the snapshot of an owner's document. Readable by the owner and its team members.
// @Tags Documents
// @Accept json
// @Produce json
// @Param owner path string true "Owner ID"
// @Param collections query string false "Comma-separated list of collections to filter"
// @Success 200 {object} models.Snapshot
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /docs/{owner} [get]
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "docs.authorization")
	}
	owner := c.Params("owner")

	allowed, err := services.CanRead(h.DB, userID, owner)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getDocument")
	}
	if !allowed {
		return utils.ForbiddenResponse(c, fmt.Sprintf("'%s' may not read the document of '%s'", userID, owner))
	}

	snap, err := services.GetDocument(h.DB, owner)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Document '%s' not found", owner))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getDocument")
	}

	return c.Status(fiber.StatusOK).JSON(services.FilterCollections(snap, parseCollections(c)))
}

// PutDocument handles PUT /api/docs/:owner
// @Summary Replace an owner document
// @Description Replace the synced collections of the caller's own document
// @Tags Documents
// @Accept json
// @Produce json
// @Param owner path string true "Owner ID"
// @Param body body models.PutDocumentRequest true "Document and optional version"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /docs/{owner} [put]
func (h *DocumentHandler) PutDocument(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "docs.authorization")
	}
	owner := c.Params("owner")
	if userID != owner {
		return utils.ForbiddenResponse(c, "Only the owner may replace a document")
	}

	var input models.PutDocumentRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "putDocument")
	}

	var version *uint64
	if input.Version != nil {
		v := input.Version.Uint64()
		version = &v
	}

	stored, err := services.PutDocument(h.DB, owner, version, &input.Document)
	if err != nil {
		if errors.Is(err, services.ErrVersion) {
			return utils.VersionErrorResponse(c)
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "putDocument")
	}

	h.publish(owner, stored)
	return utils.MutationSuccessResponse(c, stored.Version.Uint64(), stored.LastSync)
}

// AppendPending handles POST /api/docs/:owner/pending
// @Summary Stage a pending approval
// @Description Append a staged write to the owner's pendingApprovals. The submitter is taken from the token.
// @Tags Documents
// @Accept json
// @Produce json
// @Param owner path string true "Owner ID"
// @Param body body models.PendingApproval true "Pending approval"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /docs/{owner}/pending [post]
func (h *DocumentHandler) AppendPending(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "docs.authorization")
	}
	owner := c.Params("owner")

	allowed, err := services.CanRead(h.DB, userID, owner)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "appendPending")
	}
	if !allowed {
		return utils.ForbiddenResponse(c, fmt.Sprintf("'%s' may not stage writes for '%s'", userID, owner))
	}

	var entry models.PendingApproval
	if err := c.BodyParser(&entry); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "appendPending")
	}
	entry.AddedBy = userID
	if err := validate.Struct(&entry); err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "appendPending")
	}

	stored, err := services.AppendPending(h.DB, owner, entry)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Document '%s' not found", owner))
		}
		if errors.Is(err, services.ErrVersion) {
			return utils.VersionErrorResponse(c)
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "appendPending")
	}

	h.publish(owner, stored)
	return utils.MutationSuccessResponse(c, stored.Version.Uint64(), stored.LastSync)
}
