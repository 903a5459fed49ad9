// common.go
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
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/crmsync/internal/models"
)

var validate = validator.New()

// Publisher is notified after every document mutation.
type Publisher interface {
	Publish(owner string, doc *models.Snapshot)
}

// getUserID extracts the authenticated user id (set by the auth middleware)
func getUserID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals("uid").(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user not found in context")
	}
	return userID, nil
}

// parseCollections extracts collections from query parameters,
// supporting both multiple 'collections' keys and comma-separated values.
func parseCollections(c *fiber.Ctx) []string {
	collectionMap := make(map[string]struct{})

	// Visit all query arguments to collect multiple 'collections' parameters
	args := c.Context().QueryArgs()
	for key, value := range args.All() {
		if string(key) == "collections" {
			// Split by comma in case the value itself is comma-separated
			vals := strings.Split(string(value), ",")
			for _, v := range vals {
				v = strings.TrimSpace(v)
				if v != "" {
					collectionMap[v] = struct{}{}
				}
			}
		}
	}

	if len(collectionMap) == 0 {
		return nil
	}

	collections := make([]string, 0, len(collectionMap))
	for k := range collectionMap {
		collections = append(collections, k)
	}

	return collections
}
