// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import "github.com/oklog/ulid/v2"

// InventoryEntry is one item stack a user holds. Quantity is never
// negative; a zero-quantity stack may linger after consumption and is
// equivalent to not holding the item.
type InventoryEntry struct {
	UserID   ulid.ULID
	ItemCode string
	Quantity int64
}
