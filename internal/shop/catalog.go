// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package shop sells items for coins. The item table is static: items
// are identified by code and priced in the same coin currency the daily
// reward pays out.
package shop

// Item categories.
const (
	CategoryCatching = "catching"
	CategoryUtility  = "utility"
	CategoryPremium  = "premium"
)

// Item is one purchasable shop entry.
type Item struct {
	Code        string
	Name        string
	Price       int64
	Category    string
	Description string
}

// items is the shop table, ordered by category then price.
var items = []Item{
	{Code: "capture_orb", Name: "Capture Orb", Price: 100, Category: CategoryCatching,
		Description: "Basic orb for catching creatures"},
	{Code: "greater_orb", Name: "Greater Orb", Price: 300, Category: CategoryCatching,
		Description: "Better orb with a higher catch rate"},
	{Code: "prime_orb", Name: "Prime Orb", Price: 800, Category: CategoryCatching,
		Description: "Advanced orb for difficult catches"},
	{Code: "spawn_incense", Name: "Spawn Incense", Price: 500, Category: CategoryUtility,
		Description: "Increases spawn rates for 30 minutes"},
	{Code: "level_candy", Name: "Level Candy", Price: 1000, Category: CategoryUtility,
		Description: "Instantly levels up any creature"},
	{Code: "exp_charm", Name: "Exp. Charm", Price: 2000, Category: CategoryUtility,
		Description: "Shares experience with your team"},
	{Code: "fortune_egg", Name: "Fortune Egg", Price: 3000, Category: CategoryUtility,
		Description: "Double experience for 1 hour"},
	{Code: "shimmer_charm", Name: "Shimmer Charm", Price: 10000, Category: CategoryPremium,
		Description: "Slightly increases shiny chances"},
}

// index maps item code to its table position.
var index = func() map[string]int {
	m := make(map[string]int, len(items))
	for i, it := range items {
		m[it.Code] = i
	}
	return m
}()

// Items returns the full shop table in listing order.
func Items() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Lookup returns the item for a code.
func Lookup(code string) (Item, bool) {
	i, ok := index[code]
	if !ok {
		return Item{}, false
	}
	return items[i], true
}
