// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package battle

import (
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/game"
)

// LuaPolicy runs a user-supplied Lua script to choose actions for a
// generated side. The script defines a global function
//
//	function choose(state) ... end
//
// receiving a table with the acting side's active combatant (hp, level,
// stats, moves), the opponent's active combatant, and the turn number,
// and returns either a move name or a table {kind="switch", to=<index>}.
// Scripts see only safe libraries; determinism is the script author's
// responsibility, since os and io are unavailable the main hazard is
// math.random, which is seeded identically per state.
type LuaPolicy struct {
	script string
}

// NewLuaPolicy compiles a policy script. The script is checked once for
// syntax and for the presence of the choose function.
func NewLuaPolicy(script string) (*LuaPolicy, error) {
	L := newSandboxedState()
	defer L.Close()
	if err := L.DoString(script); err != nil {
		return nil, oops.Code("POLICY_SCRIPT_INVALID").Wrap(err)
	}
	if L.GetGlobal("choose").Type() != lua.LTFunction {
		return nil, oops.Code("POLICY_SCRIPT_INVALID").Errorf("script does not define choose()")
	}
	return &LuaPolicy{script: script}, nil
}

// Choose implements Policy. A fresh state per call keeps script bugs
// from leaking state across turns.
func (p *LuaPolicy) Choose(b *game.Battle, side int, cat *catalog.Catalog) (game.Action, error) {
	L := newSandboxedState()
	defer L.Close()

	if err := L.DoString(p.script); err != nil {
		return game.Action{}, oops.Code("POLICY_SCRIPT_FAILED").Wrap(err)
	}

	state := L.NewTable()
	state.RawSetString("turn", lua.LNumber(b.Turn))
	state.RawSetString("self", combatantTable(L, b.Sides[side].ActiveCombatant()))
	state.RawSetString("opponent", combatantTable(L, b.Sides[1-side].ActiveCombatant()))
	state.RawSetString("team", teamTable(L, b.Sides[side].Team))

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("choose"),
		NRet:    1,
		Protect: true,
	}, state); err != nil {
		return game.Action{}, oops.Code("POLICY_SCRIPT_FAILED").Wrap(err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	action, err := actionFromLua(ret)
	if err != nil {
		return game.Action{}, err
	}

	// Fall back to the greedy default when the script picks something
	// the combatant cannot do.
	if !actionValid(b, side, action) {
		return GreedyPolicy{}.Choose(b, side, cat)
	}
	return action, nil
}

// newSandboxedState creates a Lua state with only safe libraries.
// Blocked: os, io, debug, package, and base functions with filesystem
// access.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		_ = L.CallByParam(lua.P{ //nolint:errcheck // stdlib open cannot fail on a fresh state
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
	}
	for _, fn := range []string{"dofile", "loadfile", "loadstring", "load"} {
		L.SetGlobal(fn, lua.LNil)
	}
	return L
}

// combatantTable marshals a combatant for script consumption.
func combatantTable(L *lua.LState, c *game.Combatant) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("species", lua.LString(c.SpeciesCode))
	t.RawSetString("level", lua.LNumber(c.Level))
	t.RawSetString("hp", lua.LNumber(c.HP))
	t.RawSetString("max_hp", lua.LNumber(c.Stats.HP))
	t.RawSetString("attack", lua.LNumber(c.Stats.Attack))
	t.RawSetString("defense", lua.LNumber(c.Stats.Defense))
	t.RawSetString("speed", lua.LNumber(c.Stats.Speed))

	moves := L.NewTable()
	for i, m := range c.Moves {
		moves.RawSetInt(i+1, lua.LString(m))
	}
	t.RawSetString("moves", moves)
	return t
}

// teamTable marshals a side's team for script consumption.
func teamTable(L *lua.LState, team []game.Combatant) *lua.LTable {
	t := L.NewTable()
	for i := range team {
		t.RawSetInt(i+1, combatantTable(L, &team[i]))
	}
	return t
}

// actionFromLua converts a script return value into an action.
func actionFromLua(v lua.LValue) (game.Action, error) {
	switch val := v.(type) {
	case lua.LString:
		return game.Action{Kind: game.ActionMove, Move: string(val)}, nil
	case *lua.LTable:
		kind := lua.LVAsString(val.RawGetString("kind"))
		switch kind {
		case "move":
			return game.Action{Kind: game.ActionMove, Move: lua.LVAsString(val.RawGetString("move"))}, nil
		case "switch":
			to := int(lua.LVAsNumber(val.RawGetString("to")))
			// Lua is 1-based; team indices are 0-based.
			return game.Action{Kind: game.ActionSwitch, SwitchTo: to - 1}, nil
		}
	}
	return game.Action{}, oops.Code("POLICY_BAD_RETURN").Errorf("script returned an unrecognized action")
}

// actionValid checks a scripted action against the battle state.
func actionValid(b *game.Battle, side int, a game.Action) bool {
	switch a.Kind {
	case game.ActionMove:
		for _, m := range b.Sides[side].ActiveCombatant().Moves {
			if m == a.Move {
				return true
			}
		}
	case game.ActionSwitch:
		s := &b.Sides[side]
		return a.SwitchTo >= 0 && a.SwitchTo < len(s.Team) &&
			a.SwitchTo != s.Active && !s.Team[a.SwitchTo].Fainted()
	}
	return false
}

// Compile-time interface check.
var _ Policy = (*LuaPolicy)(nil)
