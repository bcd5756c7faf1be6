package goarchive

import "github.com/TheBitDrifter/goarchive/entityindex"

// Entity is the packed 64-bit id spec.md §3 describes: either a plain
// entity (32-bit index, 24-bit generation, both owned by the entity
// index — exactly 56 bits together) or a role-tagged id (bit 63 set, a
// 7-bit role selector, and a 56-bit payload holding another plain
// entity id). The two forms never collide since a plain entity's high 8
// bits are always zero.
type Entity = uint64

const (
	roleFlag          = uint64(1) << 63
	roleSelectorShift = 56
	roleSelectorMask  = 0x7F
	payloadMask       = (uint64(1) << 56) - 1
)

// RolePair is a role selector for relation-style pair ids: EntityOf(id)
// is the pair's target. Host applications may define additional
// selectors of their own; the core never interprets a role selector it
// doesn't own, and matches role-tagged ids only by exact value — no
// wildcard-target matching in the core (see DESIGN.md's Open Question
// resolution; that belongs to a query runtime this module doesn't
// provide).
const RolePair uint8 = 1

// RoleScope is the role selector World.NewEntity uses to tag a freshly
// created entity with its parent when a scope is active (spec.md §4.F:
// "set_scope(p) installs a Scope(p) role token onto every entity
// subsequently created"). Role(RoleScope, p) is added to the new
// entity's type exactly like any other component id — the core matches
// it only by exact value, same as RolePair.
const RoleScope uint8 = 2

// HasRole reports whether id is role-tagged rather than a plain entity.
func HasRole(id Entity) bool { return id&roleFlag != 0 }

// RoleOf returns id's 7-bit role selector. Meaningless if HasRole(id) is
// false.
func RoleOf(id Entity) uint8 {
	return uint8((id >> roleSelectorShift) & roleSelectorMask)
}

// EntityOf returns the plain entity id carried in id's payload.
// Meaningless if HasRole(id) is false.
func EntityOf(id Entity) Entity { return id & payloadMask }

// Role builds a role-tagged id pairing selector with related.
func Role(selector uint8, related Entity) Entity {
	return roleFlag | (uint64(selector&roleSelectorMask) << roleSelectorShift) | (related & payloadMask)
}

// IndexOf returns the recycling index of a plain entity id.
func IndexOf(id Entity) uint32 { return entityindex.IndexOf(id) }

// GenerationOf returns the recycling generation of a plain entity id.
func GenerationOf(id Entity) uint32 { return entityindex.GenerationOf(id) }
