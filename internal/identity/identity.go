// Package identity models bot identities: per-user configuration profiles
// that fall back field by field to a shared default identity, and that own
// their scheduled triggers.
package identity

import (
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
)

// DefaultID is the id of the shared default identity.
const DefaultID = "default"

const triggerIDPrefix = "trigger_"

// Profile holds the personal, inheritable fields of an identity exactly as
// stored, before any fallback.
type Profile struct {
	BotCharacteristics   []string `json:"bot_characteristics"`
	HumanCharacteristics []string `json:"human_characteristics"`
	Requests             []string `json:"requests"`
	DeliveryTarget       string   `json:"delivery_target"`
}

func (p Profile) clone() Profile {
	return Profile{
		BotCharacteristics:   slices.Clone(p.BotCharacteristics),
		HumanCharacteristics: slices.Clone(p.HumanCharacteristics),
		Requests:             slices.Clone(p.Requests),
		DeliveryTarget:       p.DeliveryTarget,
	}
}

// Identity is one bot identity. The parent is looked up, never mutated, and
// triggers are never inherited from it.
type Identity struct {
	id       string
	own      Profile
	triggers map[string]trigger.Trigger
	parent   *Identity

	// Trigger edits since the identity was loaded. Stores apply only these,
	// so a stale copy never resurrects a trigger claimed in the meantime.
	added   map[string]struct{}
	removed map[string]struct{}
}

// New creates an identity with an optional parent (the default identity).
func New(id string, parent *Identity) *Identity {
	return &Identity{
		id:       strings.TrimSpace(id),
		triggers: make(map[string]trigger.Trigger),
		parent:   parent,
		added:    make(map[string]struct{}),
		removed:  make(map[string]struct{}),
	}
}

// ID returns the identity's stable key.
func (i *Identity) ID() string {
	return i.id
}

// Parent returns the fallback identity, or nil.
func (i *Identity) Parent() *Identity {
	return i.parent
}

// IsDefault reports whether this is the shared default identity.
func (i *Identity) IsDefault() bool {
	return i.id == DefaultID
}

// Own returns a copy of the identity's personal fields without fallback.
func (i *Identity) Own() Profile {
	return i.own.clone()
}

// SetProfile replaces the identity's personal fields.
func (i *Identity) SetProfile(p Profile) {
	i.own = p.clone()
}

// BotCharacteristics returns the personal list, or the parent's personal
// list when the personal one is empty.
func (i *Identity) BotCharacteristics() []string {
	return resolveList(i.own.BotCharacteristics, i.parentOwn().BotCharacteristics)
}

// HumanCharacteristics resolves like BotCharacteristics.
func (i *Identity) HumanCharacteristics() []string {
	return resolveList(i.own.HumanCharacteristics, i.parentOwn().HumanCharacteristics)
}

// HasHumanCharacteristics reports whether any human characteristics resolve.
func (i *Identity) HasHumanCharacteristics() bool {
	return len(i.HumanCharacteristics()) > 0
}

// Requests returns stock requests. With both toggles set the parent's
// personal requests come first, followed by this identity's.
func (i *Identity) Requests(usePersonal, useDefault bool) []string {
	return resolveRequests(i.own.Requests, i.parentOwn().Requests, usePersonal, useDefault)
}

// DeliveryTarget returns the personal target, or the first non-empty target
// found walking up the parent chain.
func (i *Identity) DeliveryTarget() string {
	return resolveTarget(i)
}

// Triggers returns this identity's own triggers ordered by id.
func (i *Identity) Triggers() []trigger.Trigger {
	out := make([]trigger.Trigger, 0, len(i.triggers))
	for _, t := range i.triggers {
		out = append(out, t)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Trigger looks up one of this identity's triggers.
func (i *Identity) Trigger(id string) (trigger.Trigger, bool) {
	t, ok := i.triggers[strings.TrimSpace(id)]
	return t, ok
}

// AddTrigger assigns a fresh id to t, stores it and returns the id.
func (i *Identity) AddTrigger(t trigger.Trigger) string {
	t.ID = NewTriggerID()
	if t.Event == "" {
		t.Event = trigger.EventTimer
	}
	i.putTrigger(t)
	return t.ID
}

// PutTrigger stores a trigger under its existing id. The next Save writes it.
func (i *Identity) PutTrigger(t trigger.Trigger) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = NewTriggerID()
	}
	i.putTrigger(t)
}

func (i *Identity) putTrigger(t trigger.Trigger) {
	i.triggers[t.ID] = t
	i.added[t.ID] = struct{}{}
	delete(i.removed, t.ID)
}

// loadTrigger stores a trigger read from storage without marking it as an
// edit.
func (i *Identity) loadTrigger(t trigger.Trigger) {
	i.triggers[t.ID] = t
}

// DeleteTrigger removes a trigger by id and reports whether it existed.
func (i *Identity) DeleteTrigger(id string) bool {
	target := strings.TrimSpace(id)
	if _, ok := i.triggers[target]; !ok {
		return false
	}
	delete(i.triggers, target)
	delete(i.added, target)
	i.removed[target] = struct{}{}
	return true
}

// pendingTriggers returns the triggers added and the ids removed since the
// identity was loaded or last saved.
func (i *Identity) pendingTriggers() (put []trigger.Trigger, removed []string) {
	for id := range i.added {
		put = append(put, i.triggers[id])
	}
	for id := range i.removed {
		removed = append(removed, id)
	}
	sort.Slice(put, func(a, b int) bool { return put[a].ID < put[b].ID })
	sort.Strings(removed)
	return put, removed
}

// markSaved forgets the pending trigger edits once a store applied them.
func (i *Identity) markSaved() {
	clear(i.added)
	clear(i.removed)
}

// NewTriggerID returns a unique trigger id.
func NewTriggerID() string {
	return triggerIDPrefix + uuid.NewString()
}

func (i *Identity) parentOwn() Profile {
	if i.parent == nil {
		return Profile{}
	}
	return i.parent.own
}

// resolveList implements the one-hop fallback used by list fields: the
// parent's personal list, never the parent's own resolved value.
func resolveList(own, parentOwn []string) []string {
	if len(own) > 0 {
		return slices.Clone(own)
	}
	return slices.Clone(parentOwn)
}

func resolveRequests(own, parentOwn []string, usePersonal, useDefault bool) []string {
	out := []string{}
	if useDefault {
		out = append(out, parentOwn...)
	}
	if usePersonal {
		out = append(out, own...)
	}
	return out
}

// resolveTarget walks the whole parent chain, unlike resolveList.
func resolveTarget(i *Identity) string {
	for cur := i; cur != nil; cur = cur.parent {
		if target := strings.TrimSpace(cur.own.DeliveryTarget); target != "" {
			return target
		}
	}
	return ""
}
