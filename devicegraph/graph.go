// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package devicegraph implements the arena-of-nodes graph described in
// SPEC_FULL.md's §9 design note: a Graph owns a map of Devices keyed by
// SID plus a slice of Holder edges; Devices never hold a pointer back into
// their owning Graph. All cross-node navigation (parents, children,
// ancestors, find_by_*) is a method on Graph, mirroring how the teacher's
// storage package kept BlockDevice a plain value and put every
// relationship-aware operation on the higher-level InstallTarget/
// partition-planning functions instead of on the struct itself.
package devicegraph

import (
	"sort"
	"sync/atomic"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/holder"
)

// sidCounter is the single monotonic SID source shared by every Graph
// live in the process (§9 "Global counter for SID").
var sidCounter uint64

// nextSID hands out a new process-wide unique SID.
func nextSID() device.SID {
	return device.SID(atomic.AddUint64(&sidCounter, 1))
}

// bumpSIDCounter ensures future nextSID calls never collide with an SID
// read back from a saved devicegraph (Load) or assigned by a concurrently
// running copy of the engine.
func bumpSIDCounter(sid device.SID) {
	for {
		cur := atomic.LoadUint64(&sidCounter)
		if uint64(sid) <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&sidCounter, cur, uint64(sid)) {
			return
		}
	}
}

// Graph is a directed graph of Devices connected by Holders. The zero
// value is not usable; construct one with New.
type Graph struct {
	devices map[device.SID]*device.Device
	holders []holder.Holder
	// order records insertion order so that traversals which do not
	// sort explicitly still produce deterministic output across runs.
	order []device.SID
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{devices: make(map[device.SID]*device.Device)}
}

// AddDevice assigns d a fresh SID (overwriting any SID already set),
// inserts it into the graph, and returns that SID.
func (g *Graph) AddDevice(d *device.Device) device.SID {
	d.SID = nextSID()
	g.devices[d.SID] = d
	g.order = append(g.order, d.SID)
	return d.SID
}

// AddDeviceWithSID inserts d under its existing SID, used by Copy and Load
// to preserve identity across a probed/staging pair. It fails if the SID
// is already present or zero.
func (g *Graph) AddDeviceWithSID(d *device.Device) error {
	if d.SID == 0 {
		return errors.New(errors.KindInvalidName, "cannot add device %q with a zero SID", d.Name)
	}
	if _, exists := g.devices[d.SID]; exists {
		return errors.New(errors.KindInvalidName, "SID %d already present in graph", d.SID)
	}
	g.devices[d.SID] = d
	g.order = append(g.order, d.SID)
	return nil
}

// RemoveVertex deletes a single Device and every Holder touching it. Use
// RemoveDescendants to cascade through children first.
func (g *Graph) RemoveVertex(sid device.SID) {
	delete(g.devices, sid)
	for i := 0; i < len(g.order); i++ {
		if g.order[i] == sid {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	kept := g.holders[:0]
	for _, h := range g.holders {
		if h.Parent != sid && h.Child != sid {
			kept = append(kept, h)
		}
	}
	g.holders = kept
}

// RemoveDescendants removes every descendant of sid (but not sid itself),
// deepest first, matching the original's cascading delete lifecycle (§3
// "Lifecycle").
func (g *Graph) RemoveDescendants(sid device.SID) {
	desc := g.Descendants(sid, Filter{})
	for i := len(desc) - 1; i >= 0; i-- {
		g.RemoveVertex(desc[i].SID)
	}
}

// AddHolder records an edge. Both endpoints must already be present.
func (g *Graph) AddHolder(h holder.Holder) error {
	if _, ok := g.devices[h.Parent]; !ok {
		return errors.New(errors.KindDeviceNotFoundBySid, "holder parent sid %d not found", h.Parent)
	}
	if _, ok := g.devices[h.Child]; !ok {
		return errors.New(errors.KindDeviceNotFoundBySid, "holder child sid %d not found", h.Child)
	}
	g.holders = append(g.holders, h)
	return nil
}

// SetSource re-anchors an existing holder's parent endpoint, the mechanism
// used to splice an Encryption (or Bcache) device between a BlkDevice and
// its former consumers (§4.B, §4.C "Encryption").
func (g *Graph) SetSource(idx int, newParent device.SID) error {
	if idx < 0 || idx >= len(g.holders) {
		return errors.New(errors.KindInvalidName, "holder index %d out of range", idx)
	}
	if _, ok := g.devices[newParent]; !ok {
		return errors.New(errors.KindDeviceNotFoundBySid, "new source sid %d not found", newParent)
	}
	g.holders[idx].Parent = newParent
	return nil
}

// HolderIndexesFor returns the indexes (stable for use with SetSource) of
// every holder currently rooted at parent.
func (g *Graph) HolderIndexesFor(parent device.SID) []int {
	var idxs []int
	for i, h := range g.holders {
		if h.Parent == parent {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// Filter is a predicate plus an optional stable-order comparator, passed
// to every relationship query so callers can both narrow by kind and get
// a deterministic ordering (e.g. partitions sorted by number).
type Filter struct {
	Kind device.Kind // zero value device.KindUnknown means "any kind"
	Less func(a, b *device.Device) bool
}

func (f Filter) matches(d *device.Device) bool {
	return f.Kind == device.KindUnknown || d.Kind == f.Kind
}

func (g *Graph) apply(sids []device.SID, f Filter) []*device.Device {
	var out []*device.Device
	for _, sid := range sids {
		d := g.devices[sid]
		if d != nil && f.matches(d) {
			out = append(out, d)
		}
	}
	if f.Less != nil {
		sort.SliceStable(out, func(i, j int) bool { return f.Less(out[i], out[j]) })
	}
	return out
}

// Parents returns every Device with a Holder into sid.
func (g *Graph) Parents(sid device.SID, f Filter) []*device.Device {
	var sids []device.SID
	for _, h := range g.holders {
		if h.Child == sid {
			sids = append(sids, h.Parent)
		}
	}
	return g.apply(sids, f)
}

// Children returns every Device a Holder out of sid points to.
func (g *Graph) Children(sid device.SID, f Filter) []*device.Device {
	var sids []device.SID
	for _, h := range g.holders {
		if h.Parent == sid {
			sids = append(sids, h.Child)
		}
	}
	return g.apply(sids, f)
}

// Siblings returns every other child of any of sid's parents.
func (g *Graph) Siblings(sid device.SID, f Filter) []*device.Device {
	seen := map[device.SID]bool{sid: true}
	var sids []device.SID
	for _, parent := range g.Parents(sid, Filter{}) {
		for _, child := range g.Children(parent.SID, Filter{}) {
			if !seen[child.SID] {
				seen[child.SID] = true
				sids = append(sids, child.SID)
			}
		}
	}
	return g.apply(sids, f)
}

// Ancestors returns every transitive parent of sid (sid excluded).
func (g *Graph) Ancestors(sid device.SID, f Filter) []*device.Device {
	seen := map[device.SID]bool{}
	var walk func(device.SID)
	var sids []device.SID
	walk = func(cur device.SID) {
		for _, p := range g.Parents(cur, Filter{}) {
			if !seen[p.SID] {
				seen[p.SID] = true
				sids = append(sids, p.SID)
				walk(p.SID)
			}
		}
	}
	walk(sid)
	return g.apply(sids, f)
}

// Descendants returns every transitive child of sid (sid excluded), in a
// deterministic depth-first order (parents strictly precede descendants
// discovered through them).
func (g *Graph) Descendants(sid device.SID, f Filter) []*device.Device {
	seen := map[device.SID]bool{}
	var sids []device.SID
	var walk func(device.SID)
	walk = func(cur device.SID) {
		for _, c := range g.Children(cur, Filter{}) {
			if !seen[c.SID] {
				seen[c.SID] = true
				sids = append(sids, c.SID)
				walk(c.SID)
			}
		}
	}
	walk(sid)
	return g.apply(sids, f)
}

// Roots returns every Device with no parent.
func (g *Graph) Roots(f Filter) []*device.Device {
	var sids []device.SID
	for _, sid := range g.order {
		if len(g.Parents(sid, Filter{})) == 0 {
			sids = append(sids, sid)
		}
	}
	return g.apply(sids, f)
}

// Leaves returns every Device with no children.
func (g *Graph) Leaves(f Filter) []*device.Device {
	var sids []device.SID
	for _, sid := range g.order {
		if len(g.Children(sid, Filter{})) == 0 {
			sids = append(sids, sid)
		}
	}
	return g.apply(sids, f)
}

// FindBySID looks up a Device by its identity.
func (g *Graph) FindBySID(sid device.SID) (*device.Device, error) {
	d, ok := g.devices[sid]
	if !ok {
		return nil, errors.New(errors.KindDeviceNotFoundBySid, "no device with sid %d", sid)
	}
	return d, nil
}

// FindByName looks up the unique BlkDevice carrying this absolute path.
func (g *Graph) FindByName(name string) (*device.Device, error) {
	for _, sid := range g.order {
		d := g.devices[sid]
		if d.IsBlkDevice() && d.Name == name {
			return d, nil
		}
	}
	return nil, errors.New(errors.KindDeviceNotFoundByName, "no device named %q", name)
}

// NameResolver matches the SystemInspector capability find_by_any_name
// needs: given a sysfs path, return the device name currently backing it,
// if any.
type NameResolver interface {
	NameForSysfsPath(path string) (string, bool)
}

// FindByAnyName looks up a Device first by name, then — if that fails —
// by resolving name as a sysfs path through resolver and retrying by the
// resolved name (§4.B).
func (g *Graph) FindByAnyName(name string, resolver NameResolver) (*device.Device, error) {
	if d, err := g.FindByName(name); err == nil {
		return d, nil
	}
	if resolver != nil {
		if resolved, ok := resolver.NameForSysfsPath(name); ok {
			return g.FindByName(resolved)
		}
	}
	return nil, errors.New(errors.KindDeviceNotFoundByName, "no device named or resolving to %q", name)
}

// GetDevicesOfKind returns every Device of the given kind, in insertion
// order.
func (g *Graph) GetDevicesOfKind(kind device.Kind) []*device.Device {
	return g.apply(g.order, Filter{Kind: kind})
}

// FilterHoldersOfKind returns every Holder of the given kind.
func (g *Graph) FilterHoldersOfKind(kind holder.Kind) []holder.Holder {
	var out []holder.Holder
	for _, h := range g.holders {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// AllDevices returns every Device in insertion order.
func (g *Graph) AllDevices() []*device.Device { return g.apply(g.order, Filter{}) }

// AllHolders returns every Holder.
func (g *Graph) AllHolders() []holder.Holder {
	return append([]holder.Holder(nil), g.holders...)
}

// Copy produces a deep structural copy of g: every Device and Holder is
// cloned, SIDs are preserved, and the two graphs can be freely mutated
// independently. The returned graph does not consume sidCounter values,
// since it revisits already-assigned SIDs.
func (g *Graph) Copy() *Graph {
	out := New()
	out.devices = make(map[device.SID]*device.Device, len(g.devices))
	for _, sid := range g.order {
		c := g.devices[sid].Clone()
		out.devices[sid] = c
		out.order = append(out.order, sid)
	}
	out.holders = append([]holder.Holder(nil), g.holders...)
	return out
}

// Equal reports whether g and other are the same structural devicegraph:
// same SIDs mapping to semantically Equal Devices, same Holder edges.
func (g *Graph) Equal(other *Graph) bool {
	if len(g.devices) != len(other.devices) || len(g.holders) != len(other.holders) {
		return false
	}
	for sid, d := range g.devices {
		od, ok := other.devices[sid]
		if !ok || !d.Equal(od) {
			return false
		}
	}
	holderSet := func(hs []holder.Holder) map[holder.Holder]int {
		m := make(map[holder.Holder]int, len(hs))
		for _, h := range hs {
			m[h]++
		}
		return m
	}
	a, b := holderSet(g.holders), holderSet(other.holders)
	if len(a) != len(b) {
		return false
	}
	for h, n := range a {
		if b[h] != n {
			return false
		}
	}
	return true
}
