// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package actiongraph builds an action.Graph from a pair of devicegraph
// snapshots, implementing the §4.E planner: diffing by SID, emitting
// per-device Create/Delete/Modify/Resize/Reallot/Activate chains, wiring
// the cross-action dependency rules, and exposing the resulting
// topological commit order.
package actiongraph

import (
	"sort"
	"strings"

	"github.com/clearlinux/storage-engine/action"
	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/devicegraph"
	"github.com/clearlinux/storage-engine/engconf"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/holder"
	"github.com/clearlinux/storage-engine/resize"
)

// index tracks, per SID, the action ids a later dependency-wiring pass
// needs: the first and last action of that device's create (or delete)
// chain, and any Resize/Reallot/Mount actions it produced.
type index struct {
	createFirst map[device.SID]int
	createLast  map[device.SID]int
	deleteAll   map[device.SID][]int
	resizeOf    map[device.SID]int
	activateOf  map[device.SID]int // sid -> Activate action id
	mountOf     map[device.SID]int // MountPoint sid -> Mount action id
	mountPath   map[int]string     // action id -> mount path, for prefix dependency wiring
}

func newIndex() *index {
	return &index{
		createFirst: map[device.SID]int{},
		createLast:  map[device.SID]int{},
		deleteAll:   map[device.SID][]int{},
		resizeOf:    map[device.SID]int{},
		activateOf:  map[device.SID]int{},
		mountOf:     map[device.SID]int{},
		mountPath:   map[int]string{},
	}
}

// Build diffs lhs against rhs and returns the resulting ActionGraph, or a
// PlanningCycle error if the dependency graph it wires is not acyclic
// (§4.E "Construction"). Disk create/delete is rejected; use BuildForMode
// with engconf.TargetModeImage to plan a fresh disk image.
func Build(lhs, rhs *devicegraph.Graph) (*action.Graph, error) {
	return BuildForMode(lhs, rhs, engconf.TargetModeSystem)
}

// BuildForMode is Build with an explicit TargetMode. Disks cannot be
// created or deleted on a live system; under TargetModeImage a synthetic
// Disk Create/Delete is emitted instead of failing (§4.C "Disk").
func BuildForMode(lhs, rhs *devicegraph.Graph, mode engconf.TargetMode) (*action.Graph, error) {
	ag := action.New()
	idx := newIndex()

	onlyLHS, onlyRHS, both := partitionBySID(lhs, rhs)

	// Stable iteration order (by SID) keeps the resulting ActionGraph
	// deterministic across runs with the same input, which the planner
	// idempotence/completeness properties in §8 depend on.
	for _, sid := range onlyRHS {
		d, _ := rhs.FindBySID(sid)
		if d.IsDisk() && mode != engconf.TargetModeImage {
			return nil, errors.New(errors.KindCannotCreateDevice, "disk %q cannot be created on a live system", d.Name)
		}
		addCreateActions(ag, idx, d)
	}
	for _, sid := range onlyLHS {
		d, _ := lhs.FindBySID(sid)
		if d.IsDisk() && mode != engconf.TargetModeImage {
			return nil, errors.New(errors.KindCannotDeleteDevice, "disk %q cannot be deleted on a live system", d.Name)
		}
		addDeleteActions(ag, idx, d)
	}
	for _, sid := range both {
		lhsD, _ := lhs.FindBySID(sid)
		rhsD, _ := rhs.FindBySID(sid)
		if !lhsD.Equal(rhsD) {
			addModifyActions(ag, idx, lhs, rhs, lhsD, rhsD)
		}
		if rhsD.IsMd() || rhsD.IsLvmVg() {
			addReallotActions(ag, idx, lhs, rhs, lhsD, rhsD)
		}
	}

	addCrossDependencies(ag, idx, lhs, rhs)

	if _, err := ag.TopoOrder(); err != nil {
		return nil, err
	}

	return ag, nil
}

func partitionBySID(lhs, rhs *devicegraph.Graph) (onlyLHS, onlyRHS, both []device.SID) {
	lhsSIDs := map[device.SID]bool{}
	for _, d := range lhs.AllDevices() {
		lhsSIDs[d.SID] = true
	}
	rhsSIDs := map[device.SID]bool{}
	for _, d := range rhs.AllDevices() {
		rhsSIDs[d.SID] = true
	}

	for sid := range lhsSIDs {
		if rhsSIDs[sid] {
			both = append(both, sid)
		} else {
			onlyLHS = append(onlyLHS, sid)
		}
	}
	for sid := range rhsSIDs {
		if !lhsSIDs[sid] {
			onlyRHS = append(onlyRHS, sid)
		}
	}

	sort.Slice(onlyLHS, func(i, j int) bool { return onlyLHS[i] < onlyLHS[j] })
	sort.Slice(onlyRHS, func(i, j int) bool { return onlyRHS[i] < onlyRHS[j] })
	sort.Slice(both, func(i, j int) bool { return both[i] < both[j] })
	return
}

// addCreateActions emits d's Create chain (§4.E.5): a single Create,
// followed for Partitions by the optional SetPartitionId/SetBoot/
// SetLegacyBoot actions the id/boot flags actually require, and for Md a
// trailing AddEtcMdadm.
func addCreateActions(ag *action.Graph, idx *index, d *device.Device) {
	var chain []int

	create := ag.Add(&action.Action{Kind: action.Create, Target: d.SID, TargetName: d.Name})
	chain = append(chain, create)
	idx.createFirst[d.SID] = create

	if d.IsPartition() {
		if d.PartitionID != 0 && !device.IDImpliedByCreate(d.PartitionID) && d.PartitionID != device.DefaultIDForType(d.PartitionType) {
			id := ag.Add(&action.Action{Kind: action.SetPartitionID, Target: d.SID, TargetName: d.Name, PartitionID: d.PartitionID})
			chain = append(chain, id)
		}
		if d.Boot {
			id := ag.Add(&action.Action{Kind: action.SetBoot, Target: d.SID, TargetName: d.Name, Boot: true})
			chain = append(chain, id)
		}
		if d.LegacyBoot {
			id := ag.Add(&action.Action{Kind: action.SetLegacyBoot, Target: d.SID, TargetName: d.Name, LegacyBoot: true})
			chain = append(chain, id)
		}
	}

	if d.IsMd() {
		id := ag.Add(&action.Action{Kind: action.AddEtcMdadm, Target: d.SID, TargetName: d.Name})
		chain = append(chain, id)
	}

	if d.IsMountPoint() {
		id := ag.Add(&action.Action{Kind: action.Mount, Target: d.SID, TargetName: d.Name, MountPath: d.MountPath})
		chain = append(chain, id)
		idx.mountOf[d.SID] = id
		idx.mountPath[id] = d.MountPath
	}

	ag.AddChain(chain)
	idx.createLast[d.SID] = chain[len(chain)-1]
}

// addDeleteActions emits a single Delete action for d (§4.E.3).
func addDeleteActions(ag *action.Graph, idx *index, d *device.Device) {
	id := ag.Add(&action.Action{Kind: action.Delete, Target: d.SID, TargetName: d.Name})
	idx.deleteAll[d.SID] = append(idx.deleteAll[d.SID], id)
}

// addModifyActions emits whatever the actual semantic difference between
// lhsD and rhsD requires: a region change becomes Resize, an Active flag
// change becomes Activate/Deactivate, a Name change becomes Rename, and
// anything else becomes a generic Modify (§4.E.4, §4.D).
func addModifyActions(ag *action.Graph, idx *index, lhs, rhs *devicegraph.Graph, lhsD, rhsD *device.Device) {
	var chain []int

	if lhsD.Region != rhsD.Region && (rhsD.IsPartition() || rhsD.IsLvmLv()) {
		mode := resize.ModeFor(lhsD.Region.Length, rhsD.Region.Length)
		steps, _ := resize.Plan(lhs, rhs, rhsD.SID, mode)
		for _, step := range steps {
			var kind action.Kind
			switch step.Kind {
			case resize.StepUnmountFS:
				kind = action.TmpUnmount
			case resize.StepMountFS:
				kind = action.TmpMount
			default:
				kind = action.Resize
			}
			id := ag.Add(&action.Action{Kind: kind, Target: step.SID})
			chain = append(chain, id)
			if kind == action.Resize {
				idx.resizeOf[step.SID] = id
			}
		}
	}

	if lhsD.Name != rhsD.Name {
		id := ag.Add(&action.Action{Kind: action.Rename, Target: rhsD.SID, TargetName: rhsD.Name, NewName: rhsD.Name})
		chain = append(chain, id)
	}

	if step := resize.ActivationDiff(lhsD, rhsD); step != nil {
		kind := action.Deactivate
		if step.Activate {
			kind = action.Activate
		}
		id := ag.Add(&action.Action{Kind: kind, Target: rhsD.SID, TargetName: rhsD.Name, Activate: step.Activate})
		chain = append(chain, id)
		if step.Activate {
			idx.activateOf[rhsD.SID] = id
		}
	}

	if len(chain) == 0 {
		id := ag.Add(&action.Action{Kind: action.Modify, Target: rhsD.SID, TargetName: rhsD.Name})
		chain = append(chain, id)
	}

	ag.AddChain(chain)
}

// memberSIDs collects the member BlkDevices of a container present in g:
// MdUser-edge parents for an Md array, User-edge parents (the PVs) for an
// LvmVg. Member changes live on holders, so Device.Equal never sees them;
// the reallot pass diffs them separately.
func memberSIDs(g *devicegraph.Graph, container *device.Device) []device.SID {
	var out []device.SID
	for _, h := range g.AllHolders() {
		if h.Child != container.SID {
			continue
		}
		if (container.IsMd() && h.Kind == holder.MdUser) ||
			(container.IsLvmVg() && h.Kind == holder.User) {
			out = append(out, h.Parent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// addReallotActions diffs a container's member set between lhs and rhs
// and emits one Reallot action per added (EXTEND) or removed (REDUCE)
// member (§4.D "Reallot"). An EXTEND waits for the member's Create when
// the member is new in this transition; a member's Delete waits for the
// REDUCE that detaches it first.
func addReallotActions(ag *action.Graph, idx *index, lhs, rhs *devicegraph.Graph, lhsD, rhsD *device.Device) {
	steps := resize.ReallotDiff(memberSIDs(lhs, lhsD), memberSIDs(rhs, rhsD))
	var chain []int
	for _, step := range steps {
		extend := step.Direction == resize.Extend
		id := ag.Add(&action.Action{
			Kind:          action.Reallot,
			Target:        rhsD.SID,
			TargetName:    rhsD.Name,
			ReallotExtend: extend,
			ReallotMember: step.SID,
		})
		chain = append(chain, id)
		if extend {
			if last, ok := idx.createLast[step.SID]; ok {
				ag.DependsOn(id, last)
			}
		} else {
			for _, del := range idx.deleteAll[step.SID] {
				ag.DependsOn(del, id)
			}
		}
	}
	ag.AddChain(chain)
}

// addCrossDependencies wires the rules in §4.E "Cross-action
// dependencies": child Creates depend on parent Creates, parent Deletes
// depend on descendant Deletes, AddEtcMdadm depends on the root mount,
// nested mounts depend on their parent mount, and activation of a consumed
// parent precedes its children's creation. No Resize edges are added
// here; the ordering of a resized device against its descendants comes
// only from the resize.Plan chain built in addModifyActions.
func addCrossDependencies(ag *action.Graph, idx *index, lhs, rhs *devicegraph.Graph) {
	// Child Create depends on parent Create, and on the parent's
	// Activate when this transition also activates a LUKS/bcache/LVM
	// parent the child sits on.
	for sid, childCreate := range idx.createFirst {
		for _, parent := range rhs.Parents(sid, devicegraph.Filter{}) {
			if last, ok := idx.createLast[parent.SID]; ok {
				ag.DependsOn(childCreate, last)
			}
			if act, ok := idx.activateOf[parent.SID]; ok {
				ag.DependsOn(childCreate, act)
			}
		}
	}

	// Parent Delete depends on every descendant's Delete (leaves first).
	for sid, deleteIDs := range idx.deleteAll {
		for _, descendant := range lhs.Descendants(sid, devicegraph.Filter{}) {
			if depIDs, ok := idx.deleteAll[descendant.SID]; ok {
				for _, parentDel := range deleteIDs {
					for _, descDel := range depIDs {
						ag.DependsOn(parentDel, descDel)
					}
				}
			}
		}
	}

	// AddEtcMdadm depends on the root filesystem mount, if any is being
	// created in this same transition.
	var rootMount int
	haveRootMount := false
	for id, path := range idx.mountPath {
		if path == "/" {
			rootMount = id
			haveRootMount = true
		}
	}
	if haveRootMount {
		for _, a := range ag.Actions() {
			if a.Kind == action.AddEtcMdadm {
				ag.DependsOn(a.ID, rootMount)
			}
		}
	}

	// A mount at path "/a/b" depends on any mount at a proper prefix "/a".
	for id, path := range idx.mountPath {
		for otherID, otherPath := range idx.mountPath {
			if id == otherID {
				continue
			}
			if isProperMountPrefix(otherPath, path) {
				ag.DependsOn(id, otherID)
			}
		}
	}
}

// isProperMountPrefix reports whether prefix is a proper ancestor mount
// point of path ("/" is a proper prefix of "/var", "/var" of "/var/log",
// but "/var" is not a prefix of "/varx").
func isProperMountPrefix(prefix, path string) bool {
	if prefix == path {
		return false
	}
	if prefix == "/" {
		return strings.HasPrefix(path, "/") && path != "/"
	}
	return strings.HasPrefix(path, prefix+"/")
}
