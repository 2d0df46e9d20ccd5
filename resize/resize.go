// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package resize implements the §4.D Resize/Reallot analyser: given a
// BlkDevice whose region differs between two devicegraph snapshots, it
// works out which of its descendants also need resizing, in what order,
// and whether a temporary unmount must bracket the chain. It is
// deliberately independent of the action/actiongraph package (which turns
// a Plan into concrete Action nodes with dependency edges) so that the
// resize geometry logic can be tested without constructing a full
// ActionGraph, mirroring how the teacher kept storage/ops.go (the "what
// to do" sequencing) separate from storage/block_devices_ops.go (the "how
// to actually do it" shell-out layer).
package resize

import (
	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/devicegraph"
)

// Mode is the direction of a size change.
type Mode int

const (
	Grow Mode = iota
	Shrink
)

func (m Mode) String() string {
	if m == Shrink {
		return "SHRINK"
	}
	return "GROW"
}

// StepKind discriminates one action in a resize chain.
type StepKind int

const (
	StepUnmountFS StepKind = iota
	StepResizeDevice
	StepMountFS
)

// Step is one element of a resize chain: either unmount/mount a
// filesystem, or resize a device, always identified by SID so the caller
// (action/actiongraph) can look the concrete Device up in whichever
// graph(s) it needs.
type Step struct {
	Kind StepKind
	SID  device.SID
}

// MountedResizeSupport reports whether a filesystem kind can be resized
// in the given direction while mounted, the predicate behind
// supports_mounted_resize(mode) in §4.C "Swap / Filesystems". Btrfs
// supports both directions online; ext* and xfs only support online
// growth; swap is never "mounted" in the filesystem sense so it always
// reports true (no unmount/mount bracketing needed).
func MountedResizeSupport(kind device.Kind, mode Mode) bool {
	switch kind {
	case device.KindBtrfs:
		return true
	case device.KindExt2, device.KindExt3, device.KindExt4, device.KindXfs:
		return mode == Grow
	case device.KindSwap:
		return true
	default:
		return false
	}
}

// DevicesToResize enumerates, by DFS across children in graph, every
// non-MD BlkDevice, LvmPv-style consumer, and Filesystem reachable from
// sid — skipping Md arrays, since an array's size is derived from its
// members rather than resized directly (§4.D.1).
func DevicesToResize(graph *devicegraph.Graph, sid device.SID) []*device.Device {
	var out []*device.Device
	var walk func(device.SID)
	seen := map[device.SID]bool{sid: true}
	walk = func(cur device.SID) {
		for _, c := range graph.Children(cur, devicegraph.Filter{}) {
			if seen[c.SID] {
				continue
			}
			seen[c.SID] = true
			if c.IsMd() || c.IsMountPoint() {
				continue
			}
			out = append(out, c)
			walk(c.SID)
		}
	}
	walk(sid)
	return out
}

// findFilesystem returns the first Filesystem descendant of sid in graph,
// if any.
func findFilesystem(graph *devicegraph.Graph, sid device.SID) *device.Device {
	for _, d := range graph.Descendants(sid, devicegraph.Filter{}) {
		if d.IsFilesystem() {
			return d
		}
	}
	return nil
}

// ModeFor reports the resize direction for a size change from oldLen to
// newLen blocks (§4.D.3).
func ModeFor(oldLen, newLen uint64) Mode {
	if newLen < oldLen {
		return Shrink
	}
	return Grow
}

// Plan composes the full resize action chain for sid, whose region
// differs between lhs and rhs (§4.D.5):
//
//	(if unmount needed and fs exists on both sides) Unmount LHS FS
//	(SHRINK) Resize every LHS descendant in reverse DFS order that also exists on RHS
//	Resize self (always present)
//	(GROW) Resize every RHS descendant in DFS order that also exists on LHS
//	(if unmount needed and fs exists on both sides) Mount RHS FS
func Plan(lhs, rhs *devicegraph.Graph, sid device.SID, mode Mode) ([]Step, error) {
	lhsFS := findFilesystem(lhs, sid)
	rhsFS := findFilesystem(rhs, sid)

	needTmpUnmount := false
	if lhsFS != nil && rhsFS != nil {
		needTmpUnmount = !MountedResizeSupport(rhsFS.Kind, mode)
	}

	var steps []Step

	if needTmpUnmount && lhsFS != nil && rhsFS != nil {
		steps = append(steps, Step{Kind: StepUnmountFS, SID: lhsFS.SID})
	}

	switch mode {
	case Shrink:
		lhsDescendants := DevicesToResize(lhs, sid)
		rhsSIDs := sidSet(rhs.Descendants(sid, devicegraph.Filter{}))
		for i := len(lhsDescendants) - 1; i >= 0; i-- {
			d := lhsDescendants[i]
			if rhsSIDs[d.SID] {
				steps = append(steps, Step{Kind: StepResizeDevice, SID: d.SID})
			}
		}
	}

	steps = append(steps, Step{Kind: StepResizeDevice, SID: sid})

	if mode == Grow {
		rhsDescendants := DevicesToResize(rhs, sid)
		lhsSIDs := sidSet(lhs.Descendants(sid, devicegraph.Filter{}))
		for _, d := range rhsDescendants {
			if lhsSIDs[d.SID] {
				steps = append(steps, Step{Kind: StepResizeDevice, SID: d.SID})
			}
		}
	}

	if needTmpUnmount && lhsFS != nil && rhsFS != nil {
		steps = append(steps, Step{Kind: StepMountFS, SID: rhsFS.SID})
	}

	return steps, nil
}

func sidSet(ds []*device.Device) map[device.SID]bool {
	m := make(map[device.SID]bool, len(ds))
	for _, d := range ds {
		m[d.SID] = true
	}
	return m
}

// ReallotDirection is EXTEND or REDUCE, for a container membership change
// on Md or LvmVg (§4.D "Reallot").
type ReallotDirection int

const (
	Extend ReallotDirection = iota
	Reduce
)

// ReallotStep pairs a direction with the member BlkDevice SID it applies
// to. The direction also says which graph holds that SID: rhs for Extend,
// lhs for Reduce.
type ReallotStep struct {
	Direction ReallotDirection
	SID       device.SID
}

// ReallotDiff diffs the member SIDs of a container (Md or LvmVg) between
// lhs and rhs: every SID added in rhs becomes an EXTEND step referencing
// the RHS blk_device, every SID removed becomes a REDUCE step referencing
// the LHS blk_device.
func ReallotDiff(lhsMembers, rhsMembers []device.SID) []ReallotStep {
	lhsSet := make(map[device.SID]bool, len(lhsMembers))
	for _, s := range lhsMembers {
		lhsSet[s] = true
	}
	rhsSet := make(map[device.SID]bool, len(rhsMembers))
	for _, s := range rhsMembers {
		rhsSet[s] = true
	}

	var steps []ReallotStep
	for _, s := range rhsMembers {
		if !lhsSet[s] {
			steps = append(steps, ReallotStep{Direction: Extend, SID: s})
		}
	}
	for _, s := range lhsMembers {
		if !rhsSet[s] {
			steps = append(steps, ReallotStep{Direction: Reduce, SID: s})
		}
	}
	return steps
}

// ActivationStep reports an Activate/Deactivate transition, if any, for a
// device whose Active flag differs between lhs and rhs (§4.D
// "Activation").
type ActivationStep struct {
	Activate bool
	SID      device.SID
}

// ActivationDiff compares lhs.Active and rhs.Active for the same SID.
func ActivationDiff(lhs, rhs *device.Device) *ActivationStep {
	if lhs.Active == rhs.Active {
		return nil
	}
	return &ActivationStep{Activate: rhs.Active, SID: rhs.SID}
}
