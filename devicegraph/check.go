// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/errors"
)

// Callbacks receives problems found by Check. Message is purely
// informational; Error reports a non-fatal problem and its return value
// decides whether checking continues (true) or Check aborts immediately
// with the reported error (false), matching the original's callback
// contract (§7).
type Callbacks interface {
	Message(text string)
	Error(message string, what error) bool
}

// NopCallbacks implements Callbacks by ignoring every message and treating
// every error as non-fatal (continue).
type NopCallbacks struct{}

func (NopCallbacks) Message(string)           {}
func (NopCallbacks) Error(string, error) bool { return true }

// Check verifies g's structural invariants (§3 "Invariants"): acyclicity,
// name uniqueness, partition/table type consistency, block size
// agreement, the single-use rule for Filesystem/Encryption children, LvmLv
// attribute bounds, VG extent budget, and partition region non-overlap.
// Problems are reported through cb; a false return from cb.Error aborts
// Check with that error. A cycle and duplicate partition numbers on one
// table are fatal: Check returns them without consulting cb.
func (g *Graph) Check(cb Callbacks) error {
	if cb == nil {
		cb = NopCallbacks{}
	}

	// Acyclicity is fatal: no traversal below is meaningful on a cyclic
	// graph, so the error is raised rather than offered to the callback.
	if cyc := g.findCycle(); cyc != nil {
		return errors.New(errors.KindPlanningCycle, "devicegraph is not acyclic: %v", cyc)
	}

	if err := g.checkUniqueNames(cb); err != nil {
		return err
	}
	if err := g.checkPartitionParentage(cb); err != nil {
		return err
	}
	if err := g.checkDuplicatePartitionNumbers(cb); err != nil {
		return err
	}
	if err := g.checkBlockSizes(cb); err != nil {
		return err
	}
	if err := g.checkSingleUse(cb); err != nil {
		return err
	}
	if err := g.checkLvmLvBounds(cb); err != nil {
		return err
	}
	if err := g.checkVgOvercommit(cb); err != nil {
		return err
	}
	if err := g.checkPartitionOverlap(cb); err != nil {
		return err
	}

	return nil
}

// findCycle returns a representative cycle of SIDs if one exists, else nil.
func (g *Graph) findCycle() []device.SID {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[device.SID]int, len(g.order))
	var path []device.SID
	var cycle []device.SID

	var visit func(sid device.SID) bool
	visit = func(sid device.SID) bool {
		color[sid] = gray
		path = append(path, sid)
		for _, c := range g.Children(sid, Filter{}) {
			switch color[c.SID] {
			case white:
				if visit(c.SID) {
					return true
				}
			case gray:
				cycle = append([]device.SID(nil), path...)
				cycle = append(cycle, c.SID)
				return true
			}
		}
		path = path[:len(path)-1]
		color[sid] = black
		return false
	}

	for _, sid := range g.order {
		if color[sid] == white {
			if visit(sid) {
				return cycle
			}
		}
	}
	return nil
}

func (g *Graph) checkUniqueNames(cb Callbacks) error {
	seen := make(map[string]device.SID)
	for _, sid := range g.order {
		d := g.devices[sid]
		if !d.IsBlkDevice() || d.Name == "" {
			continue
		}
		if prior, ok := seen[d.Name]; ok && prior != sid {
			err := errors.New(errors.KindInvalidName, "duplicate device name %q (sids %d and %d)", d.Name, prior, sid)
			if !cb.Error("duplicate device name", err) {
				return err
			}
			continue
		}
		seen[d.Name] = sid
	}
	return nil
}

// checkPartitionParentage enforces invariant 3: PRIMARY/EXTENDED sit
// directly under a PartitionTable, LOGICAL sits under an EXTENDED
// Partition.
func (g *Graph) checkPartitionParentage(cb Callbacks) error {
	for _, sid := range g.order {
		d := g.devices[sid]
		if !d.IsPartition() {
			continue
		}
		parents := g.Parents(sid, Filter{})
		if len(parents) != 1 {
			err := errors.New(errors.KindWrongNumberOfChildren, "partition %q has %d parents, want 1", d.Name, len(parents))
			if !cb.Error("partition parentage", err) {
				return err
			}
			continue
		}
		parent := parents[0]
		switch d.PartitionType {
		case device.PartitionTypePrimary, device.PartitionTypeExtended:
			if !parent.IsPartitionTable() {
				err := errors.New(errors.KindDeviceHasWrongType, "partition %q of type %s must be a direct child of a partition table", d.Name, d.PartitionType)
				if !cb.Error("partition parentage", err) {
					return err
				}
			}
		case device.PartitionTypeLogical:
			if !(parent.IsPartition() && parent.PartitionType == device.PartitionTypeExtended) {
				err := errors.New(errors.KindDeviceHasWrongType, "logical partition %q must be a direct child of the extended partition", d.Name)
				if !cb.Error("partition parentage", err) {
					return err
				}
			}
		}
	}
	return nil
}

// checkDuplicatePartitionNumbers rejects two partitions sharing a number
// on the same table, across primaries, the extended partition, and the
// logicals nested under it. Unnumbered partitions (number 0) are
// skipped. A duplicate is fatal, never downgraded through the callback.
func (g *Graph) checkDuplicatePartitionNumbers(cb Callbacks) error {
	for _, sid := range g.order {
		table := g.devices[sid]
		if !table.IsPartitionTable() {
			continue
		}
		parts := g.Children(sid, Filter{Kind: device.KindPartition})
		parts = append(parts, g.partitionsUnderExtended(table)...)
		seen := make(map[int]*device.Device)
		for _, p := range parts {
			if p.Number == 0 {
				continue
			}
			if prior, ok := seen[p.Number]; ok {
				return errors.New(errors.KindInvalidName, "partitions %q and %q on table %q share number %d", prior.Name, p.Name, table.Name, p.Number)
			}
			seen[p.Number] = p
		}
	}
	return nil
}

// checkBlockSizes enforces invariant 4: a Partition's region.block_size
// equals its Partitionable parent's.
func (g *Graph) checkBlockSizes(cb Callbacks) error {
	for _, sid := range g.order {
		d := g.devices[sid]
		if !d.IsPartition() {
			continue
		}
		for _, parent := range g.Parents(sid, Filter{}) {
			if parent.IsPartitionTable() {
				for _, grandparent := range g.Parents(parent.SID, Filter{}) {
					if grandparent.Region.BlockSize != 0 && d.Region.BlockSize != grandparent.Region.BlockSize {
						err := errors.New(errors.KindDifferentBlockSizes, "partition %q block size %d != partitionable %q block size %d",
							d.Name, d.Region.BlockSize, grandparent.Name, grandparent.Region.BlockSize)
						if !cb.Error("block size mismatch", err) {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

// checkSingleUse enforces invariant 5: a BlkDevice has at most one child
// Filesystem and at most one child Encryption/Bcache.
func (g *Graph) checkSingleUse(cb Callbacks) error {
	for _, sid := range g.order {
		d := g.devices[sid]
		if !d.IsBlkDevice() {
			continue
		}
		fsCount, consumerCount := 0, 0
		for _, c := range g.Children(sid, Filter{}) {
			switch {
			case c.IsFilesystem():
				fsCount++
			case c.IsEncryption() || c.IsBcache():
				consumerCount++
			}
		}
		if fsCount > 1 {
			err := errors.New(errors.KindWrongNumberOfChildren, "device %q has %d filesystem children, want at most 1", d.Name, fsCount)
			if !cb.Error("single-use violation", err) {
				return err
			}
		}
		if consumerCount > 1 {
			err := errors.New(errors.KindWrongNumberOfChildren, "device %q has %d encryption/bcache children, want at most 1", d.Name, consumerCount)
			if !cb.Error("single-use violation", err) {
				return err
			}
		}
	}
	return nil
}

// checkLvmLvBounds enforces invariant 6.
func (g *Graph) checkLvmLvBounds(cb Callbacks) error {
	for _, sid := range g.order {
		d := g.devices[sid]
		if !d.IsLvmLv() {
			continue
		}
		if d.Stripes > 128 {
			err := errors.New(errors.KindInvalidExtentSize, "lv %q has %d stripes, want <= 128", d.LvName, d.Stripes)
			if !cb.Error("lv stripes out of bounds", err) {
				return err
			}
		}
		if d.StripeSize != 0 && (d.StripeSize < 4*1024 || !isPowerOfTwo(d.StripeSize)) {
			err := errors.New(errors.KindInvalidExtentSize, "lv %q stripe_size %d must be a power of two >= 4 KiB or zero", d.LvName, d.StripeSize)
			if !cb.Error("lv stripe size invalid", err) {
				return err
			}
		}
		if d.LvType == device.LvThinPool && d.LvChunk != 0 {
			const minChunk, maxChunk = 64 * 1024, 1 << 30
			if d.LvChunk%(64*1024) != 0 || d.LvChunk < minChunk || d.LvChunk > maxChunk {
				err := errors.New(errors.KindInvalidExtentSize, "thin pool %q chunk_size %d must be a multiple of 64 KiB in [64 KiB, 1 GiB]", d.LvName, d.LvChunk)
				if !cb.Error("thin pool chunk size invalid", err) {
					return err
				}
			} else if d.LvChunk*265289728 < d.Region.ToBytes() {
				err := errors.New(errors.KindInvalidExtentSize, "thin pool %q chunk_size %d too small for pool size", d.LvName, d.LvChunk)
				if !cb.Error("thin pool chunk size too small", err) {
					return err
				}
			}
		}
	}
	return nil
}

func isPowerOfTwo(n uint64) bool { return n != 0 && n&(n-1) == 0 }

// checkVgOvercommit enforces invariant 7: within an LvmVg, the sum of
// LvmLv logical sizes does not exceed the VG's extent budget.
func (g *Graph) checkVgOvercommit(cb Callbacks) error {
	for _, sid := range g.order {
		vg := g.devices[sid]
		if !vg.IsLvmVg() || vg.ExtentSize == 0 {
			continue
		}
		totalExtents := vg.Region.Length
		used := g.NumberOfUsedExtents(vg)
		if used > totalExtents {
			err := errors.New(errors.KindNoSpaceInVg, "volume group %q overcommitted: %d extents used, %d available", vg.VgName, used, totalExtents)
			if !cb.Error("vg overcommitted", err) {
				return err
			}
		}
	}
	return nil
}

// checkPartitionOverlap enforces invariant 8: no two partitions in the
// same table overlap — primaries and the extended partition against each
// other, and the logicals under each extended partition against each
// other — and at most one EXTENDED partition exists per MSDOS table.
func (g *Graph) checkPartitionOverlap(cb Callbacks) error {
	reportOverlaps := func(parts []*device.Device) error {
		for i, a := range parts {
			for _, b := range parts[i+1:] {
				if regionsOverlap(a, b) {
					err := errors.New(errors.KindInvalidName, "partitions %q and %q overlap", a.Name, b.Name)
					if !cb.Error("overlapping partitions", err) {
						return err
					}
				}
			}
		}
		return nil
	}

	for _, sid := range g.order {
		table := g.devices[sid]
		if !table.IsPartitionTable() {
			continue
		}
		parts := g.Children(sid, Filter{Kind: device.KindPartition})
		extendedCount := 0
		for _, a := range parts {
			if a.PartitionType != device.PartitionTypeExtended {
				continue
			}
			extendedCount++
			if err := reportOverlaps(g.Children(a.SID, Filter{Kind: device.KindPartition})); err != nil {
				return err
			}
		}
		if err := reportOverlaps(parts); err != nil {
			return err
		}
		if table.Kind == device.KindMsdos && extendedCount > 1 {
			err := errors.New(errors.KindInvalidName, "msdos table %q has %d extended partitions, want at most 1", table.Name, extendedCount)
			if !cb.Error("multiple extended partitions", err) {
				return err
			}
		}
	}
	return nil
}

func regionsOverlap(a, b *device.Device) bool {
	aEnd := a.Region.Start + a.Region.Length - 1
	bEnd := b.Region.Start + b.Region.Length - 1
	return a.Region.Start <= bEnd && b.Region.Start <= aEnd
}
