// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package parttable enumerates free partition slots within a PartitionTable,
// the part of §4.C that needs sibling partitions (and so a devicegraph),
// unlike the capability queries (max_primary, is_partition_type_supported,
// ...) that live as methods on device.Device itself. Grounded on
// original_source's PartitionTableImpl.cc/GptImpl.cc geometry rules and on
// the teacher's storage/parted_partition.go free-space scan, re-expressed
// without shelling out to `parted` since this engine's executor talks to
// SystemExecutor named operations instead (§4.F).
package parttable

import (
	"sort"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/devicegraph"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/region"
)

// Slot describes one piece of free space a new partition could occupy.
type Slot struct {
	Region region.Region
	Number int
	Type   device.PartitionType
}

// UsableRegion returns diskRegion shrunk by table's unusable_sectors at
// both ends (§4.C "usable_region()").
func UsableRegion(table *device.Device, diskRegion region.Region) region.Region {
	front, back := table.UnusableSectors(diskRegion.BlockSize)
	start := diskRegion.Start + front
	if diskRegion.Length < front+back {
		return region.New(start, 0, diskRegion.BlockSize)
	}
	length := diskRegion.Length - front - back
	return region.New(start, length, diskRegion.BlockSize)
}

// tableCounts gathers num_primary/num_logical/has_extended/extended from
// table's current children.
type tableCounts struct {
	numPrimary  int
	numLogical  int
	hasExtended bool
	extended    *device.Device
	used        []region.Region // PRIMARY+EXTENDED regions, for gap subtraction
	logicalUsed []region.Region // LOGICAL regions, for gap subtraction within the extended region
	usedNumbers map[int]bool
}

func gatherCounts(g *devicegraph.Graph, table *device.Device) tableCounts {
	tc := tableCounts{usedNumbers: make(map[int]bool)}
	for _, p := range g.Children(table.SID, devicegraph.Filter{Kind: device.KindPartition}) {
		tc.usedNumbers[p.Number] = true
		switch p.PartitionType {
		case device.PartitionTypePrimary:
			tc.numPrimary++
			tc.used = append(tc.used, devicegraph.ToRegion(p.Region))
		case device.PartitionTypeExtended:
			tc.numPrimary++
			tc.hasExtended = true
			tc.extended = p
			tc.used = append(tc.used, devicegraph.ToRegion(p.Region))
		case device.PartitionTypeLogical:
			tc.numLogical++
			tc.logicalUsed = append(tc.logicalUsed, devicegraph.ToRegion(p.Region))
		}
	}
	if tc.extended != nil {
		for _, p := range g.Children(tc.extended.SID, devicegraph.Filter{Kind: device.KindPartition}) {
			tc.usedNumbers[p.Number] = true
			tc.numLogical++
			tc.logicalUsed = append(tc.logicalUsed, devicegraph.ToRegion(p.Region))
		}
	}
	return tc
}

// subtractGaps returns the gaps remaining in usable after removing every
// region in used, sorted by start.
func subtractGaps(usable region.Region, used []region.Region) []region.Region {
	sorted := append([]region.Region(nil), used...)
	region.SortByStart(sorted)

	var gaps []region.Region
	cursor := usable.Start
	for _, u := range sorted {
		if u.Start > cursor {
			gaps = append(gaps, region.New(cursor, u.Start-cursor, usable.BlockSize))
		}
		if u.End()+1 > cursor {
			cursor = u.End() + 1
		}
	}
	if usable.Length > 0 && cursor <= usable.End() {
		gaps = append(gaps, region.New(cursor, usable.End()-cursor+1, usable.BlockSize))
	}
	return gaps
}

func firstUnusedNumber(used map[int]bool, start, limit int) int {
	for n := start; n <= limit; n++ {
		if !used[n] {
			return n
		}
	}
	return 0
}

// GetUnusedPartitionSlots enumerates every free slot in table under
// policy, following §4.C's get_unused_partition_slots algorithm exactly:
// primary/extended slots first (each the aligned remainder of a gap in
// usable_region after existing PRIMARY/EXTENDED regions are subtracted),
// then — if an EXTENDED partition exists — logical slots inside it (each
// gap's first sector reserved for its EBR before alignment).
func GetUnusedPartitionSlots(g *devicegraph.Graph, table *device.Device, policy region.AlignPolicy) ([]Slot, error) {
	if !table.IsPartitionTable() {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%q is not a partition table", table.Classname())
	}
	disks := g.Parents(table.SID, devicegraph.Filter{})
	if len(disks) != 1 {
		return nil, errors.New(errors.KindWrongNumberOfChildren, "partition table has %d parents, want 1", len(disks))
	}
	disk := disks[0]
	topo := devicegraph.ToTopology(disk.Topology)

	tc := gatherCounts(g, table)

	maxPrimary := table.MaxPrimary()
	maxLogical := table.MaxLogical()

	isPrimaryPossible := tc.numPrimary < maxPrimary
	isExtendedPossible := isPrimaryPossible && table.ExtendedPossible() && !tc.hasExtended
	isLogicalPossible := tc.hasExtended && tc.numLogical < maxLogical-maxPrimary

	var slots []Slot

	if isPrimaryPossible || isExtendedPossible {
		usable := UsableRegion(table, devicegraph.ToRegion(disk.Region))
		for _, gap := range subtractGaps(usable, tc.used) {
			aligned, err := topo.Align(gap, policy)
			if err != nil {
				continue
			}
			number := firstUnusedNumber(tc.usedNumbers, 1, maxPrimary)
			if number == 0 {
				break
			}
			tc.usedNumbers[number] = true
			slots = append(slots, Slot{Region: aligned, Number: number, Type: device.PartitionTypePrimary})
		}
	}

	if isLogicalPossible {
		extRegion := devicegraph.ToRegion(tc.extended.Region)
		for _, gap := range subtractGaps(extRegion, tc.logicalUsed) {
			if gap.Length == 0 {
				continue
			}
			// reserve the gap's first sector for the EBR before aligning.
			ebrAdjusted := region.New(gap.Start+1, gap.Length-1, gap.BlockSize)
			aligned, err := topo.Align(ebrAdjusted, policy)
			if err != nil {
				continue
			}
			number := firstUnusedNumber(tc.usedNumbers, maxPrimary+1, maxLogical)
			if number == 0 {
				break
			}
			tc.usedNumbers[number] = true
			slots = append(slots, Slot{Region: aligned, Number: number, Type: device.PartitionTypeLogical})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Region.Start < slots[j].Region.Start })
	return slots, nil
}

// UnusedSurroundingRegion returns the maximal free region a GROW resize
// of part may expand into (§4.C "get_unused_surrounding_region"): for a
// PRIMARY/EXTENDED partition the usable region minus every other
// PRIMARY/EXTENDED sibling, for a LOGICAL partition the extended region
// minus every other LOGICAL sibling, less one sector for the EBR.
func UnusedSurroundingRegion(g *devicegraph.Graph, part *device.Device) (region.Region, error) {
	if !part.IsPartition() {
		return region.Region{}, errors.New(errors.KindDeviceHasWrongType, "%q is not a partition", part.Name)
	}

	partRegion := devicegraph.ToRegion(part.Region)

	var table *device.Device
	for _, p := range g.Parents(part.SID, devicegraph.Filter{}) {
		if p.IsPartitionTable() {
			table = p
		}
		if p.IsPartition() && p.PartitionType == device.PartitionTypeExtended {
			// LOGICAL: bound by the extended region minus the other
			// logicals, with one sector reserved for this partition's
			// own EBR.
			bound := devicegraph.ToRegion(p.Region)
			var others []region.Region
			for _, sibling := range g.Children(p.SID, devicegraph.Filter{Kind: device.KindPartition}) {
				if sibling.SID != part.SID {
					others = append(others, devicegraph.ToRegion(sibling.Region))
				}
			}
			return surroundingGap(bound, others, partRegion, 1)
		}
	}
	if table == nil {
		return region.Region{}, errors.New(errors.KindDeviceNotFoundBySid, "partition %q has no owning partition table", part.Name)
	}

	disks := g.Parents(table.SID, devicegraph.Filter{})
	if len(disks) != 1 {
		return region.Region{}, errors.New(errors.KindWrongNumberOfChildren, "partition table has %d parents, want 1", len(disks))
	}
	bound := UsableRegion(table, devicegraph.ToRegion(disks[0].Region))

	var others []region.Region
	for _, sibling := range g.Children(table.SID, devicegraph.Filter{Kind: device.KindPartition}) {
		if sibling.SID == part.SID {
			continue
		}
		switch sibling.PartitionType {
		case device.PartitionTypePrimary, device.PartitionTypeExtended:
			others = append(others, devicegraph.ToRegion(sibling.Region))
		}
	}
	return surroundingGap(bound, others, partRegion, 0)
}

// surroundingGap finds the gap within bound (after subtracting others)
// that contains partRegion, and widens it to include partRegion itself.
// ebrSectors shrinks the gap's front for a logical partition's boot
// record.
func surroundingGap(bound region.Region, others []region.Region, partRegion region.Region, ebrSectors uint64) (region.Region, error) {
	for _, gap := range subtractGaps(bound, others) {
		if !gap.Contains(partRegion) {
			continue
		}
		start := gap.Start
		length := gap.Length
		if ebrSectors > 0 && gap.Start < partRegion.Start {
			start += ebrSectors
			length -= ebrSectors
		}
		return region.New(start, length, gap.BlockSize), nil
	}
	return region.Region{}, region.AlignError{Region: partRegion}
}
