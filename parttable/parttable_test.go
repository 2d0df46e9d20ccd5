// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package parttable

import (
	"testing"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/devicegraph"
	"github.com/clearlinux/storage-engine/region"
)

func TestGetUnusedPartitionSlotsFreshGpt(t *testing.T) {
	g := devicegraph.New()
	disk := g.NewDisk("/dev/sda", region.New(0, 100000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindGpt)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}

	slots, err := GetUnusedPartitionSlots(g, table, region.AlignEnd)
	if err != nil {
		t.Fatalf("GetUnusedPartitionSlots() failed: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots on a fresh gpt disk, want 1", len(slots))
	}
	if slots[0].Number != 1 || slots[0].Type != device.PartitionTypePrimary {
		t.Fatalf("slot = %+v, want number=1 type=PRIMARY", slots[0])
	}
	if slots[0].Region.Length == 0 {
		t.Fatal("slot region should be non-empty")
	}
}

func TestGetUnusedPartitionSlotsAfterOnePartition(t *testing.T) {
	g := devicegraph.New()
	disk := g.NewDisk("/dev/sda", region.New(0, 1000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindGpt)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}

	first, err := GetUnusedPartitionSlots(g, table, region.AlignEnd)
	if err != nil || len(first) != 1 {
		t.Fatalf("GetUnusedPartitionSlots() = %+v, %v", first, err)
	}

	used := region.New(first[0].Region.Start, first[0].Region.Length/2, first[0].Region.BlockSize)
	p1, err := g.NewPartition(table, "/dev/sda1", used, device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition() failed: %v", err)
	}
	p1.Number = 1

	slots, err := GetUnusedPartitionSlots(g, table, region.AlignEnd)
	if err != nil {
		t.Fatalf("GetUnusedPartitionSlots() failed: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots after carving one partition, want 1 remaining gap", len(slots))
	}
	if slots[0].Number != 2 {
		t.Fatalf("next slot number = %d, want 2", slots[0].Number)
	}
	if slots[0].Region.Start <= used.End() {
		t.Fatalf("remaining slot %+v should start after the used region %+v", slots[0].Region, used)
	}
}

func TestGetUnusedPartitionSlotsMsdosExtendedAndLogical(t *testing.T) {
	g := devicegraph.New()
	disk := g.NewDisk("/dev/sda", region.New(0, 2000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindMsdos)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}

	slots, err := GetUnusedPartitionSlots(g, table, region.AlignEnd)
	if err != nil || len(slots) != 1 {
		t.Fatalf("GetUnusedPartitionSlots() = %+v, %v", slots, err)
	}

	extRegion := region.New(slots[0].Region.Start, slots[0].Region.Length, slots[0].Region.BlockSize)
	ext, err := g.NewPartition(table, "/dev/sda1", extRegion, device.PartitionTypeExtended)
	if err != nil {
		t.Fatalf("NewPartition(extended) failed: %v", err)
	}
	_ = ext

	logicalSlots, err := GetUnusedPartitionSlots(g, table, region.AlignEnd)
	if err != nil {
		t.Fatalf("GetUnusedPartitionSlots() failed: %v", err)
	}
	if len(logicalSlots) != 1 {
		t.Fatalf("got %d logical slots inside the extended partition, want 1", len(logicalSlots))
	}
	if logicalSlots[0].Type != device.PartitionTypeLogical {
		t.Fatalf("slot type = %v, want LOGICAL", logicalSlots[0].Type)
	}
	if logicalSlots[0].Number != table.MaxPrimary()+1 {
		t.Fatalf("first logical partition number = %d, want %d", logicalSlots[0].Number, table.MaxPrimary()+1)
	}
	if logicalSlots[0].Region.Start <= extRegion.Start {
		t.Fatalf("logical slot %+v should start after the extended partition's own start (EBR reservation)", logicalSlots[0].Region)
	}
}

// TestUnusedSurroundingRegionPrimary bounds a GROW of a primary partition
// by the free space on either side of it, stopping at the next sibling.
func TestUnusedSurroundingRegionPrimary(t *testing.T) {
	g := devicegraph.New()
	disk := g.NewDisk("/dev/sda", region.New(0, 1000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindGpt)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	p1, err := g.NewPartition(table, "/dev/sda1", region.New(2048, 100000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition(p1) failed: %v", err)
	}
	if _, err := g.NewPartition(table, "/dev/sda2", region.New(500000, 100000, 512), device.PartitionTypePrimary); err != nil {
		t.Fatalf("NewPartition(p2) failed: %v", err)
	}

	surrounding, err := UnusedSurroundingRegion(g, p1)
	if err != nil {
		t.Fatalf("UnusedSurroundingRegion() failed: %v", err)
	}
	if !surrounding.Contains(region.New(2048, 100000, 512)) {
		t.Errorf("surrounding region %+v should contain p1's region", surrounding)
	}
	if surrounding.End() != 499999 {
		t.Errorf("surrounding region end = %d, want 499999 (stop before p2)", surrounding.End())
	}
}

// TestUnusedSurroundingRegionLogical bounds a logical partition by the
// extended region minus its logical siblings, with one sector reserved
// for the EBR.
func TestUnusedSurroundingRegionLogical(t *testing.T) {
	g := devicegraph.New()
	disk := g.NewDisk("/dev/sda", region.New(0, 1000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindMsdos)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	ext, err := g.NewPartition(table, "/dev/sda1", region.New(2048, 800000, 512), device.PartitionTypeExtended)
	if err != nil {
		t.Fatalf("NewPartition(extended) failed: %v", err)
	}
	l5, err := g.NewPartition(ext, "/dev/sda5", region.New(4096, 100000, 512), device.PartitionTypeLogical)
	if err != nil {
		t.Fatalf("NewPartition(logical) failed: %v", err)
	}
	if _, err := g.NewPartition(ext, "/dev/sda6", region.New(400000, 100000, 512), device.PartitionTypeLogical); err != nil {
		t.Fatalf("NewPartition(logical sibling) failed: %v", err)
	}

	surrounding, err := UnusedSurroundingRegion(g, l5)
	if err != nil {
		t.Fatalf("UnusedSurroundingRegion() failed: %v", err)
	}
	if surrounding.Start != 2049 {
		t.Errorf("surrounding region start = %d, want 2049 (extended start + EBR sector)", surrounding.Start)
	}
	if surrounding.End() != 399999 {
		t.Errorf("surrounding region end = %d, want 399999 (stop before the next logical)", surrounding.End())
	}
	if !surrounding.Contains(region.New(4096, 100000, 512)) {
		t.Errorf("surrounding region %+v should contain the logical's region", surrounding)
	}
}
