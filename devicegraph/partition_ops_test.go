// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"testing"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/region"
)

// TestSetPartitionBootUniqueness covers §8 scenario 5: setting boot=true
// on p1 in a table that already had p2.boot=true leaves p2.boot=false and
// only p1.boot=true.
func TestSetPartitionBootUniqueness(t *testing.T) {
	g := New()
	disk := g.NewDisk("/dev/sda", region.New(0, 2000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindMsdos)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}

	p1, err := g.NewPartition(table, "/dev/sda1", region.New(2048, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition() failed: %v", err)
	}
	p2, err := g.NewPartition(table, "/dev/sda2", region.New(600000, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition() failed: %v", err)
	}

	if err := g.SetPartitionBoot(p2.SID, true); err != nil {
		t.Fatalf("SetPartitionBoot(p2, true) failed: %v", err)
	}
	if !p2.Boot {
		t.Fatal("p2.Boot should be true")
	}

	if err := g.SetPartitionBoot(p1.SID, true); err != nil {
		t.Fatalf("SetPartitionBoot(p1, true) failed: %v", err)
	}

	if !p1.Boot {
		t.Fatal("p1.Boot should be true after SetPartitionBoot(p1, true)")
	}
	if p2.Boot {
		t.Fatal("p2.Boot should have been cleared when p1's boot flag was set")
	}
}

func TestSetPartitionIDRejectsUnsupported(t *testing.T) {
	g := New()
	disk := g.NewDisk("/dev/sda", region.New(0, 2000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindImplicitPt)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	part, err := g.NewPartition(table, "/dev/sda1", region.New(0, 2000000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition() failed: %v", err)
	}

	if err := g.SetPartitionID(part.SID, device.IDLvm); err == nil {
		t.Fatal("SetPartitionID() should fail on an ImplicitPt table, which has no id concept")
	}
}

// TestRenamePartitionablePropagatesToPartitions covers §4.C "Partition":
// renaming the owning disk regenerates every partition's name, sysfs
// name/path, and udev ids/paths from the disk's corresponding properties
// plus the partition number.
func TestRenamePartitionablePropagatesToPartitions(t *testing.T) {
	g := New()
	disk := g.NewDisk("/dev/sda", region.New(0, 2000000, 512), region.Topology{})
	disk.SysfsName = "sda"
	disk.SysfsPath = "/devices/pci0000:00/0000:00:17.0/host0/target0:0:0/0:0:0:0/block/sda"
	disk.UdevIDs = []string{"ata-WDC_WD10EZEX"}
	disk.UdevPaths = []string{"pci-0000:00:17.0-ata-1"}

	table, err := g.NewPartitionTable(disk, device.KindGpt)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	p, err := g.NewPartition(table, "/dev/sda1", region.New(2048, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition() failed: %v", err)
	}
	p.Number = 1

	if err := g.RenamePartitionable(disk.SID, "/dev/sdb"); err != nil {
		t.Fatalf("RenamePartitionable() failed: %v", err)
	}

	if p.Name != "/dev/sdb1" {
		t.Errorf("partition name = %q, want /dev/sdb1", p.Name)
	}
	if p.SysfsName != "sdb1" {
		t.Errorf("partition sysfs name = %q, want sdb1", p.SysfsName)
	}
	if len(p.UdevIDs) != 1 || p.UdevIDs[0] != "ata-WDC_WD10EZEX-part1" {
		t.Errorf("partition udev ids = %v, want [ata-WDC_WD10EZEX-part1]", p.UdevIDs)
	}
	if len(p.UdevPaths) != 1 || p.UdevPaths[0] != "pci-0000:00:17.0-ata-1-part1" {
		t.Errorf("partition udev paths = %v, want [pci-0000:00:17.0-ata-1-part1]", p.UdevPaths)
	}
}

// TestSetPartitionNumberRegeneratesNames verifies that renumbering a
// partition rebuilds its derived names, including the pN infix for a
// base name ending in a digit.
func TestSetPartitionNumberRegeneratesNames(t *testing.T) {
	g := New()
	disk := g.NewDisk("/dev/nvme0n1", region.New(0, 2000000, 512), region.Topology{})
	disk.SysfsName = "nvme0n1"

	table, err := g.NewPartitionTable(disk, device.KindGpt)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	p, err := g.NewPartition(table, "/dev/nvme0n1p1", region.New(2048, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition() failed: %v", err)
	}
	p.Number = 1

	if err := g.SetPartitionNumber(p.SID, 3); err != nil {
		t.Fatalf("SetPartitionNumber() failed: %v", err)
	}
	if p.Name != "/dev/nvme0n1p3" {
		t.Errorf("partition name = %q, want /dev/nvme0n1p3", p.Name)
	}
	if p.SysfsName != "nvme0n1p3" {
		t.Errorf("partition sysfs name = %q, want nvme0n1p3", p.SysfsName)
	}
}

// strictCallbacks aborts Check on the first reported problem instead of
// ignoring it.
type strictCallbacks struct{}

func (strictCallbacks) Message(string)           {}
func (strictCallbacks) Error(string, error) bool { return false }

// TestCheckRejectsDuplicatePartitionNumbers verifies that two partitions
// sharing a number on the same msdos table are a fatal Check violation,
// regardless of the callback's verdict.
func TestCheckRejectsDuplicatePartitionNumbers(t *testing.T) {
	g := New()
	disk := g.NewDisk("/dev/sda", region.New(0, 2000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindMsdos)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	p1, err := g.NewPartition(table, "/dev/sda1", region.New(2048, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition(p1) failed: %v", err)
	}
	p2, err := g.NewPartition(table, "/dev/sda2", region.New(600000, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition(p2) failed: %v", err)
	}
	p1.Number = 1
	p2.Number = 1

	if err := g.Check(NopCallbacks{}); err == nil {
		t.Fatal("Check() should reject duplicate partition numbers even with an ignoring callback")
	}
}

// TestSetPartitionNumberRejectsTakenNumber verifies the mutator refuses
// a number already assigned on the same table.
func TestSetPartitionNumberRejectsTakenNumber(t *testing.T) {
	g := New()
	disk := g.NewDisk("/dev/sda", region.New(0, 2000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindMsdos)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	p1, err := g.NewPartition(table, "/dev/sda1", region.New(2048, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition(p1) failed: %v", err)
	}
	p2, err := g.NewPartition(table, "/dev/sda2", region.New(600000, 500000, 512), device.PartitionTypePrimary)
	if err != nil {
		t.Fatalf("NewPartition(p2) failed: %v", err)
	}
	if err := g.SetPartitionNumber(p1.SID, 1); err != nil {
		t.Fatalf("SetPartitionNumber(p1, 1) failed: %v", err)
	}
	if err := g.SetPartitionNumber(p2.SID, 1); err == nil {
		t.Fatal("SetPartitionNumber(p2, 1) should reject a taken number")
	}
	if err := g.SetPartitionNumber(p2.SID, 2); err != nil {
		t.Fatalf("SetPartitionNumber(p2, 2) failed: %v", err)
	}
}

// TestCheckDetectsLogicalPartitionOverlap verifies invariant 8 extends
// to logical partitions nested under the same extended partition.
func TestCheckDetectsLogicalPartitionOverlap(t *testing.T) {
	g := New()
	disk := g.NewDisk("/dev/sda", region.New(0, 2000000, 512), region.Topology{})
	table, err := g.NewPartitionTable(disk, device.KindMsdos)
	if err != nil {
		t.Fatalf("NewPartitionTable() failed: %v", err)
	}
	ext, err := g.NewPartition(table, "/dev/sda1", region.New(2048, 1000000, 512), device.PartitionTypeExtended)
	if err != nil {
		t.Fatalf("NewPartition(extended) failed: %v", err)
	}
	if _, err := g.NewPartition(ext, "/dev/sda5", region.New(4096, 500000, 512), device.PartitionTypeLogical); err != nil {
		t.Fatalf("NewPartition(sda5) failed: %v", err)
	}
	if _, err := g.NewPartition(ext, "/dev/sda6", region.New(300000, 500000, 512), device.PartitionTypeLogical); err != nil {
		t.Fatalf("NewPartition(sda6) failed: %v", err)
	}

	if err := g.Check(strictCallbacks{}); err == nil {
		t.Fatal("Check() should report overlapping logical partitions")
	}
}
