// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"bytes"
	"testing"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/holder"
)

func sampleGraph() *Graph {
	g := New()

	disk := device.New(device.KindDisk)
	disk.Name = "/dev/sda"
	disk.Region = device.RegionAttrs{Start: 0, Length: 100000, BlockSize: 512}
	disk.Rotational = true
	diskSID := g.AddDevice(disk)

	gpt := device.New(device.KindGpt)
	gptSID := g.AddDevice(gpt)
	_ = g.AddHolder(holder.New(diskSID, gptSID))

	part := device.New(device.KindPartition)
	part.Name = "/dev/sda1"
	part.Region = device.RegionAttrs{Start: 2048, Length: 33554432, BlockSize: 512}
	part.PartitionType = device.PartitionTypePrimary
	part.PartitionID = device.IDLvm
	partSID := g.AddDevice(part)
	_ = g.AddHolder(holder.New(gptSID, partSID))

	return g
}

func TestAddDeviceAssignsUniqueSIDs(t *testing.T) {
	g := sampleGraph()
	seen := make(map[device.SID]bool)
	for _, d := range g.AllDevices() {
		if seen[d.SID] {
			t.Fatalf("duplicate SID %d", d.SID)
		}
		seen[d.SID] = true
	}
}

func TestChildrenAndParents(t *testing.T) {
	g := sampleGraph()

	disks := g.GetDevicesOfKind(device.KindDisk)
	if len(disks) != 1 {
		t.Fatalf("got %d disks, want 1", len(disks))
	}

	children := g.Children(disks[0].SID, Filter{})
	if len(children) != 1 || children[0].Kind != device.KindGpt {
		t.Fatalf("children of disk = %+v, want one Gpt", children)
	}

	parts := g.GetDevicesOfKind(device.KindPartition)
	parents := g.Parents(parts[0].SID, Filter{})
	if len(parents) != 1 || parents[0].Kind != device.KindGpt {
		t.Fatalf("parents of partition = %+v, want one Gpt", parents)
	}

	ancestors := g.Ancestors(parts[0].SID, Filter{})
	if len(ancestors) != 2 {
		t.Fatalf("ancestors of partition = %d, want 2", len(ancestors))
	}
}

func TestCopyIsIndependentAndEqual(t *testing.T) {
	g := sampleGraph()
	c := g.Copy()

	if !g.Equal(c) {
		t.Fatal("Copy() should be Equal to the source graph")
	}

	part := c.GetDevicesOfKind(device.KindPartition)[0]
	part.PartitionID = device.IDLinux

	if g.Equal(c) {
		t.Fatal("mutating the copy should not affect the source, but Equal() still reports true")
	}

	origPart := g.GetDevicesOfKind(device.KindPartition)[0]
	if origPart.PartitionID != device.IDLvm {
		t.Fatal("mutating the copy mutated the original")
	}
}

func TestRoundTripXML(t *testing.T) {
	g := sampleGraph()

	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !g.Equal(loaded) {
		t.Fatalf("load(save(g)) != g\nsaved:\n%s", buf.String())
	}
}

func TestFindBySIDAndName(t *testing.T) {
	g := sampleGraph()
	disk, err := g.FindByName("/dev/sda")
	if err != nil {
		t.Fatalf("FindByName() failed: %v", err)
	}

	got, err := g.FindBySID(disk.SID)
	if err != nil || got != disk {
		t.Fatalf("FindBySID() = %+v, %v", got, err)
	}

	if _, err := g.FindByName("/dev/nonexistent"); err == nil {
		t.Fatal("FindByName() should fail for an absent name")
	}
}

func TestCheckDetectsCycle(t *testing.T) {
	g := New()
	a := g.AddDevice(device.New(device.KindDisk))
	b := g.AddDevice(device.New(device.KindGpt))
	_ = g.AddHolder(holder.New(a, b))
	_ = g.AddHolder(holder.New(b, a))

	if err := g.Check(NopCallbacks{}); err == nil {
		t.Fatal("Check() should fail on a cyclic graph")
	}
}

func TestCheckPassesOnSample(t *testing.T) {
	g := sampleGraph()
	if err := g.Check(NopCallbacks{}); err != nil {
		t.Fatalf("Check() failed on a well-formed graph: %v", err)
	}
}

func TestRemoveDescendantsCascades(t *testing.T) {
	g := sampleGraph()
	disk := g.GetDevicesOfKind(device.KindDisk)[0]

	g.RemoveDescendants(disk.SID)

	if len(g.AllDevices()) != 1 {
		t.Fatalf("after RemoveDescendants, %d devices remain, want 1", len(g.AllDevices()))
	}
	if len(g.AllHolders()) != 0 {
		t.Fatalf("after RemoveDescendants, %d holders remain, want 0", len(g.AllHolders()))
	}
}
