// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package inspector

import (
	"testing"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/devicegraph"
)

func TestProbeBuildsDiskPartitionFilesystemChain(t *testing.T) {
	fake := NewFake().
		Add(RawDevice{Name: "/dev/sda", Kind: device.KindDisk, SizeBytes: 100000 * 512, BlockSize: 512,
			Attrs: Attrs{"rota": "0"}}).
		Add(RawDevice{Name: "/dev/sda-gpt", Kind: device.KindGpt, Parent: "/dev/sda"}).
		Add(RawDevice{Name: "/dev/sda1", Kind: device.KindPartition, Parent: "/dev/sda-gpt",
			SizeBytes: 16 << 30, BlockSize: 512}).
		Add(RawDevice{Name: "/dev/sda1-fs", Kind: device.KindExt4, Parent: "/dev/sda1",
			Attrs: Attrs{"label": "root", "uuid": "1234"}}).
		Add(RawDevice{Name: "/dev/sda1-mp", Kind: device.KindMountPoint, Parent: "/dev/sda1-fs",
			Attrs: Attrs{"mountpoint": "/"}})

	g, err := Probe(fake)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	disks := g.GetDevicesOfKind(device.KindDisk)
	if len(disks) != 1 || disks[0].Name != "/dev/sda" {
		t.Fatalf("expected one disk /dev/sda, got %v", disks)
	}

	parts := g.GetDevicesOfKind(device.KindPartition)
	if len(parts) != 1 {
		t.Fatalf("expected one partition, got %d", len(parts))
	}

	fses := g.GetDevicesOfKind(device.KindExt4)
	if len(fses) != 1 || fses[0].UUID != "1234" || fses[0].Label != "root" {
		t.Fatalf("unexpected filesystem: %+v", fses)
	}

	mps := g.GetDevicesOfKind(device.KindMountPoint)
	if len(mps) != 1 || mps[0].MountPath != "/" {
		t.Fatalf("unexpected mount point: %+v", mps)
	}

	if err := g.Check(devicegraph.NopCallbacks{}); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestProbeRejectsOutOfOrderParent(t *testing.T) {
	fake := NewFake().
		Add(RawDevice{Name: "/dev/sda1", Kind: device.KindPartition, Parent: "/dev/sda-gpt"})

	if _, err := Probe(fake); err == nil {
		t.Fatalf("expected an error when a device's parent hasn't been reported yet")
	}
}

func TestFindBySysfsPath(t *testing.T) {
	fake := NewFake().SetSysfsPath("/sys/block/sda", "/dev/sda")
	name, ok := fake.FindBySysfsPath("/sys/block/sda")
	if !ok || name != "/dev/sda" {
		t.Fatalf("FindBySysfsPath = %q, %v", name, ok)
	}
	if _, ok := fake.FindBySysfsPath("/sys/block/sdb"); ok {
		t.Fatalf("expected no match for unregistered path")
	}
}
