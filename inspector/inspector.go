// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package inspector defines the SystemInspector boundary (§1): probing the
// running system (lsblk, udev, parted, lvs, /proc/mdstat) is explicitly
// out of scope for this engine, so SystemInspector is the seam a real
// probing backend plugs into, yielding raw per-device attributes the way
// the teacher's lsblk JSON decoder (storage/parse.go) does, generalised
// from lsblk's specific column set to an open string-keyed attribute bag.
// Fake, the only implementation this repo ships, is an in-memory double
// for tests.
package inspector

import (
	"sort"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/devicegraph"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/region"
)

// Attrs is a raw per-device attribute bag, keyed the way lsblk/udev expose
// them (e.g. "size", "rota", "tran", "uuid"). Probing-specific parsing of
// these strings into typed Device fields is Probe's job, not the
// SystemInspector's.
type Attrs map[string]string

// RawDevice is one entry a SystemInspector yields: enough to reconstruct a
// single Device node and its position in the tree, without committing to
// any particular probing tool's wire format.
type RawDevice struct {
	Name      string
	Kind      device.Kind
	Parent    string // "" for a root device (a Disk)
	SizeBytes uint64
	BlockSize uint32
	Attrs     Attrs
}

// SystemInspector yields the raw observed state of every storage device on
// a system. A real implementation shells out to lsblk/udev/parted/lvs/
// /proc/mdstat; that implementation is an external collaborator per §1 and
// is not part of this engine.
type SystemInspector interface {
	// Devices returns every probed device, parents before children.
	Devices() ([]RawDevice, error)
	// FindBySysfsPath resolves a sysfs path to a device name, backing
	// DeviceGraph.FindByAnyName's sysfs-path fallback (§4.B).
	FindBySysfsPath(sysfsPath string) (name string, ok bool)
}

// Fake is an in-memory SystemInspector used by tests.
// It never touches a real system.
type Fake struct {
	devices    []RawDevice
	sysfsPaths map[string]string
}

// NewFake returns an empty Fake inspector.
func NewFake() *Fake {
	return &Fake{sysfsPaths: map[string]string{}}
}

// Add registers one RawDevice, returning the Fake for chaining.
func (f *Fake) Add(rd RawDevice) *Fake {
	f.devices = append(f.devices, rd)
	return f
}

// SetSysfsPath registers a sysfs path lookup, used by FindBySysfsPath.
func (f *Fake) SetSysfsPath(sysfsPath, name string) *Fake {
	f.sysfsPaths[sysfsPath] = name
	return f
}

// Devices implements SystemInspector.
func (f *Fake) Devices() ([]RawDevice, error) {
	out := append([]RawDevice(nil), f.devices...)
	return out, nil
}

// FindBySysfsPath implements SystemInspector.
func (f *Fake) FindBySysfsPath(sysfsPath string) (string, bool) {
	name, ok := f.sysfsPaths[sysfsPath]
	return name, ok
}

// Probe builds a fresh devicegraph.Graph from everything insp reports,
// laying out Disk -> PartitionTable -> Partition -> Filesystem ->
// MountPoint chains (and bare Disk -> Filesystem for unpartitioned disks)
// by following each RawDevice's Parent field. This plays the role the
// teacher's parseBlockDevicesDescriptor (storage/parse.go) plays for
// lsblk's JSON tree, generalised to the typed Device taxonomy (§3) instead
// of one flat BlockDevice struct — grounded on that decoder's
// parent-to-child walk, not on any real probing tool's wire format.
func Probe(insp SystemInspector) (*devicegraph.Graph, error) {
	raws, err := insp.Devices()
	if err != nil {
		return nil, errors.Wrap(err)
	}

	g := devicegraph.New()
	byName := map[string]*device.Device{}

	// Disks first: they are the only devices Probe can create without
	// already knowing a parent's SID.
	for _, rd := range raws {
		if rd.Kind != device.KindDisk {
			continue
		}
		topo := region.Topology{}
		r := region.Region{
			Start:     0,
			Length:    rd.SizeBytes / uint64(blockSizeOr512(rd.BlockSize)),
			BlockSize: blockSizeOr512(rd.BlockSize),
		}
		d := g.NewDisk(rd.Name, r, topo)
		d.Rotational = rd.Attrs["rota"] == "1"
		byName[rd.Name] = d
	}

	// Remaining kinds are created in the order the inspector reported
	// them, which Probe requires to be parents-before-children (matching
	// the §4.B "Inspector -> DeviceGraph (probed)" data-flow contract).
	for _, rd := range raws {
		if rd.Kind == device.KindDisk {
			continue
		}
		parent, ok := byName[rd.Parent]
		if !ok {
			return nil, errors.Errorf("inspector: %q reported before its parent %q", rd.Name, rd.Parent)
		}

		switch {
		case rd.Kind.IsPartitionTable():
			d, err := g.NewPartitionTable(parent, rd.Kind)
			if err != nil {
				return nil, err
			}
			byName[rd.Name] = d
		case rd.Kind == device.KindPartition:
			r := region.Region{
				Start:     0,
				Length:    rd.SizeBytes / uint64(blockSizeOr512(rd.BlockSize)),
				BlockSize: blockSizeOr512(rd.BlockSize),
			}
			d, err := g.NewPartition(parent, rd.Name, r, device.PartitionTypePrimary)
			if err != nil {
				return nil, err
			}
			byName[rd.Name] = d
		case rd.Kind.IsFilesystem():
			d, err := g.NewFilesystem(parent, rd.Kind, rd.Attrs["label"])
			if err != nil {
				return nil, err
			}
			d.UUID = rd.Attrs["uuid"]
			byName[rd.Name] = d
		case rd.Kind == device.KindMountPoint:
			if _, err := g.NewMountPoint(parent, rd.Attrs["mountpoint"], nil); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("inspector: Probe does not support kind %s yet", rd.Kind)
		}
	}

	return g, nil
}

func blockSizeOr512(b uint32) uint32 {
	if b == 0 {
		return 512
	}
	return b
}

// SortedNames is a small convenience for printing a probed graph's
// devices in a stable order.
func SortedNames(raws []RawDevice) []string {
	names := make([]string, len(raws))
	for i, rd := range raws {
		names[i] = rd.Name
	}
	sort.Strings(names)
	return names
}
