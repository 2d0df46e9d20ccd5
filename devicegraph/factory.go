// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"github.com/google/uuid"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/holder"
	"github.com/clearlinux/storage-engine/region"
)

// Factory helpers build a Device, add it to g, and wire the Subdevice/User
// holder that makes it reachable, mirroring how the original's Devicegraph
// factory methods both allocate and insert a node in one call. The LvmVg,
// LvmLv (including thin LVs) and BcacheCset factories assign a uuid
// generated the way gobtr's
// btrfs-scoped code generates volume identifiers with google/uuid, since
// nothing in this engine ever reads a uuid back off real hardware in these
// tests — a freshly created device's uuid is assigned, not probed.
// NewFilesystem leaves the filesystem's UUID empty.

// NewDisk adds a Disk device. The planner refuses to create or delete a
// Disk except under engconf.TargetModeImage (see actiongraph.BuildForMode).
func (g *Graph) NewDisk(name string, r region.Region, topo region.Topology) *device.Device {
	d := device.New(device.KindDisk)
	d.Name = name
	d.Region = FromRegion(r)
	d.Topology = FromTopology(topo)
	d.Active = true
	g.AddDevice(d)
	return d
}

// NewPartitionTable adds a PartitionTable of the given kind as a child of
// disk.
func (g *Graph) NewPartitionTable(disk *device.Device, kind device.Kind) (*device.Device, error) {
	if !kind.IsPartitionTable() {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%s is not a partition table kind", kind)
	}
	pt := device.New(kind)
	g.AddDevice(pt)
	if err := g.AddHolder(holder.New(disk.SID, pt.SID)); err != nil {
		return nil, err
	}
	return pt, nil
}

// NewPartition adds a Partition as a child of parent: PRIMARY/EXTENDED
// partitions go directly under a PartitionTable, LOGICAL partitions under
// an EXTENDED partition (§3 invariant 3).
func (g *Graph) NewPartition(parent *device.Device, name string, r region.Region, typ device.PartitionType) (*device.Device, error) {
	table := parent
	if typ == device.PartitionTypeLogical {
		if !parent.IsPartition() || parent.PartitionType != device.PartitionTypeExtended {
			return nil, device.ErrUnsupportedFeature("logical partition outside an extended partition", parent.Kind)
		}
		owner, err := g.partitionTableFor(parent)
		if err != nil {
			return nil, err
		}
		table = owner
	} else if !parent.IsPartitionTable() {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%s is not a partition table kind", parent.Kind)
	}
	if !table.IsPartitionTypeSupported(typ) {
		return nil, device.ErrUnsupportedFeature("partition type "+typ.String(), table.Kind)
	}
	p := device.New(device.KindPartition)
	p.Name = name
	p.Region = FromRegion(r)
	p.PartitionType = typ
	p.PartitionID = device.DefaultIDForType(typ)
	p.Active = true
	g.AddDevice(p)
	if err := g.AddHolder(holder.New(parent.SID, p.SID)); err != nil {
		return nil, err
	}
	return p, nil
}

// NewLvmVg adds an LvmVg device with a freshly assigned uuid.
func (g *Graph) NewLvmVg(vgName string, extentSize uint64) *device.Device {
	vg := device.New(device.KindLvmVg)
	vg.VgName = vgName
	vg.Name = "/dev/" + vgName
	vg.ExtentSize = extentSize
	vg.UUID = uuid.NewString()
	g.AddDevice(vg)
	return vg
}

// NewLvmLv adds an LvmLv as a child of vg with a freshly assigned uuid.
func (g *Graph) NewLvmLv(vg *device.Device, lvName string, sizeExtents uint64, lvType device.LvType) (*device.Device, error) {
	if !vg.IsLvmVg() {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%q is not an LvmVg", vg.Name)
	}
	lv := device.New(device.KindLvmLv)
	lv.LvName = lvName
	lv.Name = vg.Name + "/" + lvName
	lv.LvType = lvType
	lv.UUID = uuid.NewString()
	lv.Region = device.RegionAttrs{Start: 0, Length: sizeExtents, BlockSize: uint32(vg.ExtentSize)}
	g.AddDevice(lv)
	if err := g.AddHolder(holder.New(vg.SID, lv.SID)); err != nil {
		return nil, err
	}
	return lv, nil
}

// NewMd adds an Md device.
func (g *Graph) NewMd(name string, level device.MdLevel) *device.Device {
	md := device.New(device.KindMd)
	md.Name = name
	md.MdLevel = level
	md.Active = true
	g.AddDevice(md)
	return md
}

// AddMdMember attaches blk as a (possibly spare) member of md via an
// MdUser holder, and recomputes md's region/topology from its members
// (§4.C "Md").
func (g *Graph) AddMdMember(md, blk *device.Device, spare bool) error {
	if !md.IsMd() {
		return errors.New(errors.KindDeviceHasWrongType, "%q is not an Md array", md.Name)
	}
	if err := g.AddHolder(holder.NewMdUser(blk.SID, md.SID, spare, false)); err != nil {
		return err
	}
	g.RecalculateMdGeometry(md)
	return nil
}

// RemoveMdMember detaches blk from md by dropping its MdUser holder and
// recomputes md's region/topology from the remaining members, the same
// recomputation contract as AddMdMember (§4.C "Adding/removing members
// triggers recomputation").
func (g *Graph) RemoveMdMember(md, blk *device.Device) error {
	if !md.IsMd() {
		return errors.New(errors.KindDeviceHasWrongType, "%q is not an Md array", md.Name)
	}
	found := false
	kept := g.holders[:0]
	for _, h := range g.holders {
		if h.Kind == holder.MdUser && h.Parent == blk.SID && h.Child == md.SID {
			found = true
			continue
		}
		kept = append(kept, h)
	}
	g.holders = kept
	if !found {
		return errors.New(errors.KindDeviceNotFoundBySid, "%q is not a member of %q", blk.Name, md.Name)
	}
	g.RecalculateMdGeometry(md)
	return nil
}

// NewBcacheCset adds a BcacheCset device with a freshly assigned uuid.
func (g *Graph) NewBcacheCset() *device.Device {
	cset := device.New(device.KindBcacheCset)
	cset.CsetUUID = uuid.NewString()
	g.AddDevice(cset)
	return cset
}

// NewEncryption creates an Encryption device and splices it between
// parent and every one of parent's current consumers, so that those
// consumers now read from the Encryption device instead (§4.C
// "create_encryption(parent) inserts an Encryption vertex between the
// parent BlkDevice and its former out-edges").
func (g *Graph) NewEncryption(parent *device.Device, encType device.EncryptionType, password string) (*device.Device, error) {
	if !parent.IsBlkDevice() {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%q is not a BlkDevice", parent.Name)
	}

	enc := device.New(device.KindEncryption)
	enc.Name = parent.Name + "-enc"
	enc.EncType = encType
	enc.Password = password
	enc.Region = parent.Region
	g.AddDevice(enc)

	for _, idx := range g.HolderIndexesFor(parent.SID) {
		if err := g.SetSource(idx, enc.SID); err != nil {
			return nil, err
		}
	}
	if err := g.AddHolder(holder.NewUser(parent.SID, enc.SID)); err != nil {
		return nil, err
	}
	return enc, nil
}

// RemoveEncryption reverses NewEncryption: every consumer of enc is
// re-anchored to read from parent directly, and enc is removed.
func (g *Graph) RemoveEncryption(enc *device.Device) error {
	if !enc.IsEncryption() {
		return errors.New(errors.KindDeviceHasWrongType, "%q is not an Encryption device", enc.Name)
	}
	parents := g.Parents(enc.SID, Filter{})
	if len(parents) != 1 {
		return errors.New(errors.KindWrongNumberOfChildren, "encryption device %q has %d parents, want 1", enc.Name, len(parents))
	}
	parent := parents[0]
	for _, idx := range g.HolderIndexesFor(enc.SID) {
		if err := g.SetSource(idx, parent.SID); err != nil {
			return err
		}
	}
	g.RemoveVertex(enc.SID)
	return nil
}

// NewFilesystem adds a Filesystem (kind must satisfy Kind.IsFilesystem) as
// a child of blk.
func (g *Graph) NewFilesystem(blk *device.Device, kind device.Kind, label string) (*device.Device, error) {
	if !kind.IsFilesystem() {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%s is not a filesystem kind", kind)
	}
	fs := device.New(kind)
	fs.Label = label
	fs.Region = blk.Region
	g.AddDevice(fs)
	if err := g.AddHolder(holder.NewFilesystemUser(blk.SID, fs.SID, false)); err != nil {
		return nil, err
	}
	return fs, nil
}

// NewMountPoint adds a MountPoint as a child of fs.
func (g *Graph) NewMountPoint(fs *device.Device, path string, options []string) (*device.Device, error) {
	if !fs.IsFilesystem() {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%q is not a filesystem", fs.Name)
	}
	mp := device.New(device.KindMountPoint)
	mp.MountPath = path
	mp.MountOptions = options
	g.AddDevice(mp)
	if err := g.AddHolder(holder.New(fs.SID, mp.SID)); err != nil {
		return nil, err
	}
	return mp, nil
}
