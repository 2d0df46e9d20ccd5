// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package device

import (
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	xs "github.com/huandu/xstrings"
)

// Device is every node a DeviceGraph can hold. Rather than a class
// hierarchy with downcasts, one struct carries every attribute any Kind
// might need; Kind says which of them are meaningful. Capability
// predicates (IsDisk, IsPartition, ...) and typed accessor methods give
// callers the same ergonomics a narrower type would, without the
// traversal code needing runtime type assertions (§9 "dynamic downcasts
// in traversals become typed filters").
type Device struct {
	SID  SID
	Kind Kind

	// BlkDevice (most non-MountPoint kinds)
	Name        string
	SysfsName   string
	SysfsPath   string
	Active      bool
	Region      RegionAttrs
	UdevPaths   []string
	UdevIDs     []string
	DMTableName string

	// Partitionable (Disk)
	Topology TopologyAttrs
	Range    uint32

	// Disk
	Rotational bool
	Transport  Transport

	// PartitionTable
	ReadOnly   bool
	GptEnlarge bool

	// Partition
	PartitionType PartitionType
	PartitionID   int
	Number        int
	Boot          bool
	LegacyBoot    bool

	// Md
	MdLevel        MdLevel
	Parity         int
	ChunkSizeBytes uint64

	// LvmVg
	VgName     string
	ExtentSize uint64
	UUID       string

	// LvmLv
	LvName     string
	LvType     LvType
	Stripes    int
	StripeSize uint64
	LvChunk    uint64

	// Bcache / BcacheCset
	CsetUUID     string
	KernelNumber int

	// Encryption
	EncType       EncryptionType
	Password      string
	KeyFile       string
	MountBy       MountByType
	CryptOptions  []string
	InEtcCrypttab bool

	// Filesystem
	Label string
	// UUID is shared with LvmVg above; filesystems and LvmVgs never
	// coexist on the same Device value.

	// MountPoint (a child node of a Filesystem)
	MountPath    string
	MountOptions []string
	FsckPass     int
	DumpPass     int
}

// RegionAttrs mirrors region.Region without importing the region package,
// so that device stays the lowest dependency above region in the module's
// layering (devicegraph wires the two together). Start/Length are in
// blocks; BlockSize is in bytes.
type RegionAttrs struct {
	Start     uint64
	Length    uint64
	BlockSize uint32
}

// TopologyAttrs mirrors region.Topology for the same reason as RegionAttrs.
type TopologyAttrs struct {
	AlignmentOffset int64
	OptimalIOSize   uint64
}

// End returns the last block covered by r.
func (r RegionAttrs) End() uint64 { return r.Start + r.Length - 1 }

// ToBytes returns r's length expressed in bytes.
func (r RegionAttrs) ToBytes() uint64 { return r.Length * uint64(r.BlockSize) }

// New returns a zero-valued Device of the given kind with an unassigned
// SID; callers obtain a real SID by adding it to a Graph.
func New(kind Kind) *Device {
	return &Device{Kind: kind}
}

// Capability predicates -----------------------------------------------------

func (d *Device) IsDisk() bool           { return d.Kind == KindDisk }
func (d *Device) IsPartitionTable() bool { return d.Kind.IsPartitionTable() }
func (d *Device) IsPartition() bool      { return d.Kind == KindPartition }
func (d *Device) IsMd() bool             { return d.Kind == KindMd }
func (d *Device) IsLvmVg() bool          { return d.Kind == KindLvmVg }
func (d *Device) IsLvmLv() bool          { return d.Kind == KindLvmLv }
func (d *Device) IsBcacheCset() bool     { return d.Kind == KindBcacheCset }
func (d *Device) IsBcache() bool         { return d.Kind == KindBcache }
func (d *Device) IsEncryption() bool     { return d.Kind == KindEncryption }
func (d *Device) IsFilesystem() bool     { return d.Kind.IsFilesystem() }
func (d *Device) IsBlkFilesystem() bool  { return d.Kind.IsBlkFilesystem() }
func (d *Device) IsMountPoint() bool     { return d.Kind == KindMountPoint }
func (d *Device) IsPartitionable() bool  { return d.Kind.IsPartitionable() }

// IsBlkDevice reports whether this Device occupies block storage (i.e.
// everything except MountPoint, which is a mount-table entry attached to a
// Filesystem rather than a block device in its own right).
func (d *Device) IsBlkDevice() bool { return d.Kind != KindMountPoint }

// Classname is the stable XML discriminator (§4.C).
func (d *Device) Classname() string { return d.Kind.Classname() }

// Displayname is a human-readable label. Concrete kinds with an obvious
// identity (a name or label) use it directly; the remainder derive a
// spaced-out label from the classname via xstrings, the same "split
// camelCase into words" trick the teacher's tui buttons use xstrings.Len
// for when sizing a label, here used to build one.
func (d *Device) Displayname() string {
	switch {
	case d.IsBlkDevice() && d.Name != "":
		return d.Name
	case d.IsFilesystem() && d.Label != "":
		return d.Label
	case d.IsMountPoint():
		return d.MountPath
	default:
		snake := xs.ToSnakeCase(d.Classname())
		words := strings.Split(snake, "_")
		for i, w := range words {
			words[i] = xs.FirstRuneToUpper(w)
		}
		return strings.Join(words, " ")
	}
}

// Clone returns a deep copy of d, independent of shared backing arrays.
func (d *Device) Clone() *Device {
	c := *d
	c.UdevPaths = append([]string(nil), d.UdevPaths...)
	c.UdevIDs = append([]string(nil), d.UdevIDs...)
	c.CryptOptions = append([]string(nil), d.CryptOptions...)
	c.MountOptions = append([]string(nil), d.MountOptions...)
	return &c
}

// cosmeticFields lists the attributes Equal ignores but LogDiff still
// reports, resolving the open question in §9: sysfs_name/sysfs_path/
// dm_table_name are derived, serialisation-only identifiers that never by
// themselves warrant a Modify action.
var cosmeticFields = cmpopts.IgnoreFields(Device{}, "SysfsName", "SysfsPath", "DMTableName")

// Equal reports whether two Devices are semantically identical: same SID,
// kind, and every attribute the planner would act on. Cosmetic
// serialisation-only fields (sysfs_name, sysfs_path, dm_table_name) are
// excluded, so that Equal can gate add_modify_actions without firing on
// attributes nothing depends on.
func (d *Device) Equal(other *Device) bool {
	if d == nil || other == nil {
		return d == other
	}
	// Compare the struct values, not the pointers: cmp would otherwise
	// pick up this very Equal method on *Device and recurse into it.
	return cmp.Equal(*d, *other, cosmeticFields)
}

// LogDiff renders every attribute difference between d and other,
// including the cosmetic fields Equal ignores, for diagnostic logging
// around planning decisions.
func (d *Device) LogDiff(other *Device) string {
	if d == nil || other == nil {
		return ""
	}
	return cmp.Diff(*d, *other)
}
