// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package device models every node of a devicegraph as a single tagged
// struct, the way the teacher's storage package modelled BlockDevice plus
// BlockDeviceType, generalised to the full storage/Devices/* hierarchy of
// the original implementation: BlkDevice, Partitionable, Disk, PartitionTable
// (Gpt/Msdos/DasdPt/ImplicitPt), Partition, Md, LvmVg, LvmLv, BcacheCset,
// Bcache, Encryption, Filesystem variants and MountPoint. Rather than a deep
// interface hierarchy with downcasts, a Device carries every attribute its
// Kind might need and exposes capability predicates (IsDisk, IsPartition,
// ...) and typed accessors; fields that do not apply to a Kind are left at
// their zero value.
package device

import "fmt"

// SID is a process-wide unique, monotonically assigned device identifier.
// SIDs are preserved across cloning and across the probed/staging copy so
// that the planner can match entities between two devicegraphs.
type SID uint64

// Kind discriminates the tagged sum of Device variants. Kind is also the
// classname used in XML serialisation (see Classname).
type Kind int

const (
	KindUnknown Kind = iota
	KindDisk
	KindGpt
	KindMsdos
	KindDasdPt
	KindImplicitPt
	KindPartition
	KindMd
	KindLvmVg
	KindLvmLv
	KindBcacheCset
	KindBcache
	KindEncryption
	KindBtrfs
	KindExt2
	KindExt3
	KindExt4
	KindXfs
	KindSwap
	KindNfs
	KindMountPoint
)

var kindNames = map[Kind]string{
	KindUnknown:    "Unknown",
	KindDisk:       "Disk",
	KindGpt:        "Gpt",
	KindMsdos:      "Msdos",
	KindDasdPt:     "DasdPt",
	KindImplicitPt: "ImplicitPt",
	KindPartition:  "Partition",
	KindMd:         "Md",
	KindLvmVg:      "LvmVg",
	KindLvmLv:      "LvmLv",
	KindBcacheCset: "BcacheCset",
	KindBcache:     "Bcache",
	KindEncryption: "Encryption",
	KindBtrfs:      "Btrfs",
	KindExt2:       "Ext2",
	KindExt3:       "Ext3",
	KindExt4:       "Ext4",
	KindXfs:        "Xfs",
	KindSwap:       "Swap",
	KindNfs:        "Nfs",
	KindMountPoint: "MountPoint",
}

// Classname returns the stable discriminator string used in XML
// serialisation, matching the original classname() accessor.
func (k Kind) Classname() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

func (k Kind) String() string { return k.Classname() }

// IsPartitionTable reports whether k is one of the four concrete
// PartitionTable variants.
func (k Kind) IsPartitionTable() bool {
	switch k {
	case KindGpt, KindMsdos, KindDasdPt, KindImplicitPt:
		return true
	default:
		return false
	}
}

// IsPartitionable reports whether devices of this kind may carry a
// PartitionTable child. Only Disk is partitionable here; Md and LvmLv,
// partitionable in the original, are not.
func (k Kind) IsPartitionable() bool {
	return k == KindDisk
}

// IsBlkFilesystem reports whether k is one of the filesystem variants that
// occupy a BlkDevice (as opposed to Nfs, which is network-backed).
func (k Kind) IsBlkFilesystem() bool {
	switch k {
	case KindBtrfs, KindExt2, KindExt3, KindExt4, KindXfs, KindSwap:
		return true
	default:
		return false
	}
}

// IsFilesystem reports whether k is any Filesystem variant, including Nfs.
func (k Kind) IsFilesystem() bool {
	return k.IsBlkFilesystem() || k == KindNfs
}

// Transport enumerates a Disk's bus transport.
type Transport int

const (
	TransportUnknown Transport = iota
	TransportSBP
	TransportATA
	TransportFC
	TransportISCSI
	TransportSAS
	TransportSATA
	TransportSPI
	TransportUSB
	TransportFCOE
)

// PartitionType enumerates a Partition's role within its table.
type PartitionType int

const (
	PartitionTypePrimary PartitionType = iota
	PartitionTypeExtended
	PartitionTypeLogical
)

func (t PartitionType) String() string {
	switch t {
	case PartitionTypePrimary:
		return "PRIMARY"
	case PartitionTypeExtended:
		return "EXTENDED"
	case PartitionTypeLogical:
		return "LOGICAL"
	default:
		return "UNKNOWN"
	}
}

// Well-known partition id values (§4.C, §9). IDLinux is the default id for
// a freshly created PRIMARY/LOGICAL partition; IDExtended is forced for
// EXTENDED partitions.
const (
	IDLinux     = 0x83
	IDSwap      = 0x82
	IDExtended  = 0x05
	IDLvm       = 0x8e
	IDRaid      = 0xfd
	IDDos16     = 0x06
	IDDos32     = 0x0c
	IDNTFS      = 0x07
	IDWinBasic  = 0xaf
	IDEfiSystem = 0xef
)

// idsImpliedByCreate is the set of partition ids that a freshly created
// partition already carries without a separate SetPartitionId action (§4.E.5).
var idsImpliedByCreate = map[int]bool{
	IDLinux:    true,
	IDSwap:     true,
	IDDos16:    true,
	IDDos32:    true,
	IDNTFS:     true,
	IDWinBasic: true,
}

// IDImpliedByCreate reports whether a Create action for a partition of this
// type already establishes the given id, making a separate SetPartitionId
// action redundant.
func IDImpliedByCreate(id int) bool {
	return idsImpliedByCreate[id]
}

// DefaultIDForType returns the id a newly created partition of typ carries
// before any explicit SetPartitionId.
func DefaultIDForType(typ PartitionType) int {
	if typ == PartitionTypeExtended {
		return IDExtended
	}
	return IDLinux
}

// MdLevel enumerates software RAID levels.
type MdLevel int

const (
	MdRaid0 MdLevel = iota
	MdRaid1
	MdRaid5
	MdRaid6
	MdRaid10
)

func (l MdLevel) String() string {
	switch l {
	case MdRaid0:
		return "RAID0"
	case MdRaid1:
		return "RAID1"
	case MdRaid5:
		return "RAID5"
	case MdRaid6:
		return "RAID6"
	case MdRaid10:
		return "RAID10"
	default:
		return "UNKNOWN"
	}
}

// LvType enumerates an LvmLv's role.
type LvType int

const (
	LvNormal LvType = iota
	LvThinPool
	LvThin
	LvRaid
	LvUnknown
)

func (t LvType) String() string {
	switch t {
	case LvNormal:
		return "NORMAL"
	case LvThinPool:
		return "THIN_POOL"
	case LvThin:
		return "THIN"
	case LvRaid:
		return "RAID"
	default:
		return "UNKNOWN"
	}
}

// EncryptionType enumerates the supported LUKS/plain encryption formats.
type EncryptionType int

const (
	EncLuks1 EncryptionType = iota
	EncLuks2
	EncPlain
)

func (t EncryptionType) String() string {
	switch t {
	case EncLuks1:
		return "LUKS1"
	case EncLuks2:
		return "LUKS2"
	case EncPlain:
		return "PLAIN"
	default:
		return "UNKNOWN"
	}
}

// MountByType selects how a mounted device is referenced in /etc/fstab.
type MountByType int

const (
	MountByDevice MountByType = iota
	MountByUUID
	MountByLabel
	MountByID
	MountByPath
)

func (t MountByType) String() string {
	switch t {
	case MountByUUID:
		return "UUID"
	case MountByLabel:
		return "LABEL"
	case MountByID:
		return "ID"
	case MountByPath:
		return "PATH"
	default:
		return "DEVICE"
	}
}

// ErrUnsupportedFeature formats the UnsupportedFeature validation error
// raised by set_id/set_boot/set_type-style mutators when the owning table
// does not support the requested combination (§4.C Partition).
func ErrUnsupportedFeature(what string, tableKind Kind) error {
	return fmt.Errorf("%s is not supported on a %s partition table", what, tableKind)
}
