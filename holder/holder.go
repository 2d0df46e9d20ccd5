// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package holder models the directed edges of a devicegraph. A Holder
// connects a parent Device to a child Device; its Kind says what kind of
// relationship that is (strict containment, consumption, RAID/filesystem
// membership with extra flags).
package holder

import "github.com/clearlinux/storage-engine/device"

// Kind discriminates the Holder variants (§3 "Edge (Holder) variants").
type Kind int

const (
	// Subdevice: parent strictly contains child (PartitionTable->
	// Partition, LvmVg->LvmLv, Md pseudo-container).
	Subdevice Kind = iota
	// User: child logically consumes parent (BlkDevice->Encryption,
	// BlkDevice->Bcache, BlkDevice->BcacheCset, BlkDevice->LvmVg as PV).
	User
	// MdUser is a User edge carrying RAID membership flags.
	MdUser
	// FilesystemUser is a User edge carrying the journal-device flag.
	FilesystemUser
)

func (k Kind) String() string {
	switch k {
	case Subdevice:
		return "Subdevice"
	case User:
		return "User"
	case MdUser:
		return "MdUser"
	case FilesystemUser:
		return "FilesystemUser"
	default:
		return "Unknown"
	}
}

// Holder is a directed edge from Parent to Child. Spare/Faulty apply only
// to MdUser edges; Journal applies only to FilesystemUser edges.
type Holder struct {
	Kind   Kind
	Parent device.SID
	Child  device.SID

	// MdUser
	Spare  bool
	Faulty bool

	// FilesystemUser
	Journal bool
}

// New returns a Subdevice holder, the common case (table->partition,
// vg->lv, md->member-as-container).
func New(parent, child device.SID) Holder {
	return Holder{Kind: Subdevice, Parent: parent, Child: child}
}

// NewUser returns a plain User holder (consumption without containment).
func NewUser(parent, child device.SID) Holder {
	return Holder{Kind: User, Parent: parent, Child: child}
}

// NewMdUser returns an MdUser holder recording RAID membership state.
func NewMdUser(parent, child device.SID, spare, faulty bool) Holder {
	return Holder{Kind: MdUser, Parent: parent, Child: child, Spare: spare, Faulty: faulty}
}

// NewFilesystemUser returns a FilesystemUser holder.
func NewFilesystemUser(parent, child device.SID, journal bool) Holder {
	return Holder{Kind: FilesystemUser, Parent: parent, Child: child, Journal: journal}
}

// Clone returns a copy of h; Holder has no reference fields, so this is a
// plain value copy kept for symmetry with device.Device.Clone.
func (h Holder) Clone() Holder { return h }

// Equal reports whether two holders connect the same endpoints with the
// same kind and flags.
func (h Holder) Equal(other Holder) bool { return h == other }
