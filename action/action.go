// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package action defines the nodes of an ActionGraph (§4.E): one Action
// per primitive step the engine can commit, plus the State machine an
// Action moves through during execution (§5). Construction of an
// ActionGraph from two devicegraphs lives in package actiongraph, which
// imports this package; keeping the node type and the builder separate
// mirrors how the teacher split storage/ops.go (what to do) from
// storage/block_devices_ops.go (how to do it).
package action

import "github.com/clearlinux/storage-engine/device"

// Kind discriminates the primitive Action variants named across §4.C-§4.E.
type Kind int

const (
	Create Kind = iota
	Modify
	Delete
	Resize
	Reallot
	Activate
	Deactivate
	SetPartitionID
	SetBoot
	SetLegacyBoot
	AddEtcMdadm
	Rename
	TmpMount
	TmpUnmount
	Mount
	Unmount
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "Create"
	case Modify:
		return "Modify"
	case Delete:
		return "Delete"
	case Resize:
		return "Resize"
	case Reallot:
		return "Reallot"
	case Activate:
		return "Activate"
	case Deactivate:
		return "Deactivate"
	case SetPartitionID:
		return "SetPartitionId"
	case SetBoot:
		return "SetBoot"
	case SetLegacyBoot:
		return "SetLegacyBoot"
	case AddEtcMdadm:
		return "AddEtcMdadm"
	case Rename:
		return "Rename"
	case TmpMount:
		return "TmpMount"
	case TmpUnmount:
		return "TmpUnmount"
	case Mount:
		return "Mount"
	case Unmount:
		return "Unmount"
	default:
		return "Unknown"
	}
}

// State is where an Action sits in the pending -> queued -> running ->
// committed|failed lifecycle (§4.E).
type State int

const (
	Pending State = iota
	Queued
	Running
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Action is one primitive step of a transition from one devicegraph to
// another. Target is the SID of the Device the action principally
// concerns; TargetName is carried alongside it purely so CompoundAction
// sentences and logs don't need a graph lookup to describe the action
// after it runs (an already-deleted device can no longer be looked up by
// SID in the post-transition graph).
type Action struct {
	ID         int
	Kind       Kind
	Target     device.SID
	TargetName string
	State      State

	// Partition-specific payloads.
	PartitionID int
	Boot        bool
	LegacyBoot  bool

	// Reallot payload.
	ReallotExtend bool
	ReallotMember device.SID

	// Activate/Deactivate payload (redundant with Kind, kept for callers
	// that switch only on a boolean).
	Activate bool

	// Mount/Unmount/TmpMount/TmpUnmount payload.
	MountPath string

	// Rename payload.
	NewName string
}
