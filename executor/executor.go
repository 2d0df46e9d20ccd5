// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package executor defines the SystemExecutor boundary (§4.F/§6): every
// do_* operation a Device's create/modify/delete action chain can ask for,
// named rather than expressed as a shell command line, plus Session, the
// lockfile-guarded commit loop that walks an action.Graph in topological
// order and dispatches each Action to the appropriate SystemExecutor call.
// Grounded on the teacher's storage/block_devices_ops.go bdOps
// table-of-funcs pattern (a table of named operations keyed by device
// kind) and cmd package idiom; real command invocation is an external
// collaborator per spec §1 — NoopExecutor is the only implementation this
// repo ships.
package executor

import (
	"os"
	"path/filepath"

	"github.com/nightlyone/lockfile"

	"github.com/clearlinux/storage-engine/action"
	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/devicegraph"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/log"
	"github.com/clearlinux/storage-engine/resize"
	"github.com/clearlinux/storage-engine/utils"
)

// SystemExecutor performs the primitive storage operations an Action
// commits to. Every method names an operation, never a command line (§6);
// a real implementation translates each call into parted/lvm/mdadm/
// cryptsetup/mkfs.* invocations (out of scope per spec §1).
type SystemExecutor interface {
	CreatePT(disk *device.Device, kind device.Kind) error
	CreatePartition(table *device.Device, part *device.Device) error
	DeletePartition(part *device.Device) error
	SetPartitionID(part *device.Device, id int) error
	SetBootFlag(part *device.Device, on bool) error
	SetLegacyBootFlag(part *device.Device, on bool) error
	ResizePartition(part *device.Device, newEnd uint64) error

	Mkfs(fs *device.Device, opts []string) error
	ResizeFS(fs *device.Device, mode resize.Mode) error
	Mount(fs *device.Device, path string) error
	Umount(fs *device.Device, path string) error
	SetLabel(fs *device.Device, label string) error
	SetUUID(fs *device.Device, uuid string) error

	LvmCreateVG(vg *device.Device, pvs []*device.Device) error
	LvmCreateLV(lv *device.Device) error
	LvmRemoveVG(vg *device.Device) error
	LvmRemoveLV(lv *device.Device) error
	LvmResizeLV(lv *device.Device, newExtents uint64) error
	LvmRenameLV(lv *device.Device, newName string) error
	LvmChangeActivation(target *device.Device, active bool) error

	MdadmCreate(md *device.Device, members []*device.Device) error
	MdadmAdd(md, member *device.Device) error
	MdadmRemove(md, member *device.Device) error
	MdadmStop(md *device.Device) error
	AddEtcMdadm(md *device.Device, mdadmConfPath string) error

	Wipefs(d *device.Device) error
	UdevSettle() error
	WaitForDevice(d *device.Device) error
}

// NoopExecutor logs every operation it is asked to perform and does
// nothing else. It satisfies SystemExecutor and is used by tests and by
// an embedder that wants to dry-run a plan.
type NoopExecutor struct{}

func (NoopExecutor) CreatePT(disk *device.Device, kind device.Kind) error {
	log.Debug("create %s partition table on %s", kind, disk.Name)
	return nil
}
func (NoopExecutor) CreatePartition(table, part *device.Device) error {
	log.Debug("create partition %s", part.Name)
	return nil
}
func (NoopExecutor) DeletePartition(part *device.Device) error {
	log.Debug("delete partition %s", part.Name)
	return nil
}
func (NoopExecutor) SetPartitionID(part *device.Device, id int) error {
	log.Debug("set id of %s to 0x%02x", part.Name, id)
	return nil
}
func (NoopExecutor) SetBootFlag(part *device.Device, on bool) error {
	log.Debug("set boot flag of %s to %v", part.Name, on)
	return nil
}
func (NoopExecutor) SetLegacyBootFlag(part *device.Device, on bool) error {
	log.Debug("set legacy boot flag of %s to %v", part.Name, on)
	return nil
}
func (NoopExecutor) ResizePartition(part *device.Device, newEnd uint64) error {
	log.Debug("resize %s to end=%d", part.Name, newEnd)
	return nil
}
func (NoopExecutor) Mkfs(fs *device.Device, opts []string) error {
	log.Debug("mkfs %s %v", fs.Classname(), opts)
	return nil
}
func (NoopExecutor) ResizeFS(fs *device.Device, mode resize.Mode) error {
	log.Debug("resize filesystem %s (%s)", fs.Displayname(), mode)
	return nil
}
func (NoopExecutor) Mount(fs *device.Device, path string) error {
	log.Debug("mount %s at %s", fs.Displayname(), path)
	return nil
}
func (NoopExecutor) Umount(fs *device.Device, path string) error {
	log.Debug("umount %s", path)
	return nil
}
func (NoopExecutor) SetLabel(fs *device.Device, label string) error {
	log.Debug("set label of %s to %s", fs.Displayname(), label)
	return nil
}
func (NoopExecutor) SetUUID(fs *device.Device, uuid string) error {
	log.Debug("set uuid of %s to %s", fs.Displayname(), uuid)
	return nil
}
func (NoopExecutor) LvmCreateVG(vg *device.Device, pvs []*device.Device) error {
	log.Debug("create volume group %s", vg.Name)
	return nil
}
func (NoopExecutor) LvmCreateLV(lv *device.Device) error {
	log.Debug("create logical volume %s", lv.Name)
	return nil
}
func (NoopExecutor) LvmRemoveVG(vg *device.Device) error {
	log.Debug("remove volume group %s", vg.Name)
	return nil
}
func (NoopExecutor) LvmRemoveLV(lv *device.Device) error {
	log.Debug("remove logical volume %s", lv.Name)
	return nil
}
func (NoopExecutor) LvmResizeLV(lv *device.Device, newExtents uint64) error {
	log.Debug("resize %s to %d extents", lv.Name, newExtents)
	return nil
}
func (NoopExecutor) LvmRenameLV(lv *device.Device, newName string) error {
	log.Debug("rename %s to %s", lv.Name, newName)
	return nil
}
func (NoopExecutor) LvmChangeActivation(target *device.Device, active bool) error {
	log.Debug("set activation of %s to %v", target.Name, active)
	return nil
}
func (NoopExecutor) MdadmCreate(md *device.Device, members []*device.Device) error {
	log.Debug("create array %s (%s)", md.Name, md.MdLevel)
	return nil
}
func (NoopExecutor) MdadmAdd(md, member *device.Device) error {
	log.Debug("add %s to %s", member.Name, md.Name)
	return nil
}
func (NoopExecutor) MdadmRemove(md, member *device.Device) error {
	log.Debug("remove %s from %s", member.Name, md.Name)
	return nil
}
func (NoopExecutor) MdadmStop(md *device.Device) error {
	log.Debug("stop array %s", md.Name)
	return nil
}
func (NoopExecutor) AddEtcMdadm(md *device.Device, mdadmConfPath string) error {
	log.Debug("add %s to %s", md.Name, mdadmConfPath)
	return nil
}
func (NoopExecutor) Wipefs(d *device.Device) error {
	log.Debug("wipefs %s", d.Name)
	return nil
}
func (NoopExecutor) UdevSettle() error {
	log.Debug("udev settle")
	return nil
}
func (NoopExecutor) WaitForDevice(d *device.Device) error {
	log.Debug("wait for device %s", d.Name)
	return nil
}

// Session guards a single commit of an action.Graph against a target root
// with a pidfile-style lock, mirroring the teacher's nightlyone/lockfile
// guarding a single in-flight install against a target.
type Session struct {
	lock lockfile.Lockfile
}

// NewSession creates a Session locking lockPath (typically a file under
// the target root, e.g. "/.storage-engine.lock").
func NewSession(lockPath string) (*Session, error) {
	if err := utils.MkdirAll(filepath.Dir(lockPath), os.FileMode(0755)); err != nil {
		return nil, err
	}
	lf, err := lockfile.New(lockPath)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return &Session{lock: lf}, nil
}

// Commit acquires the session lock, walks ag in topological order, and
// dispatches each Action against lhs/rhs via dispatch. The lock is
// released on return regardless of outcome. An error aborts the commit at
// the failing action (§5 "no partial-rollback facility") and is returned
// wrapped as an ExecutionException (§7).
func (s *Session) Commit(ag *action.Graph, lhs, rhs *devicegraph.Graph, exec SystemExecutor) error {
	if err := s.lock.TryLock(); err != nil {
		return errors.Wrap(err)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	order, err := ag.TopoOrder()
	if err != nil {
		return err
	}

	for _, id := range order {
		a := ag.Actions()[id]
		a.State = action.Running
		if err := dispatch(a, lhs, rhs, exec); err != nil {
			a.State = action.Failed
			return errors.NewExecution(a, err)
		}
		a.State = action.Committed
	}
	return nil
}

// dispatch translates one Action into the corresponding SystemExecutor
// call, resolving its target Device from rhs (Create/Modify/Resize/
// Activate-family actions, since the post-transition state is what's being
// built) or lhs (Delete/Deactivate, since the device no longer exists on
// rhs).
func dispatch(a *action.Action, lhs, rhs *devicegraph.Graph, exec SystemExecutor) error {
	switch a.Kind {
	case action.Create:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return dispatchCreate(d, rhs, exec)
	case action.Delete:
		d, err := lhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return dispatchDelete(d, exec)
	case action.SetPartitionID:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return exec.SetPartitionID(d, a.PartitionID)
	case action.SetBoot:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return exec.SetBootFlag(d, a.Boot)
	case action.SetLegacyBoot:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return exec.SetLegacyBootFlag(d, a.LegacyBoot)
	case action.AddEtcMdadm:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return exec.AddEtcMdadm(d, "/etc/mdadm.conf")
	case action.Activate:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return exec.LvmChangeActivation(d, true)
	case action.Deactivate:
		d, err := lhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return exec.LvmChangeActivation(d, false)
	case action.Resize:
		return dispatchResize(a, lhs, rhs, exec)
	case action.Reallot:
		return dispatchReallot(a, lhs, rhs, exec)
	case action.Mount, action.TmpMount:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return exec.Mount(d, a.MountPath)
	case action.Unmount, action.TmpUnmount:
		d, err := lhs.FindBySID(a.Target)
		if err != nil {
			d, err = rhs.FindBySID(a.Target)
			if err != nil {
				return err
			}
		}
		return exec.Umount(d, a.MountPath)
	case action.Rename:
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		if d.IsLvmLv() {
			return exec.LvmRenameLV(d, a.NewName)
		}
		return errors.New(errors.KindUnsupportedFeature, "rename not supported for %s", d.Classname())
	case action.Modify:
		// Cosmetic/attribute-only modifications (label, uuid) that
		// don't warrant their own Kind: resolved generically here.
		d, err := rhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
		return dispatchModify(d, exec)
	default:
		return errors.New(errors.KindUnsupportedFeature, "no executor dispatch for action kind %s", a.Kind)
	}
}

func dispatchCreate(d *device.Device, rhs *devicegraph.Graph, exec SystemExecutor) error {
	switch {
	case d.IsPartitionTable():
		parents := rhs.Parents(d.SID, devicegraph.Filter{})
		if len(parents) != 1 {
			return errors.New(errors.KindWrongNumberOfChildren, "partition table %d has %d parents", d.SID, len(parents))
		}
		return exec.CreatePT(parents[0], d.Kind)
	case d.IsPartition():
		parents := rhs.Parents(d.SID, devicegraph.Filter{})
		if len(parents) != 1 {
			return errors.New(errors.KindWrongNumberOfChildren, "partition %d has %d parents", d.SID, len(parents))
		}
		return exec.CreatePartition(parents[0], d)
	case d.IsLvmVg():
		pvs := rhs.Parents(d.SID, devicegraph.Filter{})
		return exec.LvmCreateVG(d, pvs)
	case d.IsLvmLv():
		return exec.LvmCreateLV(d)
	case d.IsMd():
		members := rhs.Parents(d.SID, devicegraph.Filter{})
		return exec.MdadmCreate(d, members)
	case d.IsFilesystem():
		return exec.Mkfs(d, nil)
	case d.IsMountPoint():
		fs := rhs.Parents(d.SID, devicegraph.Filter{})
		if len(fs) != 1 {
			return errors.New(errors.KindWrongNumberOfChildren, "mount point %d has %d parents", d.SID, len(fs))
		}
		return exec.Mount(fs[0], d.MountPath)
	case d.IsDisk():
		// Only reachable under engconf.TargetModeImage; a bare create
		// of a disk image has nothing further to do at this layer.
		return nil
	default:
		return nil
	}
}

func dispatchDelete(d *device.Device, exec SystemExecutor) error {
	switch {
	case d.IsPartition():
		return exec.DeletePartition(d)
	case d.IsLvmVg():
		return exec.LvmRemoveVG(d)
	case d.IsLvmLv():
		return exec.LvmRemoveLV(d)
	case d.IsMd():
		return exec.MdadmStop(d)
	case d.IsMountPoint():
		return exec.Umount(d, d.MountPath)
	default:
		return exec.Wipefs(d)
	}
}

func dispatchResize(a *action.Action, lhs, rhs *devicegraph.Graph, exec SystemExecutor) error {
	d, err := rhs.FindBySID(a.Target)
	if err != nil {
		d, err = lhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
	}
	switch {
	case d.IsPartition():
		return exec.ResizePartition(d, d.Region.End())
	case d.IsLvmLv():
		return exec.LvmResizeLV(d, d.Region.Length)
	case d.IsFilesystem():
		old, err := lhs.FindBySID(a.Target)
		mode := resize.Grow
		if err == nil && old.Region.Length > d.Region.Length {
			mode = resize.Shrink
		}
		return exec.ResizeFS(d, mode)
	default:
		return nil
	}
}

func dispatchReallot(a *action.Action, lhs, rhs *devicegraph.Graph, exec SystemExecutor) error {
	container, err := rhs.FindBySID(a.Target)
	if err != nil {
		container, err = lhs.FindBySID(a.Target)
		if err != nil {
			return err
		}
	}

	var member *device.Device
	if a.ReallotExtend {
		member, err = rhs.FindBySID(a.ReallotMember)
	} else {
		member, err = lhs.FindBySID(a.ReallotMember)
	}
	if err != nil {
		return err
	}

	if container.IsMd() {
		if a.ReallotExtend {
			return exec.MdadmAdd(container, member)
		}
		return exec.MdadmRemove(container, member)
	}
	// LvmVg membership change: nothing beyond the PV's own lifecycle is
	// needed at this layer (pvcreate/pvremove happen via the member's own
	// create/delete actions).
	return nil
}

func dispatchModify(d *device.Device, exec SystemExecutor) error {
	switch {
	case d.IsFilesystem():
		if d.Label != "" {
			if err := exec.SetLabel(d, d.Label); err != nil {
				return err
			}
		}
		if d.UUID != "" {
			return exec.SetUUID(d, d.UUID)
		}
		return nil
	default:
		return nil
	}
}
