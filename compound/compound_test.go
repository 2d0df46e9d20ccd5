// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package compound

import (
	"strings"
	"testing"

	"github.com/clearlinux/storage-engine/action"
	"github.com/clearlinux/storage-engine/device"
)

func buildChain() *action.Graph {
	ag := action.New()
	create := ag.Add(&action.Action{Kind: action.Create, Target: 1, TargetName: "/dev/sda1"})
	setID := ag.Add(&action.Action{Kind: action.SetPartitionID, Target: 1, TargetName: "/dev/sda1", PartitionID: device.IDLvm})
	ag.AddChain([]int{create, setID})

	del := ag.Add(&action.Action{Kind: action.Delete, Target: 2, TargetName: "/dev/sdb1"})
	_ = del
	return ag
}

func TestGroupPartitionsByTarget(t *testing.T) {
	ag := buildChain()
	groups, err := Group(ag)
	if err != nil {
		t.Fatalf("Group() failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 compound actions, got %d", len(groups))
	}

	var created, deleted *CompoundAction
	for _, g := range groups {
		switch g.Target {
		case device.SID(1):
			created = g
		case device.SID(2):
			deleted = g
		}
	}
	if created == nil || deleted == nil {
		t.Fatal("expected one compound action per target sid")
	}
	if len(created.Actions) != 2 {
		t.Fatalf("expected the sda1 compound action to carry 2 primitive actions, got %d", len(created.Actions))
	}
	if created.IsDelete() {
		t.Error("a Create-first chain must not report IsDelete()")
	}
	if !deleted.IsDelete() {
		t.Error("a Delete-first chain must report IsDelete()")
	}
}

func TestForTargetLocatesCompoundAction(t *testing.T) {
	ag := buildChain()
	ca, ok := ForTarget(ag, device.SID(1))
	if !ok {
		t.Fatal("ForTarget() should find sid 1")
	}
	if ca.Target != device.SID(1) {
		t.Errorf("ForTarget() returned target %d, want 1", ca.Target)
	}

	if _, ok := ForTarget(ag, device.SID(99)); ok {
		t.Error("ForTarget() should not find an absent sid")
	}
}

func TestSentenceFallsBackToFmtWithoutLocale(t *testing.T) {
	ag := buildChain()
	ca, _ := ForTarget(ag, device.SID(1))
	sentence := ca.Sentence()
	if !strings.Contains(sentence, "/dev/sda1") {
		t.Errorf("Sentence() = %q, want it to mention /dev/sda1", sentence)
	}
	if !strings.Contains(sentence, "; ") {
		t.Errorf("Sentence() = %q, want the two actions joined by \"; \"", sentence)
	}
}
