// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package action

import "github.com/clearlinux/storage-engine/errors"

// Graph is a DAG of Actions connected by "must run before" dependency
// edges (§4.E). It is the generic container; actiongraph.Build populates
// one from a pair of devicegraphs.
type Graph struct {
	actions []*Action
	// deps[i] is the set of action indexes that must commit before
	// actions[i] may run.
	deps [][]int
}

// New returns an empty ActionGraph.
func New() *Graph {
	return &Graph{}
}

// Add appends a new Action and returns its index (stable for the
// lifetime of this Graph, used to wire dependency edges).
func (g *Graph) Add(a *Action) int {
	a.ID = len(g.actions)
	g.actions = append(g.actions, a)
	g.deps = append(g.deps, nil)
	return a.ID
}

// DependsOn records that the action at index id must not run until the
// action at index dependsOn has committed.
func (g *Graph) DependsOn(id, dependsOn int) {
	for _, d := range g.deps[id] {
		if d == dependsOn {
			return
		}
	}
	g.deps[id] = append(g.deps[id], dependsOn)
}

// AddChain links a sequence of action indexes so that each depends on the
// one before it (§4.E.6 "add_chain").
func (g *Graph) AddChain(ids []int) {
	for i := 1; i < len(ids); i++ {
		g.DependsOn(ids[i], ids[i-1])
	}
}

// Actions returns every Action in this Graph, indexed by ID.
func (g *Graph) Actions() []*Action { return g.actions }

// Len returns the number of actions in this Graph.
func (g *Graph) Len() int { return len(g.actions) }

// TopoOrder returns a valid commit order (indexes into Actions()),
// or a PlanningCycle error if the dependency graph is not acyclic
// (§4.E "Topological ordering").
func (g *Graph) TopoOrder() ([]int, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.actions))
	var order []int

	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		for _, dep := range g.deps[i] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				return errors.New(errors.KindPlanningCycle, "dependency cycle involving action %d (%s on sid %d)", i, g.actions[i].Kind, g.actions[i].Target)
			}
		}
		color[i] = black
		order = append(order, i)
		return nil
	}

	for i := range g.actions {
		if color[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}
