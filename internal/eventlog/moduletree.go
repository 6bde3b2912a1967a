package eventlog

import (
	"sort"
	"strconv"

	"github.com/papapumpkin/seqchart/internal/entry"
)

// Module is a node of the module tree.
type Module struct {
	ID          int64
	ParentID    int64
	Name        string
	FullPath    string
	ClassName   string
	NEDTypeName string
	Compound    bool
	Parent      *Module
	Children    []*Module
}

// DefaultAttribute returns the full path, matched by bare filter patterns.
func (m *Module) DefaultAttribute() string {
	return m.FullPath
}

// Attribute exposes module properties to filter expressions.
func (m *Module) Attribute(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.FormatInt(m.ID, 10), true
	case "name":
		return m.Name, true
	case "fullname", "fullpath":
		return m.FullPath, true
	case "type":
		return m.NEDTypeName, m.NEDTypeName != ""
	case "class", "classname":
		return m.ClassName, m.ClassName != ""
	}
	return "", false
}

// ModuleTree is the hierarchy of modules discovered in a log. A module whose
// parent was never created is a root.
type ModuleTree struct {
	roots []*Module
	byID  map[int64]*Module
}

// NewModuleTree builds a tree from module creation records. A later record
// for an id already seen replaces the earlier one.
func NewModuleTree(created []entry.ModuleCreated) *ModuleTree {
	t := &ModuleTree{byID: make(map[int64]*Module, len(created))}
	order := make([]int64, 0, len(created))
	for _, mc := range created {
		if _, ok := t.byID[mc.ID]; !ok {
			order = append(order, mc.ID)
		}
		t.byID[mc.ID] = &Module{
			ID:          mc.ID,
			ParentID:    mc.ParentID,
			Name:        mc.FullName,
			ClassName:   mc.ClassName,
			NEDTypeName: mc.NEDTypeName,
			Compound:    mc.Compound,
		}
	}
	for _, id := range order {
		m := t.byID[id]
		if p, ok := t.byID[m.ParentID]; ok && m.ParentID != m.ID {
			m.Parent = p
			p.Children = append(p.Children, m)
		} else {
			t.roots = append(t.roots, m)
		}
	}
	for _, r := range t.roots {
		assignPaths(r, "")
	}
	return t
}

func assignPaths(m *Module, prefix string) {
	m.FullPath = m.Name
	if prefix != "" {
		m.FullPath = prefix + "." + m.Name
	}
	sort.Slice(m.Children, func(i, j int) bool { return m.Children[i].ID < m.Children[j].ID })
	for _, c := range m.Children {
		assignPaths(c, m.FullPath)
	}
}

// Roots returns the modules without a known parent, in creation order.
func (t *ModuleTree) Roots() []*Module {
	return t.roots
}

// Module returns the module with the given id.
func (t *ModuleTree) Module(id int64) (*Module, bool) {
	m, ok := t.byID[id]
	return m, ok
}

// Len returns the number of modules in the tree.
func (t *ModuleTree) Len() int {
	return len(t.byID)
}

// Walk visits every module depth-first, parents before children. Returning
// false from fn skips the module's children.
func (t *ModuleTree) Walk(fn func(m *Module, depth int) bool) {
	var visit func(m *Module, depth int)
	visit = func(m *Module, depth int) {
		if !fn(m, depth) {
			return
		}
		for _, c := range m.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range t.roots {
		visit(r, 0)
	}
}
