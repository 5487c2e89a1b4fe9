package detective

import "fmt"

// accumulator builds the dependency map of a single traversal. It is owned by
// that traversal and handed to the caller by result.
type accumulator struct {
	deps *DependencyMap
}

func newAccumulator() *accumulator {
	return &accumulator{deps: newDependencyMap()}
}

// addDependency registers id. Registering a known id keeps its specifiers.
func (a *accumulator) addDependency(id string) {
	if _, ok := a.deps.records[id]; ok {
		return
	}
	a.deps.keys = append(a.deps.keys, id)
	a.deps.records[id] = &DependencyRecord{}
}

// addSpecifier appends s to the specifiers of id, which must already be
// registered.
func (a *accumulator) addSpecifier(id string, s Specifier) {
	rec, ok := a.deps.records[id]
	if !ok {
		panic(fmt.Sprintf("Internal error: specifier %q added to unregistered dependency %q", s.Name, id))
	}
	rec.ImportSpecifiers = append(rec.ImportSpecifiers, s)
}

// markExported flips the first specifier called name in each registered
// dependency. Dependencies registered later are not affected.
func (a *accumulator) markExported(name string) {
	for _, id := range a.deps.keys {
		specs := a.deps.records[id].ImportSpecifiers
		for i := range specs {
			if specs[i].Name == name {
				specs[i].Exported = true
				break
			}
		}
	}
}

func (a *accumulator) result() *DependencyMap {
	deps := a.deps
	a.deps = nil
	return deps
}
