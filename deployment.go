package harbor

import (
	"sort"
	"strconv"
)

// Unit is a deployment unit: an archive-like group of beans with its own
// descriptor and the set of units its beans can see.
type Unit struct {
	Name string

	// Accessible lists the units whose beans are visible from this unit.
	Accessible []string

	Descriptor *Descriptor
}

// NewUnit creates a deployment unit.
func NewUnit(name string, accessible ...string) *Unit {
	return &Unit{Name: name, Accessible: accessible}
}

// ID returns the unit id.
func (u *Unit) ID() string { return u.Name }

// WithDescriptor attaches a descriptor and returns the unit.
func (u *Unit) WithDescriptor(d *Descriptor) *Unit {
	u.Descriptor = d

	return u
}

// deployment is the deployment unit graph. Units that reach each other
// cyclically form one resolution domain.
type deployment struct {
	units  map[string]*Unit
	order  []string
	reach  map[string]map[string]bool
	domain map[string]int
}

func newDeployment(units map[string]*Unit, order []string) *deployment {
	d := &deployment{
		units:  units,
		order:  order,
		reach:  make(map[string]map[string]bool),
		domain: make(map[string]int),
	}
	d.computeReach()
	d.computeDomains()

	return d
}

func (d *deployment) computeReach() {
	for _, id := range d.order {
		seen := map[string]bool{id: true}
		stack := []string{id}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			u, ok := d.units[cur]
			if !ok {
				continue
			}
			for _, next := range u.Accessible {
				if !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}
		d.reach[id] = seen
	}
}

// computeDomains assigns each unit the index of its strongly connected
// component (Tarjan).
func (d *deployment) computeDomains() {
	var (
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		next    int
		domains int
	)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		if u, ok := d.units[v]; ok {
			for _, w := range u.Accessible {
				if _, known := d.units[w]; !known {
					continue
				}
				if _, visited := index[w]; !visited {
					strongconnect(w)
					low[v] = min(low[v], low[w])
				} else if onStack[w] {
					low[v] = min(low[v], index[w])
				}
			}
		}

		if low[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				d.domain[w] = domains
				if w == v {
					break
				}
			}
			domains++
		}
	}

	for _, id := range d.order {
		if _, visited := index[id]; !visited {
			strongconnect(id)
		}
	}
}

// canSee reports whether beans of unit from can see beans of unit to. Beans
// outside any unit see and are seen by everything.
func (d *deployment) canSee(from, to string) bool {
	if from == "" || to == "" || from == to {
		return true
	}

	reach, ok := d.reach[from]
	if !ok {
		return true
	}

	return reach[to]
}

// visible filters candidates to the ones visible from unit.
func (d *deployment) visible(unit string, candidates []*Bean) []*Bean {
	if unit == "" || len(d.units) == 0 {
		return candidates
	}

	var out []*Bean
	for _, b := range candidates {
		if d.canSee(unit, b.unit) {
			out = append(out, b)
		}
	}

	return out
}

func (d *deployment) descriptor(unit string) *Descriptor {
	if u, ok := d.units[unit]; ok {
		return u.Descriptor
	}

	return nil
}

// duplicateClasses reports every managed bean class deployed by more than one
// resolution domain.
func (d *deployment) duplicateClasses(beans []*Bean) []error {
	owners := make(map[string]map[string]bool)
	var classes []string

	for _, b := range beans {
		if b.unit == "" || b.kind != BeanManaged {
			continue
		}
		if owners[b.class] == nil {
			owners[b.class] = make(map[string]bool)
			classes = append(classes, b.class)
		}
		owners[b.class][b.unit] = true
	}

	sort.Strings(classes)

	var problems []error
	for _, class := range classes {
		units := owners[class]
		if len(units) < 2 {
			continue
		}

		domains := make(map[string]bool)
		ids := make([]string, 0, len(units))
		for u := range units {
			domains[d.domainOf(u)] = true
			ids = append(ids, u)
		}
		if len(domains) > 1 {
			problems = append(problems, ErrDuplicateBeanClass(class, ids))
		}
	}

	return problems
}

// domainOf returns the resolution domain of a unit. Undeclared units are
// domains of their own.
func (d *deployment) domainOf(unit string) string {
	if id, ok := d.domain[unit]; ok {
		return "domain:" + strconv.Itoa(id)
	}

	return "unit:" + unit
}
