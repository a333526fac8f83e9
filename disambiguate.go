package harbor

import "github.com/xraph/go-utils/errs"

// Disambiguate reduces a candidate set to a single bean. Specialized beans are
// removed, then non-alternatives when an alternative remains, then every bean
// but the unique highest priority one. Equal highest priorities stay
// ambiguous.
func (c *Container) Disambiguate(candidates []*Bean) (*Bean, error) {
	remaining := c.disambiguate(candidates)
	switch len(remaining) {
	case 0:
		return nil, ErrUnsatisfied
	case 1:
		return remaining[0], nil
	default:
		return nil, errs.NewError(CodeAmbiguous, "ambiguous resolution", nil).
			WithContext("candidates", beanIDs(remaining))
	}
}

func (c *Container) disambiguate(candidates []*Bean) []*Bean {
	if len(candidates) <= 1 {
		return candidates
	}

	remaining := removeSpecialized(candidates, c.registry.get)
	if len(remaining) <= 1 {
		return remaining
	}

	remaining = keepAlternatives(remaining)
	if len(remaining) <= 1 {
		return remaining
	}

	return highestPriority(remaining)
}

// removeSpecialized drops every candidate specialized, directly or
// transitively, by another candidate.
func removeSpecialized(candidates []*Bean, lookup func(string) (*Bean, bool)) []*Bean {
	specialized := make(map[string]bool)
	for _, b := range candidates {
		seen := map[string]bool{b.id: true}
		for next := b.specializes; next != "" && !seen[next]; {
			seen[next] = true
			specialized[next] = true

			target, ok := lookup(next)
			if !ok {
				break
			}
			next = target.specializes
		}
	}

	if len(specialized) == 0 {
		return candidates
	}

	out := make([]*Bean, 0, len(candidates))
	for _, b := range candidates {
		if !specialized[b.id] {
			out = append(out, b)
		}
	}

	return out
}

// keepAlternatives filters to the alternatives when at least one is present.
func keepAlternatives(candidates []*Bean) []*Bean {
	var alternatives []*Bean
	for _, b := range candidates {
		if b.alternative {
			alternatives = append(alternatives, b)
		}
	}

	if len(alternatives) == 0 {
		return candidates
	}

	return alternatives
}

// highestPriority selects the candidate holding the unique highest priority.
// Without one the set is returned unchanged.
func highestPriority(candidates []*Bean) []*Bean {
	var (
		best  *Bean
		count int
	)

	for _, b := range candidates {
		if !b.hasPriority {
			continue
		}

		switch {
		case best == nil || b.priority > best.priority:
			best = b
			count = 1
		case b.priority == best.priority:
			count++
		}
	}

	if best == nil {
		return candidates
	}
	if count == 1 {
		return []*Bean{best}
	}

	out := make([]*Bean, 0, count)
	for _, b := range candidates {
		if b.hasPriority && b.priority == best.priority {
			out = append(out, b)
		}
	}

	return out
}
