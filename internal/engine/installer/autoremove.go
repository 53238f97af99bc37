package installer

import (
	"context"
	"fmt"
	"slices"
)

// Orphans returns implicit installed packages that no explicit package
// requires, directly or transitively, in removal order: dependents come
// before the packages they depend on. The scan is conservative and uses the
// depends recorded at install time, so it stays correct when a recipe has
// since left the tree. Locked packages are never candidates.
func (ins *Installer) Orphans() ([]string, error) {
	records, err := ins.db.Records()
	if err != nil {
		return nil, err
	}
	locked, err := ins.db.Locked()
	if err != nil {
		return nil, err
	}

	depends := make(map[string][]string, len(records))
	var roots []string
	for _, rec := range records {
		depends[rec.Name] = rec.Depends
		if rec.Explicit {
			roots = append(roots, rec.Name)
		}
	}

	required := make(map[string]bool, len(records))
	for len(roots) > 0 {
		name := roots[len(roots)-1]
		roots = roots[:len(roots)-1]
		if required[name] {
			continue
		}
		required[name] = true
		for _, dep := range depends[name] {
			if _, installed := depends[dep]; installed && !required[dep] {
				roots = append(roots, dep)
			}
		}
	}

	var candidates []string
	for _, rec := range records {
		if rec.Explicit || required[rec.Name] || locked[rec.Name] {
			continue
		}
		candidates = append(candidates, rec.Name)
	}

	return removalOrder(candidates, depends), nil
}

// Autoremove removes every orphan and returns the removed names in order.
func (ins *Installer) Autoremove(ctx context.Context) ([]string, error) {
	orphans, err := ins.Orphans()
	if err != nil {
		return nil, err
	}

	for _, name := range orphans {
		ins.logger.Info(fmt.Sprintf("removing orphan %s", name))
		if err := ins.Remove(ctx, name); err != nil {
			return nil, err
		}
	}
	return orphans, nil
}

// removalOrder sorts candidates so no package is removed while another
// candidate still depends on it. Cycles among the remainder fall back to
// name order.
func removalOrder(candidates []string, depends map[string][]string) []string {
	remaining := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		remaining[name] = true
	}

	var order []string
	for len(remaining) > 0 {
		progressed := false
		for _, name := range candidates {
			if !remaining[name] {
				continue
			}
			needed := false
			for other := range remaining {
				if other != name && slices.Contains(depends[other], name) {
					needed = true
					break
				}
			}
			if !needed {
				order = append(order, name)
				delete(remaining, name)
				progressed = true
			}
		}
		if !progressed {
			for _, name := range candidates {
				if remaining[name] {
					order = append(order, name)
					delete(remaining, name)
				}
			}
		}
	}
	return order
}
