package installer

import (
	"context"
	"os"
	"sort"

	"go.porto.sh/porto/internal/core/domain"
	"go.trai.ch/zerr"
)

// Remove deletes an installed package's files and its registration. Each
// path's ownership is re-verified against the database right before
// deletion, so paths transferred away since the record was written survive.
func (ins *Installer) Remove(ctx context.Context, name string) error {
	_, v := ins.telemetry.Record(ctx, "remove "+name)
	err := ins.remove(name)
	v.Complete(err)
	return err
}

func (ins *Installer) remove(name string) error {
	rec, err := ins.db.Record(name)
	if err != nil {
		return err
	}
	if rec == nil {
		return zerr.With(zerr.Wrap(domain.ErrNotInstalled, "nothing to remove"), "package", name)
	}

	owners, err := ins.db.Owners()
	if err != nil {
		return err
	}

	var doomed []string
	for _, path := range rec.Files {
		if owner, ok := owners[path]; !ok || owner != name {
			continue
		}
		doomed = append(doomed, path)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(doomed)))

	for _, path := range doomed {
		if err := os.Remove(ins.livePath(path)); err != nil && !os.IsNotExist(err) {
			return zerr.With(zerr.Wrap(err, "failed to remove file"), "path", path)
		}
	}

	ins.pruneDirs(rec.Footprint.Dirs())
	return ins.db.DeleteRecord(name)
}
