package mirror

import (
	"github.com/condaops/conda-mirror/repodata"
	"github.com/condaops/conda-mirror/storage"
)

// Plan is the reconciliation result for one subdir: which archives to remove
// from the destination and which to transfer from the source.
type Plan struct {
	// ToDelete lists destination filenames absent from the filtered source
	// set.
	ToDelete []string

	// ToAdd maps source filenames missing at the destination to their
	// records.
	ToAdd map[string]repodata.PackageRecord
}

// NewPlan diffs the filtered source package set against the destination
// listing. Only names parsing as a known archive type participate; anything
// else at the destination is invisible to both counting and deletion.
// Identity is by filename only; existing destination objects are not
// re-verified.
func NewPlan(kept map[string]repodata.PackageRecord, existing []*storage.Entry) *Plan {
	present := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		if entry.IsDir {
			continue
		}
		if repodata.ParseArchiveType(entry.Name) == repodata.ArchiveUnknown {
			continue
		}
		present[entry.Name] = struct{}{}
	}

	plan := &Plan{ToAdd: map[string]repodata.PackageRecord{}}

	for filename := range present {
		if _, ok := kept[filename]; !ok {
			plan.ToDelete = append(plan.ToDelete, filename)
		}
	}
	for filename, record := range kept {
		if _, ok := present[filename]; !ok {
			plan.ToAdd[filename] = record
		}
	}
	return plan
}

// Empty reports whether the plan carries no work.
func (p *Plan) Empty() bool {
	return len(p.ToDelete) == 0 && len(p.ToAdd) == 0
}
