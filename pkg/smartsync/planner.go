// Package smartsync implements the Smart Sync Planner from spec.md §4.7:
// given an owner, a source, and a root path, decide whether a sync can be
// skipped, should targeted-rescan a handful of changed directories, or must
// fully rescan the tree — then execute the decision against the Directory
// Tree Tracker.
package smartsync

import (
	"context"

	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/remote"
	"github.com/docpipe/ocrflow/pkg/store"
)

// StrategyKind discriminates the planner's decision.
type StrategyKind string

const (
	StrategySkip     StrategyKind = "skip_sync"
	StrategyFull     StrategyKind = "full_deep_scan"
	StrategyTargeted StrategyKind = "targeted_scan"
)

// newChildrenThreshold and changeRatioThreshold are the two escalation
// triggers from spec.md §4.7 step 4.
const (
	newChildrenThreshold = 5
	changeRatioThreshold = 0.30
)

// Strategy is the planner's decision.
type Strategy struct {
	Kind  StrategyKind
	Paths []string // populated only for StrategyTargeted
}

// Lister is the subset of remote.Client the planner needs.
type Lister interface {
	ShallowList(ctx context.Context, baseURL, logicalPath string) (remote.Listing, error)
}

// Planner decides and then executes a sync strategy for one (owner, root).
type Planner struct {
	store store.Store
}

func NewPlanner(s store.Store) *Planner {
	return &Planner{store: s}
}

// Plan implements spec.md §4.7's five-step algorithm. baseURL is the
// server's root URL; root is the logical path being synced.
func (p *Planner) Plan(ctx context.Context, lister Lister, owner, baseURL, root string) (Strategy, error) {
	known, err := p.store.KnownDirectoriesUnder(ctx, owner, root)
	if err != nil {
		return Strategy{}, err
	}
	if len(known) == 0 {
		return Strategy{Kind: StrategyFull}, nil
	}

	listing, err := lister.ShallowList(ctx, baseURL, root)
	if err != nil {
		// Any remote error at the listing step falls back to a full scan —
		// it's always safe, if more expensive than necessary.
		return Strategy{Kind: StrategyFull}, nil
	}

	knownByPath := make(map[string]models.DirectoryNode, len(known))
	for _, n := range known {
		knownByPath[n.Path] = n
	}

	var changed, newPaths []string
	for _, child := range listing.Children {
		if !child.IsDir {
			continue
		}
		existing, ok := knownByPath[child.Path]
		switch {
		case !ok:
			newPaths = append(newPaths, child.Path)
		case existing.DirectoryETag != child.ETag:
			changed = append(changed, child.Path)
		}
	}

	totalChanges := len(changed) + len(newPaths)
	if totalChanges == 0 {
		return Strategy{Kind: StrategySkip}, nil
	}

	knownRelevant := len(known)
	ratio := float64(totalChanges) / float64(knownRelevant)
	if len(newPaths) > newChildrenThreshold || ratio > changeRatioThreshold {
		return Strategy{Kind: StrategyFull}, nil
	}

	return Strategy{Kind: StrategyTargeted, Paths: append(changed, newPaths...)}, nil
}

// Commit persists nodes as the new truth under root for owner, per the
// atomic sync_directories contract in spec.md §4.6: tracked directories
// under root that nodes does not list are deleted. Execute calls it after a
// full scan only; a targeted scan upserts its nodes with
// BulkUpsertDirectories instead.
func (p *Planner) Commit(ctx context.Context, owner, root string, nodes []models.DirectoryNode) error {
	return p.store.SyncDirectories(ctx, owner, root, nodes)
}
