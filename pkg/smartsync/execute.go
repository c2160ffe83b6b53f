package smartsync

import (
	"context"
	"time"

	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/remote"
)

// Execute runs the chosen Strategy to completion and returns the
// DirectoryNode rows it scanned. A full scan commits them with Commit,
// replacing the tracked state under root; a targeted scan upserts them with
// BulkUpsertDirectories and deletes nothing; a skip returns nil and writes
// nothing. Callers normally get the Strategy from Plan and pass it
// straight through; Execute is split out so tests can drive each strategy
// kind independently of the decision logic.
func (p *Planner) Execute(ctx context.Context, lister Lister, strategy Strategy, owner, baseURL, root string) ([]models.DirectoryNode, error) {
	switch strategy.Kind {
	case StrategySkip:
		return nil, nil
	case StrategyFull:
		nodes, err := recursiveScan(ctx, lister, owner, baseURL, root)
		if err != nil {
			return nil, err
		}
		if err := p.Commit(ctx, owner, root, nodes); err != nil {
			return nil, err
		}
		return nodes, nil
	case StrategyTargeted:
		nodes, err := targetedScan(ctx, lister, owner, baseURL, strategy.Paths)
		if err != nil {
			return nil, err
		}
		if err := p.store.BulkUpsertDirectories(ctx, nodes); err != nil {
			return nil, err
		}
		return nodes, nil
	default:
		return nil, nil
	}
}

// recursiveScan walks the tree breadth-first via repeated ShallowList calls,
// producing one DirectoryNode per directory encountered including root.
func recursiveScan(ctx context.Context, lister Lister, owner, baseURL, root string) ([]models.DirectoryNode, error) {
	var nodes []models.DirectoryNode
	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		listing, err := lister.ShallowList(ctx, baseURL, current)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, listingToNode(owner, current, listing))

		for _, child := range listing.Children {
			if child.IsDir {
				queue = append(queue, child.Path)
			}
		}
	}
	return nodes, nil
}

// targetedScan re-lists only the given paths, each non-recursively.
func targetedScan(ctx context.Context, lister Lister, owner, baseURL string, paths []string) ([]models.DirectoryNode, error) {
	nodes := make([]models.DirectoryNode, 0, len(paths))
	for _, path := range paths {
		listing, err := lister.ShallowList(ctx, baseURL, path)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, listingToNode(owner, path, listing))
	}
	return nodes, nil
}

func listingToNode(owner, path string, listing remote.Listing) models.DirectoryNode {
	var fileCount int
	var totalSize int64
	for _, child := range listing.Children {
		if !child.IsDir {
			fileCount++
			totalSize += child.Size
		}
	}
	return models.DirectoryNode{
		Owner:         owner,
		Path:          path,
		DirectoryETag: listing.DirectoryETag,
		FileCount:     fileCount,
		TotalSize:     totalSize,
		UpdatedAt:     time.Now(),
	}
}
