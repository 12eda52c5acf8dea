package selection

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"indexpanel/internal/contextutil"
)

// DefaultMaxDepth bounds directory recursion when the caller does not
// specify a limit.
const DefaultMaxDepth = 10

// allowedExtensions is the fixed allow-list of document and source-text
// formats yielded by the walk.
var allowedExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".markdown": {}, ".rst": {}, ".log": {},
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {},
	".java": {}, ".c": {}, ".cc": {}, ".cpp": {}, ".h": {}, ".hpp": {},
	".rb": {}, ".rs": {}, ".sh": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {},
	".html": {}, ".css": {}, ".csv": {}, ".xml": {},
	".pdf": {}, ".docx": {}, ".xlsx": {}, ".pptx": {},
}

// ExtensionAllowed reports whether a file's extension is in the allow-list.
func ExtensionAllowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := allowedExtensions[ext]
	return ok
}

// Walk enumerates files under the given roots, respecting the selection
// rules and the extension allow-list, bounded by maxDepth (DefaultMaxDepth
// when maxDepth <= 0).
//
// Directories are pruned on the exclude patterns alone before descending,
// so an excluded directory is never entered and none of its descendants
// are statted; include patterns apply to files only, since a directory
// outside every include may still hold files inside one.
// Filesystem errors on a directory (permission denied, broken
// links) abandon that branch; the walk itself never fails on them.
// Re-invoking Walk re-lists the filesystem: nothing is cached.
func Walk(ctx context.Context, roots []string, rules Rules, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	logger := contextutil.LoggerFromContext(ctx)
	var files []string

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		info, err := os.Stat(root)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable root", "root", root, "error", err)
			continue
		}

		if !info.IsDir() {
			if ExtensionAllowed(root) && rules.IsSelected(root) {
				files = append(files, root)
			}
			continue
		}

		if rules.IsExcluded(root) {
			continue
		}
		if err := walkDir(ctx, root, rules, maxDepth, 0, &files, logger); err != nil {
			return files, err
		}
	}

	return files, nil
}

// walkDir recursively lists one directory level. The only error it returns
// is context cancellation; directory read failures abandon the branch.
func walkDir(ctx context.Context, dir string, rules Rules, maxDepth, depth int, files *[]string, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth >= maxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.DebugContext(ctx, "abandoning unreadable directory", "dir", dir, "error", err)
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if rules.IsExcluded(path) {
				continue
			}
			if err := walkDir(ctx, path, rules, maxDepth, depth+1, files, logger); err != nil {
				return err
			}
			continue
		}

		if !ExtensionAllowed(path) {
			continue
		}
		if !rules.IsSelected(path) {
			continue
		}
		*files = append(*files, path)
	}

	return nil
}
