package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/solacedev/component-docs-mcp/app/github"
)

const defaultMaxConcurrency = 8

// Lister is the subset of the contents API the catalog needs
type Lister interface {
	ListDir(ctx context.Context, path, ref string) ([]github.DirEntry, bool, error)
	RawContent(ctx context.Context, entry github.DirEntry, ref string) (string, error)
}

// Params contains parameters for creating a catalog
type Params struct {
	DocsRoot       string // repository path holding one directory per category
	Ref            string // default revision, used when a call passes an empty ref
	MaxConcurrency int    // limit for per-category and per-file fan-out
}

// Catalog enumerates documented components stored in a repository
type Catalog struct {
	lister         Lister
	docsRoot       string
	ref            string
	maxConcurrency int
}

// NotFoundError is returned when a category/component pair has no documentation directory
type NotFoundError struct {
	Category  string
	Component string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("documentation not found for component %q in category %q", e.Component, e.Category)
}

// File is a single documentation file of a component
type File struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// New creates a catalog reading through the given lister
func New(lister Lister, params Params) *Catalog {
	c := &Catalog{
		lister:         lister,
		docsRoot:       params.DocsRoot,
		ref:            params.Ref,
		maxConcurrency: params.MaxConcurrency,
	}
	if c.maxConcurrency <= 0 {
		c.maxConcurrency = defaultMaxConcurrency
	}
	return c
}

// DocsRoot returns the documentation root path
func (c *Catalog) DocsRoot() string {
	return c.docsRoot
}

// ListCategories returns the category directory names under the docs root.
// A missing root or a non-directory response yields an empty list.
func (c *Catalog) ListCategories(ctx context.Context) ([]string, error) {
	return c.listCategoriesAt(ctx, c.ref)
}

// ListComponents returns the component directory names of a category
func (c *Catalog) ListComponents(ctx context.Context, category, ref string) ([]string, error) {
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}
	return c.listDirNames(ctx, path.Join(c.docsRoot, category), c.resolveRef(ref))
}

// ListAllComponentsByCategory maps every category to its components. Categories are
// listed concurrently and a failing category maps to an empty list instead of
// failing the whole call. Failing to resolve the categories and authorization
// failures are errors.
func (c *Catalog) ListAllComponentsByCategory(ctx context.Context, ref string) (map[string][]string, error) {
	ref = c.resolveRef(ref)
	categories, err := c.listCategoriesAt(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	type result struct {
		components []string
		err        error
	}
	results := make([]result, len(categories))

	var g errgroup.Group
	g.SetLimit(c.maxConcurrency)
	for i, category := range categories {
		g.Go(func() error {
			components, err := c.ListComponents(ctx, category, ref)
			results[i] = result{components: components, err: err}
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors, failures are kept per category

	res := make(map[string][]string, len(categories))
	for i, category := range categories {
		if github.IsUnauthorized(results[i].err) {
			return nil, fmt.Errorf("failed to list components of %s: %w", category, results[i].err)
		}
		if results[i].err != nil {
			slog.Warn("failed to list components", "category", category, "ref", ref, "error", results[i].err)
			res[category] = []string{}
			continue
		}
		res[category] = results[i].components
	}
	return res, nil
}

// GetFiles lists the files of a component directory and fetches their raw content.
// Files keep listing order. A missing directory is a NotFoundError.
func (c *Catalog) GetFiles(ctx context.Context, category, component, ref string) ([]File, error) {
	if category == "" || component == "" {
		return nil, fmt.Errorf("category and component are required")
	}
	ref = c.resolveRef(ref)

	entries, ok, err := c.lister.ListDir(ctx, path.Join(c.docsRoot, category, component), ref)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, &NotFoundError{Category: category, Component: component}
		}
		return nil, err // nolint:wrapcheck // remote error carries method and url
	}
	if !ok {
		return nil, &NotFoundError{Category: category, Component: component}
	}

	fileEntries := github.Files(entries)
	files := make([]File, len(fileEntries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for i, entry := range fileEntries {
		g.Go(func() error {
			content, err := c.lister.RawContent(gctx, entry, ref)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", entry.Path, err)
			}
			files[i] = File{Name: entry.Name, Path: entry.Path, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err // nolint:wrapcheck // already wrapped with file path
	}
	return files, nil
}

// GetFileContent returns the raw content of every file of a component, in listing order
func (c *Catalog) GetFileContent(ctx context.Context, category, component, ref string) ([]string, error) {
	files, err := c.GetFiles(ctx, category, component, ref)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(files))
	for i, f := range files {
		res[i] = f.Content
	}
	return res, nil
}

func (c *Catalog) listCategoriesAt(ctx context.Context, ref string) ([]string, error) {
	return c.listDirNames(ctx, c.docsRoot, ref)
}

// listDirNames returns unique directory names at p; 404 and non-array responses are empty
func (c *Catalog) listDirNames(ctx context.Context, p, ref string) ([]string, error) {
	entries, ok, err := c.lister.ListDir(ctx, p, ref)
	if err != nil {
		if github.IsNotFound(err) {
			slog.Debug("listing not found", "path", p, "ref", ref)
			return []string{}, nil
		}
		return nil, err // nolint:wrapcheck // remote error carries method and url
	}
	if !ok {
		return []string{}, nil
	}

	dirs := github.Dirs(entries)
	names := make([]string, 0, len(dirs))
	seen := make(map[string]struct{}, len(dirs))
	for _, d := range dirs {
		if _, dup := seen[d.Name]; dup {
			continue
		}
		seen[d.Name] = struct{}{}
		names = append(names, d.Name)
	}
	return names, nil
}

func (c *Catalog) resolveRef(ref string) string {
	if ref == "" {
		return c.ref
	}
	return ref
}
