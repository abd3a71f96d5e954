package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/solacedev/component-docs-mcp/app/catalog"
	"github.com/solacedev/component-docs-mcp/app/github"
	"github.com/solacedev/component-docs-mcp/app/usage"
)

// Config defines server configuration
type Config struct {
	Token          string
	APIURL         string
	APIVersion     string
	Timeout        time.Duration
	Org            string
	Repo           string
	DocsRoot       string
	DocsRef        string
	UsageRoot      string
	UsageRef       string
	ReportRoot     string
	MaxConcurrency int
	ServerName     string
	Version        string
	EnableCache    bool
	CacheTTL       time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return fmt.Errorf("server name is required")
	}
	if c.Org == "" || c.Repo == "" {
		return fmt.Errorf("repository owner and name are required")
	}
	if c.DocsRoot == "" {
		return fmt.Errorf("docs root is required")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must not be negative")
	}
	return nil
}

// reportReader reads the local usage report
type reportReader interface {
	Stats() (usage.Stats, error)
	LocalInstances(component string) ([]usage.LocalUsage, error)
	Close() error
}

// Server represents the MCP server instance
type Server struct {
	config  Config
	catalog *catalog.Catalog
	usage   *usage.Aggregator
	reports reportReader
	mcp     *mcp.Server
}

// New creates a new MCP server instance
func New(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := github.NewClient(github.Config{
		BaseURL:    config.APIURL,
		Token:      config.Token,
		APIVersion: config.APIVersion,
		Timeout:    config.Timeout,
	})
	contents := client.Contents(config.Org, config.Repo)

	// wrap directory listings with caching if enabled
	var lister catalog.Lister = contents
	var reports reportReader = usage.NewReader(config.ReportRoot)
	if config.EnableCache {
		lister = catalog.NewCachedLister(contents, config.CacheTTL)
		reports = usage.NewCachedReader(usage.NewReader(config.ReportRoot), config.CacheTTL)
		slog.Info("caching enabled", "ttl", config.CacheTTL)
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    config.ServerName,
		Version: config.Version,
	}, nil)

	server := &Server{
		config: config,
		catalog: catalog.New(lister, catalog.Params{
			DocsRoot:       config.DocsRoot,
			Ref:            config.DocsRef,
			MaxConcurrency: config.MaxConcurrency,
		}),
		usage: usage.NewAggregator(contents, usage.AggregatorParams{
			UsageRoot:      config.UsageRoot,
			Ref:            config.UsageRef,
			MaxConcurrency: config.MaxConcurrency,
		}),
		reports: reports,
		mcp:     mcpServer,
	}

	server.registerTools()

	return server, nil
}

// CategoriesOutput contains the list of categories
type CategoriesOutput struct {
	Categories []string `json:"categories"`
	Total      int      `json:"total"`
}

// ComponentsInput selects a category
type ComponentsInput struct {
	Category string `json:"category" jsonschema:"category name, as returned by get_categories"`
	Ref      string `json:"ref,omitempty" jsonschema:"branch, tag or commit of the docs repository"`
}

// ComponentsOutput contains the components of one category
type ComponentsOutput struct {
	Category   string   `json:"category"`
	Components []string `json:"components"`
	Total      int      `json:"total"`
}

// RefInput optionally pins the docs revision
type RefInput struct {
	Ref string `json:"ref,omitempty" jsonschema:"branch, tag or commit of the docs repository"`
}

// AllComponentsOutput maps categories to their components
type AllComponentsOutput struct {
	Categories map[string][]string `json:"categories"`
	Total      int                 `json:"total"`
}

// FileContentInput selects a component
type FileContentInput struct {
	Category  string `json:"category" jsonschema:"category name"`
	Component string `json:"component" jsonschema:"component name within the category"`
	Ref       string `json:"ref,omitempty" jsonschema:"branch, tag or commit of the docs repository"`
}

// FileOutput is a single documentation file
type FileOutput struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// FileContentOutput contains the documentation files of a component
type FileContentOutput struct {
	Category  string       `json:"category"`
	Component string       `json:"component"`
	Files     []FileOutput `json:"files"`
	Total     int          `json:"total"`
}

// SearchInput represents input for searching components
type SearchInput struct {
	Query string `json:"query" jsonschema:"component name or part of it"`
	Ref   string `json:"ref,omitempty" jsonschema:"branch, tag or commit of the docs repository"`
}

// SearchOutput contains search results
type SearchOutput struct {
	Results []catalog.Match `json:"results"`
	Total   int             `json:"total"`
}

// ComponentInput names a component
type ComponentInput struct {
	Component string `json:"component" jsonschema:"component name, e.g. SolaceButton"`
}

// ComponentUsageOutput contains usage of a component across applications
type ComponentUsageOutput struct {
	Component string           `json:"component"`
	Instances []usage.Instance `json:"instances"`
	Total     int              `json:"total"`
}

// LocalUsageOutput contains usage of a component from the local report
type LocalUsageOutput struct {
	Component      string             `json:"component"`
	Usage          []usage.LocalUsage `json:"usage"`
	TotalInstances int                `json:"totalInstances"`
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_categories",
		Description: "List component categories of the design system documentation.",
	}, s.handleGetCategories)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_components_for_category",
		Description: "List components documented under a category.",
	}, s.handleGetComponents)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_all_components",
		Description: "List all components grouped by category. Categories that fail to load are returned empty.",
	}, s.handleGetAllComponents)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_file_content",
		Description: "Read all documentation files of a component (markdown, stories, examples).",
	}, s.handleGetFileContent)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_components",
		Description: "Search components by name with fuzzy matching. Returns top 10 results sorted by relevance.",
	}, s.handleSearchComponents)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_usage_stats",
		Description: "Summarize component usage counts from the local usage report.",
	}, s.handleGetUsageStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_component_usage",
		Description: "List every recorded instance of a component across all applications, with file paths and props.",
	}, s.handleGetComponentUsage)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_local_component_usage",
		Description: "List instances of a component per application and micro-frontend from the local usage report.",
	}, s.handleGetLocalComponentUsage)
}

// handleGetCategories handles get_categories tool calls.
// input is required by MCP SDK signature but get_categories takes no parameters.
func (s *Server) handleGetCategories(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_categories called")

	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list categories under %s: %w", s.catalog.DocsRoot(), err)
	}
	return toolResult(&CategoriesOutput{Categories: categories, Total: len(categories)})
}

// handleGetComponents handles get_components_for_category tool calls
func (s *Server) handleGetComponents(ctx context.Context, _ *mcp.CallToolRequest, input ComponentsInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_components_for_category called", "category", input.Category, "ref", input.Ref)

	components, err := s.catalog.ListComponents(ctx, input.Category, input.Ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list components of category %q: %w", input.Category, err)
	}
	return toolResult(&ComponentsOutput{Category: input.Category, Components: components, Total: len(components)})
}

// handleGetAllComponents handles get_all_components tool calls
func (s *Server) handleGetAllComponents(ctx context.Context, _ *mcp.CallToolRequest, input RefInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_all_components called", "ref", input.Ref)

	byCategory, err := s.catalog.ListAllComponentsByCategory(ctx, input.Ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list components: %w", err)
	}

	total := 0
	for _, components := range byCategory {
		total += len(components)
	}
	return toolResult(&AllComponentsOutput{Categories: byCategory, Total: total})
}

// handleGetFileContent handles get_file_content tool calls
func (s *Server) handleGetFileContent(ctx context.Context, _ *mcp.CallToolRequest, input FileContentInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_file_content called", "category", input.Category, "component", input.Component, "ref", input.Ref)

	files, err := s.catalog.GetFiles(ctx, input.Category, input.Component, input.Ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read docs of %s/%s: %w", input.Category, input.Component, err)
	}

	out := &FileContentOutput{
		Category:  input.Category,
		Component: input.Component,
		Files:     make([]FileOutput, 0, len(files)),
		Total:     len(files),
	}
	for _, f := range files {
		fo := FileOutput{Name: f.Name, Path: f.Path, Content: f.Content}
		if isMarkdown(f.Name) {
			fm := parseFrontmatter(f.Content)
			fo.Description, fo.Tags = fm.Description, fm.Tags
		}
		out.Files = append(out.Files, fo)
	}
	return toolResult(out)
}

// handleSearchComponents handles search_components tool calls
func (s *Server) handleSearchComponents(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("search_components called", "query", input.Query, "ref", input.Ref)

	matches, err := s.catalog.SearchComponents(ctx, input.Query, input.Ref)
	if err != nil {
		return nil, nil, fmt.Errorf("search failed: %w", err)
	}
	return toolResult(&SearchOutput{Results: matches, Total: len(matches)})
}

// handleGetUsageStats handles get_usage_stats tool calls
func (s *Server) handleGetUsageStats(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_usage_stats called")

	stats, err := s.reports.Stats()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read usage stats: %w", err)
	}
	return toolResult(&stats)
}

// handleGetComponentUsage handles get_component_usage tool calls
func (s *Server) handleGetComponentUsage(ctx context.Context, _ *mcp.CallToolRequest, input ComponentInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_component_usage called", "component", input.Component)

	instances, err := s.usage.UsageForComponent(ctx, input.Component)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read usage of %q: %w", input.Component, err)
	}
	return toolResult(&ComponentUsageOutput{Component: input.Component, Instances: instances, Total: len(instances)})
}

// handleGetLocalComponentUsage handles get_local_component_usage tool calls
func (s *Server) handleGetLocalComponentUsage(_ context.Context, _ *mcp.CallToolRequest, input ComponentInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_local_component_usage called", "component", input.Component)

	local, err := s.reports.LocalInstances(input.Component)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read local usage of %q: %w", input.Component, err)
	}

	out := &LocalUsageOutput{Component: input.Component, Usage: local}
	for _, u := range local {
		out.TotalInstances += len(u.Instances)
	}
	return toolResult(out)
}

// toolResult renders result as JSON text content and returns it as structured output too
func toolResult(result any) (*mcp.CallToolResult, any, error) {
	content, err := json.Marshal(result)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: string(content),
			},
		},
	}, result, nil
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting MCP server", "name", s.config.ServerName, "version", s.config.Version)
	slog.Info("reading sources", "repo", s.config.Org+"/"+s.config.Repo, "docs", s.config.DocsRoot,
		"usage", s.config.UsageRoot, "report", s.config.ReportRoot)

	// ensure cleanup on exit
	defer s.Close()

	return s.mcp.Run(ctx, &mcp.StdioTransport{}) // nolint:wrapcheck // MCP SDK error is descriptive
}

// Close cleans up server resources
func (s *Server) Close() error {
	if s.reports != nil {
		return s.reports.Close() // nolint:wrapcheck // watcher error is descriptive
	}
	return nil
}
