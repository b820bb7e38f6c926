// Package mcp provides the MCP (Model Context Protocol) server for vaultgraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/vaultgraph/internal/graph"
	"github.com/Benny93/vaultgraph/internal/storage"
)

const (
	serverName    = "vaultgraph"
	serverVersion = "0.1.0"
)

// Server represents the MCP server.
type Server struct {
	store  storage.Reader
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over a read-only graph store.
func NewServer(store storage.Reader) *Server {
	s := &Server{
		store: store,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "vault_search",
			Description: "Search notes by name and content. Returns ranked notes matching the query.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search query text"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "vault_note",
			Description: "Show a note with its folder, tags, siblings and history dates.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path":     {Type: "string", Description: "Vault-relative note path or note ID"},
					"vault_id": {Type: "string", Description: "Vault identifier, when several vaults share the store"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "vault_tag",
			Description: "Show a tag with its parent, child tags and the notes carrying it.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"tag": {Type: "string", Description: "Tag path, e.g. project/alpha"},
				},
				Required: []string{"tag"},
			},
		},
		{
			Name:        "vault_folder",
			Description: "List the subfolders and notes of a folder.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path":     {Type: "string", Description: "Vault-relative folder path, \".\" for the root"},
					"vault_id": {Type: "string", Description: "Vault identifier, when several vaults share the store"},
				},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "vault://overview",
			Name:        "Vault Overview",
			Description: "Node and relationship counts of the vault graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "vault://schema",
			Name:        "Graph Schema",
			Description: "Description of the vault graph schema",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "vault_search":
		query, _ := args["query"].(string)
		limit, _ := args["limit"].(float64)
		if limit <= 0 {
			limit = 20
		}
		return s.handleSearch(ctx, query, int(limit))
	case "vault_note":
		path, _ := args["path"].(string)
		vaultID, _ := args["vault_id"].(string)
		return s.handleNote(ctx, path, vaultID)
	case "vault_tag":
		tag, _ := args["tag"].(string)
		return s.handleTag(ctx, tag)
	case "vault_folder":
		path, _ := args["path"].(string)
		vaultID, _ := args["vault_id"].(string)
		return s.handleFolder(ctx, path, vaultID)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "vault://overview":
		return s.getOverview(ctx)
	case "vault://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves newline-delimited JSON-RPC over stdin and stdout.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// MCP requires compact JSON, one message per line.

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		// Notifications carry no id and get no response.
		if _, ok := req["id"]; !ok {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

// Connect serves one session of the SDK server over transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return map[string]any{"jsonrpc": "2.0", "id": id, "result": map[string]any{}}
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		_ = json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) handleSearch(ctx context.Context, query string, limit int) (string, error) {
	if query == "" {
		return "No query provided", nil
	}

	results, err := s.store.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s**\n", i+1, r.Name)
		fmt.Fprintf(&sb, "   Path: %s\n", r.Path)
		fmt.Fprintf(&sb, "   Score: %.0f\n", r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", strings.ReplaceAll(r.Snippet, "\n", " "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Next: Use `vault_note` on a path for its tags and folder.")

	return sb.String(), nil
}

func (s *Server) handleNote(ctx context.Context, notePath, vaultID string) (string, error) {
	if notePath == "" {
		return "No path provided", nil
	}

	note, err := s.findNode(ctx, graph.NodeNote, notePath, vaultID)
	if err != nil {
		return "", err
	}
	if note == nil {
		return fmt.Sprintf("Note '%s' not found in graph", notePath), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", note.Name)
	fmt.Fprintf(&sb, "- Path: %s\n", note.Path)
	fmt.Fprintf(&sb, "- Vault: %s\n", note.VaultID)
	fmt.Fprintf(&sb, "- Level: %d\n", note.Level)
	fmt.Fprintf(&sb, "- Created: %s\n", formatTime(note.CreatedAt))
	fmt.Fprintf(&sb, "- Modified: %s\n", formatTime(note.ModifiedAt))

	folders, err := s.neighbours(ctx, note.ID, graph.RelContains, false)
	if err != nil {
		return "", err
	}
	for _, f := range folders {
		fmt.Fprintf(&sb, "- Folder: %s\n", f.Path)
	}

	tags, err := s.neighbours(ctx, note.ID, graph.RelHasTag, true)
	if err != nil {
		return "", err
	}
	if len(tags) > 0 {
		fmt.Fprintf(&sb, "\n## Tags (%d)\n", len(tags))
		for _, t := range tags {
			fmt.Fprintf(&sb, "- #%s\n", t.Path)
		}
	}

	siblings, err := s.neighbours(ctx, note.ID, graph.RelSiblingOf, true)
	if err != nil {
		return "", err
	}
	if len(siblings) > 0 {
		fmt.Fprintf(&sb, "\n## Siblings (%d)\n", len(siblings))
		for _, n := range siblings {
			fmt.Fprintf(&sb, "- %s\n", n.Path)
		}
	}

	return sb.String(), nil
}

func (s *Server) handleTag(ctx context.Context, tagPath string) (string, error) {
	tagPath = strings.ToLower(strings.Trim(strings.TrimPrefix(tagPath, "#"), "/"))
	if tagPath == "" {
		return "No tag provided", nil
	}

	tag, err := s.store.GetNode(ctx, graph.TagID(tagPath))
	if err != nil {
		return "", err
	}
	if tag == nil {
		return fmt.Sprintf("Tag '%s' not found in graph", tagPath), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# #%s (level %d)\n\n", tag.Path, tag.Level)

	parents, err := s.neighbours(ctx, tag.ID, graph.RelContains, false)
	if err != nil {
		return "", err
	}
	for _, p := range parents {
		fmt.Fprintf(&sb, "Parent: #%s\n", p.Path)
	}

	children, err := s.neighbours(ctx, tag.ID, graph.RelContains, true)
	if err != nil {
		return "", err
	}
	if len(children) > 0 {
		fmt.Fprintf(&sb, "\n## Child tags (%d)\n", len(children))
		for _, c := range children {
			fmt.Fprintf(&sb, "- #%s\n", c.Path)
		}
	}

	notes, err := s.neighbours(ctx, tag.ID, graph.RelHasTag, false)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "\n## Notes (%d)\n", len(notes))
	for _, n := range notes {
		fmt.Fprintf(&sb, "- %s (%s)\n", n.Path, n.VaultID)
	}

	return sb.String(), nil
}

func (s *Server) handleFolder(ctx context.Context, folderPath, vaultID string) (string, error) {
	if folderPath == "" {
		folderPath = graph.RootPath
	}

	folder, err := s.findNode(ctx, graph.NodeDirectory, folderPath, vaultID)
	if err != nil {
		return "", err
	}
	if folder == nil {
		return fmt.Sprintf("Folder '%s' not found in graph", folderPath), nil
	}

	children, err := s.neighbours(ctx, folder.ID, graph.RelContains, true)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s (%s)\n\n", folder.Name, folder.Path)
	for _, label := range []graph.NodeLabel{graph.NodeDirectory, graph.NodeNote} {
		var names []string
		for _, c := range children {
			if c.Label == label {
				names = append(names, c.Path)
			}
		}
		if len(names) == 0 {
			continue
		}
		heading := "Folders"
		if label == graph.NodeNote {
			heading = "Notes"
		}
		fmt.Fprintf(&sb, "## %s (%d)\n", heading, len(names))
		for _, n := range names {
			fmt.Fprintf(&sb, "- %s\n", n)
		}
		sb.WriteString("\n")
	}
	if len(children) == 0 {
		sb.WriteString("Folder is empty.\n")
	}

	return sb.String(), nil
}

// findNode resolves a path or node ID to a directory or note node. Without
// vaultID the first vault holding the path wins.
func (s *Server) findNode(ctx context.Context, label graph.NodeLabel, ref, vaultID string) (*graph.GraphNode, error) {
	if graph.LabelOf(ref) == label {
		return s.store.GetNode(ctx, ref)
	}

	nodes, err := s.store.GetNodesByLabel(ctx, label)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Path == ref && (vaultID == "" || n.VaultID == vaultID) {
			return n, nil
		}
	}
	return nil, nil
}

// neighbours returns the nodes at the other end of relType edges, sorted by
// path.
func (s *Server) neighbours(ctx context.Context, nodeID string, relType graph.RelType, outgoing bool) ([]*graph.GraphNode, error) {
	var (
		rels []*graph.GraphRelationship
		err  error
	)
	if outgoing {
		rels, err = s.store.GetOutgoing(ctx, nodeID, relType)
	} else {
		rels, err = s.store.GetIncoming(ctx, nodeID, relType)
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]*graph.GraphNode, 0, len(rels))
	for _, rel := range rels {
		otherID := rel.Source
		if outgoing {
			otherID = rel.Target
		}
		node, err := s.store.GetNode(ctx, otherID)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	slices.SortFunc(nodes, func(a, b *graph.GraphNode) int { return strings.Compare(a.Path, b.Path) })
	return nodes, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

// Resource Handlers

func (s *Server) getOverview(ctx context.Context) (string, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Vault Graph Overview\n\n")
	fmt.Fprintf(&sb, "**Nodes:** %d\n", stats.TotalNodes())
	fmt.Fprintf(&sb, "**Relationships:** %d\n", stats.TotalRelationships())
	sb.WriteString("\n## Nodes\n\n")
	for _, label := range graph.Labels {
		fmt.Fprintf(&sb, "- %s: %d\n", label, stats.Nodes[label])
	}
	sb.WriteString("\n## Relationships\n\n")
	for _, relType := range graph.RelTypes {
		fmt.Fprintf(&sb, "- %s: %d\n", relType, stats.Relationships[relType])
	}

	return sb.String(), nil
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Vault Graph Schema\n\n")
	sb.WriteString("## Node Labels\n\n")
	sb.WriteString("| Label | Identity | Key Properties |\n")
	sb.WriteString("|-------|----------|----------------|\n")
	sb.WriteString("| `Directory` | Directory:{vault_id}:{path} | name, path, level, vault_id |\n")
	sb.WriteString("| `Note` | Note:{vault_id}:{path} | name, path, level, vault_id, content, created_at, modified_at |\n")
	sb.WriteString("| `Tag` | Tag:{tag_path} | name, path, level |\n")
	sb.WriteString("\n## Relationship Types\n\n")
	sb.WriteString("| Type | Source → Target |\n")
	sb.WriteString("|------|-----------------|\n")
	sb.WriteString("| `CONTAINS` | Directory → Directory, Directory → Note, Tag → Tag |\n")
	sb.WriteString("| `SIBLING_OF` | Note → Note (same directory, both directions) |\n")
	sb.WriteString("| `HAS_TAG` | Note → Tag (every level of the tag path) |\n")

	return sb.String()
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// registerTools registers tools with the SDK server.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]any
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return nil, fmt.Errorf("decoding arguments: %w", err)
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				return nil, err
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		})
	}
}

// registerResources registers resources with the SDK server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, MIMEType: "text/plain", Text: text},
				},
			}, nil
		})
	}
}
