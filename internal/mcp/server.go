// Package mcp exposes translation as Model Context Protocol tools, so that
// an assistant can translate and check statements while it writes them.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"cracksql/internal/model"
	"cracksql/internal/service"
	"cracksql/internal/utils"
)

// MCPServer represents the MCP server that exposes the translator
type MCPServer struct {
	translations service.TranslationService
	dataSources  service.DataSourceService
	server       *server.MCPServer
}

// NewMCPServer creates a new MCP server instance. dataSources may be nil,
// in which case the data source tools are not offered.
func NewMCPServer(translations service.TranslationService, dataSources service.DataSourceService, version string) *MCPServer {
	m := &MCPServer{
		translations: translations,
		dataSources:  dataSources,
		server:       server.NewMCPServer("CrackSQL MCP Server", version),
	}
	m.registerTools()
	return m
}

func (m *MCPServer) registerTools() {
	m.server.AddTool(mcp.NewTool("translate_sql",
		mcp.WithDescription("Translate a SQL statement from one dialect to another. "+
			"Returns the translated statement, or \"Cannot translate!\" with a reason."),
		mcp.WithString("sql", mcp.Required(), mcp.Description("The SQL to translate")),
		mcp.WithString("source_dialect", mcp.Required(), mcp.Description("Source SQL dialect (mysql, postgresql, oracle)")),
		mcp.WithString("target_dialect", mcp.Required(), mcp.Description("Target SQL dialect (mysql, postgresql, oracle)")),
		mcp.WithString("datasource_id", mcp.Description("Data source to verify candidates against")),
	), m.handleTranslateSQL)

	m.server.AddTool(mcp.NewTool("find_signature",
		mcp.WithDescription("Derive the grammar signature linking a rule to a list of keywords"),
		mcp.WithString("dialect", mcp.Required(), mcp.Description("SQL dialect of the grammar")),
		mcp.WithString("rule", mcp.Required(), mcp.Description("Grammar rule to start from")),
		mcp.WithArray("targets", mcp.Required(), mcp.Description("Terminals the signature must reach, in order"),
			mcp.Items(map[string]interface{}{"type": "string"})),
	), m.handleFindSignature)

	m.server.AddTool(mcp.NewTool("list_pieces",
		mcp.WithDescription("List the dialect specific constructs a statement uses"),
		mcp.WithString("sql", mcp.Required(), mcp.Description("The SQL to inspect")),
		mcp.WithString("dialect", mcp.Required(), mcp.Description("Dialect the SQL is written in")),
		mcp.WithString("target_dialect", mcp.Description("Flag the constructs that already work in this dialect")),
	), m.handleListPieces)

	m.server.AddTool(mcp.NewTool("list_supported_dialects",
		mcp.WithDescription("List all supported SQL dialects"),
	), m.handleListSupportedDialects)

	if m.dataSources == nil {
		return
	}
	m.server.AddTool(mcp.NewTool("list_data_sources",
		mcp.WithDescription("List the target databases translations can be verified against"),
	), m.handleListDataSources)

	m.server.AddTool(mcp.NewTool("verify_sql",
		mcp.WithDescription("Run a read-only statement against a data source inside a rolled back transaction"),
		mcp.WithString("datasource_id", mcp.Required(), mcp.Description("The ID of the data source")),
		mcp.WithString("sql", mcp.Required(), mcp.Description("The statement to run")),
	), m.handleVerifySQL)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult reports a failed call to the model rather than to the
// transport.
func errorResult(err error) *mcp.CallToolResult {
	appErr := utils.FromError(err)
	return mcp.NewToolResultError(appErr.Error())
}

func (m *MCPServer) handleTranslateSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := &model.TranslateRequest{
		SQL:          mcp.ParseString(request, "sql", ""),
		Source:       mcp.ParseString(request, "source_dialect", ""),
		Target:       mcp.ParseString(request, "target_dialect", ""),
		DataSourceID: mcp.ParseString(request, "datasource_id", ""),
	}
	res, err := m.translations.Translate(ctx, req)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"sql":        res.SQL,
		"succeeded":  res.Succeeded,
		"reason":     res.Reason,
		"pieces":     res.Pieces,
		"lifts":      res.Lifts,
		"iterations": res.Iterations,
	})
}

func (m *MCPServer) handleFindSignature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var targets []string
	if raw, ok := mcp.ParseArgument(request, "targets", nil).([]interface{}); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				targets = append(targets, s)
			}
		}
	}
	if len(targets) == 0 {
		return mcp.NewToolResultError("targets must list at least one keyword"), nil
	}

	res, err := m.translations.Signature(ctx, &model.SignatureRequest{
		Dialect: mcp.ParseString(request, "dialect", ""),
		Rule:    mcp.ParseString(request, "rule", ""),
		Targets: targets,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (m *MCPServer) handleListPieces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pieces, err := m.translations.Pieces(ctx, &model.PiecesRequest{
		SQL:     mcp.ParseString(request, "sql", ""),
		Dialect: mcp.ParseString(request, "dialect", ""),
		Target:  mcp.ParseString(request, "target_dialect", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{"pieces": pieces, "count": len(pieces)})
}

func (m *MCPServer) handleListSupportedDialects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dialects := m.translations.SupportedDialects()
	return jsonResult(map[string]interface{}{
		"supported_dialects": dialects,
		"count":              len(dialects),
	})
}

func (m *MCPServer) handleListDataSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := m.dataSources.ListDataSources(ctx, &service.ListDataSourcesRequest{Limit: 100})
	if err != nil {
		return errorResult(err), nil
	}

	var result []map[string]interface{}
	for _, ds := range res.DataSources {
		result = append(result, map[string]interface{}{
			"id":       ds.ID,
			"name":     ds.Name,
			"type":     ds.Type,
			"status":   ds.Status,
			"host":     ds.Config.Host,
			"port":     ds.Config.Port,
			"database": ds.Config.Database,
		})
	}
	return jsonResult(map[string]interface{}{"data_sources": result, "count": len(result)})
}

func (m *MCPServer) handleVerifySQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := m.translations.Verify(ctx, &service.VerifyRequest{
		DataSourceID: mcp.ParseString(request, "datasource_id", ""),
		SQL:          mcp.ParseString(request, "sql", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

// StartStdio starts the MCP server using stdio transport
func (m *MCPServer) StartStdio() error {
	return server.ServeStdio(m.server)
}
