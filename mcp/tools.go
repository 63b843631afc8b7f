package mcp

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/ka2n/x402search/api"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// Searcher is what the tools need from the orchestrator
type Searcher interface {
	Search(ctx context.Context, q api.Query) (*api.Response, error)
	CheckLicense(ctx context.Context, url string) ledger.Verdict
}

func InitTools(searcher Searcher) []server.ServerTool {
	tools := []server.ServerTool{}

	tools = append(tools, newServerTool(Search(searcher)))
	tools = append(tools, newServerTool(CheckLicense(searcher)))

	return tools
}

// decodeArguments maps tool arguments onto out using its json tags.
// Numbers arrive as float64 and are converted to the field types.
func decodeArguments(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func Search(searcher Searcher) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"search",
			mcp.WithDescription("Search the web and report the AI license status of every result. "+
				"With fetch=true each result page is fetched; x402 paywalls are licensed through the ledger "+
				"and consumed tokens are reported once per call."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
			mcp.WithNumber("num_results", mcp.Description("Number of results (1-100, default 5)")),
			mcp.WithString("type", mcp.Description("Search type"), mcp.Enum("auto", "neural", "keyword", "fast")),
			mcp.WithArray("include_domains", mcp.Description("Only return results from these domains"), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("exclude_domains", mcp.Description("Never return results from these domains"), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithBoolean("fetch", mcp.Description("Fetch every result page, licensing it when required (default false)")),
			mcp.WithString("stage", mcp.Description("Intended use of fetched content (default inference)"), mcp.Enum("inference", "embedding", "tuning", "training")),
			mcp.WithString("distribution", mcp.Description("Audience of fetched content (default private)"), mcp.Enum("private", "public")),
			mcp.WithNumber("estimated_tokens", mcp.Description("Token estimate declared when acquiring a license")),
			mcp.WithNumber("max_chars", mcp.Description("Maximum characters of fetched content per result")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args api.Query
			if err := decodeArguments(req.Params.Arguments, &args); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			resp, err := searcher.Search(ctx, args)
			if err != nil {
				return mcp.NewToolResultError(failcode.Describe(err)), nil
			}

			return jsonResult(resp)
		}
}

func CheckLicense(searcher Searcher) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"check_license",
			mcp.WithDescription("Look up the AI license verdict of a single URL"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Absolute URL")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				URL string `json:"url" validate:"required,url"`
			}
			var args ToolArguments
			if err := decodeArguments(req.Params.Arguments, &args); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := validate.StructCtx(ctx, args); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			return jsonResult(searcher.CheckLicense(ctx, args.URL))
		}
}
