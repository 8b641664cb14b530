package mcp

import "github.com/mark3labs/mcp-go/mcp"

var generateRecommendationTool = mcp.NewTool("generate_recommendation",
	mcp.WithDescription("Generate an investment recommendation (BUY/HOLD/AVOID with confidence, reasons, risks and horizon) for a symbol."),
	mcp.WithString("symbol",
		mcp.Required(),
		mcp.Description("Ticker symbol, e.g. AAPL"),
	),
	mcp.WithString("user_id",
		mcp.Description("Investor whose profile should shape the recommendation"),
	),
	mcp.WithString("complexity",
		mcp.Description("How much is at stake; selects models, token budget and temperature (default medium)"),
		mcp.Enum("low", "medium", "high", "critical"),
	),
	mcp.WithObject("context_data",
		mcp.Description("Extra context such as technical_indicators, fundamental_data, sentiment"),
	),
)

var buildContextTool = mcp.NewTool("build_context",
	mcp.WithDescription("Assemble the resources and tools available for a symbol and user. Results are cached per session."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session the context belongs to"),
	),
	mcp.WithString("symbol",
		mcp.Description("Ticker symbol to scope market data and notes"),
	),
	mcp.WithString("user_id",
		mcp.Description("Investor to scope profile resources"),
	),
	mcp.WithBoolean("include_tools",
		mcp.Description("Also list provider tools (default false)"),
	),
)

var modelHealthTool = mcp.NewTool("model_health",
	mcp.WithDescription("Report availability of every registered generation model and the overall status."),
)

var clearContextCacheTool = mcp.NewTool("clear_context_cache",
	mcp.WithDescription("Drop cached contexts whose session id starts with the given prefix, or all when omitted."),
	mcp.WithString("session_id",
		mcp.Description("Session id prefix"),
	),
)

var searchResearchNotesTool = mcp.NewTool("search_research_notes",
	mcp.WithDescription("Semantic search over stored research notes."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithString("symbol",
		mcp.Description("Restrict results to one symbol"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of notes to return (default 5)"),
	),
)

type resourceTemplate struct {
	pattern     string
	name        string
	description string
	mimeType    string
}

var resourceTemplates = []resourceTemplate{
	{"market-data://{symbol}/{kind}", "Market data", "Quote, history, indicators or fundamentals for a symbol", "application/json"},
	{"user-profile://{user_id}/{kind}", "User profile", "Profile, portfolio or trading history of an investor", "application/json"},
	{"research-notes://{symbol}/{id}", "Research note", "A stored research note", "text/plain"},
}
