package mcp

import "github.com/mark3labs/mcp-go/mcp"

const sessionDescription = "Session the parameter set belongs to (default: \"mcp\")"

var captureToolDef = mcp.NewTool("utm_capture",
	mcp.WithDescription("Capture utm_ parameters from a landing URL into the session. "+
		"Falls back to the stored set, then configured defaults, when the URL has none."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Absolute landing URL to read the query from")),
	mcp.WithString("session", mcp.Description(sessionDescription)),
)

var readToolDef = mcp.NewTool("utm_read",
	mcp.WithDescription("Read the session's stored parameter set in the configured key format."),
	mcp.WithString("session", mcp.Description(sessionDescription)),
	mcp.WithReadOnlyHintAnnotation(true),
)

var clearToolDef = mcp.NewTool("utm_clear",
	mcp.WithDescription("Remove the session's stored parameter set."),
	mcp.WithString("session", mcp.Description(sessionDescription)),
	mcp.WithDestructiveHintAnnotation(true),
)

var appendToolDef = mcp.NewTool("utm_append",
	mcp.WithDescription("Append the session's parameters to a URL. "+
		"Precedence, lowest first: session, share_overrides.default, share_overrides[platform], params."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Base URL; https:// is assumed when no scheme is given")),
	mcp.WithString("platform", mcp.Description("Share platform whose overrides apply, e.g. linkedin")),
	mcp.WithObject("params",
		mcp.Description("Extra utm parameters, highest precedence"),
		mcp.AdditionalProperties(map[string]any{"type": "string"}),
	),
	mcp.WithString("placement", mcp.Description("Where to write parameters"), mcp.Enum("query", "fragment")),
	mcp.WithBoolean("keep_existing", mcp.Description("Keep values already present in the URL")),
	mcp.WithString("session", mcp.Description(sessionDescription)),
)

var stripToolDef = mcp.NewTool("utm_strip",
	mcp.WithDescription("Remove utm parameters from a URL's query and fragment."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Absolute URL")),
	mcp.WithArray("keys",
		mcp.Description("Keys to remove in either convention; all utm_ keys when omitted"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var inspectToolDef = mcp.NewTool("utm_inspect",
	mcp.WithDescription("Show the utm parameters a URL carries in its query and fragment, and whether it validates."),
	mcp.WithString("url", mcp.Required(), mcp.Description("URL to inspect")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var validateToolDef = mcp.NewTool("url_validate",
	mcp.WithDescription("Validate and normalize a URL. Only http and https are accepted."),
	mcp.WithString("url", mcp.Required(), mcp.Description("URL to validate")),
	mcp.WithReadOnlyHintAnnotation(true),
)
