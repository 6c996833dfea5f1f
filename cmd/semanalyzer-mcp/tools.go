package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createListClientsTool returns the list_clients tool definition
func createListClientsTool() mcp.Tool {
	return mcp.NewTool("list_clients",
		mcp.WithDescription("List managed clients with website and audit status"),
		mcp.WithString("status",
			mcp.Description("Filter: active, inactive (default: all)"),
		),
	)
}

// createGetClientSummaryTool returns the get_client_summary tool definition
func createGetClientSummaryTool() mcp.Tool {
	return mcp.NewTool("get_client_summary",
		mcp.WithDescription("Client details with the latest audit counters and any in-flight task"),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("Client ID (UUID)"),
		),
	)
}

// createGetLatestAnalysisTool returns the get_latest_analysis tool definition
func createGetLatestAnalysisTool() mcp.Tool {
	return mcp.NewTool("get_latest_analysis",
		mcp.WithDescription("Most recent site audit for a client: counters, top issues and generated insights"),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("Client ID (UUID)"),
		),
	)
}

// createListAnalysisIssuesTool returns the list_analysis_issues tool definition
func createListAnalysisIssuesTool() mcp.Tool {
	return mcp.NewTool("list_analysis_issues",
		mcp.WithDescription("Issue rows for an analysis, highest severity first"),
		mcp.WithString("analysis_id",
			mcp.Required(),
			mcp.Description("Analysis ID (UUID)"),
		),
		mcp.WithString("category",
			mcp.Description("Filter by defect group: error, warning, notice"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rows to return (default: 50, max: 200)"),
		),
	)
}

// createGetTaskStatusTool returns the get_task_status tool definition
func createGetTaskStatusTool() mcp.Tool {
	return mcp.NewTool("get_task_status",
		mcp.WithDescription("Current state of an audit task: status, workflow stage and result"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID (UUID)"),
		),
	)
}
