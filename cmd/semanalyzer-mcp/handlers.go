package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// handleListClients implements the list_clients tool
func handleListClients(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		statusFilter := request.GetString("status", "")

		clients, err := storage.ClientStorage().ListClients(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List clients failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("List error: %v", err)),
				},
			}, nil
		}

		if statusFilter != "" {
			wantActive := strings.EqualFold(statusFilter, "active")
			filtered := make([]*models.Client, 0, len(clients))
			for _, c := range clients {
				if c.Active == wantActive {
					filtered = append(filtered, c)
				}
			}
			clients = filtered
		}

		markdown := formatClientList(clients, statusFilter)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleGetClientSummary implements the get_client_summary tool
func handleGetClientSummary(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clientID, err := request.RequireString("client_id")
		if err != nil || clientID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: client_id parameter is required"),
				},
			}, nil
		}

		client, err := storage.ClientStorage().GetClient(ctx, clientID)
		if err != nil {
			logger.Error().Err(err).Str("client_id", clientID).Msg("GetClient failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Client not found: %v", err)),
				},
			}, nil
		}

		// Latest analysis and in-flight task are optional context
		latest, _ := storage.AnalysisStorage().GetLatestByClient(ctx, clientID)
		active, _ := storage.TaskStorage().GetActiveTaskForClient(ctx, clientID, models.TaskTypeAnalysis)

		markdown := formatClientSummary(client, latest, active)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleGetLatestAnalysis implements the get_latest_analysis tool
func handleGetLatestAnalysis(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clientID, err := request.RequireString("client_id")
		if err != nil || clientID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: client_id parameter is required"),
				},
			}, nil
		}

		analysis, err := storage.AnalysisStorage().GetLatestByClient(ctx, clientID)
		if err != nil {
			logger.Error().Err(err).Str("client_id", clientID).Msg("GetLatestByClient failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("No analysis found: %v", err)),
				},
			}, nil
		}

		// Top issues enrich the counters; a read failure only drops them
		issues, issuesErr := storage.AnalysisStorage().GetAnalysisErrors(ctx, analysis.ID)
		if issuesErr != nil {
			logger.Warn().Err(issuesErr).Str("analysis_id", analysis.ID).Msg("GetAnalysisErrors failed")
		}

		markdown := formatAnalysis(analysis, issues)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleListAnalysisIssues implements the list_analysis_issues tool
func handleListAnalysisIssues(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		analysisID, err := request.RequireString("analysis_id")
		if err != nil || analysisID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: analysis_id parameter is required"),
				},
			}, nil
		}

		// Parse limit (default: 50, max: 200)
		limit := request.GetInt("limit", 50)
		if limit > 200 {
			limit = 200
		}
		category := request.GetString("category", "")

		issues, err := storage.AnalysisStorage().GetAnalysisErrors(ctx, analysisID)
		if err != nil {
			logger.Error().Err(err).Str("analysis_id", analysisID).Msg("GetAnalysisErrors failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Issues error: %v", err)),
				},
			}, nil
		}

		if category != "" {
			filtered := make([]*models.AnalysisError, 0, len(issues))
			for _, issue := range issues {
				if strings.EqualFold(issue.Category, category) {
					filtered = append(filtered, issue)
				}
			}
			issues = filtered
		}
		if len(issues) > limit {
			issues = issues[:limit]
		}

		markdown := formatIssueList(analysisID, category, issues)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleGetTaskStatus implements the get_task_status tool
func handleGetTaskStatus(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := request.RequireString("task_id")
		if err != nil || taskID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: task_id parameter is required"),
				},
			}, nil
		}

		task, err := storage.TaskStorage().GetTask(ctx, taskID)
		if err != nil {
			logger.Error().Err(err).Str("task_id", taskID).Msg("GetTask failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Task not found: %v", err)),
				},
			}, nil
		}

		markdown := formatTask(task)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}
