package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/storage/badger"
)

func main() {
	// Load configuration
	configPath := os.Getenv("SEMANALYZER_CONFIG")
	if configPath == "" {
		configPath = "semanalyzer.toml"
	}

	// Stored variables are not needed for read-only tools, so nil is
	// appropriate here
	config, err := common.LoadFromFile(nil, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal console logger so output does not clutter MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Initialize storage
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"semanalyzer",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Register audit data tools
	mcpServer.AddTool(createListClientsTool(), handleListClients(storageManager, logger))
	mcpServer.AddTool(createGetClientSummaryTool(), handleGetClientSummary(storageManager, logger))
	mcpServer.AddTool(createGetLatestAnalysisTool(), handleGetLatestAnalysis(storageManager, logger))
	mcpServer.AddTool(createListAnalysisIssuesTool(), handleListAnalysisIssues(storageManager, logger))
	mcpServer.AddTool(createGetTaskStatusTool(), handleGetTaskStatus(storageManager, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
