package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"collect", "enrich", "geocode", "export", "serve", "schedule", "migrate", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "contractor-insights", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCollectCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"total", "page-size", "no-geo"} {
		flag := collectCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "collect should have --%s flag", flagName)
	}
}

func TestEnrichCommand_Flags(t *testing.T) {
	flag := enrichCmd.Flags().Lookup("jobs")
	require.NotNil(t, flag, "enrich command should have --jobs flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	csvFlag := exportCmd.Flags().Lookup("csv")
	require.NotNil(t, csvFlag)
	assert.Equal(t, "contractors_export.csv", csvFlag.DefValue)

	jsonFlag := exportCmd.Flags().Lookup("json")
	require.NotNil(t, jsonFlag)
	assert.Equal(t, "contractors_export.json", jsonFlag.DefValue)
}

func TestScheduleCommand_Flags(t *testing.T) {
	flag := scheduleCmd.Flags().Lookup("cron")
	require.NotNil(t, flag, "schedule command should have --cron flag")
}
