package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifesync/lifesync/internal/automation"
	"github.com/lifesync/lifesync/internal/database"
	"github.com/lifesync/lifesync/internal/kv"
	"github.com/lifesync/lifesync/internal/model"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "lifesync", cmd.Use)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	paths := [][]string{
		{"serve"},
		{"keys", "create"},
		{"rules", "list"},
		{"rules", "prune"},
		{"push", "vapid-keys"},
	}

	for _, p := range paths {
		t.Run(strings.Join(p, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(p)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, p[len(p)-1], subCmd.Name())
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LIFESYNC_REDIS_ADDR", "")
	t.Setenv("LIFESYNC_LOG_LEVEL", "error")
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeysCreate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lifesync.db")

	out, err := execute(t, "--db", dbPath, "keys", "create", "--user", "3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "ls_"), "token = %q", out)

	_, err = execute(t, "--db", dbPath, "keys", "create", "--user", "0")
	assert.Error(t, err)
}

func TestRulesListAndPrune(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lifesync.db")

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	rules := automation.NewRuleStore(kv.NewSQLite(db))
	_, err = rules.Create(context.Background(), 5,
		model.Trigger{Type: model.TriggerSchedule, Value: "07:00"},
		model.Action{DeviceID: 1, Command: map[string]any{"power": "on"}},
		nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := execute(t, "--db", dbPath, "rules", "list", "--user", "5")
	require.NoError(t, err)
	var listed []model.AutomationRule
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, model.TriggerSchedule, listed[0].Trigger.Type)

	_, err = execute(t, "--db", dbPath, "rules", "prune", "--user", "5", "--before", "yesterday")
	assert.Error(t, err)

	cutoff := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	out, err = execute(t, "--db", dbPath, "rules", "prune", "--user", "5", "--before", cutoff)
	require.NoError(t, err)
	assert.Equal(t, "pruned 1 rules\n", out)
}

func TestPushVAPIDKeys(t *testing.T) {
	out, err := execute(t, "push", "vapid-keys", "--db", filepath.Join(t.TempDir(), "unused.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "LIFESYNC_VAPID_PUBLIC_KEY=")
	assert.Contains(t, out, "LIFESYNC_VAPID_PRIVATE_KEY=")
}
