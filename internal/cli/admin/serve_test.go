//go:build integration

package admin

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normahq/norma/internal/testutil"
)

func captureMigrationLog(t *testing.T, databaseURL string) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	err := runMigrations(databaseURL, "file://../../../migrations")
	require.NoError(t, err)
	return buf.String()
}

func TestRunMigrations_AppliesOnFirstRun(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	out := captureMigrationLog(t, pc.ConnectionString())
	assert.Contains(t, out, "applied successfully")
}

func TestRunMigrations_ReportsUpToDateOnSecondRun(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	captureMigrationLog(t, pc.ConnectionString())

	out := captureMigrationLog(t, pc.ConnectionString())
	assert.Contains(t, out, "up to date")
	assert.NotContains(t, out, "applied successfully")
}
