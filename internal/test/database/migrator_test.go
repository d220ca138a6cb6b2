package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-estimate-backend/internal/database"
)

func TestPending_Order(t *testing.T) {
	names, err := database.Pending()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"001_profiles_usage.sql",
		"002_estimates_operations.sql",
		"003_operation_notify.sql",
		"004_debug_writes.sql",
		"005_operation_notify_compact.sql",
	}, names)
}
