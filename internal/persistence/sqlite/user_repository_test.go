package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/appointment-scheduler/internal/persistence"
	"github.com/example/appointment-scheduler/internal/testfixtures"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips an account", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user := testfixtures.NewUserFixture(testfixtures.WithUserAdmin(true)).Persistence()

		require.NoError(t, harness.Users.CreateUser(ctx, user))

		loaded, err := harness.Users.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, loaded.Username)
		assert.True(t, loaded.IsAdmin)

		byName, err := harness.Users.GetUserByUsername(ctx, user.Username)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("enforces unique usernames", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		first := testfixtures.NewUserFixture(testfixtures.WithUsername("pat")).Persistence()
		second := testfixtures.NewUserFixture(testfixtures.WithUsername("pat")).Persistence()

		require.NoError(t, harness.Users.CreateUser(ctx, first))
		err := harness.Users.CreateUser(ctx, second)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrDuplicate)
	})

	t.Run("counts administrators", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		require.NoError(t, harness.Users.CreateUser(ctx, testfixtures.NewUserFixture(testfixtures.WithUserAdmin(true)).Persistence()))
		require.NoError(t, harness.Users.CreateUser(ctx, testfixtures.NewUserFixture().Persistence()))

		count, err := harness.Users.CountAdmins(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("deleting a user cascades owned rows", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user := testfixtures.NewUserFixture().Persistence()
		require.NoError(t, harness.Users.CreateUser(ctx, user))

		rule := testfixtures.NewWeeklyRuleFixture(user.ID, time.Monday)
		require.NoError(t, harness.Availability.CreateRule(ctx, rule))
		topic := testfixtures.NewTopicFixture(user.ID)
		require.NoError(t, harness.Topics.CreateTopic(ctx, topic))

		require.NoError(t, harness.Users.DeleteUser(ctx, user.ID))

		rules, err := harness.Availability.ListRulesForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, rules)

		_, err = harness.Topics.GetTopic(ctx, topic.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("missing accounts map to not found", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)

		_, err := harness.Users.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		err = harness.Users.DeleteUser(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}
