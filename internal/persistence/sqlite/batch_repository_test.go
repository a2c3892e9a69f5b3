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

func seedBatchConfig(t *testing.T, harness *testfixtures.SQLiteHarness, id string) persistence.BatchConfig {
	t.Helper()

	now := testfixtures.ReferenceTime()
	config := persistence.BatchConfig{
		ID:         id,
		Name:       "Morning office hours",
		RuleType:   persistence.BatchRuleAvailability,
		TargetType: persistence.BatchTargetUser,
		ConfigData: []byte(`{"kind":"weekly","dayOfWeek":2,"startTime":"09:00","endTime":"12:00"}`),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, harness.Batches.CreateBatchConfig(context.Background(), config))
	return config
}

func seedDepartment(t *testing.T, harness *testfixtures.SQLiteHarness, id, name string) {
	t.Helper()

	now := testfixtures.ReferenceTime()
	require.NoError(t, harness.Departments.CreateDepartment(context.Background(), persistence.Department{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func TestBatchConfigRepository(t *testing.T) {
	ctx := context.Background()
	batchIDs := testfixtures.NewIDGenerator("batch")

	t.Run("stores and reloads a template", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		config := seedBatchConfig(t, harness, batchIDs.Next())

		loaded, err := harness.Batches.GetBatchConfig(ctx, config.ID)
		require.NoError(t, err)
		assert.Equal(t, config.Name, loaded.Name)
		assert.Equal(t, config.RuleType, loaded.RuleType)
		assert.JSONEq(t, string(config.ConfigData), string(loaded.ConfigData))
		assert.False(t, loaded.ApplyToFuture)
	})

	t.Run("updates the mutable columns", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		config := seedBatchConfig(t, harness, batchIDs.Next())

		config.Name = "Afternoon office hours"
		config.ApplyToFuture = true
		config.UpdatedAt = testfixtures.ReferenceTime().Add(time.Hour)
		require.NoError(t, harness.Batches.UpdateBatchConfig(ctx, config))

		loaded, err := harness.Batches.GetBatchConfig(ctx, config.ID)
		require.NoError(t, err)
		assert.Equal(t, "Afternoon office hours", loaded.Name)
		assert.True(t, loaded.ApplyToFuture)
	})

	t.Run("reports missing templates", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)

		_, err := harness.Batches.GetBatchConfig(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.ErrorIs(t, harness.Batches.DeleteBatchConfig(ctx, "missing"), persistence.ErrNotFound)
	})

	t.Run("replaces department links", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		config := seedBatchConfig(t, harness, batchIDs.Next())
		seedDepartment(t, harness, "dept-1", "Support")
		seedDepartment(t, harness, "dept-2", "Sales")
		seedDepartment(t, harness, "dept-3", "Engineering")

		require.NoError(t, harness.Batches.SetBatchDepartments(ctx, config.ID, []string{"dept-1", "dept-2"}))

		ids, err := harness.Batches.ListBatchDepartmentIDs(ctx, config.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"dept-1", "dept-2"}, ids)

		require.NoError(t, harness.Batches.SetBatchDepartments(ctx, config.ID, []string{"dept-3"}))

		ids, err = harness.Batches.ListBatchDepartmentIDs(ctx, config.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"dept-3"}, ids)
	})
}

func TestBatchConfigRepositoryFutureQueries(t *testing.T) {
	ctx := context.Background()
	batchIDs := testfixtures.NewIDGenerator("batch")

	t.Run("lists department templates that apply to future members", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		seedDepartment(t, harness, "dept-1", "Support")

		now := testfixtures.ReferenceTime()
		future := persistence.BatchConfig{
			ID:            "batch-future",
			Name:          "Joiner defaults",
			RuleType:      persistence.BatchRuleTopic,
			TargetType:    persistence.BatchTargetDepartment,
			ConfigData:    []byte(`{"title":"Intro","durationMinutes":15}`),
			ApplyToFuture: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		frozen := persistence.BatchConfig{
			ID:         "batch-frozen",
			Name:       "One off rollout",
			RuleType:   persistence.BatchRuleTopic,
			TargetType: persistence.BatchTargetDepartment,
			ConfigData: []byte(`{"title":"Intro","durationMinutes":15}`),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		require.NoError(t, harness.Batches.CreateBatchConfig(ctx, future))
		require.NoError(t, harness.Batches.CreateBatchConfig(ctx, frozen))
		require.NoError(t, harness.Batches.SetBatchDepartments(ctx, future.ID, []string{"dept-1"}))
		require.NoError(t, harness.Batches.SetBatchDepartments(ctx, frozen.ID, []string{"dept-1"}))

		configs, err := harness.Batches.ListFutureConfigsForDepartment(ctx, "dept-1")
		require.NoError(t, err)
		require.Len(t, configs, 1)
		assert.Equal(t, future.ID, configs[0].ID)

		configs, err = harness.Batches.ListFutureConfigsForDepartment(ctx, "dept-2")
		require.NoError(t, err)
		assert.Empty(t, configs)
	})

	t.Run("lists user templates that apply to future users", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)

		config := seedBatchConfig(t, harness, batchIDs.Next())
		config.ApplyToFuture = true
		config.UpdatedAt = config.UpdatedAt.Add(time.Minute)
		require.NoError(t, harness.Batches.UpdateBatchConfig(ctx, config))
		seedBatchConfig(t, harness, batchIDs.Next())

		configs, err := harness.Batches.ListFutureUserConfigs(ctx)
		require.NoError(t, err)
		require.Len(t, configs, 1)
		assert.Equal(t, config.ID, configs[0].ID)
	})
}

func TestBatchOwnedRows(t *testing.T) {
	ctx := context.Background()
	batchIDs := testfixtures.NewIDGenerator("batch")

	t.Run("lists distinct owners of stamped rows", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		config := seedBatchConfig(t, harness, batchIDs.Next())

		first := testfixtures.NewUserFixture().Persistence()
		second := testfixtures.NewUserFixture().Persistence()
		require.NoError(t, harness.Users.CreateUser(ctx, first))
		require.NoError(t, harness.Users.CreateUser(ctx, second))

		require.NoError(t, harness.Availability.CreateRules(ctx, []persistence.AvailabilityRule{
			testfixtures.NewWeeklyRuleFixture(first.ID, time.Tuesday, testfixtures.WithRuleBatch(config.ID)),
			testfixtures.NewWeeklyRuleFixture(second.ID, time.Tuesday, testfixtures.WithRuleBatch(config.ID)),
			testfixtures.NewWeeklyRuleFixture(second.ID, time.Friday),
		}))

		owners, err := harness.Availability.ListBatchOwnerIDs(ctx, config.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{first.ID, second.ID}, owners)
	})

	t.Run("rewrites the content of every stamped rule", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		config := seedBatchConfig(t, harness, batchIDs.Next())

		user := testfixtures.NewUserFixture().Persistence()
		require.NoError(t, harness.Users.CreateUser(ctx, user))

		stamped := testfixtures.NewWeeklyRuleFixture(user.ID, time.Tuesday, testfixtures.WithRuleBatch(config.ID))
		personal := testfixtures.NewWeeklyRuleFixture(user.ID, time.Friday)
		require.NoError(t, harness.Availability.CreateRules(ctx, []persistence.AvailabilityRule{stamped, personal}))

		weekday := time.Wednesday
		content := persistence.AvailabilityRuleContent{
			Kind:      "weekly",
			Weekday:   &weekday,
			StartTime: "13:00",
			EndTime:   "16:00",
		}
		require.NoError(t, harness.Availability.UpdateRulesForBatch(ctx, config.ID, content, testfixtures.ReferenceTime()))

		rules, err := harness.Availability.ListRulesForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		for _, rule := range rules {
			switch rule.ID {
			case stamped.ID:
				require.NotNil(t, rule.Weekday)
				assert.Equal(t, time.Wednesday, *rule.Weekday)
				assert.Equal(t, "13:00", rule.StartTime)
			case personal.ID:
				assert.Equal(t, "09:00", rule.StartTime)
			default:
				t.Fatalf("unexpected rule %q", rule.ID)
			}
		}
	})

	t.Run("removes stamped rows only for the named users", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		config := seedBatchConfig(t, harness, batchIDs.Next())

		first := testfixtures.NewUserFixture().Persistence()
		second := testfixtures.NewUserFixture().Persistence()
		require.NoError(t, harness.Users.CreateUser(ctx, first))
		require.NoError(t, harness.Users.CreateUser(ctx, second))

		require.NoError(t, harness.Availability.CreateRules(ctx, []persistence.AvailabilityRule{
			testfixtures.NewWeeklyRuleFixture(first.ID, time.Tuesday, testfixtures.WithRuleBatch(config.ID)),
			testfixtures.NewWeeklyRuleFixture(second.ID, time.Tuesday, testfixtures.WithRuleBatch(config.ID)),
		}))

		require.NoError(t, harness.Availability.DeleteRulesForBatch(ctx, config.ID, []string{first.ID}))

		owners, err := harness.Availability.ListBatchOwnerIDs(ctx, config.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{second.ID}, owners)
	})

	t.Run("deleting a template cascades to stamped rules and topics", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		config := seedBatchConfig(t, harness, batchIDs.Next())

		user := testfixtures.NewUserFixture().Persistence()
		require.NoError(t, harness.Users.CreateUser(ctx, user))

		stampedRule := testfixtures.NewWeeklyRuleFixture(user.ID, time.Tuesday, testfixtures.WithRuleBatch(config.ID))
		personalRule := testfixtures.NewWeeklyRuleFixture(user.ID, time.Friday)
		require.NoError(t, harness.Availability.CreateRules(ctx, []persistence.AvailabilityRule{stampedRule, personalRule}))

		stampedTopic := testfixtures.NewTopicFixture(user.ID, testfixtures.WithTopicBatch(config.ID))
		personalTopic := testfixtures.NewTopicFixture(user.ID)
		require.NoError(t, harness.Topics.CreateTopics(ctx, []persistence.Topic{stampedTopic, personalTopic}))

		require.NoError(t, harness.Batches.DeleteBatchConfig(ctx, config.ID))

		rules, err := harness.Availability.ListRulesForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, personalRule.ID, rules[0].ID)

		topics, err := harness.Topics.ListTopicsForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, topics, 1)
		assert.Equal(t, personalTopic.ID, topics[0].ID)
	})
}

func TestDepartmentRepositoryMembership(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the member list", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		seedDepartment(t, harness, "dept-1", "Support")

		first := testfixtures.NewUserFixture().Persistence()
		second := testfixtures.NewUserFixture().Persistence()
		third := testfixtures.NewUserFixture().Persistence()
		require.NoError(t, harness.Users.CreateUser(ctx, first))
		require.NoError(t, harness.Users.CreateUser(ctx, second))
		require.NoError(t, harness.Users.CreateUser(ctx, third))

		require.NoError(t, harness.Departments.SetMembers(ctx, "dept-1", []string{first.ID, second.ID}))

		members, err := harness.Departments.ListMemberIDs(ctx, "dept-1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{first.ID, second.ID}, members)

		require.NoError(t, harness.Departments.SetMembers(ctx, "dept-1", []string{third.ID}))

		members, err = harness.Departments.ListMemberIDs(ctx, "dept-1")
		require.NoError(t, err)
		assert.Equal(t, []string{third.ID}, members)
	})

	t.Run("looks up membership across departments and per user", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		seedDepartment(t, harness, "dept-1", "Support")
		seedDepartment(t, harness, "dept-2", "Sales")

		user := testfixtures.NewUserFixture().Persistence()
		other := testfixtures.NewUserFixture().Persistence()
		require.NoError(t, harness.Users.CreateUser(ctx, user))
		require.NoError(t, harness.Users.CreateUser(ctx, other))

		require.NoError(t, harness.Departments.SetMembers(ctx, "dept-1", []string{user.ID, other.ID}))
		require.NoError(t, harness.Departments.SetMembers(ctx, "dept-2", []string{user.ID}))

		combined, err := harness.Departments.ListMemberIDsForDepartments(ctx, []string{"dept-1", "dept-2"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{user.ID, other.ID}, combined)

		departments, err := harness.Departments.ListDepartmentIDsForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"dept-1", "dept-2"}, departments)
	})
}
