package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// BatchConfigStore captures the persistence interactions for batch templates.
type BatchConfigStore interface {
	CreateBatchConfig(ctx context.Context, config persistence.BatchConfig) error
	GetBatchConfig(ctx context.Context, id string) (persistence.BatchConfig, error)
	UpdateBatchConfig(ctx context.Context, config persistence.BatchConfig) error
	DeleteBatchConfig(ctx context.Context, id string) error
	ListBatchConfigs(ctx context.Context) ([]persistence.BatchConfig, error)
	SetBatchDepartments(ctx context.Context, batchID string, departmentIDs []string) error
	ListBatchDepartmentIDs(ctx context.Context, batchID string) ([]string, error)
	ListFutureConfigsForDepartment(ctx context.Context, departmentID string) ([]persistence.BatchConfig, error)
	ListFutureUserConfigs(ctx context.Context) ([]persistence.BatchConfig, error)
}

// RuleBatchStore captures the availability-row side of batch propagation.
type RuleBatchStore interface {
	CreateRules(ctx context.Context, rules []persistence.AvailabilityRule) error
	ListBatchOwnerIDs(ctx context.Context, batchID string) ([]string, error)
	UpdateRulesForBatch(ctx context.Context, batchID string, content persistence.AvailabilityRuleContent, updatedAt time.Time) error
	DeleteRulesForBatch(ctx context.Context, batchID string, userIDs []string) error
}

// TopicBatchStore captures the topic-row side of batch propagation.
type TopicBatchStore interface {
	CreateTopics(ctx context.Context, topics []persistence.Topic) error
	ListBatchOwnerIDs(ctx context.Context, batchID string) ([]string, error)
	UpdateTopicsForBatch(ctx context.Context, batchID string, content persistence.TopicContent, updatedAt time.Time) error
	DeleteTopicsForBatch(ctx context.Context, batchID string, userIDs []string) error
}

// MembershipDirectory resolves department membership for target expansion.
type MembershipDirectory interface {
	ListMemberIDsForDepartments(ctx context.Context, departmentIDs []string) ([]string, error)
	ListDepartmentIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// BatchService manages rule templates: administrator-defined topic or
// availability content stamped onto every user in a target set. A template
// owns the rows it creates; updates push content to all owned rows and
// reconcile the target set, deletes cascade.
type BatchService struct {
	configs     BatchConfigStore
	rules       RuleBatchStore
	topics      TopicBatchStore
	memberships MembershipDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBatchService wires dependencies for batch template management.
func NewBatchService(configs BatchConfigStore, rules RuleBatchStore, topics TopicBatchStore, memberships MembershipDirectory, idGenerator func() string, now func() time.Time) *BatchService {
	return NewBatchServiceWithLogger(configs, rules, topics, memberships, idGenerator, now, nil)
}

// NewBatchServiceWithLogger wires dependencies with an explicit base logger.
func NewBatchServiceWithLogger(configs BatchConfigStore, rules RuleBatchStore, topics TopicBatchStore, memberships MembershipDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BatchService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BatchService{
		configs:     configs,
		rules:       rules,
		topics:      topics,
		memberships: memberships,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateBatch stores a new template and stamps its content onto every user in
// the resolved target set.
func (s *BatchService) CreateBatch(ctx context.Context, principal Principal, input BatchInput) (BatchSummary, error) {
	if s == nil {
		return BatchSummary{}, fmt.Errorf("BatchService is nil")
	}
	if !principal.IsAdmin {
		return BatchSummary{}, ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "batch", "create")

	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.RuleType != persistence.BatchRuleTopic && input.RuleType != persistence.BatchRuleAvailability {
		vErr.add("rule_type", "rule type must be topic or availability")
	}
	if input.TargetType != persistence.BatchTargetUser && input.TargetType != persistence.BatchTargetDepartment {
		vErr.add("target_type", "target type must be user or department")
	}
	validateTemplate(input.RuleType, input.Template, vErr)
	if vErr.HasErrors() {
		return BatchSummary{}, vErr
	}

	targetIDs, err := s.resolveTargets(ctx, input.TargetType, input.UserIDs, input.DepartmentIDs)
	if err != nil {
		return BatchSummary{}, err
	}

	configData, err := encodeTemplate(input.RuleType, input.Template)
	if err != nil {
		return BatchSummary{}, err
	}

	createdAt := s.now()
	config := persistence.BatchConfig{
		ID:            s.idGenerator(),
		Name:          strings.TrimSpace(input.Name),
		RuleType:      input.RuleType,
		TargetType:    input.TargetType,
		ConfigData:    configData,
		ApplyToFuture: input.ApplyToFuture,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}

	if err := s.configs.CreateBatchConfig(ctx, config); err != nil {
		return BatchSummary{}, mapRepoError(err)
	}

	if input.TargetType == persistence.BatchTargetDepartment {
		if err := s.configs.SetBatchDepartments(ctx, config.ID, uniqueStrings(input.DepartmentIDs)); err != nil {
			return BatchSummary{}, mapRepoError(err)
		}
	}

	if err := s.stampUsers(ctx, config, input.Template, targetIDs); err != nil {
		return BatchSummary{}, err
	}

	logger.InfoContext(ctx, "batch created", "batch_id", config.ID, "rule_type", config.RuleType, "targets", len(targetIDs))
	return s.summarize(ctx, config)
}

// UpdateBatch pushes changed template content to every owned row and
// reconciles the target set: rows are created for users joining the set and
// destroyed for users leaving it, while rows of users staying in the set keep
// their ids.
func (s *BatchService) UpdateBatch(ctx context.Context, principal Principal, batchID string, input BatchUpdateInput) (BatchSummary, error) {
	if s == nil {
		return BatchSummary{}, fmt.Errorf("BatchService is nil")
	}
	if !principal.IsAdmin {
		return BatchSummary{}, ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "batch", "update", "batch_id", batchID)

	config, err := s.configs.GetBatchConfig(ctx, batchID)
	if err != nil {
		return BatchSummary{}, mapRepoError(err)
	}

	template, err := decodeTemplate(config)
	if err != nil {
		return BatchSummary{}, err
	}

	if input.Name != nil {
		config.Name = strings.TrimSpace(*input.Name)
	}
	if input.ApplyToFuture != nil {
		config.ApplyToFuture = *input.ApplyToFuture
	}
	if input.TargetType != nil {
		config.TargetType = *input.TargetType
	}
	if input.Template != nil {
		template = *input.Template
	}

	vErr := &ValidationError{}
	if config.Name == "" {
		vErr.add("name", "name is required")
	}
	if config.TargetType != persistence.BatchTargetUser && config.TargetType != persistence.BatchTargetDepartment {
		vErr.add("target_type", "target type must be user or department")
	}
	validateTemplate(config.RuleType, template, vErr)
	if vErr.HasErrors() {
		return BatchSummary{}, vErr
	}

	config.ConfigData, err = encodeTemplate(config.RuleType, template)
	if err != nil {
		return BatchSummary{}, err
	}
	config.UpdatedAt = s.now()

	if err := s.configs.UpdateBatchConfig(ctx, config); err != nil {
		return BatchSummary{}, mapRepoError(err)
	}

	departmentIDs := input.DepartmentIDs
	if config.TargetType == persistence.BatchTargetDepartment {
		if departmentIDs == nil {
			departmentIDs, err = s.configs.ListBatchDepartmentIDs(ctx, config.ID)
			if err != nil {
				return BatchSummary{}, mapRepoError(err)
			}
		} else {
			if err := s.configs.SetBatchDepartments(ctx, config.ID, uniqueStrings(departmentIDs)); err != nil {
				return BatchSummary{}, mapRepoError(err)
			}
		}
	}

	// A patch that leaves the user list unset keeps the current owners, the
	// same way an unset department list keeps the stored links.
	userIDs := input.UserIDs
	if config.TargetType == persistence.BatchTargetUser && userIDs == nil {
		userIDs, err = s.ownerIDs(ctx, config)
		if err != nil {
			return BatchSummary{}, err
		}
	}

	desired, err := s.resolveTargets(ctx, config.TargetType, userIDs, departmentIDs)
	if err != nil {
		return BatchSummary{}, err
	}

	if err := s.pushContent(ctx, config, template); err != nil {
		return BatchSummary{}, err
	}

	current, err := s.ownerIDs(ctx, config)
	if err != nil {
		return BatchSummary{}, err
	}

	added, removed := diffStrings(current, desired)
	if err := s.stampUsers(ctx, config, template, added); err != nil {
		return BatchSummary{}, err
	}
	if err := s.removeUsers(ctx, config, removed); err != nil {
		return BatchSummary{}, err
	}

	logger.InfoContext(ctx, "batch updated", "added", len(added), "removed", len(removed))
	return s.summarize(ctx, config)
}

// DeleteBatch removes the template together with every row it owns.
func (s *BatchService) DeleteBatch(ctx context.Context, principal Principal, batchID string) error {
	if s == nil {
		return fmt.Errorf("BatchService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "batch", "delete", "batch_id", batchID)

	if err := s.configs.DeleteBatchConfig(ctx, batchID); err != nil {
		return mapRepoError(err)
	}

	logger.InfoContext(ctx, "batch deleted")
	return nil
}

// GetBatch returns a single template with its resolved target information.
func (s *BatchService) GetBatch(ctx context.Context, principal Principal, batchID string) (BatchSummary, error) {
	if s == nil {
		return BatchSummary{}, fmt.Errorf("BatchService is nil")
	}
	if !principal.IsAdmin {
		return BatchSummary{}, ErrUnauthorized
	}

	config, err := s.configs.GetBatchConfig(ctx, batchID)
	if err != nil {
		return BatchSummary{}, mapRepoError(err)
	}
	return s.summarize(ctx, config)
}

// ListBatches returns every template with its resolved target information.
func (s *BatchService) ListBatches(ctx context.Context, principal Principal) ([]BatchSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("BatchService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	configs, err := s.configs.ListBatchConfigs(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	summaries := make([]BatchSummary, 0, len(configs))
	for _, config := range configs {
		summary, err := s.summarize(ctx, config)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// SyncDepartmentMembership reconciles batch-owned rows after a department's
// member list is replaced. Joiners gain rows from every applyToFuture template
// linked to the department; leavers lose rows unless another of their
// departments carries the same template.
func (s *BatchService) SyncDepartmentMembership(ctx context.Context, departmentID string, oldMemberIDs, newMemberIDs []string) error {
	if s == nil {
		return fmt.Errorf("BatchService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "batch", "sync_membership", "department_id", departmentID)

	joined, left := diffStrings(oldMemberIDs, newMemberIDs)
	if len(joined) == 0 && len(left) == 0 {
		return nil
	}

	configs, err := s.configs.ListFutureConfigsForDepartment(ctx, departmentID)
	if err != nil {
		return mapRepoError(err)
	}

	for _, config := range configs {
		template, err := decodeTemplate(config)
		if err != nil {
			logger.WarnContext(ctx, "skipping malformed template", "batch_id", config.ID, "error", err)
			continue
		}

		if len(joined) > 0 {
			owners, err := s.ownerIDs(ctx, config)
			if err != nil {
				return err
			}
			missing, _ := diffStrings(owners, joined)
			if err := s.stampUsers(ctx, config, template, missing); err != nil {
				return err
			}
		}

		for _, userID := range left {
			covered, err := s.stillCovered(ctx, config, userID, departmentID)
			if err != nil {
				return err
			}
			if covered {
				continue
			}
			if err := s.removeUsers(ctx, config, []string{userID}); err != nil {
				return err
			}
		}
	}

	logger.InfoContext(ctx, "membership synced", "joined", len(joined), "left", len(left), "configs", len(configs))
	return nil
}

// ApplyFutureRules stamps every user-targeted applyToFuture template onto a
// newly created user.
func (s *BatchService) ApplyFutureRules(ctx context.Context, userID string) error {
	if s == nil {
		return fmt.Errorf("BatchService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "batch", "apply_future", "user_id", userID)

	configs, err := s.configs.ListFutureUserConfigs(ctx)
	if err != nil {
		return mapRepoError(err)
	}

	for _, config := range configs {
		template, err := decodeTemplate(config)
		if err != nil {
			logger.WarnContext(ctx, "skipping malformed template", "batch_id", config.ID, "error", err)
			continue
		}
		if err := s.stampUsers(ctx, config, template, []string{userID}); err != nil {
			logger.WarnContext(ctx, "template provisioning failed", "batch_id", config.ID, "error", err)
		}
	}
	return nil
}

// stillCovered reports whether the user remains in the template's target set
// through a department other than the one being left.
func (s *BatchService) stillCovered(ctx context.Context, config persistence.BatchConfig, userID, leavingDepartmentID string) (bool, error) {
	userDepartments, err := s.memberships.ListDepartmentIDsForUser(ctx, userID)
	if err != nil {
		return false, mapRepoError(err)
	}

	configDepartments, err := s.configs.ListBatchDepartmentIDs(ctx, config.ID)
	if err != nil {
		return false, mapRepoError(err)
	}

	linked := make(map[string]struct{}, len(configDepartments))
	for _, id := range configDepartments {
		linked[id] = struct{}{}
	}

	for _, id := range userDepartments {
		if id == leavingDepartmentID {
			continue
		}
		if _, ok := linked[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *BatchService) resolveTargets(ctx context.Context, targetType string, userIDs, departmentIDs []string) ([]string, error) {
	if targetType == persistence.BatchTargetUser {
		return uniqueStrings(userIDs), nil
	}
	members, err := s.memberships.ListMemberIDsForDepartments(ctx, uniqueStrings(departmentIDs))
	if err != nil {
		return nil, mapRepoError(err)
	}
	return uniqueStrings(members), nil
}

func (s *BatchService) ownerIDs(ctx context.Context, config persistence.BatchConfig) ([]string, error) {
	var owners []string
	var err error
	switch config.RuleType {
	case persistence.BatchRuleAvailability:
		owners, err = s.rules.ListBatchOwnerIDs(ctx, config.ID)
	default:
		owners, err = s.topics.ListBatchOwnerIDs(ctx, config.ID)
	}
	if err != nil {
		return nil, mapRepoError(err)
	}
	return owners, nil
}

// stampUsers creates one owned row per target user from the template content.
func (s *BatchService) stampUsers(ctx context.Context, config persistence.BatchConfig, template BatchTemplate, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	now := s.now()
	batchID := config.ID

	switch config.RuleType {
	case persistence.BatchRuleAvailability:
		content, err := availabilityContent(template.Availability)
		if err != nil {
			return err
		}
		rows := make([]persistence.AvailabilityRule, 0, len(userIDs))
		for _, userID := range userIDs {
			rows = append(rows, persistence.AvailabilityRule{
				ID:           s.idGenerator(),
				UserID:       userID,
				Kind:         content.Kind,
				Weekday:      content.Weekday,
				SpecificDate: content.SpecificDate,
				StartTime:    content.StartTime,
				EndTime:      content.EndTime,
				ValidUntil:   content.ValidUntil,
				OwnerBatchID: &batchID,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		return mapRepoError(s.rules.CreateRules(ctx, rows))
	default:
		rows := make([]persistence.Topic, 0, len(userIDs))
		for _, userID := range userIDs {
			rows = append(rows, persistence.Topic{
				ID:              s.idGenerator(),
				UserID:          userID,
				Title:           template.Topic.Title,
				DurationMinutes: template.Topic.DurationMinutes,
				Description:     template.Topic.Description,
				OwnerBatchID:    &batchID,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}
		return mapRepoError(s.topics.CreateTopics(ctx, rows))
	}
}

func (s *BatchService) removeUsers(ctx context.Context, config persistence.BatchConfig, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	switch config.RuleType {
	case persistence.BatchRuleAvailability:
		return mapRepoError(s.rules.DeleteRulesForBatch(ctx, config.ID, userIDs))
	default:
		return mapRepoError(s.topics.DeleteTopicsForBatch(ctx, config.ID, userIDs))
	}
}

// pushContent overwrites the content of every owned row with the template.
func (s *BatchService) pushContent(ctx context.Context, config persistence.BatchConfig, template BatchTemplate) error {
	now := s.now()
	switch config.RuleType {
	case persistence.BatchRuleAvailability:
		content, err := availabilityContent(template.Availability)
		if err != nil {
			return err
		}
		return mapRepoError(s.rules.UpdateRulesForBatch(ctx, config.ID, content, now))
	default:
		content := persistence.TopicContent{
			Title:           template.Topic.Title,
			DurationMinutes: template.Topic.DurationMinutes,
			Description:     template.Topic.Description,
		}
		return mapRepoError(s.topics.UpdateTopicsForBatch(ctx, config.ID, content, now))
	}
}

func (s *BatchService) summarize(ctx context.Context, config persistence.BatchConfig) (BatchSummary, error) {
	template, err := decodeTemplate(config)
	if err != nil {
		return BatchSummary{}, err
	}

	summary := BatchSummary{
		ID:            config.ID,
		Name:          config.Name,
		RuleType:      config.RuleType,
		TargetType:    config.TargetType,
		Template:      template,
		ApplyToFuture: config.ApplyToFuture,
		CreatedAt:     config.CreatedAt,
		UpdatedAt:     config.UpdatedAt,
	}

	if config.TargetType == persistence.BatchTargetDepartment {
		summary.DepartmentIDs, err = s.configs.ListBatchDepartmentIDs(ctx, config.ID)
		if err != nil {
			return BatchSummary{}, mapRepoError(err)
		}
	}

	summary.UserIDs, err = s.ownerIDs(ctx, config)
	if err != nil {
		return BatchSummary{}, err
	}
	return summary, nil
}

// encodeTemplate serialises the branch matching the rule type.
func encodeTemplate(ruleType string, template BatchTemplate) ([]byte, error) {
	switch ruleType {
	case persistence.BatchRuleAvailability:
		return json.Marshal(template.Availability)
	default:
		return json.Marshal(template.Topic)
	}
}

// decodeTemplate deserialises the stored payload into the branch matching the
// rule type.
func decodeTemplate(config persistence.BatchConfig) (BatchTemplate, error) {
	switch config.RuleType {
	case persistence.BatchRuleAvailability:
		var tmpl AvailabilityTemplate
		if err := json.Unmarshal(config.ConfigData, &tmpl); err != nil {
			return BatchTemplate{}, fmt.Errorf("decode availability template %s: %w", config.ID, err)
		}
		return BatchTemplate{Availability: &tmpl}, nil
	default:
		var tmpl TopicTemplate
		if err := json.Unmarshal(config.ConfigData, &tmpl); err != nil {
			return BatchTemplate{}, fmt.Errorf("decode topic template %s: %w", config.ID, err)
		}
		return BatchTemplate{Topic: &tmpl}, nil
	}
}

// validateTemplate checks that the template branch matches the rule type and
// that its content is well formed.
func validateTemplate(ruleType string, template BatchTemplate, vErr *ValidationError) {
	switch ruleType {
	case persistence.BatchRuleTopic:
		if template.Topic == nil {
			vErr.add("template", "topic template is required")
			return
		}
		validateTopicContent(template.Topic.Title, template.Topic.DurationMinutes, vErr)
	case persistence.BatchRuleAvailability:
		if template.Availability == nil {
			vErr.add("template", "availability template is required")
			return
		}
		tmpl := template.Availability
		specificDate, err := parseTemplateDate(tmpl.SpecificDate)
		if err != nil {
			vErr.add("specific_date", "specific date must be in YYYY-MM-DD form")
		}
		if _, err := parseTemplateDate(tmpl.ValidUntil); err != nil {
			vErr.add("valid_until", "valid until must be in YYYY-MM-DD form")
		}
		validateRuleContent(string(tmpl.Kind), tmpl.Weekday, specificDate, tmpl.StartTime, tmpl.EndTime, vErr)
	}
}

// availabilityContent converts the wire template into row content, parsing
// its date strings.
func availabilityContent(tmpl *AvailabilityTemplate) (persistence.AvailabilityRuleContent, error) {
	if tmpl == nil {
		return persistence.AvailabilityRuleContent{}, fmt.Errorf("availability template is nil")
	}

	specificDate, err := parseTemplateDate(tmpl.SpecificDate)
	if err != nil {
		return persistence.AvailabilityRuleContent{}, err
	}
	validUntil, err := parseTemplateDate(tmpl.ValidUntil)
	if err != nil {
		return persistence.AvailabilityRuleContent{}, err
	}

	return persistence.AvailabilityRuleContent{
		Kind:         string(tmpl.Kind),
		Weekday:      tmpl.Weekday,
		SpecificDate: specificDate,
		StartTime:    tmpl.StartTime,
		EndTime:      tmpl.EndTime,
		ValidUntil:   validUntil,
	}, nil
}

func parseTemplateDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", *value, err)
	}
	return &parsed, nil
}

// diffStrings returns the members of desired missing from current and the
// members of current missing from desired.
func diffStrings(current, desired []string) (added, removed []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	for _, id := range desired {
		if _, ok := currentSet[id]; !ok {
			added = append(added, id)
		}
	}
	added = uniqueStrings(added)

	for _, id := range current {
		if _, ok := desiredSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	removed = uniqueStrings(removed)
	return added, removed
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
