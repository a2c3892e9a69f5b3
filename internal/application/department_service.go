package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// DepartmentStore captures the persistence interactions for departments.
type DepartmentStore interface {
	CreateDepartment(ctx context.Context, department persistence.Department) error
	GetDepartment(ctx context.Context, id string) (persistence.Department, error)
	UpdateDepartment(ctx context.Context, department persistence.Department) error
	DeleteDepartment(ctx context.Context, id string) error
	ListDepartments(ctx context.Context) ([]persistence.Department, error)
	SetMembers(ctx context.Context, departmentID string, userIDs []string) error
	ListMemberIDs(ctx context.Context, departmentID string) ([]string, error)
}

// MembershipSyncer reconciles batch-owned rows after a membership change.
type MembershipSyncer interface {
	SyncDepartmentMembership(ctx context.Context, departmentID string, oldMemberIDs, newMemberIDs []string) error
}

// DepartmentWithMembers pairs a department with its member ids.
type DepartmentWithMembers struct {
	persistence.Department
	MemberIDs []string
}

// DepartmentService manages organisational units and their membership.
// Membership changes feed the batch engine so department-targeted templates
// follow users in and out.
type DepartmentService struct {
	departments DepartmentStore
	syncer      MembershipSyncer
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDepartmentService wires dependencies for department management.
func NewDepartmentService(departments DepartmentStore, syncer MembershipSyncer, idGenerator func() string, now func() time.Time) *DepartmentService {
	return NewDepartmentServiceWithLogger(departments, syncer, idGenerator, now, nil)
}

// NewDepartmentServiceWithLogger wires dependencies with an explicit base logger.
func NewDepartmentServiceWithLogger(departments DepartmentStore, syncer MembershipSyncer, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DepartmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DepartmentService{
		departments: departments,
		syncer:      syncer,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateDepartment stores a new department with an optional initial member
// set.
func (s *DepartmentService) CreateDepartment(ctx context.Context, principal Principal, input DepartmentInput) (DepartmentWithMembers, error) {
	if s == nil {
		return DepartmentWithMembers{}, fmt.Errorf("DepartmentService is nil")
	}
	if !principal.IsAdmin {
		return DepartmentWithMembers{}, ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "department", "create")

	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		return DepartmentWithMembers{}, vErr
	}

	createdAt := s.now()
	department := persistence.Department{
		ID:          s.idGenerator(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	if err := s.departments.CreateDepartment(ctx, department); err != nil {
		return DepartmentWithMembers{}, mapRepoError(err)
	}

	members := uniqueStrings(input.MemberIDs)
	if len(members) > 0 {
		if err := s.departments.SetMembers(ctx, department.ID, members); err != nil {
			return DepartmentWithMembers{}, mapRepoError(err)
		}
		s.syncMembership(ctx, logger, department.ID, nil, members)
	}

	logger.InfoContext(ctx, "department created", "department_id", department.ID)
	return DepartmentWithMembers{Department: department, MemberIDs: members}, nil
}

// UpdateDepartment applies attribute changes and, when a member list is
// supplied, replaces the membership and reconciles batch-owned rows.
func (s *DepartmentService) UpdateDepartment(ctx context.Context, principal Principal, departmentID string, input DepartmentInput) (DepartmentWithMembers, error) {
	if s == nil {
		return DepartmentWithMembers{}, fmt.Errorf("DepartmentService is nil")
	}
	if !principal.IsAdmin {
		return DepartmentWithMembers{}, ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "department", "update", "department_id", departmentID)

	existing, err := s.departments.GetDepartment(ctx, departmentID)
	if err != nil {
		return DepartmentWithMembers{}, mapRepoError(err)
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		return DepartmentWithMembers{}, vErr
	}

	updated := existing
	updated.Name = strings.TrimSpace(input.Name)
	updated.Description = input.Description
	updated.UpdatedAt = s.now()

	if err := s.departments.UpdateDepartment(ctx, updated); err != nil {
		return DepartmentWithMembers{}, mapRepoError(err)
	}

	members, err := s.departments.ListMemberIDs(ctx, departmentID)
	if err != nil {
		return DepartmentWithMembers{}, mapRepoError(err)
	}

	if input.MemberIDs != nil {
		oldMembers := members
		members = uniqueStrings(input.MemberIDs)
		if err := s.departments.SetMembers(ctx, departmentID, members); err != nil {
			return DepartmentWithMembers{}, mapRepoError(err)
		}
		s.syncMembership(ctx, logger, departmentID, oldMembers, members)
	}

	return DepartmentWithMembers{Department: updated, MemberIDs: members}, nil
}

// DeleteDepartment removes a department. Membership rows go with it; rows a
// batch template stamped onto its members stay until the template itself is
// updated or deleted.
func (s *DepartmentService) DeleteDepartment(ctx context.Context, principal Principal, departmentID string) error {
	if s == nil {
		return fmt.Errorf("DepartmentService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	if err := s.departments.DeleteDepartment(ctx, departmentID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// GetDepartment returns a department with its member ids.
func (s *DepartmentService) GetDepartment(ctx context.Context, departmentID string) (DepartmentWithMembers, error) {
	if s == nil {
		return DepartmentWithMembers{}, fmt.Errorf("DepartmentService is nil")
	}

	department, err := s.departments.GetDepartment(ctx, departmentID)
	if err != nil {
		return DepartmentWithMembers{}, mapRepoError(err)
	}

	members, err := s.departments.ListMemberIDs(ctx, departmentID)
	if err != nil {
		return DepartmentWithMembers{}, mapRepoError(err)
	}
	return DepartmentWithMembers{Department: department, MemberIDs: members}, nil
}

// ListDepartments returns every department with its member ids.
func (s *DepartmentService) ListDepartments(ctx context.Context) ([]DepartmentWithMembers, error) {
	if s == nil {
		return nil, fmt.Errorf("DepartmentService is nil")
	}

	departments, err := s.departments.ListDepartments(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	out := make([]DepartmentWithMembers, 0, len(departments))
	for _, department := range departments {
		members, err := s.departments.ListMemberIDs(ctx, department.ID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		out = append(out, DepartmentWithMembers{Department: department, MemberIDs: members})
	}
	return out, nil
}

// syncMembership hands the membership change to the batch engine. Sync
// failures are logged and never fail the department operation.
func (s *DepartmentService) syncMembership(ctx context.Context, logger *slog.Logger, departmentID string, oldMembers, newMembers []string) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.SyncDepartmentMembership(ctx, departmentID, oldMembers, newMembers); err != nil {
		logger.WarnContext(ctx, "membership sync failed", "department_id", departmentID, "error", err)
	}
}
