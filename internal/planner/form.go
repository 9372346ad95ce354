// Package planner drives the observation plan workflow: form
// completeness gating, submission, and the coordinate visibility check
// against the realtime channel.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/telescopiosnaescola/argus/pkg/api"
	"go.uber.org/zap"
)

// FormState is the lifecycle state of a plan form.
type FormState string

const (
	StateEditing        FormState = "editing"
	StateSubmitting     FormState = "submitting"
	StateSaved          FormState = "saved"
	StateApprovedNow    FormState = "approved-now"
	StateNotApprovedNow FormState = "not-approved-now"
)

// Form collects the fields of an observation plan before submission.
// Either RA+DEC or ObjectName identifies the target.
type Form struct {
	Name       string   `validate:"required"`
	ObjectName string   `validate:"required_without_all=RA DEC"`
	RA         string   `validate:"required_without=ObjectName,omitempty,numeric"`
	DEC        string   `validate:"required_without=ObjectName,omitempty,numeric"`
	Filters    []string `validate:"required,min=1"`
	FrameMode  string   `validate:"required"`
	ExpTime    float64  `validate:"required,gt=0"`
	StartTime  string   `validate:"required"`
}

var validate = validator.New()

// Validate reports whether the form is complete enough to submit.
func (f *Form) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("incomplete plan: missing or invalid %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// Complete reports field completeness without the error detail.
func (f *Form) Complete() bool {
	return f.Validate() == nil
}

// Submitter manages a plan form through submission. Submission failures
// leave the form in editing state with its fields untouched; there is no
// automatic retry.
type Submitter struct {
	client *api.Client
	logger *zap.Logger

	mu            sync.Mutex
	state         FormState
	observableNow bool
	observableSet bool
}

// NewSubmitter creates a plan submitter in editing state.
func NewSubmitter(client *api.Client, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		client: client,
		logger: logger.With(zap.String("component", "plan_submitter")),
		state:  StateEditing,
	}
}

// State returns the current form state.
func (s *Submitter) State() FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetObservableNow records the latest currently-observable verdict from
// the visibility check.
func (s *Submitter) SetObservableNow(allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observableNow = allowed
	s.observableSet = true
	if s.state == StateEditing || s.state == StateApprovedNow || s.state == StateNotApprovedNow {
		if allowed {
			s.state = StateApprovedNow
		} else {
			s.state = StateNotApprovedNow
		}
	}
}

// CanSave reports whether the save action is enabled.
func (s *Submitter) CanSave(f *Form) bool {
	if s.State() == StateSubmitting {
		return false
	}
	return f.Complete()
}

// CanObserveNow reports whether the observe-now action is enabled: the
// form must be complete and the last known visibility verdict positive.
func (s *Submitter) CanObserveNow(f *Form) bool {
	s.mu.Lock()
	allowed := s.observableSet && s.observableNow
	s.mu.Unlock()
	return allowed && s.CanSave(f)
}

// Save validates and submits the plan. On success the form transitions
// to saved; on failure it returns to editing with fields unchanged.
func (s *Submitter) Save(ctx context.Context, f *Form) (*api.StatusResponse, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, errors.New("a submission is already in flight")
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	resp, err := s.client.CreatePlan(ctx, api.CreatePlanRequest{
		Name:       f.Name,
		ObjectName: f.ObjectName,
		RA:         f.RA,
		DEC:        f.DEC,
		Filters:    strings.Join(f.Filters, ","),
		FrameMode:  f.FrameMode,
		ExpTime:    f.ExpTime,
		StartTime:  f.StartTime,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateEditing
		return nil, err
	}
	if !resp.OK() {
		s.state = StateEditing
		return resp, nil
	}

	s.state = StateSaved
	s.logger.Info("Plan saved", zap.String("name", f.Name))
	return resp, nil
}

// ObserveNow submits the plan and immediately asks the telescope to
// execute it.
func (s *Submitter) ObserveNow(ctx context.Context, f *Form, planID int) (*api.StatusResponse, error) {
	if !s.CanObserveNow(f) {
		return nil, errors.New("target is not currently observable")
	}
	return s.client.ExecutePlan(ctx, planID)
}

// Replace edits a plan by creating the new version and then deleting the
// old one. If the delete fails after the create succeeded, the freshly
// created plan is deleted again (compensation) and the error reported,
// so the user never ends up with both versions silently.
func (s *Submitter) Replace(ctx context.Context, f *Form, oldPlanID int) error {
	resp, err := s.Save(ctx, f)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("server rejected replacement plan: %s", resp.Message)
	}

	delResp, err := s.client.DeletePlan(ctx, oldPlanID)
	if err == nil && delResp.OK() {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("server refused delete: %s", delResp.Message)
	}

	// Compensate: remove the newly created duplicate before reporting.
	newID, findErr := s.findPlanID(ctx, f.Name, f.StartTime)
	if findErr == nil {
		if _, compErr := s.client.DeletePlan(ctx, newID); compErr != nil {
			return fmt.Errorf("failed to delete old plan %d and to roll back new plan %d: %w", oldPlanID, newID, err)
		}
	}
	return fmt.Errorf("failed to delete old plan %d, replacement rolled back: %w", oldPlanID, err)
}

func (s *Submitter) findPlanID(ctx context.Context, name, startTime string) (int, error) {
	plans, err := s.client.FetchPlans(ctx)
	if err != nil {
		return 0, err
	}
	for i := len(plans) - 1; i >= 0; i-- {
		if plans[i].Name == name && plans[i].StartTime == startTime {
			return plans[i].ID, nil
		}
	}
	return 0, fmt.Errorf("plan %q not found", name)
}
