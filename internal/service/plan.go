package service

import (
	"context"

	"github.com/flexprice/freemium/internal/api/dto"
	"github.com/flexprice/freemium/internal/domain/plan"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/samber/lo"
)

type PlanService interface {
	CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error)
	GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error)
	ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error)
	UpdatePlan(ctx context.Context, id string, req dto.UpdatePlanRequest) (*dto.PlanResponse, error)
	DeletePlan(ctx context.Context, id string) error
}

type planService struct {
	ServiceParams
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{ServiceParams: params}
}

func (s *planService) CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := req.ToPlan(ctx)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.PlanRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("created plan", "plan_id", p.ID, "rate", p.Rate.String())
	return &dto.PlanResponse{Plan: p}, nil
}

func (s *planService) GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	if id == "" {
		return nil, ierr.NewError("plan_id is required").
			WithHint("Plan ID is required").
			Mark(ierr.ErrValidation)
	}

	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.PlanResponse{Plan: p}, nil
}

func (s *planService) ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error) {
	if filter == nil {
		filter = types.NewPlanFilter()
	}

	plans, err := s.PlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &dto.ListPlansResponse{
		Plans:  lo.Map(plans, func(p *plan.Plan, _ int) *dto.PlanResponse { return &dto.PlanResponse{Plan: p} }),
		Total:  len(plans),
		Offset: filter.GetOffset(),
		Limit:  filter.GetLimit(),
	}, nil
}

// UpdatePlan renames or re-prices a plan. A plan with subscribers cannot move
// between free and paid, since its subscriptions would no longer be valid.
func (s *planService) UpdatePlan(ctx context.Context, id string, req dto.UpdatePlanRequest) (*dto.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *plan.Plan
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PlanRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		wasFree := p.IsFree()
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Rate != nil {
			p.Rate = *req.Rate
		}
		if err := p.Validate(); err != nil {
			return err
		}

		if wasFree != p.IsFree() {
			subs, err := s.SubRepo.ListByPlan(ctx, id)
			if err != nil {
				return err
			}
			if len(subs) > 0 {
				return ierr.NewError("plan has subscribers").
					WithHint("A plan with subscribers cannot switch between free and paid").
					WithReportableDetails(map[string]any{
						"plan_id":       id,
						"subscriptions": len(subs),
					}).
					Mark(ierr.ErrInvalidOperation)
			}
		}

		p.Touch(ctx)
		if err := s.PlanRepo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.PlanResponse{Plan: updated}, nil
}

// DeletePlan removes a plan nobody is subscribed to. The configured expired
// plan can never be deleted.
func (s *planService) DeletePlan(ctx context.Context, id string) error {
	if id == s.Config.Billing.ExpiredPlanID {
		return ierr.NewError("cannot delete the expired plan").
			WithHint("The plan expired subscriptions fall back to cannot be deleted").
			WithReportableDetails(map[string]any{"plan_id": id}).
			Mark(ierr.ErrInvalidOperation)
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		subs, err := s.SubRepo.ListByPlan(ctx, id)
		if err != nil {
			return err
		}
		if len(subs) > 0 {
			return ierr.NewError("plan has subscribers").
				WithHint("Move subscribers to another plan before deleting this one").
				WithReportableDetails(map[string]any{
					"plan_id":       id,
					"subscriptions": len(subs),
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		return s.PlanRepo.Delete(ctx, id)
	})
}
