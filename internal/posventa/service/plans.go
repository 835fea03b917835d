package service

import (
	"context"

	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	"techo_backend/internal/posventa/domain"
	"techo_backend/internal/posventa/repository"
	"techo_backend/internal/posventa/transport"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
)

// AttachPlan stores a plan document for a form that is still open and whose
// unit has been delivered. DXF drawings are queued for conversion.
func (s *Service) AttachPlan(ctx context.Context, formID, actorID uuid.UUID, file evidence.File) (transport.PlanResponse, error) {
	form, role, err := s.loadForm(ctx, formID, actorID)
	if err != nil {
		return transport.PlanResponse{}, err
	}
	if role.IsStaff() && !role.CanReviewPosventa() && form.SubmittedBy != actorID {
		return transport.PlanResponse{}, apperr.Forbidden("role cannot attach plans")
	}
	if !form.Status.AcceptsPlans() {
		return transport.PlanResponse{}, apperr.Conflict("posventa form has already been reviewed")
	}
	unit, err := s.housing.HousingUnit(ctx, form.HousingUnitID)
	if err != nil {
		return transport.PlanResponse{}, err
	}
	if !unit.Delivered {
		return transport.PlanResponse{}, apperr.Validation("housing unit has not been delivered")
	}

	file.ContentType = evidence.NormalizeContentType(file.Name, file.ContentType)
	ref, err := s.store.Put(ctx, evidence.Owner{Kind: evidence.OwnerPosventaForm, ID: form.ID}, file)
	if err != nil {
		return transport.PlanResponse{}, err
	}

	format := domain.DetectSourceFormat(ref.Name, ref.ContentType)
	plan, err := s.repo.CreatePlan(ctx, repository.CreatePlanParams{
		FormID:       form.ID,
		FileName:     ref.Name,
		Bucket:       ref.Bucket,
		FileKey:      ref.Key,
		ContentType:  ref.ContentType,
		SourceFormat: format,
		SizeBytes:    ref.Size,
		UploadedBy:   actorID,
	})
	if err != nil {
		return transport.PlanResponse{}, err
	}

	if format.NeedsConversion() && s.queue != nil {
		if err := s.queue.EnqueuePlanConversion(ctx, plan.ID); err != nil {
			s.log.UpstreamFailure("scheduler", "enqueue_plan_conversion", err)
		}
	}
	s.bus.Publish(ctx, events.PosventaPlanAttached{
		BaseEvent:    events.NewBaseEvent(),
		FormID:       form.ID,
		PlanID:       plan.ID,
		SourceFormat: string(format),
	})
	return toPlanResponse(plan), nil
}

// GetPlan returns a signed URL for a plan. DXF drawings are converted to PDF
// on first access and the cached rendition is served afterwards. DWG and the
// remaining formats are signed as uploaded.
func (s *Service) GetPlan(ctx context.Context, planID, actorID uuid.UUID) (transport.PlanDownloadResponse, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return transport.PlanDownloadResponse{}, err
	}
	if _, _, err := s.loadForm(ctx, plan.FormID, actorID); err != nil {
		return transport.PlanDownloadResponse{}, err
	}

	target := planReference(plan)
	converted := false
	if plan.SourceFormat.NeedsConversion() {
		target, err = s.converter.Convert(ctx, target)
		if err != nil {
			return transport.PlanDownloadResponse{}, err
		}
		converted = true
	}

	signed, err := s.store.Get(ctx, target)
	if err != nil {
		return transport.PlanDownloadResponse{}, err
	}
	return transport.PlanDownloadResponse{
		Plan:        toPlanResponse(plan),
		URL:         signed.URL,
		ContentType: target.ContentType,
		Converted:   converted,
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}

// PrewarmPlan converts a DXF drawing ahead of its first view. Other formats are ignored.
func (s *Service) PrewarmPlan(ctx context.Context, planID uuid.UUID) error {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if !plan.SourceFormat.NeedsConversion() {
		return nil
	}
	_, err = s.converter.Convert(ctx, planReference(plan))
	return err
}

func planReference(p repository.Plan) evidence.Reference {
	return evidence.Reference{
		Bucket:      p.Bucket,
		Key:         p.FileKey,
		Name:        p.FileName,
		ContentType: p.ContentType,
		Size:        p.SizeBytes,
	}
}
