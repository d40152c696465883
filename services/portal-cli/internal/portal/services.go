package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"FieldOpsPortal/pkg/validation"
	"FieldOpsPortal/services/portal-cli/internal/apiclient"
)

// Services доменные сервисы портала поверх одного клиента
type Services struct {
	Jobs       *JobService
	Disputes   *DisputeService
	Payouts    *PayoutService
	Compliance *ComplianceService
	Estimates  *EstimateService
	Materials  *MaterialService
	Tracking   *TrackingService
}

// NewServices создает все доменные сервисы
func NewServices(client *apiclient.Client) *Services {
	b := base{client: client, validator: validation.NewValidator()}
	return &Services{
		Jobs:       &JobService{b},
		Disputes:   &DisputeService{b},
		Payouts:    &PayoutService{b},
		Compliance: &ComplianceService{b},
		Estimates:  &EstimateService{b},
		Materials:  &MaterialService{b},
		Tracking:   &TrackingService{b},
	}
}

type base struct {
	client    *apiclient.Client
	validator *validation.Validator
}

func list[T any](ctx context.Context, b base, endpoint string, query url.Values) (*Page[T], error) {
	raw, err := b.client.Get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	items, count, err := apiclient.DecodeList[T](raw)
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Count: count}, nil
}

func decode[T any](raw json.RawMessage) (*T, error) {
	var out T
	if err := apiclient.DecodeInto(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// resourcePath собирает путь вида /<collection>/<id>/<action>/
func (b base) resourcePath(collection, id, action string) (string, error) {
	if err := b.validator.ValidateResourceID(id, "id"); err != nil {
		return "", err
	}
	if action == "" {
		return fmt.Sprintf("/%s/%s/", collection, url.PathEscape(id)), nil
	}
	return fmt.Sprintf("/%s/%s/%s/", collection, url.PathEscape(id), action), nil
}

// JobService заявки
type JobService struct{ base }

// List возвращает заявки, status фильтрует по статусу
func (s *JobService) List(ctx context.Context, status string) (*Page[Job], error) {
	query := url.Values{}
	if status != "" {
		if err := s.validator.ValidateEnum(status, JobStatuses, "status"); err != nil {
			return nil, err
		}
		query.Set("status", status)
	}
	return list[Job](ctx, s.base, "/jobs/", query)
}

// Get возвращает заявку
func (s *JobService) Get(ctx context.Context, id string) (*Job, error) {
	path, err := s.resourcePath("jobs", id, "")
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return decode[Job](raw)
}

// UpdateStatus меняет статус заявки
func (s *JobService) UpdateStatus(ctx context.Context, id, status string) (*Job, error) {
	if err := s.validator.ValidateEnum(status, JobStatuses, "status"); err != nil {
		return nil, err
	}
	path, err := s.resourcePath("jobs", id, "")
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Patch(ctx, path, map[string]string{"status": status})
	if err != nil {
		return nil, err
	}
	return decode[Job](raw)
}

// DisputeService споры
type DisputeService struct{ base }

// List возвращает споры
func (s *DisputeService) List(ctx context.Context) (*Page[Dispute], error) {
	return list[Dispute](ctx, s.base, "/disputes/", nil)
}

// Resolve закрывает спор с решением
func (s *DisputeService) Resolve(ctx context.Context, id, resolution string) (*Dispute, error) {
	if err := s.validator.ValidateRequired(resolution, "resolution"); err != nil {
		return nil, err
	}
	path, err := s.resourcePath("disputes", id, "resolve")
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Post(ctx, path, map[string]string{"resolution": resolution})
	if err != nil {
		return nil, err
	}
	return decode[Dispute](raw)
}

// PayoutService выплаты
type PayoutService struct{ base }

// List возвращает выплаты
func (s *PayoutService) List(ctx context.Context) (*Page[Payout], error) {
	return list[Payout](ctx, s.base, "/payouts/", nil)
}

// Approve одобряет выплату
func (s *PayoutService) Approve(ctx context.Context, id string) (*Payout, error) {
	path, err := s.resourcePath("payouts", id, "approve")
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Post(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return decode[Payout](raw)
}

// ComplianceService документы подрядчиков
type ComplianceService struct{ base }

// List возвращает документы на проверке
func (s *ComplianceService) List(ctx context.Context) (*Page[ComplianceDocument], error) {
	return list[ComplianceDocument](ctx, s.base, "/compliance/documents/", nil)
}

// Review принимает или отклоняет документ
func (s *ComplianceService) Review(ctx context.Context, id string, approved bool, notes string) (*ComplianceDocument, error) {
	path, err := s.resourcePath("compliance/documents", id, "review")
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Post(ctx, path, map[string]interface{}{"approved": approved, "notes": notes})
	if err != nil {
		return nil, err
	}
	return decode[ComplianceDocument](raw)
}

// EstimateService сметы
type EstimateService struct{ base }

// List возвращает сметы
func (s *EstimateService) List(ctx context.Context) (*Page[Estimate], error) {
	return list[Estimate](ctx, s.base, "/estimates/", nil)
}

// Approve утверждает смету
func (s *EstimateService) Approve(ctx context.Context, id string) (*Estimate, error) {
	path, err := s.resourcePath("estimates", id, "approve")
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Post(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return decode[Estimate](raw)
}

// MaterialService материалы
type MaterialService struct{ base }

// List возвращает материалы, jobID ограничивает одной заявкой
func (s *MaterialService) List(ctx context.Context, jobID string) (*Page[Material], error) {
	query := url.Values{}
	if jobID != "" {
		if err := s.validator.ValidateResourceID(jobID, "job id"); err != nil {
			return nil, err
		}
		query.Set("job", jobID)
	}
	return list[Material](ctx, s.base, "/materials/", query)
}

// TrackingService геопозиция бригад
type TrackingService struct{ base }

// Location возвращает последнюю позицию бригады по заявке
func (s *TrackingService) Location(ctx context.Context, jobID string) (*Location, error) {
	path, err := s.resourcePath("tracking/jobs", jobID, "location")
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	loc, err := decode[Location](raw)
	if err != nil {
		return nil, err
	}
	if loc.JobID == "" {
		loc.JobID = jobID
	}
	return loc, nil
}
