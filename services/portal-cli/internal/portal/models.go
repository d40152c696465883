package portal

import "time"

// Job заявка на выполнение работ
type Job struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Status       string     `json:"status" yaml:"status"`
	Address      string     `json:"address,omitempty" yaml:"address,omitempty"`
	CustomerName string     `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	Contractor   string     `json:"contractor,omitempty" yaml:"contractor,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty" yaml:"scheduled_at,omitempty"`
	Amount       float64    `json:"amount,omitempty" yaml:"amount,omitempty"`
}

// Статусы заявки
const (
	JobStatusOpen       = "open"
	JobStatusScheduled  = "scheduled"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

// JobStatuses допустимые статусы заявки
var JobStatuses = []string{JobStatusOpen, JobStatusScheduled, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled}

// Dispute спор по заявке
type Dispute struct {
	ID         string    `json:"id" yaml:"id"`
	JobID      string    `json:"job_id" yaml:"job_id"`
	Reason     string    `json:"reason" yaml:"reason"`
	Status     string    `json:"status" yaml:"status"`
	Resolution string    `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Payout выплата подрядчику
type Payout struct {
	ID         string    `json:"id" yaml:"id"`
	JobID      string    `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Contractor string    `json:"contractor" yaml:"contractor"`
	Amount     float64   `json:"amount" yaml:"amount"`
	Currency   string    `json:"currency,omitempty" yaml:"currency,omitempty"`
	Status     string    `json:"status" yaml:"status"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// ComplianceDocument документ подрядчика на проверке
type ComplianceDocument struct {
	ID         string     `json:"id" yaml:"id"`
	Contractor string     `json:"contractor" yaml:"contractor"`
	Kind       string     `json:"kind" yaml:"kind"`
	Status     string     `json:"status" yaml:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Estimate смета по заявке
type Estimate struct {
	ID     string  `json:"id" yaml:"id"`
	JobID  string  `json:"job_id" yaml:"job_id"`
	Total  float64 `json:"total" yaml:"total"`
	Status string  `json:"status" yaml:"status"`
}

// Material материал, закупленный для заявки
type Material struct {
	ID       string  `json:"id" yaml:"id"`
	JobID    string  `json:"job_id" yaml:"job_id"`
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Unit     string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Status   string  `json:"status" yaml:"status"`
}

// Location последняя известная геопозиция бригады по заявке
type Location struct {
	JobID      string    `json:"job_id" yaml:"job_id"`
	Latitude   float64   `json:"latitude" yaml:"latitude"`
	Longitude  float64   `json:"longitude" yaml:"longitude"`
	Accuracy   float64   `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	Status     string    `json:"status,omitempty" yaml:"status,omitempty"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
}

// Page страница списка. Count общее число элементов на сервере.
type Page[T any] struct {
	Items []T `json:"items" yaml:"items"`
	Count int `json:"count" yaml:"count"`
}
