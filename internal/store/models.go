package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// Template is a stored automation workflow with marketplace metadata.
// The workflow payload is opaque JSON whose shape is owned by the
// workflow engine, not by us.
type Template struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Title          string          `gorm:"size:255;not null" json:"title"`
	Slug           string          `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description    string          `gorm:"type:text" json:"description"`
	Category       string          `gorm:"size:100;index" json:"category"`
	Tags           StringList      `gorm:"type:json" json:"tags"`
	SourceURL      string          `gorm:"size:512" json:"source_url"`
	Workflow       json.RawMessage `gorm:"type:json" json:"workflow,omitempty"`
	AuthorName     string          `gorm:"size:255" json:"author_name"`
	License        string          `gorm:"size:100" json:"license"`
	Downloads      int64           `gorm:"default:0" json:"downloads"`
	Views          int64           `gorm:"default:0" json:"views"`
	Rating         float64         `gorm:"type:decimal(3,2);default:0" json:"rating"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	LastVerifiedAt *time.Time      `gorm:"default:null" json:"last_verified_at,omitempty"`
}

// SearchDocument projects the fields we index for querying. The store
// row stays authoritative; the index copy is rebuilt by reindex jobs.
func (t *Template) SearchDocument() map[string]any {
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"slug":        t.Slug,
		"description": t.Description,
		"category":    t.Category,
		"tags":        []string(t.Tags),
		"author_name": t.AuthorName,
		"license":     t.License,
		"downloads":   t.Downloads,
		"rating":      t.Rating,
		"created_at":  t.CreatedAt.Unix(),
	}
}

// Freelancer is a service-provider profile, keyed externally by email.
type Freelancer struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            string     `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	Email             string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	Bio               string     `gorm:"type:text" json:"bio"`
	Skills            StringList `gorm:"type:json" json:"skills"`
	ExpertiseLevel    string     `gorm:"size:50" json:"expertise_level"`
	HourlyRate        float64    `gorm:"type:decimal(10,2);default:0" json:"hourly_rate"`
	Currency          string     `gorm:"size:3;default:BRL" json:"currency"`
	Available         bool       `gorm:"default:true" json:"available"`
	Verified          bool       `gorm:"default:false" json:"verified"`
	VerifiedAt        *time.Time `gorm:"default:null" json:"verified_at,omitempty"`
	Rating            float64    `gorm:"type:decimal(3,2);default:0" json:"rating"`
	CompletedProjects int        `gorm:"default:0" json:"completed_projects"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (f *Freelancer) SearchDocument() map[string]any {
	return map[string]any{
		"id":                 f.ID,
		"name":               f.Name,
		"bio":                f.Bio,
		"skills":             []string(f.Skills),
		"expertise_level":    f.ExpertiseLevel,
		"hourly_rate":        f.HourlyRate,
		"availability":       f.Available,
		"rating":             f.Rating,
		"completed_projects": f.CompletedProjects,
	}
}

// Implementation statuses.
const (
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Payment statuses. paid, refunded and failed are terminal.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

// Implementation is a work order connecting a template, a client and
// (once accepted) a freelancer.
type Implementation struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TemplateID    uint            `gorm:"index;not null" json:"template_id"`
	FreelancerID  *uint           `gorm:"index;default:null" json:"freelancer_id,omitempty"`
	ClientID      string          `gorm:"size:64;index;not null" json:"client_id"`
	Requirements  json.RawMessage `gorm:"type:json" json:"requirements,omitempty"`
	Budget        float64         `gorm:"type:decimal(10,2);not null" json:"budget"`
	Currency      string          `gorm:"size:3;default:BRL" json:"currency"`
	Deadline      *time.Time      `gorm:"default:null" json:"deadline,omitempty"`
	Status        string          `gorm:"size:20;default:pending;index" json:"status"`
	PaymentStatus string          `gorm:"size:20;default:pending;index" json:"payment_status"`
	Commission    float64         `gorm:"type:decimal(10,2);default:0" json:"commission"`
	TransactionID string          `gorm:"size:255" json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	AcceptedAt    *time.Time      `gorm:"default:null" json:"accepted_at,omitempty"`
	CompletedAt   *time.Time      `gorm:"default:null" json:"completed_at,omitempty"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Category organizes templates, optionally nested one level deep.
type Category struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug          string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	ParentID      *uint     `gorm:"index;default:null" json:"parent_id,omitempty"`
	SortOrder     int       `gorm:"default:0" json:"sort_order"`
	TemplateCount int       `gorm:"default:0" json:"template_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
