// Package lead defines the contact captured at the results gate and the
// records kept for it.
package lead

import (
	"time"

	"github.com/iwvelando/mro-estimator/internal/estimate"
)

// CRM sync states recorded on a lead.
const (
	CRMPending = "pending"
	CRMSynced  = "synced"
	CRMFailed  = "failed"
	CRMSkipped = "skipped"
)

// Contact is the information a user gives to unlock full results.
type Contact struct {
	FirstName   string `json:"firstName" validate:"required,min=2"`
	LastName    string `json:"lastName" validate:"required,min=2"`
	Email       string `json:"email" validate:"required,email,businessemail"`
	Company     string `json:"company" validate:"required,min=2"`
	JobFunction string `json:"jobFunction" validate:"required,jobfunction"`
}

// Lead is a stored contact, unique by email.
type Lead struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	Company     string    `json:"company"`
	JobFunction string    `json:"jobFunction"`
	CRMStatus   string    `json:"crmStatus"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Contact returns the contact fields of the lead.
func (l Lead) Contact() Contact {
	return Contact{
		FirstName:   l.FirstName,
		LastName:    l.LastName,
		Email:       l.Email,
		Company:     l.Company,
		JobFunction: l.JobFunction,
	}
}

// Calculation is one submitted estimate attached to a lead.
type Calculation struct {
	ID        string           `json:"id"`
	LeadID    string           `json:"leadId"`
	Payload   estimate.Payload `json:"payload"`
	CreatedAt time.Time        `json:"createdAt"`
}

// JobFunctions is the fixed list offered on the contact form.
var JobFunctions = []string{
	"Procurement",
	"Innovation",
	"IT / IS",
	"Finance",
	"Sourcing",
	"Maintenance",
	"Manufacturing",
	"Supply Chain",
	"Operations",
	"Other",
}
