package model

import "time"

// Account represents a tenant company using the service.
// The ID is issued by the external identity provider.
type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	CompanyName       string    `json:"company_name,omitempty"`
	BillingCustomerID *string   `json:"billing_customer_id,omitempty"`
	Plan              PlanState `json:"plan_details"`
	CreatedAt         time.Time `json:"created_at"`
}

// ComputerStatus is the connectivity flag reported by the desktop agent.
type ComputerStatus string

const (
	ComputerOnline  ComputerStatus = "online"
	ComputerOffline ComputerStatus = "offline"
)

// Computer is a desktop registered to an account.
type Computer struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id"`
	Name      string         `json:"computer_name"`
	Status    ComputerStatus `json:"status"`
	LastSeen  *time.Time     `json:"last_seen,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsOnline returns true if the agent last reported the computer online.
func (c *Computer) IsOnline() bool {
	return c.Status == ComputerOnline
}
