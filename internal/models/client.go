package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Client represents a managed website whose audits are tracked by the
// dashboard. SEMrush correlation fields are populated once the first audit
// creates the remote project and are reused by every later audit.
type Client struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Website string `json:"website" badgerhold:"index"`
	Email   string `json:"email,omitempty"`
	Active  bool   `json:"active" badgerhold:"index"`

	// SEMrush correlation, set at first successful audit start
	SemrushProjectID   string `json:"semrush_project_id,omitempty"`
	SemrushProjectName string `json:"semrush_project_name,omitempty"`
	SemrushOwnerID     string `json:"semrush_owner_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewClient creates an active client with a fresh ID.
func NewClient(name, website, email string) *Client {
	now := time.Now()
	return &Client{
		ID:        uuid.New().String(),
		Name:      name,
		Website:   website,
		Email:     email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasProject reports whether the client is already linked to a SEMrush project.
func (c *Client) HasProject() bool {
	return c.SemrushProjectID != ""
}

// Touch bumps UpdatedAt. Call before persisting a mutation.
func (c *Client) Touch() {
	c.UpdatedAt = time.Now()
}

// CreateClientRequest is the POST /api/clients payload.
type CreateClientRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=100"`
	Website string `json:"website" validate:"required,min=4,max=255"`
	Email   string `json:"email" validate:"omitempty,email"`
	Active  *bool  `json:"active"`
}

// UpdateClientRequest is the PUT /api/clients/{id} payload. Nil fields are
// left unchanged.
type UpdateClientRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Website *string `json:"website" validate:"omitempty,min=4,max=255"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Active  *bool   `json:"active"`
}

// Validate validates the request using go-playground/validator tags.
func (r *CreateClientRequest) Validate() error {
	return validator.New().Struct(r)
}

// Validate validates the request using go-playground/validator tags.
func (r *UpdateClientRequest) Validate() error {
	return validator.New().Struct(r)
}

// Apply copies the non-nil request fields onto the client.
func (r *UpdateClientRequest) Apply(c *Client) {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Website != nil {
		c.Website = *r.Website
	}
	if r.Email != nil {
		c.Email = *r.Email
	}
	if r.Active != nil {
		c.Active = *r.Active
	}
	c.Touch()
}
