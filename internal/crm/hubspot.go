// Package crm forwards captured leads and their calculations to HubSpot.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/internal/lead"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/output"
	"go.uber.org/zap"
)

// ErrDisabled is returned by Disabled.
var ErrDisabled = errors.New("crm sync disabled")

// Syncer forwards one lead and its calculation.
type Syncer interface {
	Sync(ctx context.Context, c lead.Contact, p estimate.Payload) (SyncResult, error)
}

// SyncResult describes what reached the CRM.
type SyncResult struct {
	ContactID     string `json:"contactId"`
	Created       bool   `json:"created"`
	FormSubmitted bool   `json:"formSubmitted"`
}

// Disabled is the Syncer used when no CRM is configured.
type Disabled struct{}

func (Disabled) Sync(context.Context, lead.Contact, estimate.Payload) (SyncResult, error) {
	return SyncResult{}, ErrDisabled
}

// Config holds HubSpot endpoints and form identifiers. The form submission
// is skipped when PortalID or FormGUID is empty.
type Config struct {
	BaseURL  string
	FormsURL string
	PortalID string
	FormGUID string
	PageURI  string
	PageName string
	Timeout  time.Duration
}

// Client is a HubSpot Syncer.
type Client struct {
	cfg        Config
	creds      CredentialSource
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// New builds a Client. Credentials are resolved from creds on every Sync.
func New(cfg Config, creds CredentialSource, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultCRMBaseURL
	}
	if cfg.FormsURL == "" {
		cfg.FormsURL = constants.DefaultCRMFormsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.FormsURL = strings.TrimRight(cfg.FormsURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		creds:      creds,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Sync submits the tracking form, upserts the contact by email and attaches
// the calculation summary as a note.
func (c *Client) Sync(ctx context.Context, contact lead.Contact, p estimate.Payload) (SyncResult, error) {
	var result SyncResult

	if err := c.submitForm(ctx, contact); err != nil {
		c.logger.Warn("form submission failed, continuing with contact sync",
			zap.String("op", "crm.Sync"),
			zap.String("email", contact.Email),
			zap.Error(err),
		)
	} else if c.cfg.PortalID != "" && c.cfg.FormGUID != "" {
		result.FormSubmitted = true
	}

	cred, err := c.creds.Credential(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to resolve crm credential: %w", err)
	}
	if !cred.Valid(c.now()) {
		return result, ErrNotConnected
	}

	contactID, err := c.searchContact(ctx, cred, contact.Email)
	if err != nil {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			return result, fmt.Errorf("failed to search contacts: %w", err)
		}
		c.logger.Warn("contact search not found, creating a new contact",
			zap.String("op", "crm.Sync"),
			zap.String("email", contact.Email),
			zap.Error(err),
		)
	}

	if contactID != "" {
		if err := c.updateContact(ctx, cred, contactID, contact); err != nil {
			return result, fmt.Errorf("failed to update contact %s: %w", contactID, err)
		}
	} else {
		contactID, err = c.createContact(ctx, cred, contact)
		if err != nil {
			return result, fmt.Errorf("failed to create contact: %w", err)
		}
		result.Created = true
	}
	result.ContactID = contactID

	if err := c.createNote(ctx, cred, contactID, output.SummaryNote(p, c.now())); err != nil {
		return result, fmt.Errorf("failed to attach note to contact %s: %w", contactID, err)
	}

	c.logger.Info("lead synced to crm",
		zap.String("op", "crm.Sync"),
		zap.String("contactId", contactID),
		zap.Bool("created", result.Created),
	)
	return result, nil
}

type formField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type formSubmission struct {
	Fields  []formField `json:"fields"`
	Context struct {
		PageURI  string `json:"pageUri,omitempty"`
		PageName string `json:"pageName,omitempty"`
	} `json:"context"`
}

func (c *Client) submitForm(ctx context.Context, contact lead.Contact) error {
	if c.cfg.PortalID == "" || c.cfg.FormGUID == "" {
		return nil
	}

	body := formSubmission{Fields: []formField{
		{Name: "email", Value: contact.Email},
		{Name: "firstname", Value: contact.FirstName},
		{Name: "lastname", Value: contact.LastName},
		{Name: "company", Value: contact.Company},
		{Name: "jobtitle", Value: contact.JobFunction},
		{Name: "function", Value: contact.JobFunction},
	}}
	body.Context.PageURI = c.cfg.PageURI
	body.Context.PageName = c.cfg.PageName

	endpoint := fmt.Sprintf("%s/submissions/v3/integration/submit/%s/%s", c.cfg.FormsURL, c.cfg.PortalID, c.cfg.FormGUID)
	return c.do(ctx, http.MethodPost, endpoint, "", body, nil)
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type objectResponse struct {
	ID string `json:"id"`
}

type searchResponse struct {
	Results []objectResponse `json:"results"`
}

func (c *Client) searchContact(ctx context.Context, cred Credential, email string) (string, error) {
	req := searchRequest{
		FilterGroups: []filterGroup{{Filters: []filter{{PropertyName: "email", Operator: "EQ", Value: email}}}},
		Properties:   []string{"email", "firstname", "lastname"},
		Limit:        1,
	}
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/crm/v3/objects/contacts/search", cred.Token, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].ID, nil
}

type propertiesBody struct {
	Properties   map[string]string `json:"properties"`
	Associations []association     `json:"associations,omitempty"`
}

type association struct {
	To    objectResponse    `json:"to"`
	Types []associationType `json:"types"`
}

type associationType struct {
	Category string `json:"associationCategory"`
	TypeID   int    `json:"associationTypeId"`
}

func contactProperties(contact lead.Contact) map[string]string {
	return map[string]string{
		"firstname": contact.FirstName,
		"lastname":  contact.LastName,
		"company":   contact.Company,
		"jobtitle":  contact.JobFunction,
	}
}

func (c *Client) updateContact(ctx context.Context, cred Credential, id string, contact lead.Contact) error {
	body := propertiesBody{Properties: contactProperties(contact)}
	return c.do(ctx, http.MethodPatch, c.cfg.BaseURL+"/crm/v3/objects/contacts/"+id, cred.Token, body, nil)
}

func (c *Client) createContact(ctx context.Context, cred Credential, contact lead.Contact) (string, error) {
	props := contactProperties(contact)
	props["email"] = contact.Email

	var resp objectResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/crm/v3/objects/contacts", cred.Token, propertiesBody{Properties: props}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("crm returned an empty contact id")
	}
	return resp.ID, nil
}

func (c *Client) createNote(ctx context.Context, cred Credential, contactID, note string) error {
	body := propertiesBody{
		Properties: map[string]string{
			"hs_note_body": note,
			"hs_timestamp": c.now().UTC().Format(time.RFC3339),
		},
		Associations: []association{{
			To:    objectResponse{ID: contactID},
			Types: []associationType{{Category: "HUBSPOT_DEFINED", TypeID: constants.NoteToContactAssociation}},
		}},
	}
	return c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/crm/v3/objects/notes", cred.Token, body, nil)
}

// StatusError is a non-2xx response from the CRM.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, url, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", url, err)
	}
	return nil
}
