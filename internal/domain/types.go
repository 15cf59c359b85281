package domain

import (
	"errors"
	"fmt"
	"time"
)

type CampaignStatus string

const (
	CampaignProcessing CampaignStatus = "PROCESSING"
	CampaignCompleted  CampaignStatus = "COMPLETED"
)

type LogStatus string

const (
	LogPending LogStatus = "PENDING"
	LogSent    LogStatus = "SENT"
	LogFailed  LogStatus = "FAILED"
)

// Terminal reports whether a communication log row has reached a delivery
// outcome. Terminal rows are never re-sent.
func (s LogStatus) Terminal() bool {
	return s == LogSent || s == LogFailed
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// CustomerRecord is one raw customer in an ingestion batch. Id is optional on
// the wire; the API assigns one before the record is queued.
type CustomerRecord struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   *Address   `json:"address,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type ItemRecord struct {
	ID        string `json:"id,omitempty"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Total     int64  `json:"total"`
}

// OrderRecord is one raw order in an ingestion batch, items embedded.
type OrderRecord struct {
	ID          string       `json:"id,omitempty"`
	CustomerID  string       `json:"customerId"`
	Items       []ItemRecord `json:"items"`
	TotalAmount int64        `json:"totalAmount"`
	Currency    string       `json:"currency"`
	Status      string       `json:"status"`
	CreatedAt   *time.Time   `json:"createdAt,omitempty"`
}

var (
	ErrMissingCustomer = errors.New("customerId is required")
	ErrNoItems         = errors.New("order must contain at least one item")
)

// Validate enforces the ingestion contract for one order record. This runs at
// the HTTP boundary; the worker only re-checks batch shape.
func (o OrderRecord) Validate() error {
	if o.CustomerID == "" {
		return ErrMissingCustomer
	}
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	if o.TotalAmount <= 0 {
		return fmt.Errorf("totalAmount must be positive, got %d", o.TotalAmount)
	}
	if o.Currency == "" {
		return errors.New("currency is required")
	}
	if o.Status == "" {
		return errors.New("status is required")
	}
	for i, it := range o.Items {
		if it.ProductID == "" || it.Name == "" {
			return fmt.Errorf("item %d: productId and name are required", i)
		}
		if it.Price <= 0 || it.Quantity <= 0 || it.Total <= 0 {
			return fmt.Errorf("item %d: price, quantity and total must be positive", i)
		}
	}
	return nil
}

func (c CustomerRecord) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

type Campaign struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	MessageTemplate string         `json:"messageTemplate"`
	SegmentID       string         `json:"segmentId"`
	AudienceSize    int            `json:"audienceSize"`
	SentCount       int            `json:"sentCount"`
	FailedCount     int            `json:"failedCount"`
	Status          CampaignStatus `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type CommunicationLog struct {
	ID                    string     `json:"id"`
	CampaignID            string     `json:"campaignId"`
	CustomerID            string     `json:"customerId"`
	Status                LogStatus  `json:"status"`
	PersonalizedMessage   string     `json:"personalizedMessage"`
	SentAt                *time.Time `json:"sentAt,omitempty"`
	VendorMessageID       string     `json:"vendorMessageId,omitempty"`
	DeliveryReceiptStatus string     `json:"deliveryReceiptStatus,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// ReceiptUpdate is the payload of an external delivery-receipt callback.
type ReceiptUpdate struct {
	CampaignID      string `json:"campaignId"`
	CustomerID      string `json:"customerId"`
	VendorMessageID string `json:"vendorMessageId"`
	Status          string `json:"status"`
}

func (r ReceiptUpdate) Validate() error {
	if r.CampaignID == "" || r.CustomerID == "" || r.VendorMessageID == "" || r.Status == "" {
		return ErrMissingFields
	}
	return nil
}

var ErrMissingFields = errors.New("missing required fields")
