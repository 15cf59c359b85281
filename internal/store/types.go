package store

import "time"

type AddressUpsert struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

type CustomerUpsert struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Address   *AddressUpsert
	CreatedAt time.Time
}

type ItemUpsert struct {
	ID        string
	ProductID string
	Name      string
	Price     int64
	Quantity  int
	Total     int64
}

type OrderUpsert struct {
	ID          string
	CustomerID  string
	TotalAmount int64
	Currency    string
	Status      string
	CreatedAt   time.Time
	Items       []ItemUpsert
}

// OrderBatchResult reports how one order batch fared: rows written vs rows
// dropped for referencing unknown customers.
type OrderBatchResult struct {
	Persisted int
	Skipped   int
}

type SegmentCreate struct {
	ID                  string
	Name                string
	RulesJSON           []byte
	AudienceCustomerIDs []string
	Now                 time.Time
}

type CampaignCreate struct {
	ID              string
	Name            string
	MessageTemplate string
	SegmentID       string
	AudienceSize    int
	Status          string
	Now             time.Time
}

// CampaignDelivery is the campaign joined with its segment's materialized
// audience, everything the delivery worker needs to run one campaign.
type CampaignDelivery struct {
	ID                  string
	Name                string
	MessageTemplate     string
	SegmentID           string
	AudienceSize        int
	Status              string
	AudienceCustomerIDs []string
}

type Recipient struct {
	ID    string
	Name  string
	Email string
}

type PendingLog struct {
	ID         string
	CustomerID string
	Message    string
}

type LogResult struct {
	CampaignID      string
	CustomerID      string
	Status          string
	VendorMessageID string
	SentAt          time.Time
}

type ReceiptApply struct {
	CampaignID      string
	CustomerID      string
	VendorMessageID string
	Status          string
	Now             time.Time
}

// SegmentationCustomer is the flattened customer view rule evaluation runs
// over at segment creation time.
type SegmentationCustomer struct {
	ID        string
	Name      string
	Email     string
	City      string
	State     string
	Country   string
	CreatedAt time.Time
	Orders    []SegmentationOrder
}

type SegmentationOrder struct {
	TotalAmount int64
	CreatedAt   time.Time
}
