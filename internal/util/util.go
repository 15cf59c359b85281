package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a prefixed, sortable ULID (nice for DB indexes and dashboards).
// Used for entities minted by this service: segments, campaigns, communication logs.
func NewID(prefix string) string {
	t := time.Now().UTC()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// NewRecordID fills in ids for ingested records that arrive without one.
// These stay UUIDs so client-supplied and generated ids share one format.
func NewRecordID() string {
	return uuid.NewString()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

const nameFallback = "Customer"

// PersonalizeMessage substitutes {{name}} in a campaign template. An empty
// name falls back to a neutral greeting rather than rendering a hole.
func PersonalizeMessage(template, name string) string {
	if strings.TrimSpace(name) == "" {
		name = nameFallback
	}
	return strings.ReplaceAll(template, "{{name}}", name)
}

// VendorMessageID is the synthetic id the stub vendor assigns to a send.
// Deterministic per (campaign, customer) so replays reuse the same id.
func VendorMessageID(campaignID, customerID string) string {
	return "msg_" + campaignID + "_" + customerID
}
