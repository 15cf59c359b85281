package sqsqueue

import "encoding/json"

// Job names carried in the envelope. Consumers bound to a queue ignore names
// they do not handle.
const (
	JobPersistentBatch = "persistent-batch"
	JobOrderBatch      = "persistent-order-batch"
	JobProcessCampaign = "process-campaign"
	JobDeliveryReceipt = "delivery-receipt"
)

// Job is the envelope every queue message carries: a job name plus an opaque
// payload the bound worker decodes.
type Job struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

func NewJob(name string, payload any) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{Name: name, Data: data}, nil
}

// CampaignJobPayload is the payload of a process-campaign job.
type CampaignJobPayload struct {
	CampaignID string `json:"campaignId"`
}
