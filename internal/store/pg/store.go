package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"minicrm/internal/domain"
	"minicrm/internal/store"
)

const defaultTxTimeout = 10 * time.Second

type Store struct {
	DB *pgxpool.Pool

	// upper bound for one write; zero means defaultTxTimeout
	TxTimeout time.Duration
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// opCtx bounds one write operation. Queue handlers redrive on error, so a
// hung transaction must fail fast instead of holding its connection.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.TxTimeout
	if d <= 0 {
		d = defaultTxTimeout
	}
	return context.WithTimeout(ctx, d)
}

// UpsertCustomerBatch writes one ingestion batch atomically: customers first,
// then their addresses. Both inserts skip rows that already exist, so
// redelivering the same batch is a no-op.
func (s *Store) UpsertCustomerBatch(ctx context.Context, customers []store.CustomerUpsert) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin customer batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, c := range customers {
		b.Queue(`
			INSERT INTO customers (id, name, email, phone, created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, c.Name, c.Email, c.Phone, c.CreatedAt)
	}
	for _, c := range customers {
		if c.Address == nil {
			continue
		}
		b.Queue(`
			INSERT INTO addresses (customer_id, street, city, state, zip_code, country)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (customer_id) DO NOTHING
		`, c.ID, c.Address.Street, c.Address.City, c.Address.State, c.Address.ZipCode, c.Address.Country)
	}

	if err := sendBatch(ctx, tx, b); err != nil {
		return fmt.Errorf("customer batch: %w", err)
	}
	return tx.Commit(ctx)
}

// UpsertOrderBatch writes one order batch atomically. Inside the transaction
// it resolves which referenced customers exist, drops orders pointing at
// unknown customers (per-record skip, not a batch failure), then inserts the
// surviving orders and their flattened items, both skip-on-conflict.
func (s *Store) UpsertOrderBatch(ctx context.Context, orders []store.OrderUpsert) (store.OrderBatchResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return store.OrderBatchResult{}, fmt.Errorf("begin order batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(orders))
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		if !seen[o.CustomerID] {
			seen[o.CustomerID] = true
			ids = append(ids, o.CustomerID)
		}
	}

	rows, err := tx.Query(ctx, `SELECT id FROM customers WHERE id = ANY($1)`, ids)
	if err != nil {
		return store.OrderBatchResult{}, fmt.Errorf("resolve customers: %w", err)
	}
	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return store.OrderBatchResult{}, fmt.Errorf("scan customer id: %w", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return store.OrderBatchResult{}, fmt.Errorf("resolve customers: %w", err)
	}

	valid := orders[:0:0]
	for _, o := range orders {
		if existing[o.CustomerID] {
			valid = append(valid, o)
		}
	}
	res := store.OrderBatchResult{Persisted: len(valid), Skipped: len(orders) - len(valid)}

	if len(valid) == 0 {
		return res, tx.Commit(ctx)
	}

	b := &pgx.Batch{}
	for _, o := range valid {
		b.Queue(`
			INSERT INTO orders (id, customer_id, total_amount, currency, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id) DO NOTHING
		`, o.ID, o.CustomerID, o.TotalAmount, o.Currency, o.Status, o.CreatedAt)
	}
	for _, o := range valid {
		for _, it := range o.Items {
			b.Queue(`
				INSERT INTO items (id, order_id, product_id, name, price, quantity, total)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				ON CONFLICT (id) DO NOTHING
			`, it.ID, o.ID, it.ProductID, it.Name, it.Price, it.Quantity, it.Total)
		}
	}

	if err := sendBatch(ctx, tx, b); err != nil {
		return store.OrderBatchResult{}, fmt.Errorf("order batch: %w", err)
	}
	return res, tx.Commit(ctx)
}

func (s *Store) CreateSegment(ctx context.Context, in store.SegmentCreate) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.DB.Exec(ctx, `
		INSERT INTO segments (id, name, rules, audience_customer_ids, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, in.ID, in.Name, in.RulesJSON, in.AudienceCustomerIDs, in.Now)
	return err
}

func (s *Store) CreateCampaign(ctx context.Context, in store.CampaignCreate) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaigns (id, name, message_template, segment_id, audience_size, sent_count, failed_count, status, created_at)
		VALUES ($1,$2,$3,$4,$5,0,0,$6,$7)
	`, in.ID, in.Name, in.MessageTemplate, in.SegmentID, in.AudienceSize, in.Status, in.Now)
	return err
}

func (s *Store) GetCampaignForDelivery(ctx context.Context, campaignID string) (store.CampaignDelivery, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT c.id, c.name, c.message_template, c.segment_id, c.audience_size, c.status,
		       COALESCE(sg.audience_customer_ids, '{}')
		FROM campaigns c
		JOIN segments sg ON sg.id = c.segment_id
		WHERE c.id = $1
	`, campaignID)

	var out store.CampaignDelivery
	err := row.Scan(&out.ID, &out.Name, &out.MessageTemplate, &out.SegmentID,
		&out.AudienceSize, &out.Status, &out.AudienceCustomerIDs)
	if err == pgx.ErrNoRows {
		return store.CampaignDelivery{}, false, nil
	}
	if err != nil {
		return store.CampaignDelivery{}, false, err
	}
	return out, true, nil
}

func (s *Store) GetRecipients(ctx context.Context, customerIDs []string) ([]store.Recipient, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, email FROM customers WHERE id = ANY($1)
	`, customerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Recipient
	for rows.Next() {
		var r store.Recipient
		if err := rows.Scan(&r.ID, &r.Name, &r.Email); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertPendingLogs creates one PENDING log per recipient. The
// (campaign_id, customer_id) pair is unique; replays of a campaign batch skip
// rows that already exist instead of duplicating send attempts.
func (s *Store) InsertPendingLogs(ctx context.Context, campaignID string, logs []store.PendingLog) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin pending logs: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, l := range logs {
		b.Queue(`
			INSERT INTO communication_logs (id, campaign_id, customer_id, status, personalized_message, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,now(),now())
			ON CONFLICT (campaign_id, customer_id) DO NOTHING
		`, l.ID, campaignID, l.CustomerID, string(domain.LogPending), l.Message)
	}
	if err := sendBatch(ctx, tx, b); err != nil {
		return fmt.Errorf("pending logs: %w", err)
	}
	return tx.Commit(ctx)
}

// TerminalLogStatuses returns, for the given customers, the statuses of log
// rows that already reached SENT or FAILED. The delivery worker uses this to
// resume a replayed campaign job without double-sending.
func (s *Store) TerminalLogStatuses(ctx context.Context, campaignID string, customerIDs []string) (map[string]domain.LogStatus, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT customer_id, status FROM communication_logs
		WHERE campaign_id = $1 AND customer_id = ANY($2) AND status IN ('SENT','FAILED')
	`, campaignID, customerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.LogStatus)
	for rows.Next() {
		var id, st string
		if err := rows.Scan(&id, &st); err != nil {
			return nil, err
		}
		out[id] = domain.LogStatus(st)
	}
	return out, rows.Err()
}

func (s *Store) MarkLogResult(ctx context.Context, in store.LogResult) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.DB.Exec(ctx, `
		UPDATE communication_logs
		SET status=$3, sent_at=$4, vendor_message_id=$5, delivery_receipt_status=$3, updated_at=$4
		WHERE campaign_id=$1 AND customer_id=$2
	`, in.CampaignID, in.CustomerID, in.Status, in.SentAt, in.VendorMessageID)
	return err
}

// FinalizeCampaign sets the aggregate counters and the terminal status in one
// atomic update.
func (s *Store) FinalizeCampaign(ctx context.Context, campaignID string, sent, failed int) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET sent_count=$2, failed_count=$3, status=$4 WHERE id=$1
	`, campaignID, sent, failed, string(domain.CampaignCompleted))
	return err
}

// ApplyReceipt records an external delivery receipt against exactly the
// (campaign, customer, vendor message) triple it names. Campaign aggregates
// are left untouched.
func (s *Store) ApplyReceipt(ctx context.Context, in store.ReceiptApply) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ct, err := s.DB.Exec(ctx, `
		UPDATE communication_logs
		SET delivery_receipt_status=$4, updated_at=$5
		WHERE campaign_id=$1 AND customer_id=$2 AND vendor_message_id=$3
	`, in.CampaignID, in.CustomerID, in.VendorMessageID, in.Status, in.Now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignID string) (domain.Campaign, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, name, message_template, segment_id, audience_size, sent_count, failed_count, status, created_at
		FROM campaigns WHERE id=$1
	`, campaignID)

	var c domain.Campaign
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.MessageTemplate, &c.SegmentID,
		&c.AudienceSize, &c.SentCount, &c.FailedCount, &status, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.Campaign{}, false, nil
	}
	if err != nil {
		return domain.Campaign{}, false, err
	}
	c.Status = domain.CampaignStatus(status)
	return c, true, nil
}

func (s *Store) ListCampaignLogs(ctx context.Context, campaignID string) ([]domain.CommunicationLog, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, campaign_id, customer_id, status, personalized_message,
		       sent_at, COALESCE(vendor_message_id,''), COALESCE(delivery_receipt_status,''),
		       created_at, updated_at
		FROM communication_logs WHERE campaign_id=$1 ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CommunicationLog
	for rows.Next() {
		var l domain.CommunicationLog
		var status string
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.CustomerID, &status, &l.PersonalizedMessage,
			&l.SentAt, &l.VendorMessageID, &l.DeliveryReceiptStatus, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Status = domain.LogStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListCustomersForSegmentation loads every customer with address fields and
// order facts, the inputs rule evaluation needs. Audience materialization is
// a full scan today; it runs once per campaign creation.
func (s *Store) ListCustomersForSegmentation(ctx context.Context) ([]store.SegmentationCustomer, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT c.id, c.name, c.email, c.created_at,
		       COALESCE(a.city,''), COALESCE(a.state,''), COALESCE(a.country,'')
		FROM customers c
		LEFT JOIN addresses a ON a.customer_id = c.id
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	var customers []store.SegmentationCustomer
	index := make(map[string]int)
	for rows.Next() {
		var c store.SegmentationCustomer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt, &c.City, &c.State, &c.Country); err != nil {
			rows.Close()
			return nil, err
		}
		index[c.ID] = len(customers)
		customers = append(customers, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orderRows, err := s.DB.Query(ctx, `SELECT customer_id, total_amount, created_at FROM orders`)
	if err != nil {
		return nil, err
	}
	defer orderRows.Close()
	for orderRows.Next() {
		var customerID string
		var o store.SegmentationOrder
		if err := orderRows.Scan(&customerID, &o.TotalAmount, &o.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[customerID]; ok {
			customers[i].Orders = append(customers[i].Orders, o)
		}
	}
	return customers, orderRows.Err()
}

// sendBatch runs every queued statement and surfaces the first error. The
// batch results must be drained and closed before the caller can commit.
func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	br := tx.SendBatch(ctx, b)
	var first error
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil && first == nil {
			first = err
		}
	}
	if err := br.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
