package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type APIConfig struct {
	DBDSN       string        `envconfig:"DB_DSN" required:"true"`
	DBTxTimeout time.Duration `envconfig:"DB_TX_TIMEOUT" default:"10s"`
	Port        string        `envconfig:"PORT" default:"8080"`
	LogFormat   string        `envconfig:"LOG_FORMAT" default:"json"`

	MigrationsDir  string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	// how many records go into one queued batch job
	IngestBatchSize int `envconfig:"INGEST_BATCH_SIZE" default:"100"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	CustomerQueueURL   string `envconfig:"CUSTOMER_QUEUE_URL" required:"true"`
	OrderQueueURL      string `envconfig:"ORDER_QUEUE_URL" required:"true"`
	CampaignQueueURL   string `envconfig:"CAMPAIGN_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type WorkerConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// DB pool and per-transaction bound
	DBPoolMaxConns          int32         `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBPoolMinConns          int32         `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	DBPoolMaxConnLifetime   time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime   time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	DBPoolHealthCheckPeriod time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`
	DBTxTimeout             time.Duration `envconfig:"DB_TX_TIMEOUT" default:"10s"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	CustomerQueueURL   string `envconfig:"CUSTOMER_QUEUE_URL" required:"true"`
	OrderQueueURL      string `envconfig:"ORDER_QUEUE_URL" required:"true"`
	CampaignQueueURL   string `envconfig:"CAMPAIGN_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"1"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"120"`

	// Audience pagination inside one campaign job
	DeliveryBatchSize int `envconfig:"DELIVERY_BATCH_SIZE" default:"50"`

	// Delivery channel
	VendorMode        string  `envconfig:"VENDOR_MODE" default:"stub"` // stub | http
	VendorBaseURL     string  `envconfig:"VENDOR_BASE_URL"`
	VendorSuccessRate float64 `envconfig:"VENDOR_SUCCESS_RATE" default:"0.9"`
	VendorRPS         float64 `envconfig:"VENDOR_RPS" default:"25"`
	VendorBurst       int     `envconfig:"VENDOR_BURST" default:"25"`
}

type ReceiptConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	ReceiptQueueURL    string `envconfig:"RECEIPT_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type ReceiptProcessorConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	DBPoolMaxConns          int32         `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBPoolMinConns          int32         `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	DBPoolMaxConnLifetime   time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime   time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	DBPoolHealthCheckPeriod time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`
	DBTxTimeout             time.Duration `envconfig:"DB_TX_TIMEOUT" default:"10s"`

	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	ReceiptQueueURL    string `envconfig:"RECEIPT_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	ProcessorConcurrency int `envconfig:"PROCESSOR_CONCURRENCY" default:"5"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	load(&cfg)
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	load(&cfg)
	return cfg
}

func LoadReceipt() ReceiptConfig {
	var cfg ReceiptConfig
	load(&cfg)
	return cfg
}

func LoadReceiptProcessor() ReceiptProcessorConfig {
	var cfg ReceiptProcessorConfig
	load(&cfg)
	return cfg
}

func load(cfg any) {
	_ = godotenv.Load() // local dev convenience; env always wins
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
}
