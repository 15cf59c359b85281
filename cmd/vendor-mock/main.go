// vendor-mock is a stand-in for the external message vendor: it accepts
// sends, decides an outcome by configured success rate, and optionally posts
// delivery receipts back to the receipt webhook after a delay.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"

	"minicrm/internal/logging"
	"minicrm/internal/util"
)

type config struct {
	Port        string  `envconfig:"PORT" default:"8081"`
	LogFormat   string  `envconfig:"LOG_FORMAT" default:"json"`
	SuccessRate float64 `envconfig:"MOCK_SUCCESS_RATE" default:"0.9"`
	DelayMs     int     `envconfig:"MOCK_DELAY_MS" default:"0"`

	// When set, every accepted send fires a delivery receipt at this URL.
	ReceiptCallbackURL string `envconfig:"MOCK_RECEIPT_CALLBACK_URL" default:""`
	ReceiptDelayMs     int    `envconfig:"MOCK_RECEIPT_DELAY_MS" default:"500"`
}

type sendRequest struct {
	CampaignID string `json:"campaignId"`
	CustomerID string `json:"customerId"`
	Email      string `json:"email"`
	Body       string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type receiptCallback struct {
	CampaignID      string `json:"campaignId"`
	CustomerID      string `json:"customerId"`
	VendorMessageID string `json:"vendorMessageId"`
	Status          string `json:"status"`
}

type server struct {
	cfg  config
	http *http.Client
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	logging.Init("vendor-mock", cfg.LogFormat)

	s := &server{cfg: cfg, http: &http.Client{Timeout: 5 * time.Second}}

	r := mux.NewRouter()
	r.HandleFunc("/v1/messages", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		_ = srv.Close()
	}()

	slog.Info("vendor-mock listening", "port", cfg.Port,
		"success_rate", cfg.SuccessRate, "receipt_callback", cfg.ReceiptCallbackURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("vendor-mock server failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sendResponse{Status: "FAILED", Message: "invalid json"})
		return
	}
	if req.CampaignID == "" || req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, sendResponse{Status: "FAILED", Message: "campaignId and customerId are required"})
		return
	}

	if s.cfg.DelayMs > 0 {
		time.Sleep(time.Duration(s.cfg.DelayMs) * time.Millisecond)
	}

	status := "FAILED"
	if rand.Float64() < s.cfg.SuccessRate {
		status = "SENT"
	}
	msgID := util.VendorMessageID(req.CampaignID, req.CustomerID)

	slog.Info("mock send", "campaign_id", req.CampaignID, "customer_id", req.CustomerID,
		"status", status)

	if s.cfg.ReceiptCallbackURL != "" && status == "SENT" {
		go s.fireReceipt(receiptCallback{
			CampaignID:      req.CampaignID,
			CustomerID:      req.CustomerID,
			VendorMessageID: msgID,
			Status:          "DELIVERED",
		})
	}

	writeJSON(w, http.StatusOK, sendResponse{MessageID: msgID, Status: status})
}

func (s *server) fireReceipt(cb receiptCallback) {
	time.Sleep(time.Duration(s.cfg.ReceiptDelayMs) * time.Millisecond)

	body, _ := json.Marshal(cb)
	resp, err := s.http.Post(s.cfg.ReceiptCallbackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Error("receipt callback failed", "vendor_message_id", cb.VendorMessageID, "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Error("receipt callback rejected", "vendor_message_id", cb.VendorMessageID,
			"status", resp.StatusCode)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
