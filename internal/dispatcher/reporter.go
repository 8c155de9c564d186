package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ContactSnapshot is what one chat task learned about a creator, pushed back
// to the inner API so the contact record stays current.
type ContactSnapshot struct {
	PlatformCreatorID string `json:"platform_creator_id"`
	Region            string `json:"region"`
	Whatsapp          string `json:"whatsapp,omitempty"`
	Sent              bool   `json:"send"`
	SendTime          string `json:"send_time,omitempty"`
	AccountName       string `json:"account_name,omitempty"`
}

// Reporter pushes task outcomes to the inner API. Both calls are best-effort
// from the worker's point of view; a lost report never fails the chat task.
type Reporter interface {
	IncrementProgress(ctx context.Context, outreachTaskID, operatorID string) error
	SyncCreatorContact(ctx context.Context, operatorID string, snapshot ContactSnapshot) error
}

type InnerAPIConfig struct {
	BaseURL      string
	Token        string
	TokenHeader  string
	ProgressPath string
	CreatorPath  string
	Timeout      time.Duration
}

type InnerAPIReporter struct {
	cfg    InnerAPIConfig
	client *http.Client
	logger *slog.Logger
}

func NewInnerAPIReporter(cfg InnerAPIConfig, logger *slog.Logger) *InnerAPIReporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &InnerAPIReporter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (r *InnerAPIReporter) IncrementProgress(ctx context.Context, outreachTaskID, operatorID string) error {
	if outreachTaskID == "" {
		return nil
	}
	payload := map[string]any{
		"task_id":     outreachTaskID,
		"delta":       1,
		"operator_id": operatorID,
	}
	if operatorID == "" {
		payload["operator_id"] = outreachTaskID
	}
	return r.post(ctx, r.cfg.ProgressPath, payload)
}

func (r *InnerAPIReporter) SyncCreatorContact(ctx context.Context, operatorID string, snapshot ContactSnapshot) error {
	payload := map[string]any{
		"source":      "outreach_chatbot",
		"operator_id": operatorID,
		"rows":        []ContactSnapshot{snapshot},
	}
	return r.post(ctx, r.cfg.CreatorPath, payload)
}

func (r *InnerAPIReporter) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode inner API payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build inner API request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" && r.cfg.TokenHeader != "" {
		req.Header.Set(r.cfg.TokenHeader, r.cfg.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("inner API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("inner API returned %s for %s", resp.Status, path)
	}
	return nil
}
