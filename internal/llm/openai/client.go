package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/internal/llm"
)

// Client implements llm.FieldExtractor against a chat-completions endpoint
// (Azure OpenAI or standard OpenAI).
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: cfg.httpClient(), log: logger}
}

// Extract submits document text and parses the model's JSON payload into a
// BatchRecord. Model-call and parse failures are absorbed: the empty all-TBD
// record is returned with a nil error, so one unreadable response never fails
// the document outright.
func (c *Client) Extract(ctx context.Context, text, filename string) (llm.BatchRecord, error) {
	rid := uuid.New().String()
	start := time.Now()

	truncated := llm.TruncateText(text, c.cfg.MaxTextChars)
	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.model(),
		"file", filename,
		"text_len", len(text),
		"submitted_len", len(truncated),
	)

	body := map[string]any{
		"model":       c.cfg.model(),
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(truncated)},
		},
	}

	url, headers := c.cfg.endpoint()
	raw, status, err := llm.SendJSON(ctx, c.http, url, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "file", filename, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.NewEmptyRecord(filename), nil
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil || len(cc.Choices) == 0 {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "file", filename, "raw_bytes", len(raw), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.NewEmptyRecord(filename), nil
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	rec, err := llm.ParseResponse(content, filename)
	if err != nil {
		c.log.Error("llm.extract.parse_error",
			"req_id", rid, "file", filename, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.NewEmptyRecord(filename), nil
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"file", filename,
		"batch", rec.BatchNumber,
		"date", rec.ManufactureDate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}
