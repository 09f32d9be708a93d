package source

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

// VaultAdapter fetches document renditions from a Veeva-style vault. It owns
// its session: sessions expire server-side, so the adapter re-authenticates
// proactively when the session is within the refresh buffer of expiry.
type VaultAdapter struct {
	cfg        common.VaultConfig
	client     *http.Client
	logger     *slog.Logger
	docNumbers []string

	mu          sync.Mutex
	sessionID   string
	sessionExp  time.Time
	lastRequest time.Time
}

// NewVaultAdapter builds an adapter for one batch of document numbers. A new
// adapter is constructed per request; Close releases the session.
func NewVaultAdapter(cfg common.VaultConfig, docNumbers []string, logger *slog.Logger) *VaultAdapter {
	return &VaultAdapter{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		docNumbers: docNumbers,
	}
}

type vaultAuthResponse struct {
	ResponseStatus string `json:"responseStatus"`
	SessionID      string `json:"sessionId"`
	Errors         []struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"errors"`
}

type vaultQueryResponse struct {
	ResponseStatus string `json:"responseStatus"`
	Data           []struct {
		ID           int `json:"id"`
		MajorVersion int `json:"major_version_number__v"`
		MinorVersion int `json:"minor_version_number__v"`
	} `json:"data"`
}

func (a *VaultAdapter) apiURL(path string) string {
	return fmt.Sprintf("%s/api/%s%s", strings.TrimRight(a.cfg.URL, "/"), a.cfg.APIVersion, path)
}

// session returns a session id valid for at least the refresh buffer,
// authenticating or re-authenticating as needed.
func (a *VaultAdapter) session(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessionID != "" && time.Until(a.sessionExp) > a.cfg.RefreshBuffer {
		return a.sessionID, nil
	}

	form := url.Values{}
	form.Set("username", a.cfg.Username)
	form.Set("password", a.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL("/auth"),
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", &common.VaultAPIError{Op: "auth", Message: "building auth request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &common.VaultAPIError{Op: "auth", Message: "auth request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &common.VaultAPIError{Op: "auth", StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	var auth vaultAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", &common.VaultAPIError{Op: "auth", Message: "decoding auth response", Cause: err}
	}
	if auth.ResponseStatus != "SUCCESS" || auth.SessionID == "" {
		msg := "authentication rejected"
		if len(auth.Errors) > 0 {
			msg = auth.Errors[0].Message
		}
		return "", &common.VaultAPIError{Op: "auth", Message: msg}
	}

	a.sessionID = auth.SessionID
	a.sessionExp = time.Now().Add(a.cfg.SessionTTL)
	a.logger.Info("source.vault.session_established", "expires_in", a.cfg.SessionTTL)
	return a.sessionID, nil
}

// ListDocuments resolves each requested document number to its vault id via
// VQL. Unknown numbers are skipped here; Fetch reports them per document.
// The fingerprint is derived from the request itself, not from vault
// metadata: same numbers, same cache key.
func (a *VaultAdapter) ListDocuments(ctx context.Context) ([]Handle, FingerprintSet, error) {
	sid, err := a.session(ctx)
	if err != nil {
		return nil, nil, err
	}

	handles := make([]Handle, 0, len(a.docNumbers))
	for _, num := range a.docNumbers {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		id, err := a.resolveNumber(ctx, sid, num)
		if err != nil {
			a.logger.Warn("source.vault.resolve_failed", "document_number", num, "error", err)
			// Keep the handle with an empty ID; Fetch surfaces the failure
			// so it lands in the batch's failed list instead of silently
			// shrinking it.
			handles = append(handles, Handle{ID: "", Name: num + ".pdf"})
			continue
		}
		handles = append(handles, Handle{ID: id, Name: num + ".pdf"})
	}

	return handles, VaultFingerprint(a.docNumbers), nil
}

// VaultFingerprint derives the cache fingerprint set for a vault request:
// one sha256 over the sorted, comma-joined document numbers.
func VaultFingerprint(docNumbers []string) FingerprintSet {
	sorted := make([]string, len(docNumbers))
	copy(sorted, docNumbers)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return FingerprintSet{fmt.Sprintf("vault:%x", sum)}
}

func (a *VaultAdapter) resolveNumber(ctx context.Context, sid, num string) (string, error) {
	vql := fmt.Sprintf("select id, major_version_number__v, minor_version_number__v from documents where document_number__v = '%s'",
		strings.ReplaceAll(num, "'", ""))

	form := url.Values{}
	form.Set("q", vql)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL("/query"),
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", &common.VaultAPIError{Op: "query", Message: "building query request", Cause: err}
	}
	req.Header.Set("Authorization", sid)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &common.VaultAPIError{Op: "query", Message: "query request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &common.VaultAPIError{Op: "query", StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	var qr vaultQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return "", &common.VaultAPIError{Op: "query", Message: "decoding query response", Cause: err}
	}
	if qr.ResponseStatus != "SUCCESS" || len(qr.Data) == 0 {
		return "", &common.VaultAPIError{Op: "query",
			Message: fmt.Sprintf("document number %s not found", num)}
	}
	return fmt.Sprintf("%d", qr.Data[0].ID), nil
}

// Fetch downloads the viewable rendition of a resolved document. Transient
// statuses (429, 5xx) are retried with linear backoff; a fixed delay is kept
// between consecutive downloads to stay inside the vault's burst limits.
func (a *VaultAdapter) Fetch(ctx context.Context, h Handle) ([]byte, Metadata, error) {
	if h.ID == "" {
		return nil, Metadata{}, &common.VaultAPIError{Op: "download",
			Message: fmt.Sprintf("document %s was not resolved", h.Name)}
	}

	a.throttle(ctx)

	sid, err := a.session(ctx)
	if err != nil {
		return nil, Metadata{}, err
	}

	var lastErr error
	maxAttempts := a.cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, Metadata{}, err
		}

		data, md, retryable, err := a.download(ctx, sid, h)
		if err == nil {
			return data, md, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		a.logger.Warn("source.vault.download_retry",
			"document", h.Name, "attempt", attempt, "error", err)
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return nil, Metadata{}, ctx.Err()
		}
	}
	return nil, Metadata{}, lastErr
}

func (a *VaultAdapter) download(ctx context.Context, sid string, h Handle) ([]byte, Metadata, bool, error) {
	path := fmt.Sprintf("/objects/documents/%s/renditions/viewable_rendition__v", h.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL(path), nil)
	if err != nil {
		return nil, Metadata{}, false, &common.VaultAPIError{Op: "download", Message: "building download request", Cause: err}
	}
	req.Header.Set("Authorization", sid)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Metadata{}, true, &common.VaultAPIError{Op: "download", Message: "download request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, Metadata{}, true, &common.VaultAPIError{Op: "download", StatusCode: resp.StatusCode, Message: "transient vault error"}
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, Metadata{}, false, &common.VaultAPIError{Op: "download", StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Metadata{}, true, &common.VaultAPIError{Op: "download", Message: "reading rendition body", Cause: err}
	}
	return data, Metadata{Size: int64(len(data)), Modified: time.Now()}, false, nil
}

// throttle enforces the configured minimum delay between downloads.
func (a *VaultAdapter) throttle(ctx context.Context) {
	a.mu.Lock()
	wait := a.cfg.RequestDelay - time.Since(a.lastRequest)
	a.lastRequest = time.Now().Add(wait)
	a.mu.Unlock()

	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// Close releases the vault session. Veeva session deletion is best effort;
// sessions also expire server-side.
func (a *VaultAdapter) Close() {
	a.mu.Lock()
	sid := a.sessionID
	a.sessionID = ""
	a.mu.Unlock()
	if sid == "" {
		return
	}

	req, err := http.NewRequest(http.MethodDelete, a.apiURL("/session"), nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", sid)
	if resp, err := a.client.Do(req); err == nil {
		resp.Body.Close()
	}
	a.logger.Debug("source.vault.session_closed")
}
