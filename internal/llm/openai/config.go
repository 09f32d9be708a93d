package openai

import (
	"net/http"
	"strings"
	"time"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

// Config holds chat-completions settings for either provider.
type Config struct {
	// Standard OpenAI
	APIKey  string
	BaseURL string // default https://api.openai.com/v1
	Model   string

	// Azure OpenAI; when AzureAPIKey is set the Azure endpoint wins.
	AzureAPIKey     string
	AzureBaseURL    string
	AzureDeployment string
	AzureAPIVersion string

	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
	MaxTextChars int
}

// ConfigFromLLM maps the application LLM settings onto a client config.
func ConfigFromLLM(cfg common.LLMConfig) Config {
	return Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		AzureAPIKey:     cfg.AzureAPIKey,
		AzureBaseURL:    cfg.AzureBaseURL,
		AzureDeployment: cfg.AzureDeployment,
		AzureAPIVersion: cfg.AzureAPIVersion,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		Timeout:         cfg.Timeout,
	}
}

func (c Config) useAzure() bool { return c.AzureAPIKey != "" }

// endpoint returns the chat-completions URL and auth headers for the
// configured provider.
func (c Config) endpoint() (string, map[string]string) {
	if c.useAzure() {
		url := strings.TrimRight(c.AzureBaseURL, "/") +
			"/openai/deployments/" + c.AzureDeployment +
			"/chat/completions?api-version=" + c.AzureAPIVersion
		return url, map[string]string{"api-key": c.AzureAPIKey}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	return url, map[string]string{"Authorization": "Bearer " + c.APIKey}
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// model returns the model identifier sent in the request body. Azure routes
// by deployment name.
func (c Config) model() string {
	if c.useAzure() {
		return c.AzureDeployment
	}
	return c.Model
}
