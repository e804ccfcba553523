// Package translate talks to DeepL, either directly with a server-held key
// or through the translation proxy endpoint.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTarget is used when a request names no target language.
const DefaultTarget = "IT"

var ErrNoCredential = errors.New("DeepL API key not configured")

// Translator translates text into targetLang.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (*Result, error)
}

// Result is the proxy's response body.
type Result struct {
	TranslatedText     string `json:"translatedText"`
	DetectedSourceLang string `json:"detectedSourceLang,omitempty"`
}

// UpstreamError carries a non-2xx status from the translation service.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("DeepL API error: %d", e.Status)
}

// DeepL calls the DeepL v2 translate endpoint.
type DeepL struct {
	key    string
	url    string
	client *http.Client
}

func NewDeepL(key, endpoint string, timeout time.Duration) *DeepL {
	return &DeepL{key: key, url: endpoint, client: &http.Client{Timeout: timeout}}
}

type deeplResponse struct {
	Translations []struct {
		Text                   string `json:"text"`
		DetectedSourceLanguage string `json:"detected_source_language"`
	} `json:"translations"`
}

func (d *DeepL) Translate(ctx context.Context, text, targetLang string) (*Result, error) {
	if d.key == "" {
		return nil, ErrNoCredential
	}
	if targetLang == "" {
		targetLang = DefaultTarget
	}
	form := url.Values{"text": {text}, "target_lang": {targetLang}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.key)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepl request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	var out deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("deepl decode: %w", err)
	}
	res := &Result{TranslatedText: text}
	if len(out.Translations) > 0 {
		if out.Translations[0].Text != "" {
			res.TranslatedText = out.Translations[0].Text
		}
		res.DetectedSourceLang = out.Translations[0].DetectedSourceLanguage
	}
	return res, nil
}

// ProxyClient calls a remote translation proxy speaking the proxy's JSON contract.
type ProxyClient struct {
	url    string
	key    string
	client *http.Client
}

func NewProxyClient(endpoint, key string, timeout time.Duration) *ProxyClient {
	return &ProxyClient{url: endpoint, key: key, client: &http.Client{Timeout: timeout}}
}

func (p *ProxyClient) Translate(ctx context.Context, text, targetLang string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"text": text, "target_lang": targetLang})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.key != "" {
		req.Header.Set("Authorization", "Bearer "+p.key)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate proxy request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(b)}
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("translate proxy decode: %w", err)
	}
	return &out, nil
}
