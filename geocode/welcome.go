// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// FallbackWelcome is returned whenever the text generation service can't help.
const FallbackWelcome = "Bienvenue à bord !"

const (
	// DefaultGeminiURL is the Generative Language API base endpoint.
	DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is a fast model, a welcome line needs nothing more.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Welcomer writes a short welcome message for a newly registered alumnus.
// It is purely decorative: any problem yields FallbackWelcome.
type Welcomer struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewWelcomer creates a Welcomer. Without an API key it always answers with
// the fallback message and never touches the network.
func NewWelcomer(apiKey, model, endpoint string, httpClient *http.Client) *Welcomer {
	if model == "" {
		model = DefaultGeminiModel
	}

	if endpoint == "" {
		endpoint = DefaultGeminiURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Welcomer{
		apiKey:     apiKey,
		model:      model,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: httpClient,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func welcomePrompt(city, name string) string {
	return fmt.Sprintf(
		"Write a very short, witty welcome message in French for an alumni named %s who has just registered from %s. "+
			"Use a tone that mixes French elegance with a slight Roman/Italian touch (as they are from Lycée Chateaubriand Rome). "+
			"Keep it under 15 words.",
		name, city,
	)
}

// Describe returns a welcome message for name, now living in city.
func (w *Welcomer) Describe(ctx context.Context, city, name string) string {
	if w == nil || w.apiKey == "" {
		return FallbackWelcome
	}

	text, err := w.generate(ctx, welcomePrompt(city, name))
	if err != nil {
		log.Printf("Welcome message generation failed: %v", err)

		return FallbackWelcome
	}

	return text
}

func (w *Welcomer) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent", w.endpoint, url.PathEscape(w.model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	// the key stays out of the URL
	req.Header.Set("x-goog-api-key", w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var sb strings.Builder

	for _, c := range genResp.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}

		if sb.Len() > 0 {
			break
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("gemini returned an empty message")
	}

	return text, nil
}
