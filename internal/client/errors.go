package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxPlainMessage = 300

// serverMessage extracts the human-readable reason from an error response body.
// JSON bodies yield their "error" (or "message") field verbatim, HTML error pages
// from gateways yield their heading, anything else its trimmed text.
func serverMessage(status int, contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return statusText(status)
	}

	if trimmed[0] == '{' {
		var payload struct {
			Error   json.RawMessage `json:"error"`
			Message string          `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &payload); err == nil {
			if msg := rawErrorText(payload.Error); msg != "" {
				return msg
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
	}

	if strings.Contains(contentType, "html") || trimmed[0] == '<' {
		if msg := htmlMessage(trimmed); msg != "" {
			return msg
		}
		return statusText(status)
	}

	text := string(trimmed)
	if len(text) > maxPlainMessage {
		text = text[:maxPlainMessage]
	}
	return text
}

// rawErrorText accepts "error": "text" as well as "error": {"message": "text"}.
func rawErrorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Message
	}

	return ""
}

func htmlMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	for _, selector := range []string{"h1", "title"} {
		if text := collapseSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}

	text := collapseSpace(doc.Find("body").Text())
	if len(text) > maxPlainMessage {
		text = text[:maxPlainMessage]
	}
	return text
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected response"
}
