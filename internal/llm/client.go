package llm

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"
)

// Client calls an OpenAI-style chat-completions endpoint and returns the
// first choice's content.
type Client struct {
    httpClient *http.Client
    model      string
    baseURL    string
    apiKey     string
}

func New(httpClient *http.Client, model, baseURL, apiKey string) *Client {
    if httpClient == nil {
        httpClient = &http.Client{Timeout: 30 * time.Second}
    }
    return &Client{httpClient: httpClient, model: model, baseURL: baseURL, apiKey: apiKey}
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
    endpoint := strings.TrimRight(c.baseURL, "/") + "/v1/chat/completions"
    payload := map[string]interface{}{
        "model":       c.model,
        "temperature": 0.2,
        "response_format": map[string]string{
            "type": "json_object",
        },
        "messages": []map[string]string{
            {"role": "system", "content": systemPrompt},
            {"role": "user", "content": userPrompt},
        },
    }
    buf, _ := json.Marshal(payload)

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
    if err != nil {
        return "", err
    }
    req.Header.Set("Content-Type", "application/json")
    if strings.TrimSpace(c.apiKey) != "" {
        req.Header.Set("Authorization", "Bearer "+c.apiKey)
    }

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return "", err
    }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        body, _ := io.ReadAll(resp.Body)
        return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, string(body))
    }
    var wrapper struct {
        Choices []struct {
            Message struct {
                Content string `json:"content"`
            } `json:"message"`
        } `json:"choices"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
        return "", err
    }
    if len(wrapper.Choices) == 0 {
        return "", errors.New("empty llm response")
    }
    return strings.TrimSpace(wrapper.Choices[0].Message.Content), nil
}

// ExtractJSONObject returns the first balanced JSON object in input, or ""
// when none exists. Models occasionally wrap their JSON in prose or fences.
func ExtractJSONObject(input string) string {
    start := strings.Index(input, "{")
    if start == -1 {
        return ""
    }
    depth := 0
    inString := false
    escaped := false
    for i := start; i < len(input); i++ {
        ch := input[i]
        if inString {
            if escaped {
                escaped = false
                continue
            }
            if ch == '\\' {
                escaped = true
                continue
            }
            if ch == '"' {
                inString = false
            }
            continue
        }
        switch ch {
        case '"':
            inString = true
        case '{':
            depth++
        case '}':
            depth--
            if depth == 0 {
                return input[start : i+1]
            }
        }
    }
    return ""
}
