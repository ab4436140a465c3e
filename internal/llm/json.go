package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences снимает ```json ... ``` вокруг ответа, если модель его добавила.
func StripCodeFences(s string) string {
	text := strings.TrimSpace(s)
	if strings.HasPrefix(text, "```") {
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// InvokeJSON - структурированный вызов: текст ответа должен быть JSON-объектом,
// который раскладывается в out.
func InvokeJSON(ctx context.Context, c Client, req Request, out any) error {
	raw, err := c.Invoke(ctx, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(StripCodeFences(raw)), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidJSON, c.Name(), err)
	}
	return nil
}
