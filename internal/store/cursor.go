package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// cursorPayload is the decoded form of a continuation cursor: the order-by
// value and document key of the last item on the previous page.
type cursorPayload struct {
	V string `json:"v"`
	K string `json:"k"`
}

// EncodeCursor builds an opaque continuation cursor from the last returned
// document's order value and key. Callers pass it back via
// QueryOptions.StartAfter verbatim.
func EncodeCursor(orderValue, key string) string {
	data, _ := json.Marshal(cursorPayload{V: orderValue, K: key})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(cursor string) (orderValue, key string, err error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", fmt.Errorf("malformed cursor: %w", err)
	}
	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", fmt.Errorf("malformed cursor: %w", err)
	}
	return p.V, p.K, nil
}
