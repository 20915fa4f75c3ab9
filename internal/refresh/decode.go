package refresh

import (
	"encoding/json"

	"github.com/chatcache/chatcache/internal/cachedb"
)

// decodeUserPage decodes one page of the remote users.list endpoint into
// cachedb.User rows, preserving each member's raw JSON document verbatim
// in Doc.
func decodeUserPage(body []byte) ([]cachedb.User, error) {
	var page struct {
		Members []json.RawMessage `json:"members"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}

	out := make([]cachedb.User, 0, len(page.Members))
	for _, raw := range page.Members {
		var shape struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, err
		}
		out = append(out, cachedb.User{ID: shape.ID, Doc: []byte(raw)})
	}
	return out, nil
}

// decodeChannelPage decodes one page of the remote conversations.list
// endpoint into cachedb.Channel rows.
func decodeChannelPage(body []byte) ([]cachedb.Channel, error) {
	var page struct {
		Channels []json.RawMessage `json:"channels"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}

	out := make([]cachedb.Channel, 0, len(page.Channels))
	for _, raw := range page.Channels {
		var shape struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, err
		}
		out = append(out, cachedb.Channel{ID: shape.ID, Doc: []byte(raw)})
	}
	return out, nil
}

// decodeMemberPage decodes one page of the remote conversations.members
// endpoint into a slice of member user IDs.
func decodeMemberPage(body []byte) ([]string, error) {
	var page struct {
		Members []string `json:"members"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	return page.Members, nil
}
