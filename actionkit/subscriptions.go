package actionkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SubscribedLists fetches the canonical ids of every list the user
// currently belongs to. Each subscription embeds its list as a reference
// path; the id segment is pulled out of that path and then re-fetched from
// the list endpoint, since the embedded id may not match the canonical id
// field's format. An empty user id yields an empty set with no calls.
func (c *Client) SubscribedLists(ctx context.Context, userID string) ([]int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	objects, err := c.collectPages(ctx, "subscription/", "?user="+userID+"&_limit=100")
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, raw := range objects {
		var sub struct {
			List string `json:"list"`
		}
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		ref, err := trailingPathSegment(sub.List)
		if err != nil {
			return nil, fmt.Errorf("subscription list reference %q: %w", sub.List, err)
		}
		resp, err := c.Do(ctx, http.MethodGet, "list/"+ref+"/", nil, nil)
		if err != nil {
			return nil, err
		}
		var entry ListEntry
		if err := resp.Decode(&entry); err != nil {
			return nil, err
		}
		ids = append(ids, entry.ID)
	}
	return ids, nil
}

// trailingPathSegment extracts the identifier from a reference path like
// "/rest/v1/list/42/" (the segment before the trailing slash).
func trailingPathSegment(ref string) (string, error) {
	parts := strings.Split(ref, "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("reference has no path segments")
	}
	seg := parts[len(parts)-2]
	if strings.TrimSpace(seg) == "" {
		return "", fmt.Errorf("reference has an empty id segment")
	}
	return seg, nil
}
