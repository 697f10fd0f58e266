package actionkit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type collectionPage struct {
	Objects []json.RawMessage `json:"objects"`
	Meta    struct {
		Next string `json:"next"`
	} `json:"meta"`
}

// collectPages walks a paginated collection endpoint until meta.next comes
// back empty or absent. The continuation token's trailing path segment is
// reused verbatim as the next page's query string.
func (c *Client) collectPages(ctx context.Context, collection, firstQuery string) ([]json.RawMessage, error) {
	next := collection + firstQuery
	var objects []json.RawMessage
	for next != "" {
		resp, err := c.Do(ctx, http.MethodGet, next, nil, nil)
		if err != nil {
			return nil, err
		}
		var page collectionPage
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		objects = append(objects, page.Objects...)
		token := strings.TrimSpace(page.Meta.Next)
		if token == "" {
			next = ""
			continue
		}
		segments := strings.Split(token, "/")
		next = collection + segments[len(segments)-1]
	}
	return objects, nil
}
