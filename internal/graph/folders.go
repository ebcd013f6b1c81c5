package graph

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// wellKnownFolders maps common display names to the well-known folder names
// Graph accepts directly in the mailFolders path, saving a folder listing.
var wellKnownFolders = map[string]string{
	"inbox":         "inbox",
	"sent items":    "sentitems",
	"sentitems":     "sentitems",
	"sent":          "sentitems",
	"drafts":        "drafts",
	"deleted items": "deleteditems",
	"deleteditems":  "deleteditems",
	"junk email":    "junkemail",
	"junkemail":     "junkemail",
	"junk":          "junkemail",
	"archive":       "archive",
	"outbox":        "outbox",
}

// ListFolders returns all mail folders of a mailbox, following nextLink.
func (c *Client) ListFolders(ctx context.Context, user string) ([]Folder, error) {
	params := url.Values{}
	params.Set("$top", "100")
	next := fmt.Sprintf("%s/users/%s/mailFolders?%s", c.base, url.PathEscape(user), params.Encode())

	var out []Folder
	for page := 0; next != "" && page < maxPagesPerQuery; page++ {
		var resp foldersResponse
		if err := c.getJSON(ctx, next, &resp); err != nil {
			return nil, c.wrapQueryErr(user, "", err)
		}
		out = append(out, resp.Value...)
		next = resp.NextLink
	}
	return out, nil
}

// ResolveFolder turns a folder name into something usable in the mailFolders
// path: a well-known name when the alias map covers it, otherwise the folder
// id found by a case-insensitive display-name match against the mailbox's
// folder list. Lookups are cached per (user, name).
func (c *Client) ResolveFolder(ctx context.Context, user, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	key := strings.ToLower(trimmed)

	if alias, ok := wellKnownFolders[key]; ok {
		return alias, nil
	}

	cacheKey := user + "/" + key
	if id, ok := c.folderIDs[cacheKey]; ok {
		return id, nil
	}

	folders, err := c.ListFolders(ctx, user)
	if err != nil {
		return "", err
	}
	for _, f := range folders {
		if strings.EqualFold(f.DisplayName, trimmed) {
			c.folderIDs[cacheKey] = f.ID
			return f.ID, nil
		}
	}

	return "", &QueryError{
		Mailbox: user,
		Folder:  name,
		Message: fmt.Sprintf("folder %q not found in mailbox", trimmed),
	}
}
