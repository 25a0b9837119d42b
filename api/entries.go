package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const entriesPath = "/mood/entries"

// Entry is one mood journal entry. DeletedAt is set on soft-deleted entries.
type Entry struct {
	ID        uint64     `json:"id"`
	Feeling   string     `json:"feeling"`
	UserID    uint64     `json:"user_id"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (e Entry) Deleted() bool {
	return e.DeletedAt != nil
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
}

// EditEntryRequest creates or replaces an entry. Feeling is required.
type EditEntryRequest struct {
	Feeling string `json:"feeling"`
	Note    string `json:"note,omitempty"`
}

func (r EditEntryRequest) Validate() error {
	if strings.TrimSpace(r.Feeling) == "" {
		return validationError("feeling is required")
	}
	return nil
}

// ListOptions pages through entries. Deleted selects the trash instead of
// live entries.
type ListOptions struct {
	Limit   int
	Offset  int
	Deleted bool
}

func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 10}
}

func (o ListOptions) values() url.Values {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(o.Limit))
	q.Set("offset", strconv.Itoa(o.Offset))
	q.Set("deleted", strconv.FormatBool(o.Deleted))
	return q
}

// EntryAPI manages the caller's mood entries.
type EntryAPI struct {
	c *Client
}

func NewEntryAPI(c *Client) *EntryAPI {
	return &EntryAPI{c: c}
}

func (a *EntryAPI) List(ctx context.Context, opts ListOptions) (Page[Entry], error) {
	var page Page[Entry]
	if err := a.c.DoJSON(ctx, "list entries", http.MethodGet, entriesPath, opts.values(), nil, &page); err != nil {
		return Page[Entry]{}, err
	}
	if page.Items == nil {
		page.Items = []Entry{}
	}
	return page, nil
}

func (a *EntryAPI) Get(ctx context.Context, id uint64) (Entry, error) {
	var e Entry
	err := a.c.DoJSON(ctx, "get entry", http.MethodGet, entryPath(id), nil, nil, &e)
	return e, err
}

func (a *EntryAPI) Create(ctx context.Context, req EditEntryRequest) (Entry, error) {
	if err := req.Validate(); err != nil {
		return Entry{}, err
	}
	var e Entry
	err := a.c.DoJSON(ctx, "create entry", http.MethodPost, entriesPath, nil, req, &e)
	return e, err
}

func (a *EntryAPI) Update(ctx context.Context, id uint64, req EditEntryRequest) (Entry, error) {
	if err := req.Validate(); err != nil {
		return Entry{}, err
	}
	var e Entry
	err := a.c.DoJSON(ctx, "update entry", http.MethodPut, entryPath(id), nil, req, &e)
	return e, err
}

// Delete soft-deletes an entry and returns it with DeletedAt set.
func (a *EntryAPI) Delete(ctx context.Context, id uint64) (Entry, error) {
	var e Entry
	err := a.c.DoJSON(ctx, "delete entry", http.MethodDelete, entryPath(id), nil, nil, &e)
	return e, err
}

// Restore undoes a soft delete.
func (a *EntryAPI) Restore(ctx context.Context, id uint64) (Entry, error) {
	var e Entry
	err := a.c.DoJSON(ctx, "restore entry", http.MethodPost, entryPath(id)+"/restore", nil, struct{}{}, &e)
	return e, err
}

func entryPath(id uint64) string {
	return entriesPath + "/" + strconv.FormatUint(id, 10)
}
