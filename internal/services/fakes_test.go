package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"ledgerd/internal/core"
	"ledgerd/internal/storage"
)

// fakeRepo is an in-memory stand-in for the SQLite repository, implementing
// the repository interfaces the services consume.
type fakeRepo struct {
	users        map[string]core.User
	categories   map[string]core.Category
	transactions map[string]core.Transaction

	failCreateTransaction error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:        make(map[string]core.User),
		categories:   make(map[string]core.Category),
		transactions: make(map[string]core.Transaction),
	}
}

func (f *fakeRepo) CreateUser(_ context.Context, u core.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return core.ErrEmailTaken
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepo) GetUserByID(_ context.Context, id string) (*core.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &u, nil
}

func (f *fakeRepo) CreateCategory(_ context.Context, c core.Category) error {
	for _, existing := range f.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name && existing.Type == c.Type {
			return core.ErrDuplicateCategory
		}
	}
	f.categories[c.ID] = c
	return nil
}

func (f *fakeRepo) GetCategory(_ context.Context, userID, id string) (*core.Category, error) {
	c, ok := f.categories[id]
	if !ok || c.UserID != userID {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

func (f *fakeRepo) ListCategories(_ context.Context, userID string, filter storage.CategoryFilter) ([]core.Category, error) {
	var out []core.Category
	for _, c := range f.categories {
		if c.UserID != userID {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Active != nil && c.IsActive != *filter.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepo) UpdateCategory(_ context.Context, c core.Category) error {
	existing, ok := f.categories[c.ID]
	if !ok || existing.UserID != c.UserID {
		return core.ErrNotFound
	}
	f.categories[c.ID] = c
	return nil
}

func (f *fakeRepo) DeleteCategory(ctx context.Context, userID, id string) error {
	c, ok := f.categories[id]
	if !ok || c.UserID != userID {
		return core.ErrNotFound
	}
	count, _ := f.CountTransactionsByCategory(ctx, userID, id)
	if count > 0 {
		return core.ErrCategoryInUse
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeRepo) CountTransactionsByCategory(_ context.Context, userID, categoryID string) (int64, error) {
	var count int64
	for _, t := range f.transactions {
		if t.UserID == userID && t.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CreateTransaction(_ context.Context, t core.Transaction) error {
	if f.failCreateTransaction != nil {
		return f.failCreateTransaction
	}
	cat, ok := f.categories[t.CategoryID]
	if !ok || cat.UserID != t.UserID {
		return core.ErrCategoryNotFound
	}
	if cat.Type != t.Type {
		return core.ErrTypeMismatch
	}
	f.transactions[t.ID] = t
	return nil
}

func (f *fakeRepo) GetTransaction(_ context.Context, userID, id string) (*core.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok || t.UserID != userID {
		return nil, core.ErrNotFound
	}
	return &t, nil
}

func (f *fakeRepo) UpdateTransaction(_ context.Context, t core.Transaction) error {
	existing, ok := f.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return core.ErrNotFound
	}
	cat, ok := f.categories[t.CategoryID]
	if !ok || cat.UserID != t.UserID {
		return core.ErrCategoryNotFound
	}
	if cat.Type != t.Type {
		return core.ErrTypeMismatch
	}
	f.transactions[t.ID] = t
	return nil
}

func (f *fakeRepo) DeleteTransaction(_ context.Context, userID, id string) error {
	t, ok := f.transactions[id]
	if !ok || t.UserID != userID {
		return core.ErrNotFound
	}
	delete(f.transactions, id)
	return nil
}

func (f *fakeRepo) matching(userID string, filter storage.TransactionFilter) []core.Transaction {
	var out []core.Transaction
	for _, t := range f.transactions {
		if t.UserID != userID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.CategoryID != "" && t.CategoryID != filter.CategoryID {
			continue
		}
		if !filter.DateFrom.IsZero() && t.Date.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && t.Date.After(filter.DateTo) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (f *fakeRepo) ListTransactions(_ context.Context, userID string, filter storage.TransactionFilter, opts storage.ListOptions) ([]core.Transaction, int64, error) {
	all := f.matching(userID, filter)
	total := int64(len(all))

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeRepo) ListAllTransactions(_ context.Context, userID string, filter storage.TransactionFilter) ([]core.Transaction, error) {
	return f.matching(userID, filter), nil
}

func (f *fakeRepo) SummarizeTransactions(_ context.Context, userID string, filter storage.TransactionFilter) (core.Totals, error) {
	return core.Summarize(f.matching(userID, filter), core.SummaryFilter{}), nil
}

func (f *fakeRepo) ListRecurringTemplates(_ context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.transactions {
		if t.IsRecurring {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) UpdateLastRecurred(_ context.Context, id string, at time.Time) error {
	t, ok := f.transactions[id]
	if !ok {
		return core.ErrNotFound
	}
	t.LastRecurredAt = at
	f.transactions[id] = t
	return nil
}

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	ID    string
	Event string
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, id, event string) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{ID: id, Event: event})
	return nil
}
