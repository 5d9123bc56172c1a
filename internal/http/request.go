package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ledgerd/internal/core"
	"ledgerd/internal/storage"
)

// errBadRequest marks malformed client input (bad JSON, unparseable query
// parameters). Wrapped errors carry the specific field.
var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON parses the request body into dst, rejecting unknown fields and
// oversized payloads.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// amountField accepts a monetary amount as either a JSON string ("12.34") or
// a bare number (12.34) and normalizes it to cents.
type amountField struct {
	Cents int64
	Set   bool
}

func (a *amountField) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return err
	}
	a.Cents = cents
	a.Set = true
	return nil
}

// dateField accepts dates as "2006-01-02" or RFC 3339 timestamps.
type dateField struct {
	Time time.Time
	Set  bool
}

func (d *dateField) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	unquoted, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("date must be a string: %v", s)
	}
	t, err := parseDate(unquoted)
	if err != nil {
		return err
	}
	d.Time = t
	d.Set = true
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseTransactionQuery extracts the filter and pagination from a list
// request. Unknown sort keys fall back to the default inside storage.
func parseTransactionQuery(query url.Values) (storage.TransactionFilter, storage.ListOptions, error) {
	var filter storage.TransactionFilter
	var opts storage.ListOptions

	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			return filter, opts, core.ErrInvalidType
		}
		filter.Type = t
	}
	filter.CategoryID = strings.TrimSpace(query.Get("category"))
	filter.Search = strings.TrimSpace(query.Get("search"))

	var err error
	if filter.DateFrom, err = parseDateRangeParam(query, "startDate", "dateFrom"); err != nil {
		return filter, opts, err
	}
	if filter.DateTo, err = parseDateRangeParam(query, "endDate", "dateTo"); err != nil {
		return filter, opts, err
	}

	if opts.Page, err = parseIntParam(query, "page"); err != nil {
		return filter, opts, err
	}
	if opts.Limit, err = parseIntParam(query, "limit"); err != nil {
		return filter, opts, err
	}
	opts.SortBy = strings.TrimSpace(query.Get("sortBy"))
	opts.SortOrder = strings.TrimSpace(query.Get("sortOrder"))

	return filter, opts, nil
}

// parseDateRangeParam reads a date bound that goes by two names: the route's
// own ("startDate"/"endDate") and the older "dateFrom"/"dateTo" pair.
func parseDateRangeParam(query url.Values, key, alias string) (time.Time, error) {
	t, err := parseDateParam(query, key)
	if err != nil || !t.IsZero() {
		return t, err
	}
	return parseDateParam(query, alias)
}

func parseDateParam(query url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := parseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return t, nil
}

func parseIntParam(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, key)
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
