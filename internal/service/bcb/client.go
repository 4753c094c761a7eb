package bcb

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"EconCast/internal/domain/models"
	drepo "EconCast/internal/domain/repository"
	xhttp "EconCast/pkg/http"
	applogger "EconCast/pkg/logger"
	"EconCast/pkg/util"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the SGS series root.
const DefaultBaseURL = "https://api.bcb.gov.br/dados/serie"

// maxSpanYears is the widest range SGS serves for daily series in one call.
const maxSpanYears = 10

// Series describes one SGS series.
type Series struct {
	Code  int
	Daily bool
	// First is where a full load starts for daily series.
	First time.Time
}

// Catalog maps indicators to their SGS series.
var Catalog = map[models.Indicator]Series{
	models.Selic:      {Code: 11, Daily: true, First: time.Date(1986, 6, 4, 0, 0, 0, 0, time.UTC)},
	models.Cambio:     {Code: 1, Daily: true, First: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
	models.IPCA:       {Code: 433},
	models.Desemprego: {Code: 24369},
	models.PIB:        {Code: 4380},
	models.Divida:     {Code: 4505},
}

// Client fetches SGS series as CSV. Requests that still fail after their
// retries feed a circuit breaker shared by all series.
type Client struct {
	baseURL  string
	http     *xhttp.Client
	retries  int
	backoff  time.Duration
	trip     uint32
	cooldown time.Duration
	breaker  *gobreaker.CircuitBreaker
	now      func() time.Time
	l        *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRetry sets attempts per request and the base backoff between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retries = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithBreaker opens the circuit after failures consecutive failed requests
// and probes again after cooldown.
func WithBreaker(failures int, cooldown time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.trip = uint32(failures)
		}
		if cooldown > 0 {
			c.cooldown = cooldown
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

// New builds a client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		http:     xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
		retries:  3,
		backoff:  200 * time.Millisecond,
		trip:     5,
		cooldown: time.Minute,
		now:      time.Now,
		l:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.l = c.l.Component("bcb")
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bcb-sgs",
		Timeout: c.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.trip
		},
		// empty ranges and caller cancellation say nothing about SGS health
		IsSuccessful: func(err error) bool {
			return err == nil || isNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.l.Warn("circuit breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()))
		},
	})
	return c
}

var _ drepo.SeriesSource = (*Client)(nil)

// Fetch returns raw records of ind within [from, to]. A zero from loads the
// full history; a zero to means today. Daily series are split into spans the
// API accepts.
func (c *Client) Fetch(ctx context.Context, ind models.Indicator, from, to time.Time) ([]models.RawRecord, error) {
	s, ok := Catalog[ind]
	if !ok {
		return nil, fmt.Errorf("bcb: unknown indicator %q", ind)
	}
	if to.IsZero() {
		to = models.Day(c.now())
	}
	if !from.IsZero() && from.After(to) {
		return nil, nil
	}

	if !s.Daily {
		return c.fetchRange(ctx, s.Code, from, to, !from.IsZero())
	}

	if from.IsZero() {
		from = s.First
	}
	var out []models.RawRecord
	for _, span := range Spans(from, to, maxSpanYears) {
		recs, err := c.fetchRange(ctx, s.Code, span[0], span[1], true)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// Spans splits [from, to] into consecutive ranges of at most years each.
func Spans(from, to time.Time, years int) [][2]time.Time {
	var out [][2]time.Time
	for start := from; !start.After(to); {
		end := start.AddDate(years, 0, -1)
		if end.After(to) {
			end = to
		}
		out = append(out, [2]time.Time{start, end})
		start = end.AddDate(0, 0, 1)
	}
	return out
}

func (c *Client) fetchRange(ctx context.Context, code int, from, to time.Time, bounded bool) ([]models.RawRecord, error) {
	q := map[string][]string{"formato": {"csv"}}
	if bounded {
		q["dataInicial"] = []string{util.FormatBCB(from)}
		q["dataFinal"] = []string{util.FormatBCB(to)}
	}
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         fmt.Sprintf("%s/bcdata.sgs.%d/dados", c.baseURL, code),
		QueryParams: q,
		Headers:     map[string]string{"Accept": "text/csv"},
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, opts)
	})
	if err != nil {
		// SGS answers 404 when a range holds no observations
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bcb series %d: %w", code, err)
	}
	body, _ := res.([]byte)

	recs, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bcb series %d: %w", code, err)
	}
	c.l.Debug("series fetched",
		applogger.Int("code", code),
		applogger.Int("rows", len(recs)),
		applogger.Duration("duration_ms", time.Since(start)))
	return recs, nil
}

func (c *Client) getWithRetry(ctx context.Context, opts *xhttp.RequestOptions) ([]byte, error) {
	var err error
	for i := 1; i <= c.retries; i++ {
		var body []byte
		err = c.http.SendAndParse(ctx, opts, &body)
		if err == nil {
			return body, nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, err
		}
		if i == c.retries {
			break
		}
		c.l.Warn("bcb request failed, retrying",
			applogger.String("url", opts.URL),
			applogger.Int("attempt", i),
			applogger.Error(err))
		select {
		case <-time.After(time.Duration(i) * c.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, err
}

func isNotFound(err error) bool {
	var se *xhttp.StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// ParseCSV reads the SGS "data;valor" CSV. A leading BOM and quoting are tolerated.
func ParseCSV(r io.Reader) ([]models.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	dateCol, valueCol := 0, 1
	header := rows[0]
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "data":
			dateCol = i
		case "valor":
			valueCol = i
		}
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("parse csv: unexpected header %q", strings.Join(header, ";"))
	}

	out := make([]models.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= dateCol || len(row) <= valueCol {
			continue
		}
		out = append(out, models.RawRecord{
			Date:  strings.TrimSpace(row[dateCol]),
			Value: models.RawValue(strings.TrimSpace(row[valueCol])),
		})
	}
	return out, nil
}

// Code returns the SGS code for ind, or 0.
func Code(ind models.Indicator) int {
	return Catalog[ind].Code
}
