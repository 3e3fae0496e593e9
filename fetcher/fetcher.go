// Package fetcher loads the petroleum sales dataset over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/petroleum-report/config"
	"github.com/aluiziolira/petroleum-report/metrics"
	"github.com/aluiziolira/petroleum-report/models"
	"github.com/aluiziolira/petroleum-report/parser"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStatus = "status"
	ctxBody   = "body"
	ctxStart  = "start"
)

// Fetcher wraps a colly collector issuing a single GET per Fetch.
// There are no retries: a failed fetch is reported to the caller as is.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *metrics.Metrics
}

// New builds a fetcher configured from cfg. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("source url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.Timeout,
	})

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		slog.Debug("fetching dataset", slog.String("url", r.URL.String()))
	})
	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatus, r.StatusCode)
		r.Ctx.Put(ctxBody, r.Body)
	})

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		Metrics:   m,
	}, nil
}

// Fetch issues the GET and decodes the body into a Dataset.
// Non-2xx responses return ErrNoData; timeouts return ErrTimeout.
// Cancelling ctx returns its error at once. The abandoned request still ends
// within the configured timeout.
func (f *Fetcher) Fetch(ctx context.Context) (*models.Dataset, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- f.collector.Request(http.MethodGet, f.cfg.SourceURL, nil, reqCtx, nil)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return nil, f.fail(fmt.Errorf("fetch interrupted: %w", ctx.Err()))
	}
	if began, ok := reqCtx.GetAny(ctxStart).(time.Time); ok {
		f.Metrics.ObserveFetch(time.Since(began))
	}
	if err != nil {
		return nil, f.fail(classifyError(err, 0))
	}

	status, _ := reqCtx.GetAny(ctxStatus).(int)
	if classified := classifyError(nil, status); classified != nil {
		return nil, f.fail(classified)
	}

	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	records, err := parser.DecodeRecords(body)
	if err != nil {
		return nil, f.fail(ErrDecode{Err: err})
	}

	ds := &models.Dataset{
		Source:    f.cfg.SourceURL,
		FetchedAt: time.Now(),
		Records:   records,
	}
	f.Metrics.IncFetch(OutcomeSuccess.String())
	f.Metrics.SetRecords(len(records))
	slog.Info("dataset fetched",
		slog.String("url", f.cfg.SourceURL),
		slog.Int("records", len(records)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

func (f *Fetcher) fail(err error) error {
	category := errorTypeLabel(err)
	f.Metrics.IncFetch(category)
	slog.Error("fetch failed",
		slog.String("url", f.cfg.SourceURL),
		slog.String("category", category),
		slog.Any("error", err),
	)
	return err
}
