package sync

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/api"
	"github.com/taxaxion/go-hddt-crawler/hddt/mapper"
	"github.com/taxaxion/go-hddt-crawler/hddt/model"
	"github.com/taxaxion/go-hddt-crawler/hddt/session"
)

// Request describes one crawl run.
type Request struct {
	From time.Time
	To   time.Time
	Tab  hddt.Tab

	Status           int
	ProcessingResult int
	PaymentOrder     bool
	PageSize         int
}

// Result is everything a run produced. Per-invoice faults never fail the
// run: the caller receives the surviving records plus the tally.
type Result struct {
	Invoices []model.CanonicalInvoice
	// portal-reported total across both categories
	Total      int
	Listed     int
	Downloaded int
	Failed     int
}

// Crawler wires the session, lister and downloader into one sync run.
type Crawler struct {
	Session    *session.Manager
	Lister     *Lister
	Downloader *Downloader
	meta       mapper.Meta
}

func NewCrawler(s *session.Manager, meta mapper.Meta) *Crawler {
	return &Crawler{
		Session:    s,
		Lister:     NewLister(s),
		Downloader: NewDownloader(s, meta),
		meta:       meta,
	}
}

// NewRequest returns a Request with the filterless defaults.
func NewRequest(from, to time.Time, tab hddt.Tab) Request {
	return Request{
		From:             from,
		To:               to,
		Tab:              tab,
		ProcessingResult: AllProcessingResults,
	}
}

// Run executes a full crawl: authenticate, enumerate both invoice
// categories of the tab, normalize and attach original documents.
func (c *Crawler) Run(ctx context.Context, req Request) (*Result, error) {
	if err := c.Session.CheckToken(ctx); err != nil {
		return nil, err
	}

	q := Query{
		From:             req.From,
		To:               req.To,
		Tab:              req.Tab,
		Status:           req.Status,
		ProcessingResult: req.ProcessingResult,
		PaymentOrder:     req.PaymentOrder,
		PageSize:         req.PageSize,
	}

	raws, total, err := c.list(ctx, q, false)
	if err != nil {
		return nil, err
	}

	// payment-order invoices never originate from cash registers
	if !req.PaymentOrder {
		scoRaws, scoTotal, err := c.list(ctx, q, true)
		if err != nil {
			return nil, err
		}
		raws = append(raws, scoRaws...)
		total += scoTotal
	}

	invoices := mapper.Map(raws, c.meta)
	logger.WithField("count", len(invoices)).Info("crawl master data complete")

	docs, tally := c.Downloader.DownloadAll(ctx, invoices)

	byID := make(map[string]*Document, len(docs))
	for i := range docs {
		byID[docs[i].InvoiceID] = &docs[i]
	}
	for i := range invoices {
		doc, ok := byID[invoices[i].InvoiceID]
		if !ok {
			continue
		}
		if doc.Detail != nil {
			// best-effort record from the detail fallback, no original document
			invoices[i] = *doc.Detail
			continue
		}
		invoices[i].XMLContent = doc.XMLContent
	}

	return &Result{
		Invoices:   invoices,
		Total:      total,
		Listed:     len(invoices),
		Downloaded: tally.Succeeded,
		Failed:     tally.Failed,
	}, nil
}

// list retries a listing once with a fresh login when the portal rejects the
// cached token as unauthenticated.
func (c *Crawler) list(ctx context.Context, q Query, cashRegister bool) ([]model.RawInvoice, int, error) {
	raws, total, err := c.Lister.Fetch(ctx, q, cashRegister)
	if err == nil {
		return raws, total, nil
	}

	var req *api.RequestError
	if errors.As(err, &req) && req.StatusCode == http.StatusUnauthorized {
		logger.Warn("token rejected by portal, re-authenticating")
		c.Session.Invalidate()
		if err := c.Session.CheckToken(ctx); err != nil {
			return nil, 0, err
		}
		return c.Lister.Fetch(ctx, q, cashRegister)
	}
	return nil, 0, err
}
