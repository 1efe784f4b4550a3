package sync

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	stdsync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/api"
	"github.com/taxaxion/go-hddt-crawler/hddt/mapper"
	"github.com/taxaxion/go-hddt-crawler/hddt/model"
	"github.com/taxaxion/go-hddt-crawler/hddt/session"
)

const (
	// short timeout + many attempts beats one long stall on this upstream
	downloadTimeout  = 1500 * time.Millisecond
	downloadAttempts = 10

	downloadsPerPause = 5
	downloadPause     = 300 * time.Millisecond

	// DefaultConcurrency caps in-flight document fetches per run.
	DefaultConcurrency = 8
)

// portal marker for "no original document exists for this invoice"
const recordNotFoundMessage = "không tồn tại hồ sơ gốc của hóa đơn"

// Document is the download outcome for one invoice: either the original XML
// text (possibly empty when the archive held none) or a best-effort detail
// record when the portal holds no archive at all.
type Document struct {
	InvoiceID  string
	XMLContent string
	Detail     *model.CanonicalInvoice
}

// Tally is the per-run success/failure count. Per-invoice failures never
// abort the run; the caller gets whatever succeeded plus this count.
type Tally struct {
	Total     int
	Succeeded int
	Failed    int
}

type Downloader struct {
	session     *session.Manager
	meta        mapper.Meta
	concurrency int64
	attempts    int
	pause       time.Duration
}

func NewDownloader(s *session.Manager, meta mapper.Meta) *Downloader {
	return &Downloader{
		session:     s,
		meta:        meta,
		concurrency: DefaultConcurrency,
		attempts:    downloadAttempts,
		pause:       downloadPause,
	}
}

// SetConcurrency overrides the in-flight ceiling.
func (d *Downloader) SetConcurrency(n int64) {
	if n > 0 {
		d.concurrency = n
	}
}

type downloadResult struct {
	doc *Document
	err error
}

// DownloadAll fetches documents for all invoices under the concurrency
// ceiling. Results flow over a channel into a single aggregator, which owns
// the output slice and the tally. Cancelling ctx stops new dispatches
// between iterations; in-flight attempts run to their timeout.
func (d *Downloader) DownloadAll(ctx context.Context, invoices []model.CanonicalInvoice) ([]Document, Tally) {
	sem := semaphore.NewWeighted(d.concurrency)
	results := make(chan downloadResult)
	done := make(chan struct{})

	var docs []Document
	tally := Tally{Total: len(invoices)}

	go func() {
		defer close(done)
		for r := range results {
			if r.err != nil {
				tally.Failed++
				logger.WithError(r.err).Warn("document download failed")
				continue
			}
			tally.Succeeded++
			docs = append(docs, *r.doc)
		}
	}()

	var completed int64
	var wg stdsync.WaitGroup

	for i := range invoices {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(inv *model.CanonicalInvoice) {
			defer wg.Done()

			doc, err := d.fetch(ctx, inv)
			results <- downloadResult{doc: doc, err: err}

			// hold the slot through the pause so pacing throttles dispatch
			if n := atomic.AddInt64(&completed, 1); n%downloadsPerPause == 0 {
				sleepCtx(ctx, d.pause)
			}
			sem.Release(1)
		}(&invoices[i])
	}

	wg.Wait()
	close(results)
	<-done

	logger.WithFields(map[string]interface{}{
		"total":     tally.Total,
		"succeeded": tally.Succeeded,
		"failed":    tally.Failed,
	}).Info("document download finished")

	return docs, tally
}

func (d *Downloader) fetch(ctx context.Context, inv *model.CanonicalInvoice) (*Document, error) {
	params := map[string]string{
		"nbmst":    inv.SellerTaxCode,
		"khhdon":   inv.Series,
		"shdon":    inv.InvoiceNo,
		"khmshdon": inv.TemplateNo,
	}
	cash := inv.IsRegisterCash

	payload, err := api.Retry(d.attempts, func() ([]byte, error) {
		rc := d.session.Fresh(downloadTimeout)
		data, err := rc.GetBytes(ctx, hddt.ExportXMLPath(cash), params)
		if err != nil {
			var req *api.RequestError
			if errors.As(err, &req) && strings.Contains(strings.ToLower(req.Message), recordNotFoundMessage) {
				return nil, fmt.Errorf("%s %s: %w", inv.Series, inv.InvoiceNo, api.ErrRecordNotFound)
			}
			return nil, err
		}
		return data, nil
	})

	if errors.Is(err, api.ErrRecordNotFound) {
		detail, derr := d.detail(ctx, params, cash)
		if derr != nil {
			return nil, derr
		}
		return &Document{InvoiceID: inv.InvoiceID, Detail: detail}, nil
	}
	if err != nil {
		return nil, err
	}

	xml, err := extractXML(payload)
	if err != nil {
		return nil, err
	}
	return &Document{InvoiceID: inv.InvoiceID, XMLContent: xml}, nil
}

// detail is the fallback lookup for invoices without an original archive.
func (d *Downloader) detail(ctx context.Context, params map[string]string, cashRegister bool) (*model.CanonicalInvoice, error) {
	raw, err := api.Retry(api.DefaultAttempts, func() (*model.RawInvoice, error) {
		var r model.RawInvoice
		rc := d.session.Fresh(0)
		if err := rc.GetJSON(ctx, hddt.DetailPath(cashRegister), params, &r); err != nil {
			return nil, err
		}
		return &r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("detail lookup: %w", err)
	}

	mapped := mapper.MapInvoice(raw, d.meta)
	return &mapped, nil
}

// extractXML returns the first .xml entry of the archive as UTF-8 text, or
// empty when the archive holds none.
func extractXML(payload []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", &api.ParseError{Op: "invoice archive", Cause: err}
	}

	for _, entry := range reader.File {
		if !strings.EqualFold(filepath.Ext(entry.Name), ".xml") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return "", &api.ParseError{Op: "invoice archive", Cause: err}
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", &api.ParseError{Op: "invoice archive", Cause: err}
		}
		return string(content), nil
	}
	return "", nil
}
