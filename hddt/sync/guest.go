package sync

import (
	"context"
	"strings"
	stdsync "sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/model"
	"github.com/taxaxion/go-hddt-crawler/hddt/session"
)

// GuestConcurrency caps captcha-gated lookups: every request burns a fresh
// challenge, and the portal tolerates very little parallelism on them.
const GuestConcurrency = 2

// LookupRequest identifies one invoice for the unauthenticated search
// endpoint.
type LookupRequest struct {
	TemplateNo    string
	Series        string
	InvoiceNo     string
	SellerTaxCode string
	// required for delivery-note templates ("6"), ignored otherwise
	InvoiceDate *time.Time
	// total amount, required for all other templates
	Amount decimal.Decimal
}

// GuestLookup checks invoice existence/status without a taxpayer session,
// solving one captcha per request.
type GuestLookup struct {
	session     *session.Manager
	concurrency int64
}

func NewGuestLookup(s *session.Manager) *GuestLookup {
	return &GuestLookup{session: s, concurrency: GuestConcurrency}
}

// Lookup resolves the batch under the guest concurrency ceiling. Failed
// items are counted and skipped; the run never aborts for a single invoice.
func (g *GuestLookup) Lookup(ctx context.Context, requests []LookupRequest) ([]model.RawInvoice, Tally) {
	sem := semaphore.NewWeighted(g.concurrency)
	done := make(chan struct{})

	var invoices []model.RawInvoice
	tally := Tally{Total: len(requests)}

	type lookupResult struct {
		inv *model.RawInvoice
		err error
	}
	lookups := make(chan lookupResult)

	go func() {
		defer close(done)
		for r := range lookups {
			if r.err != nil {
				tally.Failed++
				logger.WithError(r.err).Warn("guest lookup failed")
				continue
			}
			tally.Succeeded++
			invoices = append(invoices, *r.inv)
		}
	}()

	var wg stdsync.WaitGroup
	for i := range requests {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(req *LookupRequest) {
			defer wg.Done()
			defer sem.Release(1)

			inv, err := g.lookupOne(ctx, req)
			lookups <- lookupResult{inv: inv, err: err}
		}(&requests[i])
	}

	wg.Wait()
	close(lookups)
	<-done

	return invoices, tally
}

func (g *GuestLookup) lookupOne(ctx context.Context, req *LookupRequest) (*model.RawInvoice, error) {
	ch, err := g.session.Resolver().FetchAndResolve(ctx)
	if err != nil {
		return nil, err
	}

	series := normalizeSeries(req.Series)
	cash := model.IsRegisterCash(series)

	params := map[string]string{
		"khmshdon": req.TemplateNo,
		"nbmst":    req.SellerTaxCode,
		"shdon":    req.InvoiceNo,
		"cvalue":   ch.Value,
		"ckey":     ch.Key,
	}

	if req.TemplateNo == "6" {
		// delivery notes split into two sub-forms by the series marker
		form := "06_02"
		if strings.IndexByte(series, 'N') == 3 {
			form = "06_01"
		}
		params["hdon"] = form
		if req.InvoiceDate != nil {
			params["tdlap"] = req.InvoiceDate.UTC().Format("2006-01-02T15:04:05.000Z")
		}
	} else {
		params["hdon"] = "0" + req.TemplateNo
		params["tgtttbso"] = req.Amount.String()
	}
	params["khhdon"] = series

	var raw model.RawInvoice
	rc := g.session.Fresh(0)
	if err := rc.GetJSON(ctx, hddt.SearchPath(cash), params, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// normalizeSeries strips the leading template-kind character the way the
// portal expects for guest searches, unless the series already starts with
// the C/K prefix.
func normalizeSeries(series string) string {
	if series == "" {
		return series
	}
	if series[0] == 'C' || series[0] == 'K' {
		return series
	}
	return series[1:]
}
