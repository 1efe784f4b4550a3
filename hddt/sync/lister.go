// Package sync implements the crawl engine: cursor-paginated listing,
// bounded-concurrency document download with archive extraction, the
// captcha-gated guest lookup and the run orchestrator.
package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/api"
	"github.com/taxaxion/go-hddt-crawler/hddt/model"
	"github.com/taxaxion/go-hddt-crawler/hddt/session"
)

var logger = logrus.WithField("component", "hddt.sync")

const (
	// stable sort order keeps pagination consistent across pages
	listSort = "tdlap:desc,khmshdon:asc,shdon:desc"

	// the portal answers listing calls fast or not at all
	listTimeout = 2 * time.Second

	// cooperative pacing against upstream throttling; removing it risks
	// invalidated sessions or blocked addresses
	pagesPerPause = 10
	pagePause     = 300 * time.Millisecond

	DefaultPageSize = 50
)

// processed-state codes expanded for purchase listings when no explicit
// processing-result filter is set
const processedResults = "ttxly=in=(5,6,8)"

// AllProcessingResults disables the processing-result filter clause.
const AllProcessingResults = -1

// Query describes one listing run over a closed date range.
type Query struct {
	From time.Time
	To   time.Time
	Tab  hddt.Tab

	// 0 keeps all invoice statuses
	Status int
	// AllProcessingResults keeps all, expanding to the processed set on
	// the purchase tab
	ProcessingResult int
	// restrict to payment-order (ủy nhiệm) invoices
	PaymentOrder bool

	PageSize int
}

// Expression builds the portal filter expression; clauses are joined with
// ';' (AND semantics).
func (q Query) Expression(cashRegister bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "tdlap=ge=%sT00:00:00;tdlap=le=%sT23:59:59",
		q.From.Format("02/01/2006"), q.To.Format("02/01/2006"))

	if q.Status != 0 {
		fmt.Fprintf(&b, ";tthai==%d", q.Status)
	}

	if q.ProcessingResult != AllProcessingResults {
		fmt.Fprintf(&b, ";ttxly==%d", q.ProcessingResult)
	} else if q.Tab == hddt.Purchase {
		b.WriteString(";" + processedResults)
	}

	if q.PaymentOrder && !cashRegister {
		b.WriteString(";unhiem==1")
	}

	return b.String()
}

func (q Query) pageSize() int {
	if q.PageSize <= 0 {
		return DefaultPageSize
	}
	return q.PageSize
}

// Lister enumerates raw invoices page by page. Each page depends on the
// cursor of the previous one, so a listing run is sequential per category.
type Lister struct {
	session  *session.Manager
	attempts int
	pause    time.Duration
}

func NewLister(s *session.Manager) *Lister {
	return &Lister{session: s, attempts: api.DefaultAttempts, pause: pagePause}
}

// Fetch crawls every page of the query for one invoice category and returns
// the concatenated records in arrival order together with the portal-reported
// total. A page size of 1 is an existence probe and stops after one page.
func (l *Lister) Fetch(ctx context.Context, q Query, cashRegister bool) ([]model.RawInvoice, int, error) {
	rc := l.session.Fresh(listTimeout)
	path := q.Tab.ListPath(cashRegister)

	params := map[string]string{
		"sort":   listSort,
		"size":   strconv.Itoa(q.pageSize()),
		"search": q.Expression(cashRegister),
	}

	var all []model.RawInvoice
	total := 0
	page := 0

	for {
		if err := ctx.Err(); err != nil {
			return all, total, err
		}

		res, err := api.Retry(l.attempts, func() (*model.ListResponse, error) {
			var r model.ListResponse
			if err := rc.GetJSON(ctx, path, params, &r); err != nil {
				return nil, err
			}
			return &r, nil
		})
		if err != nil {
			return all, total, fmt.Errorf("list %s: %w", path, err)
		}

		total = res.Total
		all = append(all, res.Datas...)
		page++

		logger.WithFields(logrus.Fields{
			"path":    path,
			"page":    page,
			"crawled": len(all),
			"total":   total,
		}).Info("fetched invoice page")

		if res.State == "" || q.pageSize() == 1 {
			return all, total, nil
		}
		params["state"] = res.State

		if page%pagesPerPause == 0 {
			sleepCtx(ctx, l.pause)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
