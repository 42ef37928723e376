package usaco

import (
	"context"
	"errors"

	"github.com/oi-archive/usaco-crawler/dataset"
	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/report"
)

// DefaultMaxGap is the largest id distance seen between two consecutive contests.
const DefaultMaxGap = 20

// ErrNoNewData is returned by Run when no probe succeeded.
var ErrNoNewData = errors.New("no new problems")

// Prober fetches and parses a single id.
type Prober interface {
	Probe(ctx context.Context, id int) ProbeResult
}

// CrawlConfig tunes the stopping rule.
type CrawlConfig struct {
	// MaxGap stops the crawl once this many ids past the last success have been probed
	// without a new success.
	MaxGap int
	// TransportRetries re-probes an id that failed with a TransportError up to this many
	// times before counting it as a miss. Zero treats transport errors like any other miss.
	TransportRetries int
}

// CrawlResult describes one crawl.
type CrawlResult struct {
	LastID    int
	LastAdded int
	// NextID is the first id that was not probed.
	NextID int
	Added  []int
	Probed int
}

// Crawler probes increasing ids after the largest id in the store.
type Crawler struct {
	prober Prober
	store  *dataset.Store
	cfg    CrawlConfig
	log    logger.Logger
}

func NewCrawler(prober Prober, store *dataset.Store, cfg CrawlConfig, log logger.Logger) *Crawler {
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = DefaultMaxGap
	}
	if cfg.TransportRetries < 0 {
		cfg.TransportRetries = 0
	}
	return &Crawler{prober: prober, store: store, cfg: cfg, log: log}
}

// Run probes ids one at a time, in increasing order, starting after the store's largest
// id. Every found problem is put into the store and logged to rep. The crawl stops once the
// next id is MaxGap past the last success. Run returns ErrNoNewData when nothing was found
// and ctx.Err() if ctx ends first.
func (c *Crawler) Run(ctx context.Context, rep *report.Report) (CrawlResult, error) {
	last := c.store.MaxID()
	res := CrawlResult{LastID: last, LastAdded: last}
	id := last + 1
	c.log.Info("Starting crawl", logger.Int("from_id", id), logger.Int("max_gap", c.cfg.MaxGap))
	for {
		if err := ctx.Err(); err != nil {
			res.NextID = id
			return res, err
		}
		r := c.probe(ctx, id)
		res.Probed++
		if r.Outcome == Found {
			c.store.Put(r.Problem)
			rep.Add(r.Problem.ID, r.Problem.ReportLine())
			res.LastAdded = id
			res.Added = append(res.Added, id)
			c.log.Info("Problem added",
				logger.Int("id", id),
				logger.String("name", r.Problem.Title.Name),
				logger.String("source", r.Problem.Source.SourceString))
		} else {
			c.log.Debug("Probe missed",
				logger.Int("id", id),
				logger.String("outcome", r.Outcome.String()),
				logger.Error(r.Err))
		}
		id++
		if id-res.LastAdded >= c.cfg.MaxGap {
			break
		}
	}
	res.NextID = id
	if res.LastAdded == res.LastID {
		c.log.Info("No more problems to add", logger.Int("probed", res.Probed))
		return res, ErrNoNewData
	}
	c.log.Info("Crawl finished",
		logger.Int("added", len(res.Added)),
		logger.Int("last_added", res.LastAdded),
		logger.Int("probed", res.Probed))
	return res, nil
}

func (c *Crawler) probe(ctx context.Context, id int) ProbeResult {
	for attempt := 0; ; attempt++ {
		r := c.prober.Probe(ctx, id)
		if r.Outcome != TransportError || attempt >= c.cfg.TransportRetries || ctx.Err() != nil {
			return r
		}
		c.log.Warn("Retrying probe after transport error",
			logger.Int("id", id),
			logger.Int("attempt", attempt+1),
			logger.Error(r.Err))
	}
}
