// Package usaco crawls USACO contest problems and keeps the derived problem indexes in step
// with the crawled dataset.
package usaco

import (
	"context"
	"errors"
	"fmt"

	"github.com/oi-archive/usaco-crawler/dataset"
	"github.com/oi-archive/usaco-crawler/index"
	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/plugin/public"
	"github.com/oi-archive/usaco-crawler/report"
)

const (
	PID  = "usaco"
	NAME = "USACO"
)

// Paths locates the dataset, the change report and the derived artifacts.
type Paths struct {
	Problems string
	Report   string
	Index    index.Paths
}

// Config configures a Plugin.
type Config struct {
	Paths     Paths
	Crawl     CrawlConfig
	Exclusion index.Exclusion
}

// Plugin runs crawls and merges. Each call loads its inputs from disk and returns the files
// to persist; nothing is written by the plugin itself.
type Plugin struct {
	cfg    Config
	prober Prober
	log    logger.Logger
}

func New(cfg Config, prober Prober, log logger.Logger) *Plugin {
	return &Plugin{cfg: cfg, prober: prober, log: log.With(logger.String("plugin", PID))}
}

func (p *Plugin) Name() string {
	return NAME
}

// Crawl probes for new problems. The returned files hold the updated dataset and the change
// report. It returns ErrNoNewData, and no files, when nothing was found.
func (p *Plugin) Crawl(ctx context.Context) (public.FileList, *report.Report, error) {
	store, err := dataset.Load(p.cfg.Paths.Problems)
	if err != nil {
		return nil, nil, err
	}
	rep := report.New()
	if _, err := NewCrawler(p.prober, store, p.cfg.Crawl, p.log).Run(ctx, rep); err != nil {
		return nil, rep, err
	}
	fl := make(public.FileList)
	if err := p.addDataset(fl, store); err != nil {
		return nil, rep, err
	}
	fl[p.cfg.Paths.Report] = rep.Bytes()
	return fl, rep, nil
}

// Merge brings the derived artifacts up to date with the dataset on disk. It returns
// index.ErrNoChanges, and no files, when every artifact is already current.
func (p *Plugin) Merge(ctx context.Context) (public.FileList, *report.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	store, err := dataset.Load(p.cfg.Paths.Problems)
	if err != nil {
		return nil, nil, err
	}
	rep := report.New()
	fl := make(public.FileList)
	changed, err := p.merge(store, rep, fl)
	if err != nil {
		return nil, rep, err
	}
	if !changed {
		return nil, rep, index.ErrNoChanges
	}
	fl[p.cfg.Paths.Report] = rep.Bytes()
	return fl, rep, nil
}

// Update crawls and then merges, sharing one change report. It returns ErrNoNewData only
// when neither step changed anything.
func (p *Plugin) Update(ctx context.Context) (public.FileList, *report.Report, error) {
	store, err := dataset.Load(p.cfg.Paths.Problems)
	if err != nil {
		return nil, nil, err
	}
	rep := report.New()
	fl := make(public.FileList)

	_, err = NewCrawler(p.prober, store, p.cfg.Crawl, p.log).Run(ctx, rep)
	crawled := err == nil
	if err != nil && !errors.Is(err, ErrNoNewData) {
		return nil, rep, err
	}
	if crawled {
		if err := p.addDataset(fl, store); err != nil {
			return nil, rep, err
		}
	}

	merged, err := p.merge(store, rep, fl)
	if err != nil {
		return nil, rep, err
	}
	if !crawled && !merged {
		return nil, rep, ErrNoNewData
	}
	fl[p.cfg.Paths.Report] = rep.Bytes()
	return fl, rep, nil
}

func (p *Plugin) merge(store *dataset.Store, rep *report.Report, fl public.FileList) (bool, error) {
	arts, err := index.LoadArtifacts(p.cfg.Paths.Index)
	if err != nil {
		return false, err
	}
	res, err := index.NewMerger(p.cfg.Exclusion, p.log).Merge(store, arts, rep)
	if err != nil {
		return false, err
	}
	if !res.Changed() {
		return false, nil
	}
	files, err := arts.Files(p.cfg.Paths.Index)
	if err != nil {
		return false, err
	}
	for path, b := range files {
		fl[path] = b
	}
	return true, nil
}

func (p *Plugin) addDataset(fl public.FileList, store *dataset.Store) error {
	b, err := store.Marshal()
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	fl[p.cfg.Paths.Problems] = b
	return nil
}
