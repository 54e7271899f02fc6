// Package scan turns a photo of medicine packaging into looked-up medicine details.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-medscan-client/apiclient"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/medicine"
	"github.com/jrsteele09/go-medscan-client/medname"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

type Extractor interface {
	Extract(ctx context.Context, image apiclient.File) ([]string, error)
}

type DetailFetcher interface {
	Detail(ctx context.Context, name string) (medicine.Detail, error)
}

// Item is one successfully looked-up medicine.
type Item struct {
	Name   string
	Detail medicine.Detail
}

// Skipped is a name whose lookup failed; it is not part of the items.
type Skipped struct {
	Name string
	Err  error
}

// Result is the outcome of one run. Items follow the order the names were extracted in.
type Result struct {
	RunID            string
	State            State
	ExtractedNames   []string
	NormalizedNames  []string
	Items            []Item
	Skipped          []Skipped
	NoMedicinesFound bool
}

// Pipeline runs capture, extraction, normalization and detail lookup. One run at a
// time is expected; State reports the stage of the latest one.
type Pipeline struct {
	picker      Picker
	extractor   Extractor
	fetcher     DetailFetcher
	concurrency int
	logger      zerolog.Logger
	observer    func(State)

	lock  sync.Mutex
	state State
}

// PipelineOption defines a function type to modify the Pipeline instance.
type PipelineOption func(*Pipeline)

// WithConcurrency bounds how many detail lookups are in flight at once.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithLogger(l zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithStateObserver receives every state transition, in order.
func WithStateObserver(fn func(State)) PipelineOption {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

// New creates a Pipeline. picker may be nil when only RunImage is used.
func New(picker Picker, extractor Extractor, fetcher DetailFetcher, options ...PipelineOption) (*Pipeline, error) {
	if extractor == nil {
		return nil, fmt.Errorf("[scan.New] extractor is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("[scan.New] detail fetcher is required")
	}

	p := &Pipeline{
		picker:      picker,
		extractor:   extractor,
		fetcher:     fetcher,
		concurrency: defaultConcurrency,
		logger:      log.Logger,
		state:       StateIdle,
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) State() State {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.lock.Lock()
	p.state = s
	p.lock.Unlock()

	if p.observer != nil {
		p.observer(s)
	}
}

// Capture asks the picker for an image. A denied or cancelled pick returns the
// pipeline to Idle and hands the error back.
func (p *Pipeline) Capture(ctx context.Context, source Source) (apiclient.File, error) {
	if p.picker == nil {
		return apiclient.File{}, fmt.Errorf("[Pipeline.Capture] no picker configured")
	}

	p.setState(StateCapturing)
	image, err := p.picker.Pick(ctx, source)
	if err != nil {
		if errors.Is(err, medErrors.ErrPermissionDenied) || errors.Is(err, medErrors.ErrCancelled) {
			p.setState(StateIdle)
			return apiclient.File{}, err
		}
		p.setState(StateFailed)
		return apiclient.File{}, err
	}
	return image, nil
}

// Extract uploads the image and returns the raw names found on it.
func (p *Pipeline) Extract(ctx context.Context, image apiclient.File) ([]string, error) {
	p.setState(StateExtracting)
	names, err := p.extractor.Extract(ctx, image)
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}
	return names, nil
}

func (p *Pipeline) NormalizeAll(names []string) []string {
	p.setState(StateNormalizing)
	return medname.NormalizeAll(names)
}

// FetchDetails looks names up concurrently. Failed lookups are logged and returned as
// skipped; they never fail the batch. Only cancellation of ctx does.
func (p *Pipeline) FetchDetails(ctx context.Context, names []string) ([]Item, []Skipped, error) {
	return p.fetchDetails(ctx, p.logger, names)
}

func (p *Pipeline) fetchDetails(ctx context.Context, logger zerolog.Logger, names []string) ([]Item, []Skipped, error) {
	p.setState(StateFetchingDetails)

	details := make([]*medicine.Detail, len(names))
	failures := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			failures[i] = fmt.Errorf("%w: empty name", medErrors.ErrInvalidInput)
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			detail, err := p.fetcher.Detail(ctx, name)
			if err != nil {
				failures[i] = err
				return nil
			}
			details[i] = &detail
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.setState(StateFailed)
		return nil, nil, err
	}

	var items []Item
	var skipped []Skipped
	for i, name := range names {
		if details[i] != nil {
			items = append(items, Item{Name: name, Detail: *details[i]})
			continue
		}
		logger.Warn().Err(failures[i]).Str("name", name).Msg("medicine lookup failed, skipping")
		skipped = append(skipped, Skipped{Name: name, Err: failures[i]})
	}
	p.setState(StateDone)
	return items, skipped, nil
}

// Run captures an image from source and processes it. A denied or cancelled pick
// returns (nil, err) with the pipeline back in Idle.
func (p *Pipeline) Run(ctx context.Context, source Source) (*Result, error) {
	image, err := p.Capture(ctx, source)
	if err != nil {
		if p.State() == StateIdle {
			return nil, err
		}
		return &Result{RunID: uuid.New().String(), State: StateFailed}, err
	}
	return p.RunImage(ctx, image)
}

// RunImage processes an image that was already picked. On failure the partial
// result is returned alongside the error.
func (p *Pipeline) RunImage(ctx context.Context, image apiclient.File) (*Result, error) {
	res := &Result{RunID: uuid.New().String()}
	logger := p.logger.With().Str("run_id", res.RunID).Logger()

	extracted, err := p.Extract(ctx, image)
	if err != nil {
		logger.Err(err).Msg("medicine extraction failed")
		res.State = StateFailed
		return res, err
	}
	res.ExtractedNames = extracted

	if len(extracted) == 0 {
		logger.Info().Msg("no medicines found in image")
		res.NoMedicinesFound = true
		res.State = StateDone
		p.setState(StateDone)
		return res, nil
	}

	res.NormalizedNames = p.NormalizeAll(extracted)

	items, skipped, err := p.fetchDetails(ctx, logger, res.NormalizedNames)
	if err != nil {
		logger.Err(err).Msg("detail lookup interrupted")
		res.State = StateFailed
		return res, err
	}
	res.Items = items
	res.Skipped = skipped
	res.State = StateDone

	logger.Debug().Int("found", len(items)).Int("skipped", len(skipped)).Msg("scan finished")
	return res, nil
}
