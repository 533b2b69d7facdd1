// Package load adds and removes the variants of whole cases.
//
// Every input is validated before the first write. When a write fails after
// that point, whatever the operation already wrote for the case is removed
// again before the error is returned.
package load

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-freq/internal/cluster"
	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/profile"
	"github.com/inodb/vibe-freq/internal/store"
	"github.com/inodb/vibe-freq/internal/variant"
)

// DefaultBatchSize is the number of small variants written per transaction.
const DefaultBatchSize = 10000

// Store is the backend a Loader writes to.
type Store interface {
	store.CaseStore
	store.VariantStore
	store.SVStore
	store.ProfileStore
}

// Options configures a Loader.
type Options struct {
	Variant       variant.Options
	MaxWindow     int64
	BatchSize     int
	CheckProfiles bool
	HardThreshold float64 // similarity at or above which a load is refused
}

// Request names the files of one case. At least one of VCFPath and SVPath
// must be set. CaseID falls back to the family id of PedPath.
type Request struct {
	CaseID  string
	VCFPath string
	SVPath  string
	PedPath string
}

// Loader loads, updates and deletes cases.
type Loader struct {
	store   Store
	engine  *cluster.Engine
	matcher *profile.Matcher
	opts    Options
	logger  *zap.Logger
}

// NewLoader creates a loader over s.
func NewLoader(s Store, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Loader{
		store:   s,
		engine:  cluster.NewEngine(s, opts.MaxWindow),
		matcher: profile.NewMatcher(s),
		opts:    opts,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger of the loader and the components it drives.
func (l *Loader) SetLogger(lg *zap.Logger) {
	l.logger = lg
	l.engine.SetLogger(lg)
	l.matcher.SetLogger(lg)
}

// Load adds a new case and all variants of its files.
func (l *Loader) Load(ctx context.Context, req Request) (*model.Case, error) {
	start := time.Now()

	in, err := l.prepare(req)
	if err != nil {
		return nil, err
	}
	caseID := in.caseID

	existing, err := l.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &model.CaseError{CaseID: caseID, Message: "case already exists"}
	}

	inds := in.individuals
	if req.VCFPath != "" {
		if inds, err = l.checkProfiles(ctx, req.VCFPath, inds); err != nil {
			return nil, err
		}
	}

	c := model.Case{CaseID: caseID, VCFPath: req.VCFPath, VCFSVPath: req.SVPath, Individuals: inds}
	if err := l.store.AddCase(ctx, c); err != nil {
		return nil, err
	}

	var loaded []fileCounts
	fail := func(cause error) (*model.Case, error) {
		l.rollback(ctx, caseID, loaded, cause)
		if err := l.store.DeleteCase(context.WithoutCancel(ctx), caseID); err != nil {
			l.logger.Error("rollback: delete case", zap.String("case", caseID), zap.Error(err))
		}
		return nil, cause
	}

	for _, path := range []string{req.VCFPath, req.SVPath} {
		if path == "" {
			continue
		}
		n, err := l.loadFile(ctx, path, caseID, inds)
		loaded = append(loaded, n)
		if err != nil {
			return fail(err)
		}
		c.NrVariants += n.snv
		c.NrSVVariants += n.sv
	}

	if err := l.store.UpdateCase(ctx, c); err != nil {
		return fail(err)
	}

	l.logger.Info("case loaded",
		zap.String("case", caseID),
		zap.String("vcf", req.VCFPath),
		zap.String("sv_vcf", req.SVPath),
		zap.Int64("variants", c.NrVariants),
		zap.Int64("svs", c.NrSVVariants),
		zap.Duration("elapsed", time.Since(start)))
	return &c, nil
}

// Update adds the file kind a stored case is missing. Giving a file kind the
// case already has is a *model.CaseError.
func (l *Loader) Update(ctx context.Context, req Request) (*model.Case, error) {
	start := time.Now()

	existing, err := l.store.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &model.CaseError{CaseID: req.CaseID, Message: "case not found"}
	}
	if req.VCFPath != "" && existing.HasSNV() {
		return nil, &model.CaseError{CaseID: req.CaseID, Message: "case already has a small variant file"}
	}
	if req.SVPath != "" && existing.HasSV() {
		return nil, &model.CaseError{CaseID: req.CaseID, Message: "case already has a structural variant file"}
	}

	in, err := l.prepareWith(req, existing.Individuals)
	if err != nil {
		return nil, err
	}

	inds := in.individuals
	if req.VCFPath != "" {
		if inds, err = l.checkProfiles(ctx, req.VCFPath, inds); err != nil {
			return nil, err
		}
	}

	c := *existing
	var loaded []fileCounts
	fail := func(cause error) (*model.Case, error) {
		l.rollback(ctx, c.CaseID, loaded, cause)
		return nil, cause
	}

	for _, path := range []string{req.VCFPath, req.SVPath} {
		if path == "" {
			continue
		}
		n, err := l.loadFile(ctx, path, c.CaseID, inds)
		loaded = append(loaded, n)
		if err != nil {
			return fail(err)
		}
		c.NrVariants += n.snv
		c.NrSVVariants += n.sv
	}

	if req.VCFPath != "" {
		c.VCFPath = req.VCFPath
		for _, ind := range inds {
			if err := l.store.SetProfile(ctx, c.CaseID, ind.IndID, ind.Profile); err != nil {
				return fail(err)
			}
		}
	}
	if req.SVPath != "" {
		c.VCFSVPath = req.SVPath
	}
	if err := l.store.UpdateCase(ctx, c); err != nil {
		return fail(err)
	}

	stored, err := l.store.GetCase(ctx, c.CaseID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("case updated",
		zap.String("case", c.CaseID),
		zap.Int64("variants", c.NrVariants),
		zap.Int64("svs", c.NrSVVariants),
		zap.Duration("elapsed", time.Since(start)))
	return stored, nil
}

// Delete removes every variant a stored case contributed, then the case.
func (l *Loader) Delete(ctx context.Context, caseID string) error {
	start := time.Now()

	c, err := l.store.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	if c == nil {
		return &model.CaseError{CaseID: caseID, Message: "case not found"}
	}

	var paths []string
	for _, p := range []string{c.VCFPath, c.VCFSVPath} {
		if p == "" {
			continue
		}
		if err := checkPath(p); err != nil {
			return err
		}
		paths = append(paths, p)
	}

	var removed fileCounts
	for _, p := range paths {
		n, err := l.unloadFile(ctx, p, caseID, c.Individuals, unlimited)
		if err != nil {
			return fmt.Errorf("delete case %s: %w", caseID, err)
		}
		removed.snv += n.snv
		removed.sv += n.sv
	}

	if err := l.store.DeleteCase(ctx, caseID); err != nil {
		return err
	}
	l.logger.Info("case deleted",
		zap.String("case", caseID),
		zap.Int64("variants", removed.snv),
		zap.Int64("svs", removed.sv),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// checkProfiles builds the profiles of inds from path and refuses the load
// when one matches a stored profile. The returned individuals carry their
// profiles.
func (l *Loader) checkProfiles(ctx context.Context, path string, inds []model.Individual) ([]model.Individual, error) {
	panel, err := l.matcher.Panel(ctx)
	if err != nil {
		return nil, err
	}
	if panel.Len() == 0 {
		return inds, nil
	}

	profiles, err := panel.BuildFile(path, inds)
	if err != nil {
		return nil, fmt.Errorf("build profiles: %w", err)
	}

	if l.opts.CheckProfiles {
		match, err := l.matcher.CheckDuplicates(ctx, profiles, l.opts.HardThreshold)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return nil, &model.ProfileError{
				IndID:      match.Candidate,
				MatchCase:  match.CaseID,
				MatchInd:   match.IndID,
				Similarity: match.Similarity,
			}
		}
	}

	out := make([]model.Individual, len(inds))
	for i, ind := range inds {
		ind.Profile = profiles[ind.IndID]
		out[i] = ind
	}
	return out, nil
}

// rollback removes what the failed operation wrote. It runs detached from
// cancellation of the caller's context.
func (l *Loader) rollback(ctx context.Context, caseID string, loaded []fileCounts, cause error) {
	ctx = context.WithoutCancel(ctx)
	l.logger.Warn("rolling back case", zap.String("case", caseID), zap.Error(cause))

	for _, n := range loaded {
		if n.snv == 0 && n.sv == 0 {
			continue
		}
		if _, err := l.unloadFile(ctx, n.path, caseID, n.individuals, n); err != nil {
			l.logger.Error("rollback incomplete",
				zap.String("case", caseID),
				zap.String("file", n.path),
				zap.Error(errors.Join(cause, err)))
		}
	}
}
