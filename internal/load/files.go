package load

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/ped"
	"github.com/inodb/vibe-freq/internal/variant"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// fileCounts is what one file contributed, or a limit on what to remove.
// A negative count means no limit.
type fileCounts struct {
	path        string
	individuals []model.Individual
	snv         int64
	sv          int64
}

var unlimited = fileCounts{snv: -1, sv: -1}

func reached(done, limit int64) bool {
	return limit >= 0 && done >= limit
}

// input is a validated request.
type input struct {
	caseID      string
	individuals []model.Individual
}

// checkPath verifies that path exists and looks like a VCF.
func checkPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &model.IOError{Path: path, Message: "file not found"}
	}
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".vcf") && !strings.HasSuffix(lower, ".vcf.gz") {
		return &model.IOError{Path: path, Message: "wrong file extension, expected .vcf or .vcf.gz"}
	}
	return nil
}

// prepare validates a new case: its files, family and VCF contents.
func (l *Loader) prepare(req Request) (input, error) {
	if req.PedPath == "" {
		return l.prepareWith(req, nil)
	}

	if _, err := os.Stat(req.PedPath); err != nil {
		return input{}, &model.IOError{Path: req.PedPath, Message: "file not found"}
	}
	fam, err := ped.ParseFile(req.PedPath)
	if err != nil {
		return input{}, err
	}
	if req.CaseID == "" {
		req.CaseID = fam.ID
	}
	inds := make([]model.Individual, len(fam.Members))
	for i, m := range fam.Members {
		inds[i] = model.Individual{IndID: m.IndID, Sex: m.Sex}
	}
	return l.prepareWith(req, inds)
}

// prepareWith validates the files of req for the given individuals. Without
// individuals, every sample of the first file becomes one.
func (l *Loader) prepareWith(req Request, inds []model.Individual) (input, error) {
	if req.VCFPath == "" && req.SVPath == "" {
		return input{}, &model.CaseError{CaseID: req.CaseID, Message: "no variant file given"}
	}
	if req.CaseID == "" {
		return input{}, &model.CaseError{Message: "case id required without a family file"}
	}
	if strings.Contains(req.CaseID, ",") {
		return input{}, &model.CaseError{CaseID: req.CaseID, Message: "case id must not contain a comma"}
	}

	var paths []string
	for _, p := range []string{req.VCFPath, req.SVPath} {
		if p == "" {
			continue
		}
		if err := checkPath(p); err != nil {
			return input{}, err
		}
		paths = append(paths, p)
	}

	for i, p := range paths {
		sum, err := vcf.CheckFile(p)
		if err != nil {
			return input{}, err
		}
		if inds == nil {
			for j, name := range sum.SampleNames {
				inds = append(inds, model.Individual{IndID: name, IndIndex: j})
			}
		}
		mapped, err := indexIndividuals(req.CaseID, p, inds, sum.SampleNames)
		if err != nil {
			return input{}, err
		}
		if i == 0 {
			inds = mapped
		}
	}

	if len(inds) == 0 {
		return input{}, &model.CaseError{CaseID: req.CaseID, Message: "no individuals"}
	}
	return input{caseID: req.CaseID, individuals: inds}, nil
}

// indexIndividuals returns inds with IndIndex set to their column in samples.
func indexIndividuals(caseID, path string, inds []model.Individual, samples []string) ([]model.Individual, error) {
	columns := make(map[string]int, len(samples))
	for i, s := range samples {
		columns[s] = i
	}

	out := make([]model.Individual, len(inds))
	for i, ind := range inds {
		col, ok := columns[ind.IndID]
		if !ok {
			return nil, &model.CaseError{
				CaseID:  caseID,
				Message: fmt.Sprintf("individual %s not found in %s", ind.IndID, path),
			}
		}
		ind.IndIndex = col
		out[i] = ind
	}
	return out, nil
}

// openCase opens path and builds the variants of the case from it.
func (l *Loader) openCase(path, caseID string, inds []model.Individual) (*vcf.Parser, *variant.Builder, error) {
	p, err := vcf.NewParser(path)
	if err != nil {
		return nil, nil, &model.IOError{Path: path, Message: err.Error()}
	}
	fileInds, err := indexIndividuals(caseID, path, inds, p.SampleNames())
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return p, variant.NewBuilder(fileInds, l.opts.Variant), nil
}

// loadFile adds the contribution of caseID from path. The returned counts
// cover what was written, also when an error stops the load.
func (l *Loader) loadFile(ctx context.Context, path, caseID string, inds []model.Individual) (fileCounts, error) {
	n := fileCounts{path: path, individuals: inds}

	p, b, err := l.openCase(path, caseID, inds)
	if err != nil {
		return n, err
	}
	defer p.Close()

	batch := make([]model.Variant, 0, l.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.store.AddVariants(ctx, batch, caseID); err != nil {
			return fmt.Errorf("add variants: %w", err)
		}
		n.snv += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		v, err := p.Next()
		if err != nil {
			return n, &model.VcfError{Path: path, Line: p.LineNumber(), Message: err.Error()}
		}
		if v == nil {
			break
		}

		for _, split := range vcf.SplitMultiAllelic(v) {
			if _, isSV := split.Info["SVTYPE"]; isSV {
				if _, err := l.engine.Add(ctx, b.SV(split), caseID); err != nil {
					return n, err
				}
				n.sv++
				continue
			}

			rec, ok := b.Variant(split)
			if !ok {
				continue
			}
			batch = append(batch, rec)
			if len(batch) >= l.opts.BatchSize {
				if err := flush(); err != nil {
					return n, err
				}
			}
		}
	}
	return n, flush()
}

// unloadFile removes the contribution of caseID read from path, stopping once
// limit is reached for both kinds.
func (l *Loader) unloadFile(ctx context.Context, path, caseID string, inds []model.Individual, limit fileCounts) (fileCounts, error) {
	n := fileCounts{path: path, individuals: inds}

	p, b, err := l.openCase(path, caseID, inds)
	if err != nil {
		return n, err
	}
	defer p.Close()

	batch := make([]model.Variant, 0, l.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.store.RemoveVariants(ctx, batch, caseID); err != nil {
			return fmt.Errorf("remove variants: %w", err)
		}
		n.snv += int64(len(batch))
		batch = batch[:0]
		return nil
	}
	pending := func() int64 { return n.snv + int64(len(batch)) }

	for !reached(pending(), limit.snv) || !reached(n.sv, limit.sv) {
		v, err := p.Next()
		if err != nil {
			return n, &model.VcfError{Path: path, Line: p.LineNumber(), Message: err.Error()}
		}
		if v == nil {
			break
		}

		for _, split := range vcf.SplitMultiAllelic(v) {
			if _, isSV := split.Info["SVTYPE"]; isSV {
				if reached(n.sv, limit.sv) {
					continue
				}
				if _, err := l.engine.Remove(ctx, b.SV(split), caseID); err != nil {
					return n, err
				}
				n.sv++
				continue
			}

			if reached(pending(), limit.snv) {
				continue
			}
			rec, ok := b.Variant(split)
			if !ok {
				continue
			}
			batch = append(batch, rec)
			if len(batch) >= l.opts.BatchSize {
				if err := flush(); err != nil {
					return n, err
				}
			}
		}
	}
	return n, flush()
}
