package annotate

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/variant"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// VariantLookup finds small variant records by id.
type VariantLookup interface {
	GetVariant(ctx context.Context, id string) (*model.Variant, error)
}

// ClusterLookup finds the cluster a structural variant belongs to.
type ClusterLookup interface {
	Get(ctx context.Context, sv variant.SV) (*model.Cluster, error)
}

// Annotator annotates variants with their observed frequencies.
type Annotator struct {
	variants VariantLookup
	clusters ClusterLookup
	opts     variant.NormalizeOptions
	snvCases int64
	svCases  int64
	workers  int
	logger   *zap.Logger
}

// NewAnnotator creates a new annotator. clusters may be nil when SVs are not
// looked up.
func NewAnnotator(variants VariantLookup, clusters ClusterLookup) *Annotator {
	return &Annotator{
		variants: variants,
		clusters: clusters,
		logger:   zap.NewNop(),
	}
}

// SetNormalizeOptions sets how input coordinates are normalized.
func (a *Annotator) SetNormalizeOptions(opts variant.NormalizeOptions) {
	a.opts = opts
}

// SetCaseCounts sets the number of cases with small variant and SV files,
// used as Frq denominators. Zero leaves Frq out.
func (a *Annotator) SetCaseCounts(snv, sv int64) {
	a.snvCases = snv
	a.svCases = sv
}

// SetWorkers sets the number of lookup workers. Zero uses runtime.NumCPU().
func (a *Annotator) SetWorkers(n int) {
	a.workers = n
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Annotate looks up a single biallelic variant.
func (a *Annotator) Annotate(ctx context.Context, v *vcf.Variant) (*Annotation, error) {
	c := variant.Normalize(v, a.opts)

	if c.IsSV() {
		ann := &Annotation{IsSV: true}
		if a.clusters == nil {
			return ann, nil
		}
		cl, err := a.clusters.Get(ctx, variant.SV{Coordinates: c, ID: v.ID})
		if err != nil {
			return nil, err
		}
		if cl != nil {
			ann.VariantID = cl.ID
			ann.Found = true
			ann.Observations = cl.Observations
			ann.setFrequency(a.svCases)
		}
		return ann, nil
	}

	ann := &Annotation{VariantID: model.FormatVariantID(c.Chrom, c.Pos, v.Ref, v.Alt)}
	rec, err := a.variants.GetVariant(ctx, ann.VariantID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		ann.Found = true
		ann.Observations = rec.Observations
		ann.Homozygote = rec.Homozygote
		ann.Hemizygote = rec.Hemizygote
		ann.setFrequency(a.snvCases)
	}
	return ann, nil
}

// AnnotateAll annotates all variants from a parser.
func (a *Annotator) AnnotateAll(ctx context.Context, parser vcf.VariantParser, writer AnnotationWriter) error {
	workers := a.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	items := make(chan WorkItem, 2*workers)
	var parseErr error
	variantCount := 0

	go func() {
		defer close(items)
		seq := 0
		for {
			v, err := parser.Next()
			if err != nil {
				parseErr = fmt.Errorf("read variant: %w", err)
				return
			}
			if v == nil {
				return
			}
			variantCount++

			// Split multi-allelic variants, each gets its own sequence number.
			for _, split := range vcf.SplitMultiAllelic(v) {
				select {
				case items <- WorkItem{Seq: seq, Variant: split}:
				case <-ctx.Done():
					return
				}
				seq++
			}
		}
	}()

	results := a.ParallelAnnotate(ctx, items, workers)

	found := 0
	if err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			a.logger.Warn("failed to annotate variant",
				zap.String("chrom", r.Variant.Chrom),
				zap.Int64("pos", r.Variant.Pos),
				zap.Error(r.Err))
			r.Ann = nil
		}
		if r.Ann != nil && r.Ann.Found {
			found++
		}
		if err := writer.Write(r.Variant, r.Ann); err != nil {
			return fmt.Errorf("write annotation: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	if parseErr != nil {
		return parseErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.logger.Info("annotation finished",
		zap.Int("records", variantCount),
		zap.Int("samples", len(parser.SampleNames())),
		zap.Int("found", found))

	return writer.Flush()
}

// AnnotationWriter defines the interface for writing annotations. Write
// receives a nil annotation when the lookup failed.
type AnnotationWriter interface {
	WriteHeader() error
	Write(v *vcf.Variant, ann *Annotation) error
	Flush() error
}
