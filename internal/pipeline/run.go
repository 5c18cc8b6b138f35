// Package pipeline runs one tailoring attempt for a session: grounding the job
// posting, extracting requirements, ranking experience, assembling the prompt,
// generating content and scoring it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/ats"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/ranking"
	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

// Stage names as they appear in the debug trace
const (
	StageGround   = "ground"
	StageExtract  = "extract"
	StageRank     = "rank"
	StageAssemble = "assemble"
	StageGenerate = "generate"
	StageScore    = "score"
	StageUsage    = "usage"
)

// DefaultGenerationTimeout bounds a single generation call
const DefaultGenerationTimeout = 90 * time.Second

// ProgressEvent is emitted after every stage
type ProgressEvent struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Failed    bool   `json:"failed"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Options configures a Runner
type Options struct {
	TopK              int
	MaxPromptBytes    int
	GenerationTimeout time.Duration
	Weights           ats.Weights
	RepeatThreshold   int
	OnProgress        ProgressCallback
}

// Runner executes the tailoring stages for a session
type Runner struct {
	generator llm.Generator
	grounder  llm.Grounder
	extractor *parsing.Extractor
	scorer    *ats.Scorer
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewRunner creates a runner. grounder may be nil, in which case sessions
// must carry job text.
func NewRunner(generator llm.Generator, grounder llm.Grounder, opts Options, logger *zap.Logger) (*Runner, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = ranking.DefaultTopK
	}
	if opts.MaxPromptBytes <= 0 {
		opts.MaxPromptBytes = prompts.DefaultMaxBytes
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}
	if opts.Weights == (ats.Weights{}) {
		opts.Weights = ats.DefaultWeights()
	}
	scorer, err := ats.NewScorer(opts.Weights)
	if err != nil {
		return nil, err
	}
	extractor := parsing.NewExtractor(vocab.Default())
	if opts.RepeatThreshold > 0 {
		extractor.RepeatThreshold = opts.RepeatThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		generator: generator,
		grounder:  grounder,
		extractor: extractor,
		scorer:    scorer,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Result is the outcome of one run. On failure it still carries the trace and
// the job snapshot, which stays captured for later attempts.
type Result struct {
	Job          types.JobSnapshot
	Requirements *types.RequirementSet
	Content      *types.TailoredContent
	ATS          *types.ATSMetadata
	Usage        types.Usage
	Model        string
	Trace        []types.TraceEntry
}

type run struct {
	*Runner
	sess    *types.TailoringSession
	attempt int
	result  *Result
}

// Run executes every stage in order. It never mutates sess. Failures are
// returned as *StageError alongside the partial Result.
func (r *Runner) Run(ctx context.Context, sess *types.TailoringSession) (*Result, error) {
	rn := &run{
		Runner:  r,
		sess:    sess,
		attempt: sess.Attempts + 1,
		result:  &Result{Job: sess.Job.Clone()},
	}

	var (
		reqs    *types.RequirementSet
		ranked  []types.RankedEntry
		request *types.GenerationRequest
		gen     *types.GenerationResult
	)

	steps := []struct {
		stage string
		fn    func(context.Context) (string, error)
	}{
		{StageGround, rn.ground},
		{StageExtract, func(context.Context) (string, error) {
			var err error
			reqs, err = rn.extractor.Extract(rn.result.Job.Text)
			if err != nil {
				return "", &StageError{Stage: StageExtract, Cause: err}
			}
			rn.result.Requirements = reqs
			return fmt.Sprintf("%d required, %d preferred, %d keywords",
				len(reqs.RequiredSkills), len(reqs.PreferredSkills), len(reqs.Keywords)), nil
		}},
		{StageRank, func(context.Context) (string, error) {
			ranked = ranking.RankExperience(&sess.Experience, reqs, ranking.Options{TopK: r.opts.TopK, Now: r.now()})
			return fmt.Sprintf("selected %d of %d entries", len(ranked), len(sess.Experience.Entries)), nil
		}},
		{StageAssemble, func(context.Context) (string, error) {
			var err error
			request, err = prompts.Assemble(ranked, reqs, sess.Preferences, rn.result.Job, prompts.AssembleOptions{MaxBytes: r.opts.MaxPromptBytes})
			if err != nil {
				return "", &StageError{Stage: StageAssemble, Cause: err}
			}
			size, _ := prompts.PromptSize(request)
			return fmt.Sprintf("prompt %d bytes with %d entries", size, len(request.Experience)), nil
		}},
		{StageGenerate, func(ctx context.Context) (string, error) {
			var err error
			gen, err = rn.generate(ctx, request)
			if err != nil {
				return "", err
			}
			rn.result.Content = &gen.Content
			rn.result.Usage = gen.Usage
			rn.result.Model = gen.Model
			return fmt.Sprintf("%d sections, %d bullets", len(gen.Content.Sections), len(gen.Content.Bullets)), nil
		}},
		{StageScore, func(context.Context) (string, error) {
			rn.result.ATS = rn.scorer.Score(reqs, rn.result.Content)
			return fmt.Sprintf("overall %.2f", rn.result.ATS.Overall), nil
		}},
		{StageUsage, func(context.Context) (string, error) {
			rn.result.Usage.WordsGenerated = CountWords(rn.result.Content)
			u := rn.result.Usage
			return fmt.Sprintf("%d prompt tokens, %d completion tokens, %d words", u.PromptTokens, u.CompletionTokens, u.WordsGenerated), nil
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			serr := &StageError{Stage: step.stage, Retryable: true, Cause: err}
			rn.trace(step.stage, "cancelled", 0, serr)
			return rn.result, serr
		}
		start := r.now()
		msg, err := step.fn(ctx)
		elapsed := r.now().Sub(start)
		if err != nil {
			var serr *StageError
			if !errors.As(err, &serr) {
				serr = &StageError{Stage: step.stage, Cause: err}
			}
			rn.trace(step.stage, "failed", elapsed, serr)
			return rn.result, serr
		}
		rn.trace(step.stage, msg, elapsed, nil)
	}
	return rn.result, nil
}

// ground freezes the job snapshot. A posting supplied only as a URL is read
// through the grounder; if that fails the user's text is used when present.
func (rn *run) ground(ctx context.Context) (string, error) {
	job := &rn.result.Job
	if job.Captured() {
		return "job snapshot already captured", nil
	}

	msg := "using supplied job text"
	text := parsing.CleanText(job.RawText)
	if job.SourceURL != "" && rn.grounder != nil {
		grounded, err := rn.grounder.Ground(ctx, job.SourceURL)
		switch {
		case err == nil:
			text = parsing.CombineJobContent(text, parsing.CleanText(grounded))
			job.Grounded = true
			msg = "grounded job posting from " + job.SourceURL
		case text != "":
			rn.logger.Warn("grounding failed, using supplied text",
				zap.String("session_id", rn.sess.ID.String()), zap.Error(err))
			msg = "grounding failed, using supplied job text: " + err.Error()
		default:
			return "", &StageError{Stage: StageGround, Retryable: llm.IsTransient(err), Cause: err}
		}
	}
	if text == "" {
		return "", &StageError{Stage: StageGround, Cause: errors.New("job has neither text nor a readable URL")}
	}

	now := rn.now().UTC()
	job.Text = text
	job.CapturedAt = &now
	return msg, nil
}

func (rn *run) generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, rn.opts.GenerationTimeout)
	defer cancel()

	res, err := rn.generator.Generate(ctx, req)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, &StageError{Stage: StageGenerate, Retryable: true,
				Cause: fmt.Errorf("generation exceeded %s: %w", rn.opts.GenerationTimeout, err)}
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, &StageError{Stage: StageGenerate, Retryable: true, Cause: err}
		}
		return nil, &StageError{Stage: StageGenerate, Retryable: llm.IsTransient(err), Cause: err}
	}
	if res == nil {
		return nil, &StageError{Stage: StageGenerate, Cause: errors.New("generator returned no result")}
	}
	return res, nil
}

func (rn *run) trace(stage, msg string, elapsed time.Duration, err error) {
	entry := types.TraceEntry{
		Stage:      stage,
		Message:    msg,
		At:         rn.now().UTC(),
		DurationMs: elapsed.Milliseconds(),
		Attempt:    rn.attempt,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	rn.result.Trace = append(rn.result.Trace, entry)

	rn.logger.Debug("pipeline stage",
		zap.String("session_id", rn.sess.ID.String()),
		zap.String("stage", stage),
		zap.Int("attempt", rn.attempt),
		zap.Duration("elapsed", elapsed),
		zap.Bool("failed", err != nil))

	if rn.opts.OnProgress != nil {
		rn.opts.OnProgress(ProgressEvent{
			SessionID: rn.sess.ID.String(),
			Stage:     stage,
			Message:   msg,
			Failed:    err != nil,
		})
	}
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// CountWords counts word runs across bullets, summary and cover letter
func CountWords(c *types.TailoredContent) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, b := range c.AllBullets() {
		n += len(wordPattern.FindAllStringIndex(b, -1))
	}
	n += len(wordPattern.FindAllStringIndex(c.Summary, -1))
	n += len(wordPattern.FindAllStringIndex(c.CoverLetter, -1))
	return n
}
