package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type state int

const (
	stateInit state = iota
	stateQueryGen
	stateSearch
	stateEmptyRetry
	stateAggregate
	stateReflect
	stateFinalize
	stateDone
	stateFailed
)

var stateNames = [...]string{
	stateInit:       "init",
	stateQueryGen:   "query_gen",
	stateSearch:     "search",
	stateEmptyRetry: "empty_retry",
	stateAggregate:  "aggregate",
	stateReflect:    "reflect",
	stateFinalize:   "finalize",
	stateDone:       "done",
	stateFailed:     "failed",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s state) terminal() bool { return s == stateDone || s == stateFailed }

// Transition is reported to an observer on every state change.
type Transition struct {
	RunID     string
	From      string
	To        string
	Iteration int
	Query     string
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxResults sets how many hits are requested per search.
func WithMaxResults(n int) Option { return func(l *Loop) { l.maxResults = n } }

// WithSearchFullPage asks the search provider to fill raw content itself.
func WithSearchFullPage(on bool) Option { return func(l *Loop) { l.searchFullPage = on } }

// WithTokensPerSource sets the per-source budget of fetched content.
func WithTokensPerSource(n int) Option { return func(l *Loop) { l.tokensPerSource = n } }

// WithFullFetch toggles fetching full page content during aggregation.
func WithFullFetch(on bool) Option { return func(l *Loop) { l.fullFetch = on } }

// WithFetchConcurrency bounds parallel fetches within one aggregation.
func WithFetchConcurrency(n int) Option { return func(l *Loop) { l.fetchConcurrency = n } }

// WithRetryBackoff sets the fixed delay before an empty-result retry.
func WithRetryBackoff(d time.Duration) Option { return func(l *Loop) { l.backoff = d } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(l *Loop) { l.log = log } }

// WithClock sets the clock used for the date shown to the model.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(Transition)) Option { return func(l *Loop) { l.observe = fn } }

// Loop drives the research state machine. A Loop holds no per-run state and
// may serve concurrent Run calls.
type Loop struct {
	search     SearchProvider
	queries    *QueryGenerator
	aggregator *Aggregator
	reflector  *Reflector
	answers    *AnswerSynthesizer

	maxResults       int
	searchFullPage   bool
	tokensPerSource  int
	fullFetch        bool
	fetchConcurrency int
	backoff          time.Duration
	log              *slog.Logger
	now              func() time.Time
	observe          func(Transition)
}

// NewLoop wires the capabilities into a Loop.
func NewLoop(search SearchProvider, fetcher ContentFetcher, model LanguageModel, opts ...Option) *Loop {
	l := &Loop{
		search:           search,
		maxResults:       3,
		tokensPerSource:  1000,
		fullFetch:        true,
		fetchConcurrency: 4,
		backoff:          time.Second,
		log:              slog.Default(),
		now:              time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	l.queries = NewQueryGenerator(model, l.now)
	l.aggregator = NewAggregator(fetcher,
		WithBudget(l.tokensPerSource),
		WithFetchFull(l.fullFetch),
		WithParallelism(l.fetchConcurrency),
		WithAggregatorLogger(l.log),
	)
	l.reflector = NewReflector(model)
	l.answers = NewAnswerSynthesizer(model)
	return l
}

// Run answers q. A run that finds no search results after exhausting its
// retry budget returns a Result with Message set and a nil error. Model
// failures, malformed reflections and cancellation are returned as errors.
func (l *Loop) Run(ctx context.Context, q Question) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	r := &run{loop: l, q: q}
	return r.exec(ctx)
}

// run is the state of one Run call.
type run struct {
	loop *Loop
	q    Question
	id   string
	log  *slog.Logger

	state     state
	iter      IterationState
	hits      []Hit
	retries   int
	attempts  int
	searches  int
	citations *CitationSet
	result    Result
}

func (r *run) exec(ctx context.Context) (Result, error) {
	for {
		if r.state.terminal() {
			return r.result, nil
		}
		if err := ctx.Err(); err != nil {
			r.logCanceled()
			return Result{}, canceled(err)
		}
		if err := r.step(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.logCanceled()
				return Result{}, canceled(ctxErr)
			}
			r.log.Error("research failed",
				slog.String("state", r.state.String()),
				slog.Int("iteration", r.iter.Index),
				slog.Any("error", err),
			)
			return Result{}, err
		}
	}
}

func (r *run) step(ctx context.Context) error {
	l := r.loop
	switch r.state {
	case stateInit:
		r.id = uuid.NewString()
		r.log = l.log.With(slog.String("run_id", r.id))
		r.iter = IterationState{}
		r.retries = r.q.MaxRetry
		r.citations = NewCitationSet()
		r.log.Info("research started",
			slog.String("question", r.q.Text),
			slog.Int("max_iterations", r.q.MaxIterations),
			slog.Int("max_retry", r.q.MaxRetry),
		)
		r.to(stateQueryGen)

	case stateQueryGen:
		query, err := l.queries.Next(ctx, r.q.Text, r.iter.Reflection)
		if err != nil {
			return err
		}
		r.iter.Query = query
		r.to(stateSearch)

	case stateSearch:
		r.attempts++
		r.searches++
		hits := l.search.Search(ctx, r.iter.Query, l.maxResults, l.searchFullPage)
		r.log.Debug("search done",
			slog.String("query", r.iter.Query),
			slog.Int("hits", len(hits)),
			slog.Int("attempt", r.attempts),
		)
		if len(hits) == 0 {
			r.to(stateEmptyRetry)
			return nil
		}
		r.hits = hits
		r.to(stateAggregate)

	case stateEmptyRetry:
		if r.retries <= 0 {
			r.result = r.base()
			r.result.Message = fmt.Sprintf("no search results for \"%s\" after %d attempts", r.q.Text, r.attempts)
			r.log.Warn("research gave up", slog.Int("attempts", r.attempts))
			r.to(stateFailed)
			return nil
		}
		r.retries--
		r.log.Info("empty search, retrying",
			slog.Int("retries_left", r.retries),
			slog.Duration("backoff", l.backoff),
		)
		if err := sleep(ctx, l.backoff); err != nil {
			return err
		}
		r.to(stateQueryGen)

	case stateAggregate:
		r.iter.Aggregation = l.aggregator.Aggregate(ctx, r.hits)
		r.citations.AddHits(r.hits)
		r.log.Debug("aggregated",
			slog.Int("sources", r.iter.Aggregation.Len()),
			slog.Int("citations", r.citations.Len()),
		)
		if r.iter.Index < r.q.MaxIterations-1 {
			r.to(stateReflect)
		} else {
			r.to(stateFinalize)
		}

	case stateReflect:
		refl, err := l.reflector.Reflect(ctx, r.q.Text, r.iter.Aggregation)
		if err != nil {
			return err
		}
		r.log.Debug("reflected",
			slog.String("gap", refl.KnowledgeGap),
			slog.String("follow_up", refl.FollowUpQuery),
		)
		r.iter = IterationState{Index: r.iter.Index + 1, Reflection: &refl}
		r.attempts = 0
		r.to(stateQueryGen)

	case stateFinalize:
		answer, err := l.answers.Synthesize(ctx, r.q.Text, r.iter.Aggregation)
		if err != nil {
			return err
		}
		r.result = r.base()
		r.result.Answer = WithCitations(answer, r.citations)
		r.log.Info("research done",
			slog.Int("iterations", r.result.Iterations),
			slog.Int("searches", r.searches),
			slog.Int("sources", r.citations.Len()),
		)
		r.to(stateDone)
	}
	return nil
}

func (r *run) base() Result {
	return Result{
		RunID:          r.id,
		Question:       r.q.Text,
		Iterations:     r.iter.Index + 1,
		SearchAttempts: r.searches,
		Sources:        r.citations.URLs(),
	}
}

func (r *run) to(next state) {
	if obs := r.loop.observe; obs != nil {
		obs(Transition{
			RunID:     r.id,
			From:      r.state.String(),
			To:        next.String(),
			Iteration: r.iter.Index,
			Query:     r.iter.Query,
		})
	}
	r.state = next
}

func (r *run) logCanceled() {
	log := r.log
	if log == nil {
		log = r.loop.log
	}
	log.Warn("research canceled", slog.String("state", r.state.String()))
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
