// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package triage implements the iteration controller: the state machine that
// collects a bounded batch of labels, hands them to a scoring model, commits
// the new score map, and decides when triage is complete.
//
// States move Collecting -> Training -> Scoring -> Collecting|Complete. A
// Controller owns one project. Writes are serialized on the controller;
// reads run concurrently with an outstanding train step and observe the last
// committed ranking until the step commits.
package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/triage-engine/internal/ranking"
	"github.com/pdiddy/triage-engine/internal/scoring"
	"github.com/pdiddy/triage-engine/internal/selection"
	"github.com/pdiddy/triage-engine/pkg/types"
)

const (
	defaultMaxIterations = 10
	defaultTimeout       = 2 * time.Minute
	persistTimeout       = 30 * time.Second
)

// Commit is the complete effect of one successful train step. A Persister
// must apply all of it or none of it.
type Commit struct {
	Scores        map[string]float64
	Iteration     types.TrainingIteration
	NextIteration int
	Status        types.Status
}

// Persister stores controller state changes. Every method is called with the
// controller's write lock held and before the change becomes visible in
// memory; an error aborts the change.
type Persister interface {
	SaveSelection(ctx context.Context, projectID string, relevant, irrelevant []string) error
	CommitIteration(ctx context.Context, projectID string, c Commit) error
	SaveStatus(ctx context.Context, projectID string, status types.Status, currentIteration int) error
	SaveKeywords(ctx context.Context, projectID string, kf types.KeywordFilter) error
}

// Runner executes scoring jobs. *ants.Pool satisfies it.
type Runner interface {
	Submit(task func()) error
}

type goRunner struct{}

func (goRunner) Submit(task func()) error {
	go task()
	return nil
}

// Options configures a Controller.
type Options struct {
	// Model re-scores citations. Required.
	Model scoring.Model

	// Persister stores every state change. Nil keeps state in memory only.
	Persister Persister

	// Runner executes scoring jobs. Nil starts a goroutine per job.
	Runner Runner

	// Timeout bounds one scoring run (default 2m).
	Timeout time.Duration

	Logger  *zap.Logger
	Metrics *Metrics

	// Now returns the commit timestamp (default time.Now).
	Now func() time.Time
}

// Controller runs the triage state machine for one project.
type Controller struct {
	opts Options
	log  *zap.Logger

	mu       sync.RWMutex
	state    types.ProjectState
	index    map[string]int
	sel      *selection.Set
	inFlight bool
}

// New validates state and returns a Controller for it. Missing limits take
// their defaults. A state persisted mid-training resumes in Collecting with
// its selection intact.
func New(state types.ProjectState, opts Options) (*Controller, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("scoring model is required")
	}
	if opts.Runner == nil {
		opts.Runner = goRunner{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	st := cloneState(state)
	if st.Quota <= 0 {
		st.Quota = selection.DefaultQuota
	}
	if st.MaxIterations <= 0 {
		st.MaxIterations = defaultMaxIterations
	}
	if st.CurrentIteration == 0 {
		st.CurrentIteration = 1
	}
	if st.Status == "" || st.Status == types.StatusTraining || st.Status == types.StatusScoring {
		st.Status = types.StatusCollecting
	}
	if err := validate(st); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(st.Citations))
	for i, c := range st.Citations {
		index[c.ID] = i
	}

	sel, err := selection.Restore(st.Quota, st.PendingRelevant, st.PendingIrrelevant)
	if err != nil {
		return nil, fmt.Errorf("restoring selection: %w", err)
	}
	for _, id := range append(sel.Relevant(), sel.Irrelevant()...) {
		if _, ok := index[id]; !ok {
			return nil, fmt.Errorf("restoring selection: citation %s: %w", id, ErrUnknownCitation)
		}
	}

	return &Controller{
		opts:  opts,
		log:   opts.Logger.With(zap.String("project", st.ID)),
		state: st,
		index: index,
		sel:   sel,
	}, nil
}

func validate(st types.ProjectState) error {
	if !st.Status.Valid() {
		return fmt.Errorf("unknown status %q", st.Status)
	}
	seen := make(map[string]bool, len(st.Citations))
	for _, c := range st.Citations {
		if c.ID == "" {
			return fmt.Errorf("citation at index %d has no id", c.IngestionIndex)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate citation id %s", c.ID)
		}
		seen[c.ID] = true
		if c.Score < 0 || c.Score > 1 {
			return fmt.Errorf("citation %s score %v outside [0,1]", c.ID, c.Score)
		}
	}
	if st.CurrentIteration < 1 || st.CurrentIteration > st.MaxIterations+1 {
		return fmt.Errorf("current iteration %d outside [1,%d]", st.CurrentIteration, st.MaxIterations+1)
	}
	if st.Status == types.StatusComplete && len(st.History) == 0 {
		return fmt.Errorf("complete project has no training history")
	}
	return nil
}

// ID returns the project id.
func (c *Controller) ID() string {
	return c.state.ID
}

// Progress summarises the controller state for status queries.
type Progress struct {
	ProjectID        string       `json:"project_id"`
	Status           types.Status `json:"status"`
	CurrentIteration int          `json:"current_iteration"`
	MaxIterations    int          `json:"max_iterations"`
	Quota            int          `json:"quota"`
	RelevantCount    int          `json:"relevant_count"`
	IrrelevantCount  int          `json:"irrelevant_count"`
	ReadyToTrain     bool         `json:"ready_to_train"`
	TotalCitations   int          `json:"total_citations"`
	Iterations       int          `json:"iterations"`
}

// Progress returns the current status, iteration, and selection counts.
func (c *Controller) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rel, irr := c.sel.Len()
	return Progress{
		ProjectID:        c.state.ID,
		Status:           c.state.Status,
		CurrentIteration: c.state.CurrentIteration,
		MaxIterations:    c.state.MaxIterations,
		Quota:            c.state.Quota,
		RelevantCount:    rel,
		IrrelevantCount:  irr,
		ReadyToTrain:     c.sel.IsReadyToTrain() && !c.inFlight && c.state.Status != types.StatusComplete,
		TotalCitations:   len(c.state.Citations),
		Iterations:       len(c.state.History),
	}
}

// Citations returns a copy of the committed citations in ingestion order.
// It makes a Controller a ranking.Source.
func (c *Controller) Citations() []types.Citation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Citation, len(c.state.Citations))
	for i, ct := range c.state.Citations {
		out[i] = ct.Clone()
	}
	return out
}

// View returns a ranking view over the committed citations.
func (c *Controller) View() *ranking.View {
	return ranking.NewView(c)
}

// Snapshot returns a deep copy of the project state, including the pending
// selection.
func (c *Controller) Snapshot() types.ProjectState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := cloneState(c.state)
	st.PendingRelevant = c.sel.Relevant()
	st.PendingIrrelevant = c.sel.Irrelevant()
	return st
}

// History returns the committed training iterations in order.
func (c *Controller) History() []types.TrainingIteration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneHistory(c.state.History)
}

// Batch is the next set of citations to label.
type Batch struct {
	CurrentIteration int              `json:"current_iteration"`
	Status           types.Status     `json:"status"`
	Citations        []types.Citation `json:"citations"`
}

// NextBatch returns up to size top-ranked citations that are neither in the
// pending selection nor labeled in a committed iteration.
func (c *Controller) NextBatch(size int) Batch {
	c.mu.RLock()
	exclude := make(map[string]bool)
	for _, id := range c.sel.Relevant() {
		exclude[id] = true
	}
	for _, id := range c.sel.Irrelevant() {
		exclude[id] = true
	}
	for _, it := range c.state.History {
		for _, ct := range it.Relevant {
			exclude[ct.ID] = true
		}
		for _, ct := range it.Irrelevant {
			exclude[ct.ID] = true
		}
	}
	current, status := c.state.CurrentIteration, c.state.Status
	c.mu.RUnlock()

	return Batch{
		CurrentIteration: current,
		Status:           status,
		Citations:        c.View().NextBatch(exclude, size),
	}
}

// ToggleRelevant flips the relevant label of id for the current iteration.
func (c *Controller) ToggleRelevant(ctx context.Context, sess types.Session, id string) error {
	return c.Toggle(ctx, sess, id, types.LabelRelevant)
}

// ToggleIrrelevant flips the irrelevant label of id for the current iteration.
func (c *Controller) ToggleIrrelevant(ctx context.Context, sess types.Session, id string) error {
	return c.Toggle(ctx, sess, id, types.LabelIrrelevant)
}

// Toggle flips label on id. Rejected toggles leave the selection unchanged.
func (c *Controller) Toggle(ctx context.Context, sess types.Session, id string, label types.Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writableLocked(); err != nil {
		return err
	}
	if _, ok := c.index[id]; !ok {
		return fmt.Errorf("labeling %s: %w", id, ErrUnknownCitation)
	}

	next := c.sel.Clone()
	if err := next.Toggle(id, label); err != nil {
		c.opts.Metrics.label(string(label), "reject")
		c.log.Debug("label rejected",
			zap.String("citation", id), zap.String("label", string(label)),
			zap.String("actor", sess.Actor), zap.Error(err))
		return err
	}

	if c.opts.Persister != nil {
		if err := c.opts.Persister.SaveSelection(ctx, c.state.ID, next.Relevant(), next.Irrelevant()); err != nil {
			return fmt.Errorf("saving selection: %w", err)
		}
	}

	ops := next.Ops()
	action := "remove"
	if ops[len(ops)-1].Added {
		action = "add"
	}
	c.sel = next
	c.opts.Metrics.label(string(label), action)
	c.log.Debug("label toggled",
		zap.String("citation", id), zap.String("label", string(label)),
		zap.String("action", action), zap.String("actor", sess.Actor))
	return nil
}

func (c *Controller) writableLocked() error {
	if c.state.Status == types.StatusComplete {
		return ErrComplete
	}
	if c.inFlight {
		return ErrTrainingInProgress
	}
	return nil
}

// Result describes a committed train step.
type Result struct {
	// Iteration is the current iteration after the commit.
	Iteration int                     `json:"iteration"`
	Status    types.Status            `json:"status"`
	Record    types.TrainingIteration `json:"record"`
}

// job is a train step between snapshot and commit.
type job struct {
	iteration int
	input     scoring.Input
	relIDs    []string
	irrIDs    []string
	actor     string
	started   time.Time
}

type outcome struct {
	result Result
	err    error
}

// Train runs one train step over the pending selection. It waits for the
// outcome unless ctx ends first; an abandoned step still commits or fails
// atomically when scoring finishes.
func (c *Controller) Train(ctx context.Context, sess types.Session) (Result, error) {
	c.mu.Lock()
	j, err := c.beginLocked(sess)
	c.mu.Unlock()
	if err != nil {
		return Result{}, err
	}
	return c.launch(ctx, j)
}

// TrainWith replaces the pending selection with the given ids and runs a
// train step over them. Both lists must hold exactly Quota known, distinct,
// non-overlapping ids. Empty lists train the pending selection.
func (c *Controller) TrainWith(ctx context.Context, sess types.Session, relevantIDs, irrelevantIDs []string) (Result, error) {
	if len(relevantIDs) == 0 && len(irrelevantIDs) == 0 {
		return c.Train(ctx, sess)
	}

	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	if err := c.validateLabelsLocked(relevantIDs, irrelevantIDs); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	next, err := selection.Restore(c.state.Quota, relevantIDs, irrelevantIDs)
	if err != nil {
		c.mu.Unlock()
		return Result{}, &ValidationError{Problems: []string{err.Error()}}
	}
	if c.opts.Persister != nil {
		if err := c.opts.Persister.SaveSelection(ctx, c.state.ID, next.Relevant(), next.Irrelevant()); err != nil {
			c.mu.Unlock()
			return Result{}, fmt.Errorf("saving selection: %w", err)
		}
	}
	c.sel = next
	j, err := c.beginLocked(sess)
	c.mu.Unlock()
	if err != nil {
		return Result{}, err
	}
	return c.launch(ctx, j)
}

func (c *Controller) validateLabelsLocked(relevantIDs, irrelevantIDs []string) error {
	var problems []string
	k := c.state.Quota
	if len(relevantIDs) != k {
		problems = append(problems, fmt.Sprintf("need exactly %d relevant ids, got %d", k, len(relevantIDs)))
	}
	if len(irrelevantIDs) != k {
		problems = append(problems, fmt.Sprintf("need exactly %d irrelevant ids, got %d", k, len(irrelevantIDs)))
	}

	seen := make(map[string]string)
	check := func(ids []string, side string) {
		for _, id := range ids {
			if _, ok := c.index[id]; !ok {
				problems = append(problems, fmt.Sprintf("unknown citation %s", id))
				continue
			}
			if prev, ok := seen[id]; ok {
				if prev == side {
					problems = append(problems, fmt.Sprintf("citation %s listed twice as %s", id, side))
				} else {
					problems = append(problems, fmt.Sprintf("citation %s listed as both relevant and irrelevant", id))
				}
				continue
			}
			seen[id] = side
		}
	}
	check(relevantIDs, string(types.LabelRelevant))
	check(irrelevantIDs, string(types.LabelIrrelevant))

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// beginLocked performs Collecting -> Training: it checks readiness and
// captures the labeled citations and current scores.
func (c *Controller) beginLocked(sess types.Session) (*job, error) {
	if err := c.writableLocked(); err != nil {
		return nil, err
	}
	if !c.sel.IsReadyToTrain() {
		rel, irr := c.sel.Len()
		return nil, fmt.Errorf("have %d relevant and %d irrelevant of %d each: %w",
			rel, irr, c.state.Quota, ErrNotReadyToTrain)
	}

	all := make([]types.Citation, len(c.state.Citations))
	for i, ct := range c.state.Citations {
		all[i] = ct.Clone()
	}
	j := &job{
		iteration: c.state.CurrentIteration,
		relIDs:    c.sel.Relevant(),
		irrIDs:    c.sel.Irrelevant(),
		actor:     sess.Actor,
		started:   c.opts.Now(),
	}
	j.input = scoring.Input{
		Citations:  all,
		Relevant:   c.pick(all, j.relIDs),
		Irrelevant: c.pick(all, j.irrIDs),
		Previous:   scoring.PreviousScores(all),
	}

	c.inFlight = true
	c.state.Status = types.StatusTraining
	c.opts.Metrics.inFlight(1)
	c.log.Info("training started",
		zap.Int("iteration", j.iteration), zap.String("actor", sess.Actor),
		zap.String("model", c.opts.Model.Name()))
	return j, nil
}

func (c *Controller) pick(all []types.Citation, ids []string) []types.Citation {
	out := make([]types.Citation, len(ids))
	for i, id := range ids {
		out[i] = all[c.index[id]].Clone()
	}
	return out
}

func (c *Controller) launch(ctx context.Context, j *job) (Result, error) {
	done := make(chan outcome, 1)
	if err := c.opts.Runner.Submit(func() { done <- c.execute(j) }); err != nil {
		return Result{}, c.fail(j, fmt.Errorf("scheduling scoring: %w", err), false)
	}

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		c.log.Warn("caller stopped waiting for training", zap.Int("iteration", j.iteration), zap.Error(ctx.Err()))
		return Result{}, fmt.Errorf("waiting for training iteration %d: %w", j.iteration, ctx.Err())
	}
}

// execute performs Training -> Scoring -> Collecting|Complete.
func (c *Controller) execute(j *job) outcome {
	c.mu.Lock()
	c.state.Status = types.StatusScoring
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()

	raw, err := c.rescore(ctx, j.input)
	if err != nil {
		return outcome{err: c.fail(j, err, errors.Is(err, context.DeadlineExceeded))}
	}
	scores, err := scoring.Normalize(j.input, raw)
	if err != nil {
		return outcome{err: c.fail(j, err, false)}
	}
	res, err := c.commit(j, scores)
	if err != nil {
		return outcome{err: c.fail(j, err, false)}
	}
	return outcome{result: res}
}

// rescore runs the model and gives up when ctx expires, even if the model
// ignores ctx. A late result is discarded.
func (c *Controller) rescore(ctx context.Context, in scoring.Input) (map[string]float64, error) {
	type reply struct {
		scores map[string]float64
		err    error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- reply{err: fmt.Errorf("scoring model %s panicked: %v", c.opts.Model.Name(), p)}
			}
		}()
		s, err := c.opts.Model.Rescore(ctx, in)
		ch <- reply{s, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return r.scores, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) commit(j *job, scores map[string]float64) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := types.TrainingIteration{
		Index:      j.iteration,
		Relevant:   j.input.Relevant,
		Irrelevant: j.input.Irrelevant,
		Agreement:  agreement(j.input),
		TrainedBy:  j.actor,
		Timestamp:  c.opts.Now().UTC(),
	}

	next := j.iteration + 1
	status := types.StatusCollecting
	if j.iteration >= c.state.MaxIterations {
		status = types.StatusComplete
	}

	if c.opts.Persister != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		err := c.opts.Persister.CommitIteration(ctx, c.state.ID, Commit{
			Scores:        scores,
			Iteration:     record,
			NextIteration: next,
			Status:        status,
		})
		if err != nil {
			return Result{}, fmt.Errorf("committing iteration: %w", err)
		}
	}

	for i := range c.state.Citations {
		c.state.Citations[i].Score = scores[c.state.Citations[i].ID]
	}
	c.state.History = append(c.state.History, record)
	c.state.CurrentIteration = next
	c.state.Status = status
	c.state.UpdatedAt = record.Timestamp
	c.sel.Clear()
	c.inFlight = false

	elapsed := c.opts.Now().Sub(j.started)
	c.opts.Metrics.inFlight(-1)
	c.opts.Metrics.training("success", elapsed.Seconds())
	if status == types.StatusComplete {
		c.opts.Metrics.completed("max_iterations")
	}
	c.log.Info("training committed",
		zap.Int("iteration", j.iteration), zap.Int("next_iteration", next),
		zap.String("status", string(status)), zap.Float64("agreement", record.Agreement),
		zap.Duration("elapsed", elapsed))

	return Result{Iteration: next, Status: status, Record: cloneIteration(record)}, nil
}

// fail returns the controller to Collecting without touching scores,
// history, the iteration counter, or the selection.
func (c *Controller) fail(j *job, cause error, timeout bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Status = types.StatusCollecting
	c.inFlight = false

	outcome := "failure"
	if timeout {
		outcome = "timeout"
	}
	c.opts.Metrics.inFlight(-1)
	c.opts.Metrics.training(outcome, c.opts.Now().Sub(j.started).Seconds())
	c.log.Warn("training failed",
		zap.Int("iteration", j.iteration), zap.Bool("timeout", timeout), zap.Error(cause))

	return &TrainingFailure{
		Iteration:     j.iteration,
		RelevantIDs:   append([]string(nil), j.relIDs...),
		IrrelevantIDs: append([]string(nil), j.irrIDs...),
		Timeout:       timeout,
		Err:           cause,
	}
}

// Complete accepts the current ranking and ends triage early. At least one
// train step must have committed.
func (c *Controller) Complete(ctx context.Context, sess types.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writableLocked(); err != nil {
		return err
	}
	if c.state.CurrentIteration <= 1 || len(c.state.History) == 0 {
		return ErrEarlyCompletion
	}

	if c.opts.Persister != nil {
		if err := c.opts.Persister.SaveStatus(ctx, c.state.ID, types.StatusComplete, c.state.CurrentIteration); err != nil {
			return fmt.Errorf("saving status: %w", err)
		}
	}
	c.state.Status = types.StatusComplete
	c.state.UpdatedAt = c.opts.Now().UTC()
	c.opts.Metrics.completed("manual")
	c.log.Info("triage completed early",
		zap.Int("iteration", c.state.CurrentIteration), zap.String("actor", sess.Actor))
	return nil
}

// Keywords returns a copy of the project's keyword filter. Both lists are
// non-nil.
func (c *Controller) Keywords() types.KeywordFilter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.KeywordFilter{
		Include: append([]string{}, c.state.Keywords.Include...),
		Exclude: append([]string{}, c.state.Keywords.Exclude...),
	}
}

// SetKeywords replaces the keyword filter. The filter is metadata only, so
// it may change in any state.
func (c *Controller) SetKeywords(ctx context.Context, sess types.Session, kf types.KeywordFilter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kf = cloneState(types.ProjectState{Keywords: kf}).Keywords
	if c.opts.Persister != nil {
		if err := c.opts.Persister.SaveKeywords(ctx, c.state.ID, kf); err != nil {
			return fmt.Errorf("saving keywords: %w", err)
		}
	}
	c.state.Keywords = kf
	c.log.Info("keywords updated",
		zap.Int("include", len(kf.Include)), zap.Int("exclude", len(kf.Exclude)),
		zap.String("actor", sess.Actor))
	return nil
}

// agreement is the share of labels the previous scores already agreed with.
func agreement(in scoring.Input) float64 {
	total := len(in.Relevant) + len(in.Irrelevant)
	if total == 0 {
		return 0
	}
	hits := 0
	for _, ct := range in.Relevant {
		if in.Previous[ct.ID] >= types.RelevanceThreshold {
			hits++
		}
	}
	for _, ct := range in.Irrelevant {
		if in.Previous[ct.ID] < types.RelevanceThreshold {
			hits++
		}
	}
	return float64(hits) / float64(total)
}

func cloneState(st types.ProjectState) types.ProjectState {
	out := st
	out.Citations = make([]types.Citation, len(st.Citations))
	for i, c := range st.Citations {
		out.Citations[i] = c.Clone()
	}
	out.History = cloneHistory(st.History)
	out.Keywords = types.KeywordFilter{
		Include: append([]string(nil), st.Keywords.Include...),
		Exclude: append([]string(nil), st.Keywords.Exclude...),
	}
	out.PendingRelevant = append([]string(nil), st.PendingRelevant...)
	out.PendingIrrelevant = append([]string(nil), st.PendingIrrelevant...)
	return out
}

func cloneHistory(h []types.TrainingIteration) []types.TrainingIteration {
	if h == nil {
		return nil
	}
	out := make([]types.TrainingIteration, len(h))
	for i, it := range h {
		out[i] = cloneIteration(it)
	}
	return out
}

func cloneIteration(it types.TrainingIteration) types.TrainingIteration {
	out := it
	out.Relevant = make([]types.Citation, len(it.Relevant))
	for i, c := range it.Relevant {
		out.Relevant[i] = c.Clone()
	}
	out.Irrelevant = make([]types.Citation, len(it.Irrelevant))
	for i, c := range it.Irrelevant {
		out.Irrelevant[i] = c.Clone()
	}
	return out
}
