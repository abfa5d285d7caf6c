package automation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/actionplan"
	"github.com/nexohr/psicorisco/internal/domain/assessment"
	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeAssessments serves canned responses and org contexts.
type fakeAssessments struct {
	mu        sync.Mutex
	responses map[uuid.UUID]*assessment.Response
	orgs      map[uuid.UUID]*assessment.OrgContext // by employee
	getErr    error
}

func newFakeAssessments() *fakeAssessments {
	return &fakeAssessments{
		responses: make(map[uuid.UUID]*assessment.Response),
		orgs:      make(map[uuid.UUID]*assessment.OrgContext),
	}
}

func (f *fakeAssessments) GetResponse(_ context.Context, id uuid.UUID) (*assessment.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.responses[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeResponseNotFound, "response %s", id)
	}
	return r, nil
}

func (f *fakeAssessments) GetOrgContext(_ context.Context, _, employeeID uuid.UUID) (*assessment.OrgContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[employeeID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "no org context")
	}
	return org, nil
}

// fakeQueue is an in-memory QueueRepository with real lease semantics.
type fakeQueue struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.WorkItem // by response
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{items: make(map[uuid.UUID]*domain.WorkItem)}
}

func (q *fakeQueue) Enqueue(_ context.Context, item *domain.WorkItem) (*domain.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.items[item.ResponseID]; ok {
		return existing, nil
	}
	cp := *item
	q.items[item.ResponseID] = &cp
	return &cp, nil
}

func (q *fakeQueue) Lease(_ context.Context, owner string, ttl time.Duration, now time.Time) (*domain.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var candidates []*domain.WorkItem
	for _, it := range q.items {
		if it.State == domain.StatePending && !now.Before(it.NextAttemptAt) {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeLeaseNotAcquired, "queue empty")
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EnqueuedAt.Before(candidates[j].EnqueuedAt)
	})
	it := candidates[0]
	expiry := now.Add(ttl)
	it.State = domain.StateProcessing
	it.LeaseOwner = owner
	it.LeaseExpiresAt = &expiry
	it.UpdatedAt = now
	cp := *it
	return &cp, nil
}

func (q *fakeQueue) ExtendLease(_ context.Context, itemID uuid.UUID, owner string, ttl time.Duration, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == itemID {
			if it.LeaseOwner != owner {
				return apperrors.New(apperrors.ErrCodeLeaseNotHeld, "lease lost")
			}
			expiry := now.Add(ttl)
			it.LeaseExpiresAt = &expiry
			return nil
		}
	}
	return apperrors.New(apperrors.ErrCodeWorkItemNotFound, "no item")
}

func (q *fakeQueue) Update(_ context.Context, item *domain.WorkItem, owner string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.items[item.ResponseID]
	if !ok {
		return apperrors.New(apperrors.ErrCodeWorkItemNotFound, "no item")
	}
	releasing := item.State.Terminal() || item.State == domain.StatePending
	if !releasing && stored.LeaseOwner != "" && stored.LeaseOwner != owner {
		return apperrors.New(apperrors.ErrCodeLeaseNotHeld, "lease lost")
	}
	cp := *item
	q.items[item.ResponseID] = &cp
	return nil
}

func (q *fakeQueue) GetByResponse(_ context.Context, responseID uuid.UUID) (*domain.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[responseID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeWorkItemNotFound, "no item")
	}
	cp := *it
	return &cp, nil
}

func (q *fakeQueue) ReapExpired(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int
	for _, it := range q.items {
		if it.State == domain.StateProcessing && it.LeaseExpiresAt != nil && !now.Before(*it.LeaseExpiresAt) {
			it.State = domain.StatePending
			it.LeaseOwner = ""
			it.LeaseExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) Counts(_ context.Context, companyID uuid.UUID) (map[domain.State]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[domain.State]int)
	for _, it := range q.items {
		if companyID != uuid.Nil && it.CompanyID != companyID {
			continue
		}
		out[it.State]++
	}
	return out, nil
}

func (q *fakeQueue) state(responseID uuid.UUID) domain.State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items[responseID].State
}

// fakeConfigs stores per-company policies.
type fakeConfigs struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*domain.Config
}

func newFakeConfigs() *fakeConfigs {
	return &fakeConfigs{configs: make(map[uuid.UUID]*domain.Config)}
}

func (f *fakeConfigs) GetByCompany(_ context.Context, companyID uuid.UUID) (*domain.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[companyID]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeConfigMissing, "company %s", companyID)
	}
	return cfg, nil
}

func (f *fakeConfigs) Save(_ context.Context, cfg *domain.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[cfg.CompanyID] = cfg
	return nil
}

// fakeAnalyses stores risk analyses by response.
type fakeAnalyses struct {
	mu         sync.Mutex
	byResponse map[uuid.UUID]*risk.Analysis
	byID       map[uuid.UUID]*risk.Analysis
	saveErr    error
}

func newFakeAnalyses() *fakeAnalyses {
	return &fakeAnalyses{
		byResponse: make(map[uuid.UUID]*risk.Analysis),
		byID:       make(map[uuid.UUID]*risk.Analysis),
	}
}

func (f *fakeAnalyses) Save(_ context.Context, a *risk.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, dup := f.byResponse[a.ResponseID]; dup {
		return apperrors.New(apperrors.ErrCodeConflict, "analysis exists")
	}
	f.byResponse[a.ResponseID] = a
	f.byID[a.ID] = a
	return nil
}

func (f *fakeAnalyses) GetByResponse(_ context.Context, responseID uuid.UUID) (*risk.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byResponse[responseID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeRiskAnalysisNotFound, "no analysis")
	}
	return a, nil
}

func (f *fakeAnalyses) Get(_ context.Context, id uuid.UUID) (*risk.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeRiskAnalysisNotFound, "no analysis")
	}
	return a, nil
}

// fakePlans is an in-memory actionplan.Repository.
type fakePlans struct {
	mu         sync.Mutex
	byAnalysis map[uuid.UUID]*actionplan.Plan
}

func newFakePlans() *fakePlans {
	return &fakePlans{byAnalysis: make(map[uuid.UUID]*actionplan.Plan)}
}

func (f *fakePlans) Save(_ context.Context, p *actionplan.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.byAnalysis[p.AnalysisID]; dup {
		return apperrors.New(apperrors.ErrCodeActionPlanAlreadyExists, "plan exists")
	}
	f.byAnalysis[p.AnalysisID] = p
	return nil
}

func (f *fakePlans) GetByAnalysis(_ context.Context, analysisID uuid.UUID) (*actionplan.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byAnalysis[analysisID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeActionPlanNotFound, "no plan")
	}
	return p, nil
}

func (f *fakePlans) ListBySector(context.Context, uuid.UUID, uuid.UUID, int) ([]*actionplan.Plan, error) {
	return nil, nil
}

// fakeNotifications is an in-memory notification.Repository.
type fakeNotifications struct {
	mu          sync.Mutex
	byDedupe    map[string]*notification.Notification
	escalations map[uuid.UUID]*notification.EscalationState // by analysis
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{
		byDedupe:    make(map[string]*notification.Notification),
		escalations: make(map[uuid.UUID]*notification.EscalationState),
	}
}

func (f *fakeNotifications) Save(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.byDedupe[n.DedupeKey]; dup {
		return apperrors.New(apperrors.ErrCodeNotificationDuplicate, "duplicate")
	}
	f.byDedupe[n.DedupeKey] = n
	return nil
}

func (f *fakeNotifications) UpdateStatus(_ context.Context, id uuid.UUID, status notification.Status, sentAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.byDedupe {
		if n.ID == id {
			n.Status = status
			n.SentAt = sentAt
			return nil
		}
	}
	return apperrors.New(apperrors.ErrCodeNotificationNotFound, "no notification")
}

func (f *fakeNotifications) ListByAnalysis(_ context.Context, analysisID uuid.UUID) ([]*notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.Notification
	for _, n := range f.byDedupe {
		if n.AnalysisID == analysisID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) SaveEscalation(_ context.Context, s *notification.EscalationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.escalations[s.AnalysisID]; dup {
		return apperrors.New(apperrors.ErrCodeConflict, "escalation exists")
	}
	f.escalations[s.AnalysisID] = s
	return nil
}

func (f *fakeNotifications) UpdateEscalation(_ context.Context, s *notification.EscalationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalations[s.AnalysisID] = s
	return nil
}

func (f *fakeNotifications) DueEscalations(_ context.Context, now time.Time, limit int) ([]*notification.EscalationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.EscalationState
	for _, s := range f.escalations {
		if s.Due(now) {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeNotifications) GetEscalationByAnalysis(_ context.Context, analysisID uuid.UUID) (*notification.EscalationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.escalations[analysisID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "no escalation")
	}
	return s, nil
}

func (f *fakeNotifications) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byDedupe)
}

// recordingSender captures sent notifications; optionally failing.
type recordingSender struct {
	mu   sync.Mutex
	sent []*notification.Notification
	err  error
}

func (s *recordingSender) Send(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// recordingPublisher captures pipeline lifecycle events.
type recordingPublisher struct {
	mu        sync.Mutex
	created   int
	completed int
	failures  []string
}

func (p *recordingPublisher) PublishAnalysisCreated(context.Context, *risk.Analysis) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return nil
}

func (p *recordingPublisher) PublishPipelineCompleted(context.Context, *domain.WorkItem, scoring.ExposureLevel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	return nil
}

func (p *recordingPublisher) PublishPipelineFailed(_ context.Context, _ *domain.WorkItem, cause string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, cause)
	return nil
}

func (p *recordingPublisher) failureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.failures)
}

// recordingFailureNotifier captures permanent-failure notices.
type recordingFailureNotifier struct {
	mu      sync.Mutex
	notices []uuid.UUID
}

func (n *recordingFailureNotifier) NotifyProcessingFailure(_ context.Context, item *domain.WorkItem, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, item.ResponseID)
	return nil
}

func (n *recordingFailureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

// fakeLogs is an in-memory LogRepository.
type fakeLogs struct {
	mu      sync.Mutex
	entries []*domain.LogEntry
}

func (f *fakeLogs) Append(_ context.Context, e *domain.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLogs) ListByResponse(_ context.Context, responseID uuid.UUID) ([]*domain.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.LogEntry
	for _, e := range f.entries {
		if e.ResponseID == responseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogs) hasFailure(detail string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Outcome == domain.OutcomeFailure && e.Detail == detail {
			return true
		}
	}
	return false
}

func (f *fakeLogs) hasSkip(detail string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Outcome == domain.OutcomeSkipped && e.Detail == detail {
			return true
		}
	}
	return false
}

func (f *fakeLogs) Stats(_ context.Context, companyID uuid.UUID, since time.Time) (*domain.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &domain.Stats{CompanyID: companyID, Since: since, StageFailures: make(map[domain.State]int)}
	for _, e := range f.entries {
		if companyID != uuid.Nil && e.CompanyID != companyID {
			continue
		}
		if e.Outcome == domain.OutcomeFailure {
			s.StageFailures[e.Stage]++
		}
	}
	return s, nil
}
