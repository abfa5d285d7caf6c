package actionplan

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexohr/psicorisco/internal/domain/assessment"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// memoryRepo is an in-memory Repository for generator tests.
type memoryRepo struct {
	byAnalysis   map[uuid.UUID]*Plan
	saveErr      error
	afterSaveErr func()
	saves        int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byAnalysis: make(map[uuid.UUID]*Plan)}
}

func (r *memoryRepo) Save(_ context.Context, plan *Plan) error {
	if r.saveErr != nil {
		if r.afterSaveErr != nil {
			r.afterSaveErr()
		}
		return r.saveErr
	}
	if _, dup := r.byAnalysis[plan.AnalysisID]; dup {
		return apperrors.New(apperrors.ErrCodeActionPlanAlreadyExists, "duplicate plan")
	}
	r.byAnalysis[plan.AnalysisID] = plan
	r.saves++
	return nil
}

func (r *memoryRepo) GetByAnalysis(_ context.Context, analysisID uuid.UUID) (*Plan, error) {
	p, ok := r.byAnalysis[analysisID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeActionPlanNotFound, "no plan")
	}
	return p, nil
}

func (r *memoryRepo) ListBySector(context.Context, uuid.UUID, uuid.UUID, int) ([]*Plan, error) {
	return nil, nil
}

func analysisWith(categories ...risk.CategoryRisk) *risk.Analysis {
	return &risk.Analysis{
		ID:         uuid.New(),
		ResponseID: uuid.New(),
		CompanyID:  uuid.New(),
		SectorID:   uuid.New(),
		Categories: categories,
	}
}

func categoryAt(id string, level scoring.ExposureLevel) risk.CategoryRisk {
	c := risk.CategoryRisk{
		CategoryID:         id,
		Level:              level,
		RecommendedActions: []string{"acao recomendada " + id},
	}
	if level.RequiresAction() {
		c.MandatoryMeasures = []string{"medida obrigatoria " + id}
	}
	return c
}

func TestGenerate(t *testing.T) {
	repo := newMemoryRepo()
	g := NewGenerator(repo, nil)
	analysis := analysisWith(
		categoryAt("carga_trabalho", scoring.ExposureCritico),
		categoryAt("autonomia", scoring.ExposureAlto),
		categoryAt("relacoes", scoring.ExposureBaixo),
	)
	org := &assessment.OrgContext{SectorID: analysis.SectorID, SectorName: "Operações"}

	plan, err := g.Generate(context.Background(), analysis, org, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, analysis.ID, plan.AnalysisID)
	assert.Equal(t, analysis.SectorID, plan.SectorID)
	assert.Equal(t, "Operações", plan.SectorName)
	assert.Equal(t, StatusOpen, plan.Status)
	assert.Equal(t, scoring.ExposureCritico, plan.Priority)

	// Only the alto and critico categories contribute items.
	for _, it := range plan.Items {
		assert.NotEqual(t, "relacoes", it.CategoryID)
	}
	assert.NotEmpty(t, plan.MandatoryItems())
}

func TestGenerate_DueDatesByLevel(t *testing.T) {
	g := NewGenerator(newMemoryRepo(), nil)
	analysis := analysisWith(
		categoryAt("carga_trabalho", scoring.ExposureCritico),
		categoryAt("autonomia", scoring.ExposureAlto),
	)

	plan, err := g.Generate(context.Background(), analysis, nil, fixedNow)
	require.NoError(t, err)

	// Item deadlines track each category's re-evaluation window.
	for _, it := range plan.Items {
		switch it.Level {
		case scoring.ExposureCritico:
			assert.Equal(t, fixedNow.Add(risk.NextEvaluationOffset(scoring.ExposureCritico)), it.DueAt)
			assert.Equal(t, fixedNow.Add(30*24*time.Hour), it.DueAt)
		case scoring.ExposureAlto:
			assert.Equal(t, fixedNow.Add(risk.NextEvaluationOffset(scoring.ExposureAlto)), it.DueAt)
			assert.Equal(t, fixedNow.Add(90*24*time.Hour), it.DueAt)
		}
	}
}

func TestGenerate_NoActionNeeded(t *testing.T) {
	repo := newMemoryRepo()
	g := NewGenerator(repo, nil)
	analysis := analysisWith(categoryAt("autonomia", scoring.ExposureMedio))

	plan, err := g.Generate(context.Background(), analysis, nil, fixedNow)
	require.NoError(t, err)
	assert.Nil(t, plan)
	assert.Zero(t, repo.saves)
}

func TestGenerate_Idempotent(t *testing.T) {
	repo := newMemoryRepo()
	g := NewGenerator(repo, nil)
	analysis := analysisWith(categoryAt("carga_trabalho", scoring.ExposureAlto))

	first, err := g.Generate(context.Background(), analysis, nil, fixedNow)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), analysis, nil, fixedNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.saves)
}

func TestGenerate_ConcurrentDuplicateResolved(t *testing.T) {
	repo := newMemoryRepo()
	g := NewGenerator(repo, nil)
	analysis := analysisWith(categoryAt("carga_trabalho", scoring.ExposureAlto))

	// Simulate a racing worker inserting between the existence check
	// and the save: Save reports a duplicate, and the stored plan only
	// becomes visible afterwards.
	winner := &Plan{ID: uuid.New(), AnalysisID: analysis.ID}
	repo.saveErr = apperrors.New(apperrors.ErrCodeActionPlanAlreadyExists, "duplicate plan")
	repo.afterSaveErr = func() { repo.byAnalysis[analysis.ID] = winner }

	plan, err := g.Generate(context.Background(), analysis, nil, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, plan.ID)
}

func TestGenerate_NilAnalysis(t *testing.T) {
	g := NewGenerator(newMemoryRepo(), nil)
	_, err := g.Generate(context.Background(), nil, nil, fixedNow)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeActionPlanGenFailed, apperrors.GetCode(err))
}
