package scoring

import (
	"github.com/nexohr/psicorisco/internal/domain/assessment"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// ─────────────────────────────────────────────
// Exposure levels
// ─────────────────────────────────────────────

// ExposureLevel classifies a 0-100 exposure score per NR-01 practice.
type ExposureLevel string

const (
	ExposureBaixo   ExposureLevel = "baixo"
	ExposureMedio   ExposureLevel = "medio"
	ExposureAlto    ExposureLevel = "alto"
	ExposureCritico ExposureLevel = "critico"
)

// Severity orders exposure levels for comparison; higher is worse.
func (l ExposureLevel) Severity() int {
	switch l {
	case ExposureBaixo:
		return 0
	case ExposureMedio:
		return 1
	case ExposureAlto:
		return 2
	case ExposureCritico:
		return 3
	default:
		return -1
	}
}

// RequiresAction reports whether the level mandates intervention.
func (l ExposureLevel) RequiresAction() bool {
	return l == ExposureAlto || l == ExposureCritico
}

// Thresholds is the ladder mapping a 0-100 score to an exposure level:
// below Medio is baixo, below Alto is medio, below Critico is alto, and
// anything at or above Critico is critico.
type Thresholds struct {
	Medio   float64 `yaml:"medio" json:"medio"`
	Alto    float64 `yaml:"alto" json:"alto"`
	Critico float64 `yaml:"critico" json:"critico"`
}

// DefaultThresholds is the NR-01 practice ladder, used by categories
// that define no ladder of their own.
var DefaultThresholds = Thresholds{Medio: 25, Alto: 50, Critico: 75}

// IsZero reports whether no ladder was configured.
func (t Thresholds) IsZero() bool { return t == Thresholds{} }

// Valid reports whether the ladder is strictly increasing within 0-100.
func (t Thresholds) Valid() bool {
	return t.Medio > 0 && t.Alto > t.Medio && t.Critico > t.Alto && t.Critico <= 100
}

// Classify maps a score to its exposure level on this ladder.
func (t Thresholds) Classify(score float64) ExposureLevel {
	switch {
	case score < t.Medio:
		return ExposureBaixo
	case score < t.Alto:
		return ExposureMedio
	case score < t.Critico:
		return ExposureAlto
	default:
		return ExposureCritico
	}
}

// Classify maps a 0-100 score to its exposure level on the default
// ladder.
func Classify(score float64) ExposureLevel {
	return DefaultThresholds.Classify(score)
}

// ─────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────

// CategoryScore is the scoring outcome for one risk category.
type CategoryScore struct {
	CategoryID   string        `json:"category_id"`
	CategoryName string        `json:"category_name"`
	Score        float64       `json:"score"` // 0-100, higher is worse
	Level        ExposureLevel `json:"level"`
	AnswerCount  int           `json:"answer_count"`
}

// Result is the full scoring outcome for a response. Categories with no
// answers are omitted rather than scored as zero.
type Result struct {
	Categories   []CategoryScore `json:"categories"`
	OverallScore float64         `json:"overall_score"`
	OverallLevel ExposureLevel   `json:"overall_level"`
}

// WorstLevel returns the most severe category level, or baixo when the
// result is empty.
func (r *Result) WorstLevel() ExposureLevel {
	worst := ExposureBaixo
	for _, c := range r.Categories {
		if c.Level.Severity() > worst.Severity() {
			worst = c.Level
		}
	}
	return worst
}

// Engine scores questionnaire responses against a category catalog.
type Engine struct {
	catalog *Catalog
}

// NewEngine builds a scoring engine over the given catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Score computes per-category exposure scores for a completed response.
//
// For each category, answer values are adjusted for reverse-keyed
// questions (v' = max - v + min), averaged, and rescaled to 0-100 via
// (mean - min) / (max - min) * 100. The overall score is the mean of
// category scores and the overall level is derived from it.
func (e *Engine) Score(response *assessment.Response) (*Result, error) {
	if response == nil {
		return nil, apperrors.New(apperrors.ErrCodeResponseNotFound, "response is nil")
	}
	if !response.IsComplete() {
		return nil, apperrors.Newf(apperrors.ErrCodeResponseIncomplete,
			"response %s has status %q with %d answers",
			response.ID, response.Status, len(response.Answers))
	}

	grouped := response.AnswersByCategory()
	scores := make([]CategoryScore, 0, len(grouped))
	var failed int
	var lastErr error

	for _, def := range e.catalog.Categories() {
		answers, ok := grouped[def.ID]
		if !ok {
			continue // unanswered category is omitted, not zero
		}
		cs, err := e.scoreCategory(def, answers)
		if err != nil {
			// A bad category does not sink the whole response unless
			// every answered category fails.
			failed++
			lastErr = err
			continue
		}
		scores = append(scores, cs)
	}
	// Answers pointing at categories absent from the catalog count as
	// failed categories.
	for id := range grouped {
		if _, ok := e.catalog.Get(id); !ok {
			failed++
			lastErr = apperrors.Newf(apperrors.ErrCodeScoringUnknownCategory,
				"answers reference unknown category %q", id)
		}
	}

	if len(scores) == 0 {
		if failed > 0 {
			return nil, apperrors.Wrap(lastErr, apperrors.ErrCodeRiskAllCategoriesFailed,
				"all answered categories failed to score")
		}
		return nil, apperrors.New(apperrors.ErrCodeScoringEmptyResponse,
			"response has no answers in any known category")
	}

	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	overall := sum / float64(len(scores))

	return &Result{
		Categories:   scores,
		OverallScore: overall,
		OverallLevel: Classify(overall),
	}, nil
}

func (e *Engine) scoreCategory(def CategoryDefinition, answers []assessment.Answer) (CategoryScore, error) {
	min, max := float64(def.ScaleMin), float64(def.ScaleMax)
	var sum float64
	for _, a := range answers {
		v := float64(a.Value)
		if v < min || v > max {
			return CategoryScore{}, apperrors.Newf(apperrors.ErrCodeScoringInvalidAnswer,
				"answer %d outside scale [%d, %d] for category %s",
				a.Value, def.ScaleMin, def.ScaleMax, def.ID)
		}
		if a.Reverse {
			v = max - v + min
		}
		sum += v
	}
	mean := sum / float64(len(answers))
	score := (mean - min) / (max - min) * 100

	return CategoryScore{
		CategoryID:   def.ID,
		CategoryName: def.Name,
		Score:        score,
		Level:        def.Ladder().Classify(score),
		AnswerCount:  len(answers),
	}, nil
}
