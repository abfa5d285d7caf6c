package notification

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/actionplan"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

var levelLabels = map[scoring.ExposureLevel]string{
	scoring.ExposureBaixo:   "baixo",
	scoring.ExposureMedio:   "médio",
	scoring.ExposureAlto:    "alto",
	scoring.ExposureCritico: "crítico",
}

// RenderRiskAlert builds the subject and body for a risk alert. The
// body never names the employee: findings are reported at sector level
// to preserve response confidentiality.
func RenderRiskAlert(analysis *risk.Analysis, sectorName string) (subject, body string, err error) {
	if analysis == nil {
		return "", "", apperrors.New(apperrors.ErrCodeTemplateUnknown, "analysis is required")
	}
	label := levelLabels[analysis.WorstLevel]
	if sectorName == "" {
		sectorName = "setor não identificado"
	}
	subject = fmt.Sprintf("Risco psicossocial %s identificado - %s", label, sectorName)

	var b strings.Builder
	fmt.Fprintf(&b, "Uma avaliação psicossocial no setor %s resultou em exposição %s.\n\n", sectorName, label)
	b.WriteString("Categorias avaliadas:\n")
	for _, c := range analysis.Categories {
		fmt.Fprintf(&b, "- %s: %.0f/100 (%s)\n", c.CategoryName, c.Score, levelLabels[c.Level])
	}
	if measures := analysis.MandatoryMeasures(); len(measures) > 0 {
		b.WriteString("\nMedidas obrigatórias:\n")
		for _, m := range measures {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	fmt.Fprintf(&b, "\nPróxima avaliação recomendada: %s.\n",
		analysis.NextEvaluationAt.Format("02/01/2006"))
	return subject, b.String(), nil
}

// RenderActionPlanCreated builds the notification for a freshly
// generated action plan.
func RenderActionPlanCreated(plan *actionplan.Plan) (subject, body string, err error) {
	if plan == nil {
		return "", "", apperrors.New(apperrors.ErrCodeTemplateUnknown, "plan is required")
	}
	subject = fmt.Sprintf("Plano de ação criado - %s", plan.SectorName)
	if plan.SectorName == "" {
		subject = "Plano de ação criado"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Um plano de ação com prioridade %s foi gerado com %d itens.\n\n",
		levelLabels[plan.Priority], len(plan.Items))
	for _, it := range plan.Items {
		marker := "recomendado"
		if it.Mandatory {
			marker = "obrigatório"
		}
		fmt.Fprintf(&b, "- [%s] %s (prazo %s)\n", marker, it.Description, it.DueAt.Format("02/01/2006"))
	}
	return subject, b.String(), nil
}

// RenderNoActionNeeded builds the notice for a finding below the alert
// threshold. Sending it closes the intake visibly: HR can tell "no
// risk" apart from "never processed".
func RenderNoActionNeeded(analysis *risk.Analysis, sectorName string) (subject, body string, err error) {
	if analysis == nil {
		return "", "", apperrors.New(apperrors.ErrCodeTemplateUnknown, "analysis is required")
	}
	if sectorName == "" {
		sectorName = "setor não identificado"
	}
	subject = fmt.Sprintf("Avaliação concluída sem necessidade de ação - %s", sectorName)

	var b strings.Builder
	fmt.Fprintf(&b, "Uma avaliação psicossocial no setor %s foi processada e nenhuma categoria exige intervenção.\n\n", sectorName)
	b.WriteString("Categorias avaliadas:\n")
	for _, c := range analysis.Categories {
		fmt.Fprintf(&b, "- %s: %.0f/100 (%s)\n", c.CategoryName, c.Score, levelLabels[c.Level])
	}
	fmt.Fprintf(&b, "\nPróxima avaliação recomendada: %s.\n",
		analysis.NextEvaluationAt.Format("02/01/2006"))
	return subject, b.String(), nil
}

// RenderProcessingError builds the notice sent when a response exhausts
// its processing attempts.
func RenderProcessingError(responseID uuid.UUID, cause string) (subject, body string, err error) {
	if responseID == uuid.Nil {
		return "", "", apperrors.New(apperrors.ErrCodeTemplateUnknown, "response id is required")
	}
	subject = "Falha no processamento de avaliação psicossocial"
	body = fmt.Sprintf(
		"A avaliação %s não pôde ser processada automaticamente e esgotou as tentativas.\n"+
			"Motivo: %s\n"+
			"Reprocesse a avaliação na plataforma ou acione o suporte.\n",
		responseID, cause)
	return subject, body, nil
}

// RenderEscalation builds the escalation notice for an unacknowledged
// critical finding at the given tier.
func RenderEscalation(state *EscalationState, sectorName string) (subject, body string, err error) {
	if state == nil {
		return "", "", apperrors.New(apperrors.ErrCodeTemplateUnknown, "escalation state is required")
	}
	if sectorName == "" {
		sectorName = "setor não identificado"
	}
	subject = fmt.Sprintf("[Escalonamento] Risco crítico sem tratativa - %s", sectorName)
	body = fmt.Sprintf(
		"Um risco psicossocial crítico no setor %s segue sem reconhecimento desde %s e foi escalonado para o nível %d.\n"+
			"Reconheça a ocorrência na plataforma para interromper o escalonamento.\n",
		sectorName, state.CreatedAt.Format("02/01/2006 15:04"), state.Tier)
	return subject, body, nil
}
