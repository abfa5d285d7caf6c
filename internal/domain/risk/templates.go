package risk

import "github.com/nexohr/psicorisco/internal/domain/scoring"

// Measure templates per category and exposure level. Recommended
// actions apply from medio upward; mandatory measures only at alto and
// critico, as NR-01 requires documented intervention at those levels.

type measureSet struct {
	recommended map[scoring.ExposureLevel][]string
	mandatory   map[scoring.ExposureLevel][]string
}

var defaultMeasures = measureSet{
	recommended: map[scoring.ExposureLevel][]string{
		scoring.ExposureMedio: {
			"Monitorar o indicador na próxima rodada de avaliação",
			"Incluir o tema em conversas de 1:1 com a liderança",
		},
		scoring.ExposureAlto: {
			"Realizar escuta ativa com o setor afetado",
			"Revisar processos de trabalho com a liderança direta",
		},
		scoring.ExposureCritico: {
			"Acionar acompanhamento individual imediato",
			"Envolver o SESMT e o RH na definição de intervenção",
		},
	},
	mandatory: map[scoring.ExposureLevel][]string{
		scoring.ExposureAlto: {
			"Registrar medida de controle no PGR",
			"Definir plano de ação com prazo e responsável",
		},
		scoring.ExposureCritico: {
			"Registrar medida de controle no PGR",
			"Definir plano de ação com prazo e responsável",
			"Comunicar a alta gestão sobre a exposição crítica",
		},
	},
}

var categoryMeasures = map[string]measureSet{
	"carga_trabalho": {
		recommended: map[scoring.ExposureLevel][]string{
			scoring.ExposureMedio: {
				"Mapear distribuição de demandas no setor",
			},
			scoring.ExposureAlto: {
				"Redistribuir demandas e revisar metas do setor",
				"Avaliar necessidade de reforço de equipe",
			},
			scoring.ExposureCritico: {
				"Suspender metas adicionais até reequilíbrio da carga",
				"Avaliar necessidade de reforço de equipe",
			},
		},
		mandatory: map[scoring.ExposureLevel][]string{
			scoring.ExposureAlto: {
				"Registrar sobrecarga como risco no PGR",
				"Definir plano de redistribuição com prazo",
			},
			scoring.ExposureCritico: {
				"Registrar sobrecarga como risco no PGR",
				"Definir plano de redistribuição com prazo",
				"Instituir acompanhamento quinzenal da carga",
			},
		},
	},
	"autonomia": {
		recommended: map[scoring.ExposureLevel][]string{
			scoring.ExposureMedio: {
				"Revisar granularidade de aprovações no fluxo de trabalho",
			},
			scoring.ExposureAlto: {
				"Delegar decisões operacionais à equipe",
			},
			scoring.ExposureCritico: {
				"Redesenhar o processo decisório do setor com a equipe",
			},
		},
	},
	"relacoes_interpessoais": {
		recommended: map[scoring.ExposureLevel][]string{
			scoring.ExposureAlto: {
				"Realizar mediação de conflitos com apoio do RH",
			},
			scoring.ExposureCritico: {
				"Apurar indícios de assédio conforme canal de denúncias",
			},
		},
		mandatory: map[scoring.ExposureLevel][]string{
			scoring.ExposureCritico: {
				"Registrar medida de controle no PGR",
				"Abrir apuração formal pelo canal de denúncias",
			},
		},
	},
}

// measuresFor resolves recommended and mandatory measures for one
// category at one level, merging category-specific entries over the
// defaults.
func measuresFor(categoryID string, level scoring.ExposureLevel) (recommended, mandatory []string) {
	recommended = append(recommended, defaultMeasures.recommended[level]...)
	mandatory = append(mandatory, defaultMeasures.mandatory[level]...)
	if set, ok := categoryMeasures[categoryID]; ok {
		recommended = append(recommended, set.recommended[level]...)
		mandatory = append(mandatory, set.mandatory[level]...)
	}
	return recommended, mandatory
}
