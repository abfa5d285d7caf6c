package assessment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResponseIsComplete(t *testing.T) {
	answer := Answer{QuestionID: uuid.New(), CategoryID: "carga_trabalho", Value: 3}

	tests := []struct {
		name     string
		response Response
		want     bool
	}{
		{"completed with answers", Response{Status: StatusCompleted, Answers: []Answer{answer}}, true},
		{"completed without answers", Response{Status: StatusCompleted}, false},
		{"in progress", Response{Status: StatusInProgress, Answers: []Answer{answer}}, false},
		{"expired", Response{Status: StatusExpired, Answers: []Answer{answer}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.response.IsComplete())
		})
	}
}

func TestAnswersByCategory(t *testing.T) {
	r := Response{Answers: []Answer{
		{CategoryID: "carga_trabalho", Value: 4},
		{CategoryID: "autonomia", Value: 2},
		{CategoryID: "carga_trabalho", Value: 5},
	}}

	grouped := r.AnswersByCategory()
	assert.Len(t, grouped, 2)
	assert.Len(t, grouped["carga_trabalho"], 2)
	assert.Len(t, grouped["autonomia"], 1)
}
