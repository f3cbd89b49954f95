package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rebook-service/internal/interface/webhook"
	"rebook-service/pkg/logger"
)

func TestProviderRouter_GetAdapter(t *testing.T) {
	r := NewProviderRouter(logger.NewNopLogger())
	tally := webhook.NewTallyAdapter("")
	typeform := webhook.NewTypeformAdapter("")
	r.Register(tally)
	r.Register(typeform)

	tests := []struct {
		provider string
		want     interface{}
	}{
		{"tally", tally},
		{" Tally ", tally},
		{"TYPEFORM", typeform},
		{"jotform", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := r.GetAdapter(tt.provider)
		if tt.want == nil {
			assert.Nil(t, got, tt.provider)
			continue
		}
		assert.Same(t, tt.want, got, tt.provider)
	}
}
