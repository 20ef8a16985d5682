package environment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/dynamosession/pkg/environment"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		expected environment.Environment
	}{
		{in: "production", expected: environment.Production},
		{in: "PROD", expected: environment.Production},
		{in: " stage ", expected: environment.Staging},
		{in: "staging", expected: environment.Staging},
		{in: "dev", expected: environment.Development},
		{in: "", expected: environment.Development},
		{in: "qa", expected: environment.Development},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, environment.Normalize(tt.in))
		})
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := environment.WithContext(context.Background(), environment.Production)
	assert.Equal(t, environment.Production, environment.FromContext(ctx))
	assert.True(t, environment.IsProduction(ctx))

	assert.Equal(t, environment.Environment(""), environment.FromContext(context.Background()))
	assert.False(t, environment.IsProduction(context.Background()))
}
