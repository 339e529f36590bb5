package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/validation"
)

type testSettings struct {
	Engine      string `json:"engine" validate:"required,oneof=sqlite badger"`
	DataPath    string `json:"data_path" validate:"required"`
	Concurrency int    `json:"concurrency" validate:"gte=1"`
}

func TestValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testSettings{
		Engine:      "sqlite",
		DataPath:    "/var/lib/shopsight",
		Concurrency: 4,
	})
	assert.NoError(t, err)
}

func TestValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name       string
		settings   testSettings
		wantErrMsg string
	}{
		{
			name: "missing required field",
			settings: testSettings{
				Engine:      "sqlite",
				Concurrency: 4,
			},
			wantErrMsg: "data_path",
		},
		{
			name: "value outside enum",
			settings: testSettings{
				Engine:      "postgres",
				DataPath:    "/var/lib/shopsight",
				Concurrency: 4,
			},
			wantErrMsg: "engine",
		},
		{
			name: "below minimum",
			settings: testSettings{
				Engine:      "badger",
				DataPath:    "/var/lib/shopsight",
				Concurrency: 0,
			},
			wantErrMsg: "concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.settings)
			assert.Error(t, err)

			var domainErr *apperrors.Error
			if assert.True(t, apperrors.As(err, &domainErr)) {
				assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
				assert.Contains(t, domainErr.Message, tt.wantErrMsg)
			}
		})
	}
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(testSettings{Engine: "sqlite", Concurrency: 1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data_path")
	assert.NotContains(t, err.Error(), "DataPath")
}
