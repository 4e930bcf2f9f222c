package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eav-backend/internal/eav"
)

func ptr[T any](v T) *T { return &v }

func sampleRows() []eav.View {
	return []eav.View{
		{EntityID: 1, Entity: "Lamp", EntityType: "Product", Attr: ptr("color"), ValueStr: ptr("red")},
		{EntityID: 1, Entity: "Lamp", EntityType: "Product", Attr: ptr("qty"), ValueInt: ptr(int64(3))},
		{EntityID: 2, Entity: "Chair", EntityType: "Product", Attr: ptr("qty")},
		{EntityID: 3, Entity: "#1", EntityType: "Order"},
	}
}

func TestViewFilter_Apply(t *testing.T) {
	f := NewViewFilter()

	tests := []struct {
		name       string
		expression string
		want       []int64
	}{
		{"empty keeps all", "", []int64{1, 1, 2, 3}},
		{"string match", `attr == "color" && valueStr == "red"`, []int64{1}},
		{"by type", `entityType == "Order"`, []int64{3}},
		{"absent value", `attr == "qty" && valueInt == nil`, []int64{2}},
		{"comparison skips rows without a value", `valueInt > 1`, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := f.Apply(tt.expression, sampleRows())
			require.NoError(t, err)
			got := make([]int64, len(rows))
			for i, r := range rows {
				got[i] = r.EntityID
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestViewFilter_InvalidExpression(t *testing.T) {
	f := NewViewFilter()

	for _, expression := range []string{`attr ==`, `unknownField == 1`} {
		_, err := f.Apply(expression, sampleRows())
		require.Error(t, err, expression)
		var appErr *AppError
		require.True(t, errors.As(err, &appErr), expression)
		assert.Equal(t, "INVALID_ARGUMENT", appErr.Code)
	}
}

func TestViewFilter_CachesPrograms(t *testing.T) {
	f := NewViewFilter()

	_, err := f.Apply(`entityId == 1`, sampleRows())
	require.NoError(t, err)
	_, err = f.Apply(`entityId == 1`, sampleRows())
	require.NoError(t, err)
	assert.Len(t, f.cache, 1)
}
