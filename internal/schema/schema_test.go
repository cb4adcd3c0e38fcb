package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/schema"
)

type item struct {
	Label string  `json:"label"           validate:"required"`
	Note  *string `json:"note,omitempty"`
	Count int     `json:"count"           validate:"min=1"`
}

type payload struct {
	Title string `json:"title" validate:"required"`
	Items []item `json:"items" validate:"required,min=1,dive"`
}

func TestNew(t *testing.T) {
	t.Run("should reject empty name", func(t *testing.T) {
		s, err := schema.New[payload]("")

		require.Error(t, err)
		require.Nil(t, s)
	})

	t.Run("should reflect a reference root with definitions", func(t *testing.T) {
		s, err := schema.New[payload]("payload")
		require.NoError(t, err)

		doc := s.JSONSchema()

		require.Equal(t, "payload", s.Name())
		require.Equal(t, "#/$defs/payload", doc["$ref"])

		defs, ok := doc["$defs"].(map[string]any)
		require.True(t, ok)
		require.Contains(t, defs, "payload")
		require.Contains(t, defs, "item")

		itemDef := defs["item"].(map[string]any)
		require.ElementsMatch(t, []any{"label", "count"}, itemDef["required"])
		require.Equal(t, false, itemDef["additionalProperties"])
	})

	t.Run("should return independent copies", func(t *testing.T) {
		s := schema.MustNew[payload]("payload")

		first := s.JSONSchema()
		first["$ref"] = "mutated"

		require.Equal(t, "#/$defs/payload", s.JSONSchema()["$ref"])
	})
}

func TestSchema_Decode(t *testing.T) {
	s := schema.MustNew[payload]("payload")

	t.Run("should decode a valid document", func(t *testing.T) {
		out, err := s.Decode([]byte(`{"title":"t","items":[{"label":"a","count":2,"note":null}]}`))

		require.NoError(t, err)
		require.Equal(t, "t", out.Title)
		require.Len(t, out.Items, 1)
		require.Nil(t, out.Items[0].Note)
	})

	t.Run("should ignore unknown keys", func(t *testing.T) {
		_, err := s.Decode([]byte(`{"title":"t","extra":1,"items":[{"label":"a","count":1}]}`))

		require.NoError(t, err)
	})

	t.Run("should reject malformed JSON", func(t *testing.T) {
		_, err := s.Decode([]byte(`{"title":`))

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid JSON")
	})

	t.Run("should reject empty input", func(t *testing.T) {
		_, err := s.Decode([]byte("  "))

		require.Error(t, err)
	})

	t.Run("should report validation failures", func(t *testing.T) {
		_, err := s.Decode([]byte(`{"title":"t","items":[{"label":"","count":0}]}`))

		var validationErr *schema.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Len(t, validationErr.Fields, 2)
	})

	t.Run("should reject an empty list", func(t *testing.T) {
		_, err := s.Decode([]byte(`{"title":"t","items":[]}`))

		var validationErr *schema.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestPlanStructureSchema(t *testing.T) {
	s := schema.MustNew[domain.PlanStructure]("training_plan")

	plan, err := s.Decode([]byte(`{
		"name": "Upper/Lower",
		"summary": null,
		"weeks": [{"week": 1, "days": [{"name": "Upper A", "exercises": [
			{"name": "Bench Press", "notes": null, "sets": [{"reps": 8, "weight": 60, "rest_seconds": 120}]}
		]}]}]
	}`))

	require.NoError(t, err)
	require.Equal(t, "Upper/Lower", plan.Name)
	require.Equal(t, 60.0, *plan.Weeks[0].Days[0].Exercises[0].Sets[0].Weight)

	_, err = s.Decode([]byte(`{"name":"x","weeks":[{"week":1,"days":[{"name":"A","exercises":[{"name":"Squat","sets":[{"reps":0,"rest_seconds":60}]}]}]}]}`))
	require.Error(t, err)
}
