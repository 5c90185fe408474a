package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  Identifier
		valid bool
	}{
		{"digits and letters", "B08N5WRWNW", "B08N5WRWNW", true},
		{"all digits", "0123456789", "0123456789", true},
		{"lower case normalized", "b08n5wrwnw", "B08N5WRWNW", true},
		{"leading space", " B08N5WRWNW", "", false},
		{"surrounding space", "  B08N5WRWNW ", "", false},
		{"nine characters", "B08N5WRWN", "", false},
		{"eleven characters", "B08N5WRWNWX", "", false},
		{"empty", "", "", false},
		{"punctuation", "B08N5-RWNW", "", false},
		{"inner space", "B08N5 RWNW", "", false},
		{"non ascii", "B08N5WRWNé", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentifier(tt.raw)
			if !tt.valid {
				assert.Error(t, err)
				assert.False(t, IsValidIdentifier(tt.raw))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.True(t, IsValidIdentifier(tt.raw))
		})
	}
}

func TestResultSet_AddRejectsInvalid(t *testing.T) {
	set := NewResultSet()

	assert.True(t, set.Add("B000000001"))
	assert.False(t, set.Add("B000000001"), "duplicate must not grow the set")
	assert.False(t, set.Add("b000000001"), "case variant is the same identifier")
	assert.False(t, set.Add("SHORT"))
	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Contains("b000000001"))
	assert.False(t, set.Contains("SHORT"))
}

func TestNewResultSet_DropsInvalid(t *testing.T) {
	set := NewResultSet("B000000001", "bad", "B000000002", "B000000001")
	assert.Equal(t, []string{"B000000001", "B000000002"}, set.Strings())
}

func TestResultSet_UnionLaws(t *testing.T) {
	a := NewResultSet("B000000001", "B000000002")
	b := NewResultSet("B000000002", "B000000003")

	t.Run("idempotent", func(t *testing.T) {
		assert.True(t, Union(a, a).Equal(a))
	})

	t.Run("commutative", func(t *testing.T) {
		assert.True(t, Union(a, b).Equal(Union(b, a)))
		assert.Equal(t, []string{"B000000001", "B000000002", "B000000003"}, Union(a, b).Strings())
	})

	t.Run("does not mutate operands", func(t *testing.T) {
		Union(a, b)
		assert.Equal(t, 2, a.Len())
		assert.Equal(t, 2, b.Len())
	})
}

func TestResultSet_MergeCountsNew(t *testing.T) {
	set := NewResultSet("B000000001")
	added := set.Merge(NewResultSet("B000000001", "B000000002", "B000000003"))

	assert.Equal(t, 2, added)
	assert.Equal(t, 3, set.Len())
}
