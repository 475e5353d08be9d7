package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicy_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p := Policy{
			Queries:   []NamedSQL{{Name: "all_foo", RawSQL: "SELECT x FROM foo"}},
			Mutations: []NamedSQL{{Name: "add_foo", RawSQL: "INSERT INTO foo (x) VALUES (:x)"}},
		}
		require.NoError(t, p.Validate())
	})

	t.Run("query_and_mutation_may_share_a_name", func(t *testing.T) {
		p := Policy{
			Queries:   []NamedSQL{{Name: "foo", RawSQL: "SELECT 1"}},
			Mutations: []NamedSQL{{Name: "foo", RawSQL: "DELETE FROM foo"}},
		}
		require.NoError(t, p.Validate())
	})

	t.Run("empty_name_rejected", func(t *testing.T) {
		p := Policy{Queries: []NamedSQL{{Name: "", RawSQL: "SELECT 1"}}}
		require.Error(t, p.Validate())
	})

	t.Run("duplicate_name_within_kind_rejected", func(t *testing.T) {
		p := Policy{Queries: []NamedSQL{
			{Name: "foo", RawSQL: "SELECT 1"},
			{Name: "foo", RawSQL: "SELECT 2"},
		}}
		require.ErrorContains(t, p.Validate(), `duplicate query named "foo"`)
	})

	t.Run("empty_policy_is_valid", func(t *testing.T) {
		require.NoError(t, Policy{}.Validate())
	})
}
