package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleKeys(rules []Rule) []string {
	keys := make([]string, len(rules))
	for i, r := range rules {
		keys[i] = r.Key
	}
	return keys
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	rules := r.List()

	assert.Equal(t, []string{"name", "email", "phone", "address", "organization"}, ruleKeys(rules))
	assert.Equal(t, BuiltinKeys(), ruleKeys(rules))
	for _, rule := range rules {
		assert.Equal(t, KindBuiltin, rule.Kind)
		assert.True(t, rule.Enabled)
		assert.NoError(t, Validate(rule.Source), rule.Key)
	}
}

func TestRegistry_AddOrReplace(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.AddOrReplace("order_id", `ORD-\d{6}`, "Order", "order id"))
	require.NoError(t, r.AddOrReplace("ticket", `TCK-\d+`, "Ticket", "ticket"))
	assert.Equal(t, []string{"name", "email", "phone", "address", "organization", "order_id", "ticket"}, ruleKeys(r.List()))

	t.Run("overwrite keeps position", func(t *testing.T) {
		require.NoError(t, r.AddOrReplace("order_id", `ORD-\d{8}`, "Ord", "long order id"))
		rules := r.List()
		assert.Equal(t, "order_id", rules[5].Key)
		assert.Equal(t, "Ord", rules[5].Label)
		assert.Equal(t, `ORD-\d{8}`, rules[5].Source)
		assert.Equal(t, KindCustom, rules[5].Kind)
	})

	t.Run("overwrite keeps enabled state", func(t *testing.T) {
		require.NoError(t, r.SetEnabled("ticket", false))
		require.NoError(t, r.AddOrReplace("ticket", `TCK-[0-9]+`, "Ticket", "ticket"))
		assert.False(t, r.List()[6].Enabled)
	})

	t.Run("builtin can be overridden", func(t *testing.T) {
		require.NoError(t, r.AddOrReplace("email", `\S+@corp\.example`, "Email", "corporate email"))
		rules := r.List()
		assert.Equal(t, "email", rules[1].Key)
		assert.Equal(t, KindCustom, rules[1].Kind)
	})

	t.Run("rejected rule leaves registry unchanged", func(t *testing.T) {
		before := r.List()
		err := r.AddOrReplace("ticket", `(`, "Ticket", "")
		assert.ErrorIs(t, err, ErrInvalidMatcher)
		assert.Equal(t, before, r.List())
	})
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddOrReplace("a", `aaa`, "A", ""))
	require.NoError(t, r.AddOrReplace("b", `bbb`, "B", ""))

	r.Remove("phone")
	r.Remove("a")
	r.Remove("missing")

	assert.Equal(t, []string{"name", "email", "address", "organization", "b"}, ruleKeys(r.List()))

	// the index is rebuilt after removal
	require.NoError(t, r.SetEnabled("b", false))
	assert.False(t, r.List()[4].Enabled)
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.SetEnabled("phone", false))
	active := r.active(nil)
	for _, rule := range active {
		assert.NotEqual(t, "phone", rule.Key)
	}
	assert.Len(t, active, 4)

	// explicit keys bypass the enabled flag
	explicit := r.active([]string{"phone"})
	require.Len(t, explicit, 1)
	assert.Equal(t, "phone", explicit[0].Key)

	assert.ErrorIs(t, r.SetEnabled("missing", true), ErrUnknownRule)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{"simple", `ORD-\d{6}`, false},
		{"unicode classes", `\p{Han}+さん`, false},
		{"empty", ``, true},
		{"blank", `   `, true},
		{"syntax error", `[a-`, true},
		{"unsupported lookahead", `foo(?=bar)`, true},
		{"matches empty", `a*`, true},
		{"optional only", `(x)?`, true},
		{"too long", strings.Repeat("a", MaxPatternLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.source)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMatcher)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
