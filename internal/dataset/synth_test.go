package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, []string{
		"Send money", "Check balance", "Pay bill", "Apply for loan", "Check loan", "Transfer money",
	}, c.ActionNames())

	loan, ok := c.Action("Apply for loan")
	require.True(t, ok)
	require.Equal(t, 1000, loan.Parameters[0].Min)
	require.Equal(t, 50000, loan.Parameters[0].Max)
}

func TestGenerate_Deterministic(t *testing.T) {
	s, err := NewSynthesizer(nil)
	require.NoError(t, err)

	a, err := s.Generate(100, 42)
	require.NoError(t, err)
	b, err := s.Generate(100, 42)
	require.NoError(t, err)
	require.Len(t, a, 100)
	require.Equal(t, a, b)

	c, err := s.Generate(100, 43)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestGenerate_NoUnsubstitutedPlaceholders(t *testing.T) {
	s, err := NewSynthesizer(nil)
	require.NoError(t, err)
	exs, err := s.Generate(2000, 7)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, ex := range exs {
		seen[ex.Action] = true
		require.NotContains(t, ex.Query, "{", ex.Query)
		require.NotContains(t, ex.Query, "}", ex.Query)
	}
	require.Len(t, seen, 6, "every action should be drawn in 2000 samples")
}

func TestEveryTemplateRenders(t *testing.T) {
	c := DefaultCatalog()
	for _, a := range c.Actions {
		params := Parameters{}
		for _, p := range a.Parameters {
			if p.IsChoice() {
				params[p.Name] = c.choices(p)[0]
			} else {
				params[p.Name] = p.Max
			}
		}
		for _, tpl := range a.Templates {
			out, err := Render(tpl, params)
			require.NoError(t, err, "%s: %s", a.Name, tpl)
			require.False(t, placeholderRE.MatchString(out), out)
		}
	}
}

func TestGenerate_ParameterRanges(t *testing.T) {
	s, err := NewSynthesizer(nil)
	require.NoError(t, err)
	exs, err := s.Generate(3000, 1)
	require.NoError(t, err)

	ranges := map[string][2]int{
		"Send money":     {50, 10000},
		"Pay bill":       {100, 5000},
		"Apply for loan": {1000, 50000},
		"Transfer money": {50, 10000},
	}
	for _, ex := range exs {
		amount, hasAmount := ex.Parameters.Int("amount")
		r, wantAmount := ranges[ex.Action]
		require.Equal(t, wantAmount, hasAmount, ex.Action)
		if wantAmount {
			require.GreaterOrEqual(t, amount, r[0])
			require.LessOrEqual(t, amount, r[1])
		}
		switch ex.Action {
		case "Send money":
			_, ok := ex.Parameters.String("recipient")
			require.True(t, ok)
		case "Pay bill":
			_, ok := ex.Parameters.String("bill")
			require.True(t, ok)
		case "Transfer money":
			_, ok := ex.Parameters.String("account")
			require.True(t, ok)
		case "Check balance", "Check loan":
			require.Nil(t, ex.Parameters)
		}
	}
}

func TestCatalogValidate(t *testing.T) {
	cases := map[string]string{
		"undeclared placeholder": `
actions:
  - name: Send money
    templates: ["Send {amount} to {recipient}"]
    parameters:
      - {name: amount, min: 1, max: 2}
`,
		"unknown pool": `
actions:
  - name: Pay bill
    templates: ["Pay {bill}"]
    parameters:
      - {name: bill, pool: bills}
`,
		"inverted range": `
actions:
  - name: Loan
    templates: ["Borrow {amount}"]
    parameters:
      - {name: amount, min: 10, max: 1}
`,
		"no templates": `
actions:
  - name: Loan
`,
		"duplicate action": `
actions:
  - name: A
    templates: ["a"]
  - name: A
    templates: ["b"]
`,
		"malformed placeholder": `
actions:
  - name: A
    templates: ["pay {amount"]
`,
		"empty": `actions: []`,
		"parameter without source": `
actions:
  - name: Loan
    templates: ["Borrow {amount}"]
    parameters:
      - {name: amount}
`,
	}
	for name, raw := range cases {
		_, err := ParseCatalog([]byte(raw))
		require.Error(t, err, name)
	}
}

func TestCatalogValidate_ExplicitZeroRange(t *testing.T) {
	c, err := ParseCatalog([]byte(`
actions:
  - name: Check fee
    templates: ["What is the fee for {amount}?"]
    parameters:
      - {name: amount, min: 0, max: 0}
`))
	require.NoError(t, err)

	s, err := NewSynthesizer(c)
	require.NoError(t, err)
	exs, err := s.Generate(3, 1)
	require.NoError(t, err)
	for _, ex := range exs {
		require.Equal(t, "What is the fee for 0?", ex.Query)
	}
}

func TestRender_Missing(t *testing.T) {
	_, err := Render("Send {amount} ZAR to {recipient}", Parameters{"amount": 10})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "recipient"))
}

func TestGenerate_NegativeCount(t *testing.T) {
	s, err := NewSynthesizer(nil)
	require.NoError(t, err)
	_, err = s.Generate(-1, 0)
	require.Error(t, err)

	out, err := s.Generate(0, 0)
	require.NoError(t, err)
	require.Empty(t, out)
}
