package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalFull(t *testing.T, src string, scope MapScope) any {
	t.Helper()
	e, err := Compile(src, Options{Grammar: GrammarFull})
	require.NoError(t, err)
	v, err := e.Eval(scope)
	require.NoError(t, err)
	return v
}

func evalLogic(t *testing.T, src string, scope MapScope) bool {
	t.Helper()
	e, err := Compile(src, Options{Grammar: GrammarLogic})
	require.NoError(t, err)
	v, err := e.EvalBool(scope)
	require.NoError(t, err)
	return v
}

func TestLiterals(t *testing.T) {
	assert.Equal(t, 42.0, evalFull(t, "42", nil))
	assert.Equal(t, "hi", evalFull(t, `"hi"`, nil))
	assert.Equal(t, "hi", evalFull(t, `'hi'`, nil))
	assert.Equal(t, true, evalFull(t, "true", nil))
	assert.Equal(t, false, evalFull(t, "false", nil))
	assert.Equal(t, 1.5e3, evalFull(t, "1.5e3", nil))
}

func TestLogicAndComparisons(t *testing.T) {
	scope := MapScope{"data.speed": 5.0, "data.mode": "auto", "data.armed": true}

	cases := []struct {
		src  string
		want bool
	}{
		{"data.speed > 3", true},
		{"data.speed >= 5", true},
		{"data.speed < 5", false},
		{"data.speed == 5", true},
		{"data.speed != 5", false},
		{`data.mode == "auto"`, true},
		{`data.mode != "manual"`, true},
		{"data.armed && data.speed > 1", true},
		{"!data.armed || data.speed > 100", false},
		{"(data.speed > 3) && (data.speed < 10)", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, evalLogic(t, tc.src, scope), tc.src)
	}
}

func TestNullComparisonsAreFalse(t *testing.T) {
	scope := MapScope{"data.present": 1.0}
	cases := []string{
		"data.absent == 1",
		"data.absent != 1",
		"data.absent < 1",
		"data.absent > 1",
		"data.absent == data.absent",
	}
	for _, src := range cases {
		assert.False(t, evalLogic(t, src, scope), src)
	}
	// Null in logic is plain false, so its negation holds.
	assert.True(t, evalLogic(t, "!data.absent", scope))
}

func TestArithmetic(t *testing.T) {
	scope := MapScope{"a": 10.0, "b": 4.0}
	assert.Equal(t, 14.0, evalFull(t, "a + b", scope))
	assert.Equal(t, 6.0, evalFull(t, "a - b", scope))
	assert.Equal(t, 40.0, evalFull(t, "a * b", scope))
	assert.Equal(t, 2.5, evalFull(t, "a / b", scope))
	assert.Equal(t, 18.0, evalFull(t, "a + b * 2", scope))
	assert.Equal(t, 28.0, evalFull(t, "(a + b) * 2", scope))
	assert.Equal(t, -10.0, evalFull(t, "-a", scope))
}

func TestDivisionByZeroIsNull(t *testing.T) {
	assert.Nil(t, evalFull(t, "1 / 0", nil))
}

func TestNullPropagatesThroughArithmetic(t *testing.T) {
	scope := MapScope{"a": 1.0}
	assert.Nil(t, evalFull(t, "a + missing", scope))
	assert.Nil(t, evalFull(t, "missing * 2", scope))
}

func TestTernary(t *testing.T) {
	scope := MapScope{"v": 5.0}
	assert.Equal(t, "big", evalFull(t, `v > 3 ? "big" : "small"`, scope))
	assert.Equal(t, "small", evalFull(t, `v > 30 ? "big" : "small"`, scope))
	assert.Equal(t, 2.0, evalFull(t, "v > 3 ? v > 4 ? 2 : 1 : 0", scope))
}

func TestMathCalls(t *testing.T) {
	scope := MapScope{"v": -2.5}
	assert.Equal(t, 2.5, evalFull(t, "Math.abs(v)", scope))
	assert.Equal(t, -1.0, evalFull(t, "Math.sign(v)", scope))
	assert.Equal(t, 3.0, evalFull(t, "Math.max(1, 3, 2)", scope))
	assert.Equal(t, 1.0, evalFull(t, "Math.min(1, 3, 2)", scope))
	assert.Equal(t, 8.0, evalFull(t, "Math.pow(2, 3)", scope))
	assert.Equal(t, 3.0, evalFull(t, "Math.floor(3.9)", scope))
	assert.Equal(t, 4.0, evalFull(t, "Math.ceil(3.1)", scope))
	assert.Equal(t, 4.0, evalFull(t, "Math.round(3.6)", scope))
	assert.Equal(t, 5.0, evalFull(t, "Math.sqrt(25)", scope))
	assert.Equal(t, 2.5, evalFull(t, "abs(v)", scope))
}

func TestCallNullArgumentYieldsNull(t *testing.T) {
	assert.Nil(t, evalFull(t, "Math.abs(missing)", MapScope{}))
}

func TestUnknownFunctionRejected(t *testing.T) {
	e, err := Compile("Math.eval(1)", Options{Grammar: GrammarFull})
	require.NoError(t, err)
	_, err = e.Eval(MapScope{})
	require.Error(t, err)
}

func TestStrictModeRejectsUnknownIdentifiers(t *testing.T) {
	e, err := Compile("a + b", Options{Grammar: GrammarFull, Strict: true})
	require.NoError(t, err)
	_, err = e.Eval(MapScope{"a": 1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown identifier")
}

func TestLogicGrammarRejectsArithmeticAndCalls(t *testing.T) {
	_, err := Compile("a + b", Options{Grammar: GrammarLogic})
	require.Error(t, err)
	_, err = Compile("abs(a)", Options{Grammar: GrammarLogic})
	require.Error(t, err)
	_, err = Compile("a > 1 ? 1 : 0", Options{Grammar: GrammarLogic})
	require.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"", "1 +", "(1", `"unterminated`, "a &&", "@", "1 2"} {
		_, err := Compile(src, Options{Grammar: GrammarFull})
		assert.Error(t, err, "source %q", src)
	}
}

func TestShortCircuit(t *testing.T) {
	// The right side of a short-circuited && never evaluates, so a
	// strict-mode unknown identifier there is not reached.
	e, err := Compile("a > 10 && boom", Options{Grammar: GrammarFull, Strict: true})
	require.NoError(t, err)
	v, err := e.Eval(MapScope{"a": 1.0})
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestBudgetEnforced(t *testing.T) {
	e, err := Compile("Math.max(a, b)", Options{Grammar: GrammarFull, Budget: time.Nanosecond})
	require.NoError(t, err)
	// A one-nanosecond budget trips on any non-trivial walk; the error
	// must surface instead of hanging.
	scope := MapScope{"a": 1.0, "b": 2.0}
	deep := "a"
	for i := 0; i < 200; i++ {
		deep = "(" + deep + " + b)"
	}
	e, err = Compile(deep, Options{Grammar: GrammarFull, Budget: time.Nanosecond})
	require.NoError(t, err)
	_, err = e.Eval(scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
}
