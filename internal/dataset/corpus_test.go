package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) []TrainingExample {
	t.Helper()
	s, err := NewSynthesizer(nil)
	require.NoError(t, err)
	exs, err := s.Generate(50, 3)
	require.NoError(t, err)
	return exs
}

func TestCSVRoundTrip(t *testing.T) {
	exs := sample(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, exs))
	require.True(t, strings.HasPrefix(buf.String(), "User Query,Action,Amount,Recipient\n"))

	back, err := Read(&buf, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, exs, back)
}

func TestCSVRejectsUnknownParameter(t *testing.T) {
	exs := []TrainingExample{{Query: "x", Action: "A", Parameters: Parameters{"currency": "ZAR"}}}
	require.Error(t, Write(&bytes.Buffer{}, FormatCSV, exs))

	two := []TrainingExample{{Query: "x", Action: "A", Parameters: Parameters{"bill": "water", "recipient": "John"}}}
	require.Error(t, Write(&bytes.Buffer{}, FormatCSV, two))
}

func TestCSVSharesRecipientColumn(t *testing.T) {
	exs := []TrainingExample{
		{Query: "Pay 300 ZAR for water", Action: "Pay bill", Parameters: Parameters{"amount": 300, "bill": "water"}},
		{Query: "Move 80 ZAR to savings", Action: "Transfer money", Parameters: Parameters{"amount": 80, "account": "savings"}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, exs))
	require.Equal(t, "User Query,Action,Amount,Recipient\n"+
		"Pay 300 ZAR for water,Pay bill,300,water\n"+
		"Move 80 ZAR to savings,Transfer money,80,savings\n", buf.String())
}

func TestReadCSVPandasExport(t *testing.T) {
	in := "User Query,Action,Amount,Recipient\n" +
		"Pay my water bill,Pay bill,321.0,water\n" +
		"Send 50 ZAR to John,Send money,50.0,John\n" +
		"Move 80 ZAR to savings,Transfer money,80,savings\n" +
		"Check my balance,Check balance,,\n" +
		"Call me,Unlisted,,Sarah\n"
	exs, err := Read(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)
	require.Equal(t, []TrainingExample{
		{Query: "Pay my water bill", Action: "Pay bill", Parameters: Parameters{"amount": 321, "bill": "water"}},
		{Query: "Send 50 ZAR to John", Action: "Send money", Parameters: Parameters{"amount": 50, "recipient": "John"}},
		{Query: "Move 80 ZAR to savings", Action: "Transfer money", Parameters: Parameters{"amount": 80, "account": "savings"}},
		{Query: "Check my balance", Action: "Check balance"},
		{Query: "Call me", Action: "Unlisted", Parameters: Parameters{"recipient": "Sarah"}},
	}, exs)

	_, err = Read(strings.NewReader("User Query,Action,Amount,Recipient\nx,Pay bill,12.5,water\n"), FormatCSV)
	require.Error(t, err)
	_, err = Read(strings.NewReader("User Query,Action,Amount,Recipient\nx,Pay bill,lots,water\n"), FormatCSV)
	require.Error(t, err)
}

func TestJSONLRoundTrip(t *testing.T) {
	exs := sample(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSONL, exs))
	back, err := Read(&buf, FormatJSONL)
	require.NoError(t, err)
	require.Equal(t, exs, back)
}

func TestInstructionRoundTrip(t *testing.T) {
	exs := sample(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatInstruction, exs))
	require.Contains(t, buf.String(), Instruction)

	back, err := Read(&buf, FormatInstruction)
	require.NoError(t, err)
	require.Equal(t, exs, back)
}

func TestIntentJSON(t *testing.T) {
	got := IntentJSON("Send money", Parameters{"recipient": "John", "amount": 50})
	require.Equal(t, `{"intent": "Send money", "amount": 50, "recipient": "John"}`, got)

	action, params, err := ParseIntentJSON(got)
	require.NoError(t, err)
	require.Equal(t, "Send money", action)
	require.Equal(t, Parameters{"amount": 50, "recipient": "John"}, params)

	_, _, err = ParseIntentJSON(`{"amount": 5}`)
	require.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	require.Equal(t, FormatCSV, FormatFromPath("data/mtn_chatbot_dataset.CSV"))
	require.Equal(t, FormatInstruction, FormatFromPath("mtn_chatbot_dataset.json"))
	require.Equal(t, FormatJSONL, FormatFromPath("examples.jsonl"))
}

func TestReadJSONL_BadLine(t *testing.T) {
	_, err := Read(strings.NewReader("{\"query\":\"a\",\"action\":\"A\"}\nnot-json\n"), FormatJSONL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}
