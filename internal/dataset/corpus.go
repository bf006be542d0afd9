package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// Format names a corpus serialization.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatJSONL       Format = "jsonl"
	FormatInstruction Format = "instruction"
)

// Instruction is the prompt used for instruction-tuning records and for
// generative inference.
const Instruction = "Classify the intent and extract parameters from the user query."

// csvSlots are the string parameters that share the Recipient column. The
// action's catalog schema decides which one a cell belongs to.
var csvSlots = []string{"recipient", "bill", "account"}

// csvRecord is the mtn_chatbot_dataset.csv layout.
type csvRecord struct {
	Query     string `csv:"User Query"`
	Action    string `csv:"Action"`
	Amount    string `csv:"Amount"`
	Recipient string `csv:"Recipient"`
}

// InstructionRecord is one instruction-tuning sample for the generative model.
// Output holds the JSON object {"intent": <action>, <params>...}.
type InstructionRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// FormatFromPath guesses the corpus format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatInstruction
	default:
		return FormatJSONL
	}
}

// Write serializes examples in the requested format.
func Write(w io.Writer, f Format, examples []TrainingExample) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, examples)
	case FormatJSONL:
		return writeJSONL(w, examples)
	case FormatInstruction:
		return writeInstructions(w, examples)
	default:
		return fmt.Errorf("dataset: unknown format %q", f)
	}
}

// Read parses a corpus in the requested format. The instruction format can
// be read back as long as each output object carries an "intent". CSV cells
// are routed with the default catalog; see ReadCSV.
func Read(r io.Reader, f Format) ([]TrainingExample, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r, DefaultCatalog())
	case FormatJSONL:
		return readJSONL(r)
	case FormatInstruction:
		return readInstructions(r)
	default:
		return nil, fmt.Errorf("dataset: unknown format %q", f)
	}
}

// ReadFile reads a corpus file, picking the format from its extension.
func ReadFile(path string) ([]TrainingExample, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Read(bufio.NewReader(fh), FormatFromPath(path))
}

func writeCSV(w io.Writer, examples []TrainingExample) error {
	rows := make([]*csvRecord, 0, len(examples))
	for _, ex := range examples {
		row := &csvRecord{Query: ex.Query, Action: ex.Action}
		for _, name := range ex.Parameters.Names() {
			switch {
			case name == "amount":
				n, ok := ex.Parameters.Int(name)
				if !ok {
					return fmt.Errorf("dataset: amount of %q is not an integer", ex.Query)
				}
				row.Amount = strconv.Itoa(n)
			case slices.Contains(csvSlots, name):
				if row.Recipient != "" {
					return fmt.Errorf("dataset: %q has more than one of %v", ex.Query, csvSlots)
				}
				row.Recipient, _ = ex.Parameters.String(name)
			default:
				return fmt.Errorf("dataset: csv has no column for parameter %q", name)
			}
		}
		rows = append(rows, row)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("dataset: write csv: %w", err)
	}
	return nil
}

// ReadCSV parses the User Query,Action,Amount,Recipient layout. Amounts may
// be written as integral floats ("321.0"). A Recipient cell is stored under
// the string parameter the action declares in c (recipient, bill or
// account); actions c does not know keep it as recipient.
func ReadCSV(r io.Reader, c *Catalog) ([]TrainingExample, error) {
	var rows []*csvRecord
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", err)
	}
	out := make([]TrainingExample, 0, len(rows))
	for i, row := range rows {
		params := Parameters{}
		if s := strings.TrimSpace(row.Amount); s != "" {
			n, err := parseAmount(s)
			if err != nil {
				return nil, fmt.Errorf("dataset: csv row %d: %w", i+1, err)
			}
			params["amount"] = n
		}
		if v := strings.TrimSpace(row.Recipient); v != "" {
			params[c.slotFor(row.Action)] = v
		}
		if len(params) == 0 {
			params = nil
		}
		out = append(out, TrainingExample{Query: row.Query, Action: row.Action, Parameters: params})
	}
	return out, nil
}

func parseAmount(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("amount %q is not an integer", s)
	}
	return int(f), nil
}

func writeJSONL(w io.Writer, examples []TrainingExample) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("dataset: write jsonl: %w", err)
		}
	}
	return nil
}

func readJSONL(r io.Reader) ([]TrainingExample, error) {
	var out []TrainingExample
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var ex TrainingExample
		if err := dec.Decode(&ex); err != nil {
			return nil, fmt.Errorf("dataset: jsonl line %d: %w", line, err)
		}
		params, err := ex.Parameters.normalize()
		if err != nil {
			return nil, fmt.Errorf("dataset: jsonl line %d: %w", line, err)
		}
		ex.Parameters = params
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read jsonl: %w", err)
	}
	return out, nil
}

// IntentJSON renders the generative target for an example with "intent"
// first and the parameters after it in name order.
func IntentJSON(action string, params Parameters) string {
	var b bytes.Buffer
	b.WriteString(`{"intent": `)
	v, _ := json.Marshal(action)
	b.Write(v)
	for _, name := range params.Names() {
		k, _ := json.Marshal(name)
		v, _ := json.Marshal(params[name])
		b.WriteString(", ")
		b.Write(k)
		b.WriteString(": ")
		b.Write(v)
	}
	b.WriteString("}")
	return b.String()
}

func writeInstructions(w io.Writer, examples []TrainingExample) error {
	recs := make([]InstructionRecord, 0, len(examples))
	for _, ex := range examples {
		recs = append(recs, InstructionRecord{
			Instruction: Instruction,
			Input:       ex.Query,
			Output:      IntentJSON(ex.Action, ex.Parameters),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("dataset: write instructions: %w", err)
	}
	return nil
}

func readInstructions(r io.Reader) ([]TrainingExample, error) {
	var recs []InstructionRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("dataset: read instructions: %w", err)
	}
	out := make([]TrainingExample, 0, len(recs))
	for i, rec := range recs {
		action, params, err := ParseIntentJSON(rec.Output)
		if err != nil {
			return nil, fmt.Errorf("dataset: instruction %d: %w", i, err)
		}
		out = append(out, TrainingExample{Query: rec.Input, Action: action, Parameters: params})
	}
	return out, nil
}

// ParseIntentJSON decodes an {"intent": ..., params...} object.
func ParseIntentJSON(s string) (string, Parameters, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return "", nil, err
	}
	action, _ := obj["intent"].(string)
	if strings.TrimSpace(action) == "" {
		return "", nil, fmt.Errorf("missing intent")
	}
	delete(obj, "intent")
	params, err := Parameters(obj).normalize()
	if err != nil {
		return "", nil, err
	}
	return action, params, nil
}
