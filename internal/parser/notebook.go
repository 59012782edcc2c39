package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const notebookOutputLen = 30

// notebook sources and outputs are either a string or a list of lines
type multiline []string

func (m *multiline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = multiline{s}
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*m = lines
	return nil
}

func (m multiline) String() string { return strings.Join(m, "") }

type notebook struct {
	Cells []struct {
		CellType string    `json:"cell_type"`
		Source   multiline `json:"source"`
		Outputs  []struct {
			OutputType string               `json:"output_type"`
			Text       multiline            `json:"text"`
			Data       map[string]multiline `json:"data"`
			EName      string               `json:"ename"`
			EValue     string               `json:"evalue"`
		} `json:"outputs"`
	} `json:"cells"`
}

// parseNotebook renders each cell with its type, appending code outputs
// truncated to maxOutput characters.
func parseNotebook(filePath string, maxOutput int) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return "", fmt.Errorf("invalid notebook: %w", err)
	}

	var sb strings.Builder
	for _, cell := range nb.Cells {
		src := strings.TrimSpace(cell.Source.String())
		if src == "" {
			continue
		}
		fmt.Fprintf(&sb, "'%s' cell: '%s'\n", cell.CellType, src)
		for _, out := range cell.Outputs {
			var text string
			switch out.OutputType {
			case "stream":
				text = out.Text.String()
			case "error":
				text = out.EName + ": " + out.EValue
			default:
				text = out.Data["text/plain"].String()
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			if r := []rune(text); len(r) > maxOutput {
				text = string(r[:maxOutput])
			}
			fmt.Fprintf(&sb, " with output: '%s'\n", text)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
