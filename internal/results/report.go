package results

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/nlebedev/predictit/internal/model"
)

const (
	terminalWidthBackup = 80
	probBarWidth        = 24
	probBarChar         = "█"
)

// ConfusionMatrix renders a square confusion matrix as aligned text
// lines with predicted-class columns and actual-class rows.
func ConfusionMatrix(matrix [][]int) []string {
	if len(matrix) == 0 {
		return nil
	}
	headers := make([]string, 0, len(matrix)+1)
	headers = append(headers, "actual \\ predicted")
	for i := range matrix {
		headers = append(headers, "class "+strconv.Itoa(i))
	}
	rightAlign := map[int]bool{}
	rows := make([][]string, 0, len(matrix))
	for i, row := range matrix {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, "class "+strconv.Itoa(i))
		for j, n := range row {
			cells = append(cells, strconv.Itoa(n))
			rightAlign[j+1] = true
		}
		rows = append(rows, cells)
	}
	return formatTable(headers, rows, rightAlign)
}

// TrainingSummary renders the result header lines shown above the matrix.
func TrainingSummary(result model.TrainingResult, split *model.SplitConfig) []string {
	lines := []string{
		fmt.Sprintf("Accuracy: %.2f%%", result.Accuracy*100),
	}
	if split != nil {
		lines = append(lines, fmt.Sprintf("Split: %d%% train / %d%% test", split.TrainPercent(), split.TestPercent()))
	}
	if result.Message != "" {
		lines = append(lines, result.Message)
	}
	return lines
}

// Probabilities renders per-class probability bars.
func Probabilities(probs []float64) []string {
	lines := make([]string, 0, len(probs))
	for i, p := range probs {
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		filled := int(p*probBarWidth + 0.5)
		bar := strings.Repeat(probBarChar, filled) + strings.Repeat(" ", probBarWidth-filled)
		lines = append(lines, fmt.Sprintf("class %d %s %5.1f%%", i, bar, p*100))
	}
	return lines
}

// ProjectsTable renders project summaries for plain (non-TUI) output,
// truncating name and description to the terminal width.
func ProjectsTable(projects []model.ProjectSummary) []string {
	if len(projects) == 0 {
		return []string{"No saved projects."}
	}
	width := terminalWidth()
	nameWidth := width / 4
	if nameWidth < 12 {
		nameWidth = 12
	}
	descWidth := width / 3
	if descWidth < 16 {
		descWidth = 16
	}
	headers := []string{"ID", "Name", "Description", "Rows", "Accuracy", "Updated"}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rowCount := ""
		if p.Dataset != nil {
			rowCount = strconv.Itoa(p.Dataset.RowCount)
		}
		accuracy := ""
		if p.Result != nil {
			accuracy = fmt.Sprintf("%.1f%%", p.Result.Accuracy*100)
		}
		rows = append(rows, []string{
			p.ID,
			truncateCell(p.Name, nameWidth),
			truncateCell(p.Description, descWidth),
			rowCount,
			accuracy,
			p.UpdatedAt,
		})
	}
	return formatTable(headers, rows, map[int]bool{3: true, 4: true})
}

// DatasetPreview renders the sample rows of a dataset descriptor.
func DatasetPreview(d *model.DatasetDescriptor, maxColWidth int) []string {
	if d == nil || len(d.Columns) == 0 {
		return nil
	}
	if maxColWidth <= 0 {
		maxColWidth = 16
	}
	headers := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		headers[i] = truncateCell(col, maxColWidth)
	}
	rows := make([][]string, 0, len(d.SampleData))
	for _, sample := range d.SampleData {
		row := make([]string, len(d.Columns))
		for i, col := range d.Columns {
			row[i] = truncateCell(formatValue(sample[col]), maxColWidth)
		}
		rows = append(rows, row)
	}
	return formatTable(headers, rows, nil)
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'g', 6, 64)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}
