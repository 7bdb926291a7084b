// package formatter renders jobs, slots and history in the CLI output formats and writes
// slot images to disk.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format is an output format name.
type Format string

const (
	JSON     Format = "json"
	YAML     Format = "yaml"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "text"
)

// ParseFormat accepts a format name; empty means [Text].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return Text, nil
	case JSON, YAML, CSV, Markdown, Text:
		return f, nil
	case "md":
		return Markdown, nil
	case "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (json, yaml, csv, markdown, text)", shared.ErrInvalidFlag, s)
	}
}

// jobDocument is the serialized shape of a job together with its inputs.
type jobDocument struct {
	RequestID     string                   `json:"request_id" yaml:"request_id"`
	SourceImageID string                   `json:"source_image_id" yaml:"source_image_id"`
	Inputs        *models.GenerationInputs `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Images        []models.ThemeResult     `json:"images" yaml:"images"`
}

// slotDocument is the serialized shape of a slot snapshot; image bytes are summarized.
type slotDocument struct {
	Slot          int    `json:"slot" yaml:"slot"`
	Phase         string `json:"phase" yaml:"phase"`
	ResultImageID string `json:"result_image_id,omitempty" yaml:"result_image_id,omitempty"`
	ThemeName     string `json:"theme_name,omitempty" yaml:"theme_name,omitempty"`
	Bytes         int    `json:"bytes" yaml:"bytes"`
	Engine        string `json:"engine,omitempty" yaml:"engine,omitempty"`
	Attempts      int    `json:"attempts" yaml:"attempts"`
	FromCache     bool   `json:"from_cache" yaml:"from_cache"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

func slotDocuments(states []models.SlotState) []slotDocument {
	docs := make([]slotDocument, 0, len(states))
	for _, st := range states {
		d := slotDocument{
			Slot:          st.Number,
			Phase:         st.Phase.String(),
			ResultImageID: st.Result.ResultImageID,
			ThemeName:     st.Result.ThemeName,
			Bytes:         len(st.Bytes),
			Engine:        st.Engine,
			Attempts:      st.Attempts,
			FromCache:     st.FromCache,
		}
		if st.Err != nil {
			d.Error = st.Err.Error()
		}
		docs = append(docs, d)
	}
	return docs
}

func encode(format Format, v any) ([]byte, error) {
	switch format {
	case JSON:
		return shared.MarshalJSON(v, true)
	case YAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedType, format)
}

// RenderJob renders the job and, when known, the inputs that produced it.
func RenderJob(format Format, job *models.GenerationJob, inputs *models.GenerationInputs) ([]byte, error) {
	if job == nil {
		return nil, shared.ErrNoJob
	}
	switch format {
	case CSV:
		return ExportToCSV(job)
	case Markdown:
		return ExportToMarkdown(job, inputs, nil)
	case Text:
		return ExportToText(job, inputs)
	default:
		return encode(format, jobDocument{
			RequestID:     job.RequestID,
			SourceImageID: job.SourceImageID,
			Inputs:        inputs,
			Images:        job.Images,
		})
	}
}

// RenderSlots renders grid snapshots.
func RenderSlots(format Format, states []models.SlotState) ([]byte, error) {
	docs := slotDocuments(states)
	switch format {
	case CSV:
		rows := [][]string{{"Slot", "Phase", "ResultImageID", "Theme", "Bytes", "Engine", "Attempts", "Cached", "Error"}}
		for _, d := range docs {
			rows = append(rows, []string{
				strconv.Itoa(d.Slot), d.Phase, d.ResultImageID, d.ThemeName, strconv.Itoa(d.Bytes),
				d.Engine, strconv.Itoa(d.Attempts), strconv.FormatBool(d.FromCache), d.Error,
			})
		}
		return writeCSV(rows)
	case Markdown:
		var buf bytes.Buffer
		buf.WriteString("| Slot | Theme | Phase | Bytes | Engine |\n|---|---|---|---|---|\n")
		for _, d := range docs {
			fmt.Fprintf(&buf, "| %d | %s | %s | %d | %s |\n", d.Slot, d.ThemeName, d.Phase, d.Bytes, d.Engine)
		}
		return buf.Bytes(), nil
	case Text:
		var buf bytes.Buffer
		for _, d := range docs {
			fmt.Fprintf(&buf, "%2d. %-24s %-16s", d.Slot, d.ThemeName, d.Phase)
			if d.Bytes > 0 {
				fmt.Fprintf(&buf, " %d bytes", d.Bytes)
			}
			if d.Engine != "" {
				fmt.Fprintf(&buf, " [%s]", d.Engine)
			}
			if d.FromCache {
				buf.WriteString(" (cached)")
			}
			if d.Error != "" {
				fmt.Fprintf(&buf, " error: %s", d.Error)
			}
			buf.WriteString("\n")
		}
		return buf.Bytes(), nil
	default:
		return encode(format, docs)
	}
}

// RenderHistory renders previously current jobs, newest first.
func RenderHistory(format Format, entries []models.HistoryEntry) ([]byte, error) {
	switch format {
	case CSV:
		rows := [][]string{{"SavedAt", "RequestID", "SourceImageID", "Themes", "Description"}}
		for _, e := range entries {
			rows = append(rows, []string{
				e.SavedAt.UTC().Format("2006-01-02T15:04:05Z"), e.Job.RequestID, e.Job.SourceImageID,
				strconv.Itoa(len(e.Job.Images)), description(e.Inputs),
			})
		}
		return writeCSV(rows)
	case Markdown, Text:
		var buf bytes.Buffer
		for i, e := range entries {
			prefix := fmt.Sprintf("%d.", i+1)
			if format == Markdown {
				prefix = "-"
			}
			fmt.Fprintf(&buf, "%s %s %s (%d themes) %s\n", prefix,
				e.SavedAt.Local().Format("2006-01-02 15:04"), e.Job.RequestID, len(e.Job.Images), description(e.Inputs))
		}
		return buf.Bytes(), nil
	default:
		return encode(format, entries)
	}
}

func description(in *models.GenerationInputs) string {
	if in == nil {
		return ""
	}
	return in.UserDescription
}

// ExportToCSV converts a job to CSV with columns: Index, ResultImageID, ThemeID, ThemeName
func ExportToCSV(job *models.GenerationJob) ([]byte, error) {
	rows := [][]string{{"Index", "ResultImageID", "ThemeID", "ThemeName"}}
	for i, img := range job.Images {
		rows = append(rows, []string{strconv.Itoa(i), img.ResultImageID, img.ThemeID, img.ThemeName})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown converts a job to Markdown. images maps result ids to file names
// relative to the document; themes with an entry are embedded.
func ExportToMarkdown(job *models.GenerationJob, inputs *models.GenerationInputs, images map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Job %s\n\n", job.RequestID)
	fmt.Fprintf(&buf, "**Source image**: %s\n", job.SourceImageID)
	if inputs != nil {
		if inputs.UserDescription != "" {
			fmt.Fprintf(&buf, "**Description**: %s\n", inputs.UserDescription)
		}
		if inputs.AlbumMode != "" {
			fmt.Fprintf(&buf, "**Album**: %s\n", inputs.AlbumMode)
		}
	}
	fmt.Fprintf(&buf, "**Themes**: %d\n\n", len(job.Images))

	buf.WriteString("## Themes\n\n")
	for i, img := range job.Images {
		fmt.Fprintf(&buf, "%d. %s (`%s`)\n", i+1, img.ThemeName, img.ResultImageID)
		if file, ok := images[img.ResultImageID]; ok {
			fmt.Fprintf(&buf, "\n   ![%s](%s)\n\n", img.ThemeName, file)
		}
	}
	return buf.Bytes(), nil
}

// ExportToText converts a job to plain text
func ExportToText(job *models.GenerationJob, inputs *models.GenerationInputs) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Job: %s\n", job.RequestID)
	fmt.Fprintf(&buf, "Source image: %s\n", job.SourceImageID)
	if inputs != nil && inputs.UserDescription != "" {
		fmt.Fprintf(&buf, "Description: %s\n", inputs.UserDescription)
	}
	fmt.Fprintf(&buf, "Themes: %d\n\n", len(job.Images))

	for i, img := range job.Images {
		fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, img.ThemeName, img.ResultImageID)
	}
	return buf.Bytes(), nil
}

// ImageExtension picks a file extension from the image bytes.
func ImageExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// SlotFilename is the file name used for a ready slot's image.
func SlotFilename(st models.SlotState) string {
	name := st.Result.ThemeID
	if name == "" {
		name = st.Result.ResultImageID
	}
	return fmt.Sprintf("slot-%02d_%s%s", st.Number, sanitize(name), ImageExtension(st.Bytes))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// WriteSlotImages writes every ready slot's image into dir and returns the paths written.
// Slots that are not ready are skipped.
func WriteSlotImages(dir string, states []models.SlotState) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var files []string
	for _, st := range states {
		if st.Phase != models.PhaseReady || len(st.Bytes) == 0 {
			continue
		}
		path := filepath.Join(dir, SlotFilename(st))
		if err := os.WriteFile(path, st.Bytes, 0644); err != nil {
			return files, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
}

// WriteMarkdownExport exports a job to a directory: {dir}/README.md plus one image per
// ready slot, embedded in the document.
//
// Directory name defaults to the request id.
func WriteMarkdownExport(job *models.GenerationJob, inputs *models.GenerationInputs, states []models.SlotState, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = job.RequestID
	}

	files, err := WriteSlotImages(outputDir, states)
	if err != nil {
		return nil, err
	}

	images := make(map[string]string)
	for _, st := range states {
		if st.Phase == models.PhaseReady && len(st.Bytes) > 0 {
			if _, seen := images[st.Result.ResultImageID]; !seen {
				images[st.Result.ResultImageID] = SlotFilename(st)
			}
		}
	}

	mdData, err := ExportToMarkdown(job, inputs, images)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return &MarkdownExportResult{Directory: outputDir, Files: append(files, mdFile)}, nil
}
