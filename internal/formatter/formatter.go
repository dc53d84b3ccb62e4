// package formatter renders resolution results as CSV documents and Markdown reports
package formatter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
)

// ExportFileSuffix is appended to the sanitized playlist name of every CSV export.
const ExportFileSuffix = "_export.csv"

// EscapeField quotes a field containing a comma, a double quote or a newline, doubling internal quotes.
// Other fields are returned unchanged.
func EscapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// BuildRow converts a result into the seven export columns.
//
// An unresolved result leaves MediaId empty and falls back to the album art for the thumbnail.
func BuildRow(result models.ResolutionResult, playlistName string) models.ExportRow {
	track := result.Track
	row := models.ExportRow{
		PlaylistName: playlistName,
		Title:        track.Title,
		Artists:      track.ArtistNames(),
		Duration:     strconv.Itoa(track.DurationMS / 1000),
	}

	if result.Video != nil {
		row.MediaID = result.Video.VideoID
		row.ThumbnailURL = result.Video.BestThumbnail()
	}
	if row.ThumbnailURL == "" {
		row.ThumbnailURL = track.AlbumArt()
	}
	return row
}

// FormatCSV renders the header row and one row per result, in order, joined by "\n".
func FormatCSV(results []models.ResolutionResult, playlistName string) string {
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, joinFields(models.ExportHeader))
	for _, result := range results {
		lines = append(lines, joinFields(BuildRow(result, playlistName).Fields()))
	}
	return strings.Join(lines, "\n")
}

func joinFields(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeField(f)
	}
	return strings.Join(escaped, ",")
}

// ExportFilename derives a file name from a playlist name: everything other than an ASCII
// letter or digit becomes "_", one per UTF-16 code unit (so an emoji turns into "__"), the
// result is lower-cased and suffixed with [ExportFileSuffix].
func ExportFilename(playlistName string) string {
	var b strings.Builder
	for _, r := range playlistName {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteString(strings.Repeat("_", max(utf16.RuneLen(r), 1)))
		}
	}
	return b.String() + ExportFileSuffix
}

// WriteCSVExport writes the CSV document for results into dir and returns the file path.
//
// dir defaults to the working directory and is created when missing.
func WriteCSVExport(results []models.ResolutionResult, playlistName, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, ExportFilename(playlistName))
	if err := os.WriteFile(path, []byte(FormatCSV(results, playlistName)), 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}

// FormatMarkdown renders a human-readable report: matched tracks with their video links, then unresolved tracks.
func FormatMarkdown(playlist models.Playlist, results []models.ResolutionResult) []byte {
	var buf bytes.Buffer

	matched := 0
	for _, r := range results {
		if r.Resolved() {
			matched++
		}
	}

	buf.WriteString(fmt.Sprintf("# %s\n\n", playlist.Name))
	if playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", playlist.Description))
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(results)))
	buf.WriteString(fmt.Sprintf("**Matched**: %d\n\n", matched))

	buf.WriteString("## Tracks\n\n")
	for i, r := range results {
		duration := shared.FormatDuration(r.Track.DurationMS / 1000)
		if r.Resolved() {
			buf.WriteString(fmt.Sprintf("%d. %s - %s [%s] (https://www.youtube.com/watch?v=%s)\n",
				i+1, r.Track.ArtistNames(), r.Track.Title, duration, r.Video.VideoID))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s - %s [%s] (no match)\n", i+1, r.Track.ArtistNames(), r.Track.Title, duration))
		}
	}

	if unresolved := len(results) - matched; unresolved > 0 {
		buf.WriteString("\n## Unresolved\n\n")
		for _, r := range results {
			if r.Resolved() {
				continue
			}
			reason := "no match"
			if r.Err != nil {
				reason = r.Err.Error()
			}
			buf.WriteString(fmt.Sprintf("- %s - %s: %s\n", r.Track.PrimaryArtist(), r.Track.Title, reason))
		}
	}

	return buf.Bytes()
}

// WriteMarkdownReport writes the report next to the CSV export, named {base}_report.md.
func WriteMarkdownReport(playlist models.Playlist, results []models.ResolutionResult, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	base := strings.TrimSuffix(ExportFilename(playlist.Name), ExportFileSuffix)
	path := filepath.Join(dir, base+"_report.md")
	if err := os.WriteFile(path, FormatMarkdown(playlist, results), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// WriteBulkExportManifest writes the bulk export summary as indented JSON.
func WriteBulkExportManifest(result *models.BulkExportResult, path string) error {
	for i := range result.Results {
		if err := result.Results[i].Error; err != nil {
			result.Results[i].ErrorMessage = err.Error()
		}
	}

	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
