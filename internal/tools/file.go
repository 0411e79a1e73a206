package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/koopa0/toolhub/internal/log"
	"github.com/koopa0/toolhub/internal/security"
)

// FileToolsetName is the registered name of the file toolset.
const FileToolsetName = "file"

// Tool names registered by the file toolset.
const (
	ToolReadFile   = "read_file"
	ToolCreateFile = "create_file"
	ToolModifyFile = "modify_file"
)

// maxLineChars caps how many characters of a single line read_file renders.
// Longer lines are cut and flagged so one pathological line cannot flood the
// model's context window.
const maxLineChars = 5000

// contextWindowSize is how many lines of context modify_file includes around
// a change in its synchronized content window.
const contextWindowSize = 5

// maxScanTokenSize bounds a single line read from disk (10 MB).
const maxScanTokenSize = 10 * 1024 * 1024

// chunkRuler separates numbered file content from the surrounding status
// lines in tool responses.
const chunkRuler = "-------------------------------------------------------------------------- "

// lockRetryDelay is how often modify_file retries a contended file lock.
const lockRetryDelay = 50 * time.Millisecond

// ReadFileInput defines input for the read_file tool.
type ReadFileInput struct {
	FilePath  string `json:"file_path" jsonschema:"the relative path to the target file from the workspace root"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"the 1-indexed line number to start reading from (defaults to 1)"`
	EndLine   *int   `json:"end_line,omitempty" jsonschema:"the line number to stop reading before (exclusive; omit to read to the end of the file)"`
}

// CreateFileInput defines input for the create_file tool.
type CreateFileInput struct {
	FilePath      string `json:"file_path" jsonschema:"the relative path of the new file from the workspace root"`
	Content       string `json:"content" jsonschema:"the content to write into the new file"`
	ReturnContent *bool  `json:"return_content,omitempty" jsonschema:"return the written content with line numbers (defaults to true)"`
}

// ModifyFileInput defines input for the modify_file tool.
type ModifyFileInput struct {
	FilePath   string `json:"file_path" jsonschema:"the relative path to the existing file to be modified"`
	StartLine  int    `json:"start_line" jsonschema:"the 1-indexed line number where the modification begins"`
	EndLine    int    `json:"end_line" jsonschema:"the 1-indexed inclusive line number where the modification ends; set it below start_line to insert before start_line"`
	NewContent string `json:"new_content,omitempty" jsonschema:"the new content for the range; an empty string deletes the specified lines"`
}

// FileToolset provides line-indexed file operations: chunked reads, guarded
// creation, and range edits that report back renumbered content so the
// calling model can keep its line numbers in sync with the file on disk.
// It implements the Toolset interface.
type FileToolset struct {
	workspace *security.Workspace
	logger    log.Logger
	tools     []Tool
}

// NewFileToolset creates a FileToolset confined to workspace.
func NewFileToolset(workspace *security.Workspace, logger log.Logger) (*FileToolset, error) {
	if workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	fs := &FileToolset{workspace: workspace, logger: logger}

	readFile, err := New(ToolReadFile,
		"Reads the content of a text file. Supports line-based chunking (start_line/end_line) for large files.",
		fs.readFile)
	if err != nil {
		return nil, err
	}
	createFile, err := New(ToolCreateFile,
		"Creates a NEW file and writes the content to it. The operation fails if the file already exists. To change an existing file use modify_file instead.",
		fs.createFile)
	if err != nil {
		return nil, err
	}
	modifyFile, err := New(ToolModifyFile,
		"Modifies an EXISTING file by replacing, inserting, or deleting content within a 1-indexed line range. The response contains a SYNCHRONIZED CONTENT WINDOW with the new, correct line numbers; any follow-up modification must use them.",
		fs.modifyFile)
	if err != nil {
		return nil, err
	}

	fs.tools = []Tool{readFile, createFile, modifyFile}
	return fs, nil
}

// Name returns the toolset identifier.
func (*FileToolset) Name() string {
	return FileToolsetName
}

// Tools returns the file operation tools in a stable order.
func (fs *FileToolset) Tools() []Tool {
	return slices.Clone(fs.tools)
}

// readFile returns a numbered chunk of a text file.
//
// start_line is clamped to 1. end_line is exclusive; when unset the read
// continues to the end of the file. Lines longer than maxLineChars are cut
// with an inline warning.
func (fs *FileToolset) readFile(_ context.Context, in ReadFileInput) (string, error) {
	fs.logger.Info("read_file called", "path", in.FilePath, "start_line", in.StartLine)

	target, err := fs.workspace.Resolve(in.FilePath)
	if err != nil {
		return execFailure(in.FilePath, err.Error()), nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return execFailure(in.FilePath, fmt.Sprintf("File not found at path: %s", in.FilePath)), nil
		}
		return readUnexpected(in.FilePath, err), nil
	}
	if info.IsDir() {
		return execFailure(in.FilePath, fmt.Sprintf("Path is not a file: %s", in.FilePath)), nil
	}

	startLine := max(1, in.StartLine)
	if in.EndLine != nil && *in.EndLine <= startLine {
		return "ERROR: end_line must be greater than start_line.", nil
	}

	file, err := os.Open(target) // #nosec G304 -- target validated by workspace.Resolve
	if err != nil {
		return readUnexpected(in.FilePath, err), nil
	}
	defer func() { _ = file.Close() }()

	var content []string
	linesRead := 0

	scanner := newLineScanner(file)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		if lineNumber < startLine {
			continue
		}
		if in.EndLine != nil && lineNumber >= *in.EndLine {
			break
		}

		lineContent := scanner.Text()
		if cut, truncated := truncateRunes(lineContent, maxLineChars); truncated {
			content = append(content, fmt.Sprintf(
				"%d:%s [WARNING: Line %d was truncated to %d characters]",
				lineNumber, cut, lineNumber, maxLineChars))
		} else {
			content = append(content, fmt.Sprintf("%d:%s", lineNumber, lineContent))
		}
		linesRead++
	}
	if err := scanner.Err(); err != nil {
		return readUnexpected(in.FilePath, err), nil
	}

	if linesRead == 0 {
		totalLines, err := countLines(target)
		if err != nil {
			return readUnexpected(in.FilePath, err), nil
		}
		if startLine > totalLines && totalLines > 0 {
			return execFailure(in.FilePath, fmt.Sprintf(
				"Requested start_line (%d) is greater than the total lines in file (%d).",
				startLine, totalLines)), nil
		}
		return fmt.Sprintf("SUCCESS: Chunk of '%s' (Lines %d-%d) is empty. Total lines in file: %d.",
			in.FilePath, startLine, totalLines, totalLines), nil
	}

	lastLine := startLine + linesRead - 1
	return fmt.Sprintf("SUCCESS: Chunk of '%s' (Lines %d-%d):\n%s\n%s\n%s\n",
		in.FilePath, startLine, lastLine, chunkRuler, strings.Join(content, "\n"), chunkRuler), nil
}

// createFile writes a new file, refusing to overwrite an existing one.
// The parent directory must already exist.
func (fs *FileToolset) createFile(_ context.Context, in CreateFileInput) (string, error) {
	fs.logger.Info("create_file called", "path", in.FilePath)

	target, err := fs.workspace.Resolve(in.FilePath)
	if err != nil {
		return execFailure(in.FilePath, err.Error()), nil
	}

	if _, err := os.Stat(target); err == nil {
		return execFailure(in.FilePath, fmt.Sprintf(
			"File already exists at path: %s. Cannot overwrite.", in.FilePath)), nil
	}
	if parent := filepath.Dir(target); !isDir(parent) {
		return execFailure(in.FilePath, fmt.Sprintf(
			"Parent directory not found or general I/O error: Parent directory does not exist for path: %s",
			in.FilePath)), nil
	}

	// O_EXCL makes the existence check atomic: two concurrent create_file
	// calls for the same path cannot both win.
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 -- target validated by workspace.Resolve
	if err != nil {
		if os.IsExist(err) {
			return execFailure(in.FilePath, fmt.Sprintf(
				"File already exists at path: %s. Cannot overwrite.", in.FilePath)), nil
		}
		return createUnexpected(in.FilePath, err), nil
	}

	if _, err := file.WriteString(in.Content); err != nil {
		_ = file.Close()
		return createUnexpected(in.FilePath, err), nil
	}
	if err := file.Close(); err != nil {
		return createUnexpected(in.FilePath, err), nil
	}

	lineCount := len(splitLines(in.Content))
	base := fmt.Sprintf("SUCCESS: File '%s' successfully created with %d lines of initial content.",
		in.FilePath, lineCount)

	returnContent := true
	if in.ReturnContent != nil {
		returnContent = *in.ReturnContent
	}
	if !returnContent {
		return base, nil
	}

	// Read back what landed on disk and number it, so follow-up modify_file
	// calls start from the same line numbering the file actually has.
	numbered, err := numberedContent(target)
	if err != nil {
		return createUnexpected(in.FilePath, err), nil
	}
	return fmt.Sprintf("%s Content with line numbers for subsequent modification:\n%s\n%s\n%s\n",
		base, chunkRuler, numbered, chunkRuler), nil
}

// modifyFile rewrites a 1-indexed line range of an existing file.
//
// end_line >= start_line replaces the inclusive range (deleting it when
// new_content is empty); end_line < start_line inserts before start_line.
// An end_line past the last line is clamped. The response embeds a
// synchronized content window around the change. A file lock serializes
// concurrent modifications of the same path, also across processes.
func (fs *FileToolset) modifyFile(ctx context.Context, in ModifyFileInput) (string, error) {
	fs.logger.Info("modify_file called",
		"path", in.FilePath, "start_line", in.StartLine, "end_line", in.EndLine)

	target, err := fs.workspace.Resolve(in.FilePath)
	if err != nil {
		return execFailure(in.FilePath, err.Error()), nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return execFailure(in.FilePath, fmt.Sprintf("File not found at path: %s", in.FilePath)), nil
		}
		return modifyUnexpected(in.FilePath, err), nil
	}
	if info.IsDir() {
		return execFailure(in.FilePath, fmt.Sprintf(
			"Path is a directory: %s. Operation requires a file path.", in.FilePath)), nil
	}

	// end_line may be 0: together with start_line 1 it means insertion at
	// the top of the file.
	if in.StartLine < 1 || in.EndLine < 0 {
		return "ERROR: start_line must be >= 1. end_line must be >= 0.", nil
	}

	lock := flock.New(target)
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return "", err
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(target) // #nosec G304 -- target validated by workspace.Resolve
	if err != nil {
		return modifyUnexpected(in.FilePath, err), nil
	}
	originalLines := splitLines(string(data))
	totalLines := len(originalLines)
	newContentLines := splitLines(in.NewContent)
	newLinesCount := len(newContentLines)

	if in.StartLine > totalLines+1 {
		return fmt.Sprintf(
			"ERROR: Cannot modify lines. Requested start_line (%d) is beyond the file's current end (%d).",
			in.StartLine, totalLines), nil
	}

	var modified []string
	var operation string

	if in.EndLine < in.StartLine {
		// Insertion before start_line.
		insertIndex := in.StartLine - 1
		modified = make([]string, 0, totalLines+newLinesCount)
		modified = append(modified, originalLines[:insertIndex]...)
		modified = append(modified, newContentLines...)
		modified = append(modified, originalLines[insertIndex:]...)
		operation = fmt.Sprintf("inserted %d lines before line %d", newLinesCount, in.StartLine)
	} else {
		// Replacement or deletion of the inclusive range.
		startIndex := in.StartLine - 1
		endIndex := min(in.EndLine, totalLines)
		linesRemoved := endIndex - startIndex

		modified = make([]string, 0, totalLines-linesRemoved+newLinesCount)
		modified = append(modified, originalLines[:startIndex]...)
		modified = append(modified, newContentLines...)
		modified = append(modified, originalLines[endIndex:]...)

		if newLinesCount == 0 {
			operation = fmt.Sprintf("deleted %d lines (lines %d-%d)",
				linesRemoved, in.StartLine, in.StartLine+linesRemoved-1)
		} else {
			operation = fmt.Sprintf("replaced %d lines (lines %d-%d) with %d new lines",
				linesRemoved, in.StartLine, in.StartLine+linesRemoved-1, newLinesCount)
		}
	}

	if err := os.WriteFile(target, []byte(strings.Join(modified, "\n")), info.Mode().Perm()); err != nil {
		return modifyUnexpected(in.FilePath, err), nil
	}

	newTotalLines := len(modified)
	base := fmt.Sprintf("SUCCESS: File '%s' successfully modified. Operation: %s.", in.FilePath, operation)
	return base + "\n" + fs.synchronizedWindow(target, newTotalLines, in.StartLine, newLinesCount), nil
}

// synchronizedWindow renders the post-edit content window: the new lines
// plus contextWindowSize lines of context on each side, numbered against the
// file as it now exists on disk.
func (fs *FileToolset) synchronizedWindow(target string, newTotalLines, modifiedStartLine, newLinesCount int) string {
	readStart := max(1, modifiedStartLine-contextWindowSize)
	windowEnd := modifiedStartLine + newLinesCount - 1
	readEnd := min(newTotalLines, windowEnd+contextWindowSize+1)

	file, err := os.Open(target) // #nosec G304 -- target validated by workspace.Resolve
	if err != nil {
		return fs.syncReadFailure(target, err)
	}
	defer func() { _ = file.Close() }()

	var window []string
	scanner := newLineScanner(file)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		if lineNumber < readStart {
			continue
		}
		if lineNumber > readEnd {
			break
		}
		window = append(window, fmt.Sprintf("%d:%s", lineNumber, scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return fs.syncReadFailure(target, err)
	}

	prefix := ""
	if readStart > 1 {
		prefix = "[...]\n"
	}
	suffix := ""
	if readEnd < newTotalLines {
		suffix = "\n[...]"
	}

	return fmt.Sprintf(
		"[SYNCHRONIZED CONTENT WINDOW - Lines %d to %d]:\n%s\n%s%s%s\n%s\nNOTE: Total lines in file now: %d. All subsequent operations must use these new line numbers.",
		readStart, readEnd, chunkRuler, prefix, strings.Join(window, "\n"), suffix, chunkRuler, newTotalLines)
}

func (fs *FileToolset) syncReadFailure(target string, err error) string {
	fs.logger.Warn("modification succeeded but the synchronization read failed",
		"path", target, "error", err)
	return fmt.Sprintf(
		"\nWARNING: Modification succeeded, but failed to synchronize file content due to an internal read error: %v", err)
}

// execFailure renders the business-level failure string shared by the file
// tools. Failures are reported in the result text, not as Go errors, so the
// calling model can read them and correct itself.
func execFailure(path, reason string) string {
	return fmt.Sprintf("ERROR: Tool execution failed for '%s'. Reason: %s", path, reason)
}

func readUnexpected(path string, err error) string {
	return fmt.Sprintf("UNEXPECTED ERROR: Could not read file '%s'. System message: %v", path, err)
}

func createUnexpected(path string, err error) string {
	return fmt.Sprintf("UNEXPECTED ERROR: Could not create file '%s'. System message: %v", path, err)
}

func modifyUnexpected(path string, err error) string {
	return fmt.Sprintf("UNEXPECTED ERROR: Could not modify file '%s'. System message: %v", path, err)
}

// newLineScanner returns a line scanner sized for source files whose lines
// may far exceed bufio's default token limit.
func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)
	return scanner
}

// countLines counts lines the same way the read loop does. Used only for
// error reporting when a requested chunk turns out empty.
func countLines(path string) (int, error) {
	file, err := os.Open(path) // #nosec G304 -- target validated by workspace.Resolve
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	total := 0
	scanner := newLineScanner(file)
	for scanner.Scan() {
		total++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// numberedContent reads path and renders every line as "N:content".
func numberedContent(path string) (string, error) {
	file, err := os.Open(path) // #nosec G304 -- target validated by workspace.Resolve
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := newLineScanner(file)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		lines = append(lines, fmt.Sprintf("%d:%s", lineNumber, scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// isDir reports whether path exists and is a directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
