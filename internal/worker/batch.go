package worker

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// DocumentProcessor runs the citation pipeline over one document file
type DocumentProcessor interface {
	ProcessFile(ctx context.Context, path string) (*model.Report, error)
}

// DocumentJob is one document to process
type DocumentJob struct {
	Index     int
	Path      string
	Processor DocumentProcessor
}

// Execute executes the document job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	report, err := j.Processor.ProcessFile(ctx, j.Path)
	return &DocumentResult{
		index:  j.Index,
		Path:   j.Path,
		Report: report,
		Error:  err,
	}
}

// DocumentResult is the outcome for one document
type DocumentResult struct {
	index  int
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many documents concurrently
type BatchProcessor struct {
	processor   DocumentProcessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor DocumentProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessPaths processes documents concurrently. Results keep input order;
// a document skipped because ctx was cancelled carries the context error.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*DocumentResult {
	results := make([]*DocumentResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		job := &DocumentJob{Index: i, Path: path, Processor: b.processor}
		if err := pool.Submit(job); err != nil {
			break
		}
	}

	for _, r := range pool.Wait() {
		dr := r.(*DocumentResult)
		results[dr.index] = dr
	}

	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &DocumentResult{index: i, Path: paths[i], Error: fmt.Errorf("not processed: %w", err)}
		}
	}
	return results
}

// ProcessList reads document paths from a list file and processes them
func (b *BatchProcessor) ProcessList(ctx context.Context, listPath string) ([]*DocumentResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read document list: %w", err)
	}
	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads document paths from a file (one per line).
// Relative paths are resolved against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}

// documentExts are the file types picked up from a directory
var documentExts = map[string]bool{
	".txt":  true,
	".md":   true,
	".text": true,
}

// CollectDocuments lists the text documents under dir, sorted by path
func CollectDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if documentExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}
