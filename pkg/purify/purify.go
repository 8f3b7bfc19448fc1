// Package purify removes flagged samples from a dataset and writes a clean
// replacement artifact.
package purify

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Kind identifies the dataset layout being purified.
type Kind string

const (
	// KindTabular is a CSV file with a header row.
	KindTabular Kind = "tabular"
	// KindImageFolder is a class-per-subfolder image tree.
	KindImageFolder Kind = "image_folder"
)

// Mode records how the clean artifact was produced.
type Mode string

const (
	// ModePurified means flagged samples were actually removed.
	ModePurified Mode = "purified"
	// ModeCopiedOriginal means the source could not be parsed and was copied
	// unmodified.
	ModeCopiedOriginal Mode = "copied_original"
	// ModePlaceholder means the source was missing and a minimal valid
	// artifact was synthesized so downloads never 404.
	ModePlaceholder Mode = "placeholder"
)

// Outcome describes one purification run. Degraded outcomes carry a valid
// artifact but must not be mistaken for successful purification.
type Outcome struct {
	CleanPath      string  `json:"clean_dataset_path"`
	Removed        int     `json:"poisoned_samples_removed"`
	TotalSamples   int     `json:"total_samples"`
	IntegrityScore float64 `json:"data_integrity_score"`
	Mode           Mode    `json:"mode"`
	Degraded       bool    `json:"degraded"`
	AccuracyBefore float64 `json:"accuracy_before,omitempty"`
	AccuracyAfter  float64 `json:"accuracy_after,omitempty"`
}

// Purifier writes clean dataset artifacts. Concurrent purifications of the
// same source are serialized per artifact; different sources proceed
// independently.
type Purifier struct {
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Purifier.
type Option func(*Purifier)

// WithLogger sets the purifier logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Purifier) { p.logger = l }
}

// New creates a Purifier.
func New(opts ...Option) *Purifier {
	p := &Purifier{
		logger: zap.NewNop(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Purify removes the samples at the given zero-based indices from the source
// dataset and writes the result to destPath (a file for tabular data, a
// directory for image folders). Indices beyond the sample count are ignored.
//
// I/O failures never surface as errors for recoverable cases: the fallback
// chain copies the original unmodified, and as a last resort writes a
// minimal placeholder CSV, with the outcome marked degraded either way.
func (p *Purifier) Purify(srcPath, destPath string, suspicious []int, kind Kind) (Outcome, error) {
	switch kind {
	case KindTabular, KindImageFolder:
	default:
		return Outcome{}, fmt.Errorf("unsupported dataset kind %q", kind)
	}

	lock := p.artifactLock(srcPath)
	lock.Lock()
	defer lock.Unlock()

	set := make(map[int]struct{}, len(suspicious))
	for _, i := range suspicious {
		if i >= 0 {
			set[i] = struct{}{}
		}
	}

	var (
		outcome Outcome
		err     error
	)
	if kind == KindTabular {
		outcome, err = p.purifyCSV(srcPath, destPath, set)
	} else {
		outcome, err = p.purifyImageFolder(srcPath, destPath, set)
	}
	if err == nil {
		p.logger.Info("purification complete",
			zap.String("source", srcPath),
			zap.String("clean", outcome.CleanPath),
			zap.Int("removed", outcome.Removed),
			zap.Float64("integrity_score", outcome.IntegrityScore),
		)
		return outcome, nil
	}

	p.logger.Warn("purification failed, falling back",
		zap.String("source", srcPath), zap.Error(err))
	return p.fallback(srcPath, destPath), nil
}

// artifactLock returns the mutex serializing work on one source artifact.
func (p *Purifier) artifactLock(srcPath string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[srcPath]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[srcPath] = lock
	}
	return lock
}

// purifyCSV drops flagged rows while preserving the header and column order.
func (p *Purifier) purifyCSV(srcPath, destPath string, set map[int]struct{}) (Outcome, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return Outcome{}, fmt.Errorf("parse source: %w", err)
	}
	if len(records) == 0 {
		return Outcome{}, fmt.Errorf("source %s has no rows", srcPath)
	}

	header := records[0]
	rows := records[1:]

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create output dir: %w", err)
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("create output: %w", err)
	}
	defer dst.Close()

	w := csv.NewWriter(dst)
	if err := w.Write(header); err != nil {
		return Outcome{}, fmt.Errorf("write header: %w", err)
	}

	kept := 0
	for i, row := range rows {
		if _, drop := set[i]; drop {
			continue
		}
		if err := w.Write(row); err != nil {
			return Outcome{}, fmt.Errorf("write row: %w", err)
		}
		kept++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Outcome{}, fmt.Errorf("flush output: %w", err)
	}

	total := len(rows)
	removed := total - kept
	return Outcome{
		CleanPath:      destPath,
		Removed:        removed,
		TotalSamples:   total,
		IntegrityScore: integrityScore(removed, total),
		Mode:           ModePurified,
	}, nil
}

// purifyImageFolder mirrors the class tree, skipping files whose per-class
// running index is flagged. Classes and files iterate in lexicographic order
// so indices line up with the embedding provider's walk. A tree with no
// images yields zero total samples and zero integrity, same as an empty
// tabular dataset.
func (p *Purifier) purifyImageFolder(srcPath, destPath string, set map[int]struct{}) (Outcome, error) {
	entries, err := os.ReadDir(srcPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("read source tree: %w", err)
	}

	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)

	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create output tree: %w", err)
	}

	var removed, total int
	for _, class := range classes {
		classDst := filepath.Join(destPath, class)
		if err := os.MkdirAll(classDst, 0o755); err != nil {
			return Outcome{}, fmt.Errorf("create class dir: %w", err)
		}

		files, err := os.ReadDir(filepath.Join(srcPath, class))
		if err != nil {
			return Outcome{}, fmt.Errorf("read class %s: %w", class, err)
		}
		var names []string
		for _, f := range files {
			if !f.IsDir() {
				names = append(names, f.Name())
			}
		}
		sort.Strings(names)

		for idx, name := range names {
			total++
			if _, drop := set[idx]; drop {
				removed++
				continue
			}
			if err := copyFile(
				filepath.Join(srcPath, class, name),
				filepath.Join(classDst, name),
			); err != nil {
				return Outcome{}, fmt.Errorf("copy %s/%s: %w", class, name, err)
			}
		}
	}

	return Outcome{
		CleanPath:      destPath,
		Removed:        removed,
		TotalSamples:   total,
		IntegrityScore: integrityScore(removed, total),
		Mode:           ModePurified,
	}, nil
}

// fallback copies the original artifact unmodified, or synthesizes a minimal
// placeholder CSV when even that fails, so a download endpoint always has a
// valid file to serve.
func (p *Purifier) fallback(srcPath, destPath string) Outcome {
	outcome := Outcome{
		CleanPath: destPath,
		Degraded:  true,
	}

	if err := copyFile(srcPath, destPath); err == nil {
		outcome.Mode = ModeCopiedOriginal
		outcome.IntegrityScore = 100
		p.logger.Info("copied original unmodified", zap.String("clean", destPath))
		return outcome
	}

	placeholder := strings.Join([]string{
		"feature_0,feature_1,feature_2,label",
		"0.1,0.2,0.3,0",
		"0.4,0.5,0.6,1",
		"",
	}, "\n")
	if err := os.WriteFile(destPath, []byte(placeholder), 0o644); err != nil {
		p.logger.Error("placeholder write failed", zap.Error(err))
	}
	outcome.Mode = ModePlaceholder
	p.logger.Info("wrote placeholder artifact", zap.String("clean", destPath))
	return outcome
}

// integrityScore is the retained percentage of the original data, floored at
// zero; an empty dataset scores zero.
func integrityScore(removed, total int) float64 {
	if total <= 0 {
		return 0
	}
	score := 100 * (1 - float64(removed)/float64(total))
	if score < 0 {
		return 0
	}
	return score
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
