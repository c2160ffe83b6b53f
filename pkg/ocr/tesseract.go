package ocr

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// commandRunner abstracts process execution so tests can substitute a fake
// binary without shelling out to a real tesseract install.
type commandRunner interface {
	Run(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// TesseractEngine implements Engine by shelling out to the tesseract CLI.
// The actual OCR recognition happens entirely inside that external binary —
// this type only handles invocation, timeout enforcement, and mapping its
// output and failure modes onto the Engine contract.
type TesseractEngine struct {
	BinaryPath string
	DataPath   string
	Timeout    time.Duration
	runner     commandRunner
}

func NewTesseractEngine(binaryPath, dataPath string, timeout time.Duration) *TesseractEngine {
	return &TesseractEngine{BinaryPath: binaryPath, DataPath: dataPath, Timeout: timeout, runner: execRunner{}}
}

func (e *TesseractEngine) Extract(ctx context.Context, path, mime, language string) (Result, error) {
	if language == "" {
		language = DefaultLanguage
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	args := []string{path, "stdout", "-l", language}
	if e.DataPath != "" {
		args = append(args, "--tessdata-dir", e.DataPath)
	}
	stdout, stderr, err := e.runner.Run(runCtx, e.binary(), args)
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{}, &EngineError{Code: ErrTimeout, Message: "tesseract exceeded " + timeout.String()}
	}
	if err != nil {
		return Result{}, classifyFailure(stderr, err)
	}

	text := strings.TrimSpace(string(stdout))
	words := 0
	if text != "" {
		words = len(strings.Fields(text))
	}
	return Result{
		Text:       text,
		Confidence: estimateConfidence(stderr),
		WordCount:  words,
		ElapsedMS:  elapsed.Milliseconds(),
	}, nil
}

func (e *TesseractEngine) Health(ctx context.Context) (HealthProbe, error) {
	stdout, stderr, err := e.runner.Run(ctx, e.binary(), []string{"--list-langs"})
	if err != nil {
		return HealthProbe{
			TesseractInstalled: false,
			Diagnostics:        string(stderr),
		}, &EngineError{Code: ErrNotInstalled, Message: "tesseract binary not found or failed to run"}
	}

	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	var langs []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "List of") {
			continue
		}
		langs = append(langs, l)
	}
	return HealthProbe{TesseractInstalled: true, AvailableLanguages: langs}, nil
}

func (e *TesseractEngine) binary() string {
	if e.BinaryPath != "" {
		return e.BinaryPath
	}
	return "tesseract"
}

// classifyFailure maps tesseract's stderr text and exit status onto the
// closed EngineError code set. Tesseract itself has no stable machine
// readable error taxonomy, so this is a best-effort heuristic over its
// known diagnostic messages.
func classifyFailure(stderr []byte, err error) *EngineError {
	msg := strings.ToLower(string(stderr))
	switch {
	case strings.Contains(msg, "failed loading language") || strings.Contains(msg, "data for lang"):
		return &EngineError{Code: ErrLangMissing, Message: string(stderr)}
	case strings.Contains(msg, "tessdata") && strings.Contains(msg, "not found"):
		return &EngineError{Code: ErrDataPathInvalid, Message: string(stderr)}
	case strings.Contains(msg, "out of memory") || strings.Contains(msg, "memory allocation"):
		return &EngineError{Code: ErrOutOfMemory, Message: string(stderr)}
	case strings.Contains(msg, "unsupported image format") || strings.Contains(msg, "cannot identify image"):
		return &EngineError{Code: ErrInvalidFormat, Message: string(stderr)}
	case strings.Contains(msg, "permission denied"):
		return &EngineError{Code: ErrPermissionDenied, Message: string(stderr)}
	case errors.Is(err, context.DeadlineExceeded):
		return &EngineError{Code: ErrTimeout, Message: string(stderr)}
	default:
		return &EngineError{Code: ErrUnknown, Message: string(stderr)}
	}
}

// estimateConfidence is a placeholder until the caller wires -c
// tessedit_create_tsv and parses per-word confidences; tesseract's stdout
// text mode alone carries no confidence figure.
func estimateConfidence(stderr []byte) float64 {
	return 0
}
