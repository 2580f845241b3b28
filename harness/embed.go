// Package harness provides embedded harness management.
//
// The Python harness script is embedded at build time and extracted to a
// temporary directory on first use. This allows the sift binary to be
// self-contained without requiring a separate harness installation.
package harness

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pulto-io/sift/types"
)

//go:embed bundle/harness.py
var embeddedHarness []byte

// extractOnce ensures extraction happens only once per process.
var extractOnce sync.Once
var extractedPath string
var extractErr error

// EmbeddedVersion returns the version of the embedded harness.
// This should match types.Version for lockstep validation.
func EmbeddedVersion() string {
	return types.Version
}

// EmbeddedSize returns the size of the embedded harness in bytes.
func EmbeddedSize() int {
	return len(embeddedHarness)
}

// EmbeddedChecksum returns the SHA256 checksum of the embedded harness.
func EmbeddedChecksum() string {
	hash := sha256.Sum256(embeddedHarness)
	return hex.EncodeToString(hash[:])
}

// IsEmbedded returns true if a harness is embedded in this binary.
func IsEmbedded() bool {
	return len(embeddedHarness) > 0
}

// ExtractedPath returns the path to the extracted harness script.
// Extracts on first call; subsequent calls return cached path.
func ExtractedPath() (string, error) {
	extractOnce.Do(func() {
		extractedPath, extractErr = extractHarness()
	})
	return extractedPath, extractErr
}

// extractHarness extracts the embedded harness to a temp directory.
func extractHarness() (string, error) {
	if !IsEmbedded() {
		return "", fmt.Errorf("no embedded harness available")
	}

	// Hash-based directory name so multiple versions can coexist
	checksum := EmbeddedChecksum()[:16]
	dirName := fmt.Sprintf("sift-harness-%s-%s", types.Version, checksum)
	tempDir := filepath.Join(os.TempDir(), dirName)

	harnessPath := filepath.Join(tempDir, "harness.py")

	// Check if already extracted (idempotent)
	if info, err := os.Stat(harnessPath); err == nil && info.Size() == int64(len(embeddedHarness)) {
		return harnessPath, nil
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	if err := os.WriteFile(harnessPath, embeddedHarness, 0o755); err != nil {
		return "", fmt.Errorf("failed to write harness: %w", err)
	}

	return harnessPath, nil
}

// Cleanup removes the extracted harness directory.
// Safe to call multiple times or if extraction never happened.
func Cleanup() error {
	if extractedPath == "" {
		return nil
	}

	dir := filepath.Dir(extractedPath)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to cleanup harness: %w", err)
	}

	return nil
}
