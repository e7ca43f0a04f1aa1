// Package hashing computes content digests for candidate mod files.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultAlgorithm is the digest scheme blocked-mod manifests use unless they
// declare another one.
const DefaultAlgorithm = "sha1"

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"xxh64":  func() hash.Hash { return xxhash.New() },
}

// Supported returns the accepted algorithm names in sorted order.
func Supported() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name identifies a known algorithm.
func IsSupported(name string) bool {
	_, ok := algorithms[name]
	return ok
}

// DigestSize returns the digest length in bytes for the named algorithm,
// or 0 if the algorithm is unknown.
func DigestSize(name string) int {
	newHash, ok := algorithms[name]
	if !ok {
		return 0
	}
	return newHash().Size()
}

// Compute streams the file at path through the named algorithm and returns the
// lowercase hex digest. A file that vanishes or cannot be read yields an error;
// an empty file is valid and yields the algorithm's empty-input digest.
func Compute(path, algorithm string) (string, error) {
	newHash, ok := algorithms[algorithm]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm %q (supported: %s)", algorithm, strings.Join(Supported(), ", "))
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer file.Close()

	hasher := newHash()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SumData returns the lowercase hex digest of in-memory data.
func SumData(data []byte, algorithm string) (string, error) {
	newHash, ok := algorithms[algorithm]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm %q (supported: %s)", algorithm, strings.Join(Supported(), ", "))
	}
	hasher := newHash()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Computer hashes files with a fixed algorithm. It carries no state besides
// the algorithm name and is safe for concurrent use.
type Computer struct {
	algorithm string
}

// NewComputer creates a Computer for the named algorithm.
func NewComputer(algorithm string) (*Computer, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	if !IsSupported(algorithm) {
		return nil, fmt.Errorf("unsupported hash algorithm %q (supported: %s)", algorithm, strings.Join(Supported(), ", "))
	}
	return &Computer{algorithm: algorithm}, nil
}

// Algorithm returns the algorithm name the Computer was built with.
func (c *Computer) Algorithm() string {
	return c.algorithm
}

// Compute hashes the file at path with the Computer's algorithm.
func (c *Computer) Compute(path string) (string, error) {
	return Compute(path, c.algorithm)
}
