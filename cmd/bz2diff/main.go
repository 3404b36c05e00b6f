// Command bz2diff compares two archives covering the same grid: a
// reference (typically written with a lossless/identity codec) and a
// candidate (typically a lossy one), decoding every block of the
// reference from both archives (a block missing from the candidate is an
// error) and reporting the error norms and size metrics spec.md's worked examples
// use to judge a codec/threshold choice — the Go-native cz2diff.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/blockzip/blockzip/archive"
)

func main() {
	refPath := flag.String("ref", "", "reference archive path")
	candPath := flag.String("cand", "", "candidate archive path")
	flag.Parse()

	if *refPath == "" || *candPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bz2diff -ref FILE -cand FILE")
		os.Exit(1)
	}

	if err := run(*refPath, *candPath); err != nil {
		fmt.Fprintf(os.Stderr, "bz2diff: %v\n", err)
		os.Exit(1)
	}
}

func run(refPath, candPath string) error {
	refFile, err := os.Open(refPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", refPath, err)
	}
	defer refFile.Close()

	candFile, err := os.Open(candPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", candPath, err)
	}
	defer candFile.Close()

	ref, err := archive.Open(refFile)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", refPath, err)
	}

	cand, err := archive.Open(candFile)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", candPath, err)
	}

	if ref.Header().BlockEdge != cand.Header().BlockEdge {
		return fmt.Errorf("block edge mismatch: ref=%d cand=%d", ref.Header().BlockEdge, cand.Header().BlockEdge)
	}

	var (
		n                                    int
		sumAbsDiff, sumSqDiff                float64
		sumAbsRef, sumSqRef                  float64
		maxAbsDiff, maxAbsRef, minRef, maxRef float64
		first                                = true
	)

	for _, coord := range ref.BlockCoords() {
		refSamples, err := ref.Fetch(coord.X, coord.Y, coord.Z)
		if err != nil {
			return fmt.Errorf("fetch ref block (%d,%d,%d): %w", coord.X, coord.Y, coord.Z, err)
		}

		candSamples, err := cand.Fetch(coord.X, coord.Y, coord.Z)
		if err != nil {
			return fmt.Errorf("fetch candidate block (%d,%d,%d): %w", coord.X, coord.Y, coord.Z, err)
		}

		if len(refSamples) != len(candSamples) {
			return fmt.Errorf("block (%d,%d,%d): sample count mismatch: ref=%d cand=%d", coord.X, coord.Y, coord.Z, len(refSamples), len(candSamples))
		}

		for i, rv := range refSamples {
			cv := candSamples[i]
			diff := math.Abs(rv - cv)

			sumAbsDiff += diff
			sumSqDiff += diff * diff
			sumAbsRef += math.Abs(rv)
			sumSqRef += rv * rv

			if diff > maxAbsDiff {
				maxAbsDiff = diff
			}
			if math.Abs(rv) > maxAbsRef {
				maxAbsRef = math.Abs(rv)
			}
			if first || rv < minRef {
				minRef = rv
			}
			if first || rv > maxRef {
				maxRef = rv
			}
			first = false
			n++
		}
	}

	if n == 0 {
		return fmt.Errorf("no overlapping blocks between %s and %s", refPath, candPath)
	}

	relEInf := 0.0
	if maxAbsRef > 0 {
		relEInf = maxAbsDiff / maxAbsRef
	}

	meanE1 := sumAbsDiff / float64(n)
	relE1 := 0.0
	if sumAbsRef > 0 {
		relE1 = sumAbsDiff / sumAbsRef
	}

	meanE2 := math.Sqrt(sumSqDiff / float64(n))
	relE2 := 0.0
	if sumSqRef > 0 {
		relE2 = math.Sqrt(sumSqDiff / sumSqRef)
	}

	candInfo, err := candFile.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", candPath, err)
	}

	rawBytes := float64(n) * 8
	compressionRatio := rawBytes / float64(candInfo.Size())
	bitsPerSample := float64(candInfo.Size()) * 8 / float64(n)

	dynRange := maxRef - minRef
	psnr := math.Inf(1)
	if meanE2 > 0 && dynRange > 0 {
		psnr = 20 * math.Log10(dynRange/(2*meanE2))
	}

	fmt.Printf("samples:            %d\n", n)
	fmt.Printf("compression ratio:  %.3f\n", compressionRatio)
	fmt.Printf("bits-per-sample:    %.3f\n", bitsPerSample)
	fmt.Printf("rel(e_inf):         %.6g\n", relEInf)
	fmt.Printf("rel(e_1):           %.6g\n", relE1)
	fmt.Printf("mean(e_1):          %.6g\n", meanE1)
	fmt.Printf("rel(e_2):           %.6g\n", relE2)
	fmt.Printf("mean(e_2):          %.6g\n", meanE2)
	fmt.Printf("PSNR (dB):          %.3f\n", psnr)

	return nil
}
