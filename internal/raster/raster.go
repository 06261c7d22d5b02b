// Package raster turns DOT files into PNG images with a Graphviz binary.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrRasterizationFailed = errors.New("rasterization failed")

// PNGPath returns dotPath with its extension replaced by ".png". A path
// without an extension gets ".png" appended; dots in directory names are
// left alone.
func PNGPath(dotPath string) string {
	return strings.TrimSuffix(dotPath, filepath.Ext(dotPath)) + ".png"
}

// Rasterize runs `<graphvizPath> -Tpng <dotPath> -o <png>` and returns the
// image path. Failures wrap ErrRasterizationFailed and carry the tool's stderr.
func Rasterize(ctx context.Context, graphvizPath, dotPath string) (string, error) {
	if strings.TrimSpace(graphvizPath) == "" {
		return "", fmt.Errorf("%w: graphviz path not set", ErrRasterizationFailed)
	}
	pngPath := PNGPath(dotPath)
	cmd := exec.CommandContext(ctx, graphvizPath, "-Tpng", dotPath, "-o", pngPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	slog.Debug("rasterizing",
		slog.String("graphviz", graphvizPath),
		slog.String("dot", dotPath),
		slog.String("png", pngPath),
	)
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%w: %s: %v: %s", ErrRasterizationFailed, graphvizPath, err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%w: %s: %w", ErrRasterizationFailed, graphvizPath, err)
	}
	return pngPath, nil
}
