// Copyright (c) 2025 Neomantra Corp
// Reader/Writer compression helpers for history export files.

package hydra

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

func wantsZstd(filename string, force bool) bool {
	return force || strings.HasSuffix(filename, ".zst") || strings.HasSuffix(filename, ".zstd")
}

// MakeCompressedWriter returns an io.Writer for the given filename, or
// os.Stdout when filename is "-", plus a closing function to defer.  The
// output is zstd-compressed when useZstd is set or the filename ends in
// ".zst" / ".zstd".
func MakeCompressedWriter(filename string, useZstd bool) (io.Writer, func(), error) {
	var writer io.Writer = os.Stdout
	closeFile := func() {}
	if filename != "-" {
		file, err := os.Create(filename)
		if err != nil {
			return nil, nil, err
		}
		writer = file
		closeFile = func() { file.Close() }
	}

	if !wantsZstd(filename, useZstd) {
		return writer, closeFile, nil
	}
	zstdWriter, err := zstd.NewWriter(writer)
	if err != nil {
		closeFile()
		return nil, nil, err
	}
	return zstdWriter, func() {
		zstdWriter.Close()
		closeFile()
	}, nil
}

// MakeCompressedReader returns an io.Reader for the given filename, or
// os.Stdin when filename is "-", plus a closing function to defer.  The input
// is zstd-decompressed when useZstd is set or the filename ends in ".zst" /
// ".zstd".
func MakeCompressedReader(filename string, useZstd bool) (io.Reader, func(), error) {
	var reader io.Reader = os.Stdin
	closeFile := func() {}
	if filename != "-" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, nil, err
		}
		reader = file
		closeFile = func() { file.Close() }
	}

	if !wantsZstd(filename, useZstd) {
		return reader, closeFile, nil
	}
	zstdReader, err := zstd.NewReader(reader)
	if err != nil {
		closeFile()
		return nil, nil, err
	}
	return zstdReader.IOReadCloser(), func() {
		zstdReader.Close()
		closeFile()
	}, nil
}
