package storage

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// PackEntry is one file inside a test-data package.
type PackEntry struct {
	Name string
	Data []byte
}

// WritePack builds a zstd-compressed tar archive from the given entries.
// Test-data packages are stored this way in object storage; the database
// keeps the canonical copy used for judging.
func WritePack(entries []PackEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer failed: %w", err)
	}
	tw := tar.NewWriter(enc)
	for _, entry := range entries {
		hdr := &tar.Header{
			Name: entry.Name,
			Mode: 0644,
			Size: int64(len(entry.Data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("write pack header %s failed: %w", entry.Name, err)
		}
		if _, err := tw.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("write pack entry %s failed: %w", entry.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close pack tar failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close pack zstd failed: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadPack decodes a zstd-compressed tar archive into entries.
func ReadPack(r io.Reader) ([]PackEntry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader failed: %w", err)
	}
	defer dec.Close()

	tr := tar.NewReader(dec)
	var entries []PackEntry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read pack header failed: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read pack entry %s failed: %w", hdr.Name, err)
		}
		entries = append(entries, PackEntry{Name: hdr.Name, Data: data})
	}
	return entries, nil
}
