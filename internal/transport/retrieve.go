// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/cmn/nlog"
)

// Retrieve implements spec.md §4.1 `retrieve(src_url, dst_path,
// expected_size=-1) → bytes_copied`: creates parent directories,
// resumes from whatever prefix already exists at dst_path, retries on
// TransientIO/5xx up to the pool's retry budget, and restarts from
// offset 0 exactly once if the server turns out not to support ranges
// after we asked for a non-zero offset. The returned checksum is teed
// off the same bytes as they're written to dst_path (cos.TeeCopy), so a
// caller can verify it without a second read of the file; any prefix
// already on disk before this call is hashed once up front so a
// resumed download still yields the whole file's digest.
func (p *Pool) Retrieve(ctx context.Context, srcURL, dstPath string, expectedSize int64) (int64, cos.Cksum, error) {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return 0, cos.Cksum{}, &cos.ErrTransientIO{Op: "mkdir " + filepath.Dir(dstPath), Err: err}
	}

	offset := int64(0)
	h := cos.NewCksumHash()
	if fi, err := os.Stat(dstPath); err == nil {
		offset = fi.Size()
		if err := hashExisting(dstPath, offset, h); err != nil {
			return 0, cos.Cksum{}, &cos.ErrTransientIO{Op: "hash " + dstPath, Err: err}
		}
		if expectedSize >= 0 && offset >= expectedSize {
			return offset, h.Finalize(), nil
		}
	}

	restartedFromZero := false
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		n, err := p.retrieveOnce(ctx, srcURL, dstPath, offset, h)
		if err == nil {
			return offset + n, h.Finalize(), nil
		}

		var rangeErr *cos.ErrRangeUnsupported
		if errors.As(err, &rangeErr) && offset > 0 && !restartedFromZero {
			nlog.Warningf("server refused range for %s, restarting from offset 0", srcURL)
			offset = 0
			restartedFromZero = true
			h = cos.NewCksumHash() // discarding the stale prefix's digest along with the file content
			attempt--              // the restart-from-zero doesn't count against the retry budget
			lastErr = err
			continue
		}

		if !isRetriable(err) {
			return 0, cos.Cksum{}, err
		}
		lastErr = err
		offset += n // resume past whatever this attempt actually wrote (and hashed)
		nlog.Warningf("retrying %s after transient error (attempt %d/%d): %v", srcURL, attempt+1, p.retries, err)
	}
	return 0, cos.Cksum{}, lastErr
}

// hashExisting feeds the first n bytes of path into h, so a resumed
// download's digest covers the prefix that was already on disk.
func hashExisting(path string, n int64, h *cos.CksumHash) error {
	if n == 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyN(h, f, n)
	return err
}

func isRetriable(err error) bool {
	var tio *cos.ErrTransientIO
	if errors.As(err, &tio) {
		return true
	}
	var perm *cos.ErrPermanentHTTP
	if errors.As(err, &perm) {
		return perm.Status >= 500
	}
	return false
}

// retrieveOnce performs a single open+copy attempt starting at offset,
// teeing the newly written bytes into h (which already carries the
// digest of everything before offset), and returns the bytes written
// during THIS attempt (not including offset).
func (p *Pool) retrieveOnce(ctx context.Context, srcURL, dstPath string, offset int64, h *cos.CksumHash) (int64, error) {
	stream, err := p.OpenStream(ctx, srcURL, offset)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, &cos.ErrTransientIO{Op: "open dst " + dstPath, Err: err}
	}
	defer f.Close()

	if err := f.Truncate(offset); err != nil {
		return 0, &cos.ErrTransientIO{Op: "truncate " + dstPath, Err: err}
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, &cos.ErrTransientIO{Op: "seek " + dstPath, Err: err}
	}

	n, err := cos.TeeCopy(f, stream, h)
	if err != nil {
		return n, &cos.ErrTransientIO{Op: "copy " + srcURL, Err: err}
	}

	// durability: sync before the descriptor is released (spec.md §4.1).
	if err := f.Sync(); err != nil {
		return n, &cos.ErrTransientIO{Op: "fsync " + dstPath, Err: err}
	}
	return n, nil
}
