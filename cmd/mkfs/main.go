// Command mkfs formats a disk image with the spec §4.6 layout (bitmap,
// inode table, data blocks) and optionally seeds it with host files.
//
// Grounded on biscuit's mkfs (biscuit/src/mkfs/main.go), which builds a
// disk image then walks a skeleton directory populating it via Ufs_t;
// adapted from biscuit's nested-directory tree to the spec's flat
// integer-id file namespace, so seeding takes "id:hostpath" pairs
// instead of a directory tree.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"mpos/defs"
	"mpos/fs"
)

func main() {
	image := flag.String("image", "", "path to the disk image to create")
	blocks := flag.Int("blocks", 256, "total block count for the new filesystem")
	flag.Parse()

	if *image == "" {
		fmt.Fprintln(os.Stderr, "usage: mkfs -image <path> [-blocks N] [id:hostfile ...]")
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "mkfs: ", 0)

	f, err := os.OpenFile(*image, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		logger.Fatalf("create image: %v", err)
	}
	if err := f.Truncate(int64(*blocks) * defs.BlockSize); err != nil {
		logger.Fatalf("truncate image: %v", err)
	}
	d := &fileBlockDevice{f: f}

	if err := fs.Format(d, *blocks); err != defs.OK {
		logger.Fatalf("format: %v", err)
	}
	fsys, merr := fs.Mount(d, *blocks, logger)
	if merr != defs.OK {
		logger.Fatalf("mount: %v", merr)
	}

	for _, arg := range flag.Args() {
		if err := seed(fsys, arg); err != nil {
			logger.Printf("seed %q: %v", arg, err)
		}
	}

	if uerr := fsys.Unmount(); uerr != defs.OK {
		logger.Fatalf("unmount: %v", uerr)
	}
	if cerr := f.Close(); cerr != nil {
		logger.Fatalf("close image: %v", cerr)
	}
	logger.Printf("wrote %s (%d blocks)", *image, *blocks)
}

// seed parses an "id:hostpath" argument, creates the file with the given
// numeric id, and copies hostpath's content into it (truncated to one
// block, per spec §4.6's one-file-one-block layout).
func seed(fsys *fs.FileSystem, arg string) error {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected id:hostpath, got %q", arg)
	}
	id, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad id %q: %w", parts[0], err)
	}
	src, err := os.Open(parts[1])
	if err != nil {
		return err
	}
	defer src.Close()

	if cerr := fsys.CreateFile(int32(id)); cerr != defs.OK {
		return fmt.Errorf("create file %d: %v", id, cerr)
	}
	handle, cerr := fs.Open(fsys, int32(id))
	if cerr != defs.OK {
		return fmt.Errorf("open file %d: %v", id, cerr)
	}
	defer handle.Close()

	buf, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	handle.Write(buf)
	return nil
}

// fileBlockDevice adapts an *os.File to fs.BlockDevice for mkfs's
// one-shot, single-goroutine use; the scheduler-integrated disk.BlockingDisk
// is for kernel-side callers that must not spin a real OS thread waiting
// on I/O.
type fileBlockDevice struct {
	f *os.File
}

func (d *fileBlockDevice) Read(block int, buf []byte) defs.Err_t {
	if _, err := d.f.Seek(int64(block)*defs.BlockSize, 0); err != nil {
		return defs.DiskNotReady
	}
	if _, err := d.f.Read(buf); err != nil {
		return defs.DiskNotReady
	}
	return defs.OK
}

func (d *fileBlockDevice) Write(block int, buf []byte) defs.Err_t {
	if _, err := d.f.Seek(int64(block)*defs.BlockSize, 0); err != nil {
		return defs.DiskNotReady
	}
	if _, err := d.f.Write(buf); err != nil {
		return defs.DiskNotReady
	}
	return defs.OK
}
