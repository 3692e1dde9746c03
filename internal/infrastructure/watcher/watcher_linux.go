// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

//go:build linux

package watcher

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

const (
	inotifyMask    = unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO
	pollTimeout    = 100 // milliseconds
	readBufferSize = 16 * 4096
)

// install sets up an inotify watch on the directory. Only completed writes
// and renames into the directory are reported, never partial files.
func (w *Watcher) install() (func(context.Context), error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	if _, err := unix.InotifyAddWatch(fd, w.dir, inotifyMask); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch on %s: %w", w.dir, err)
	}

	return func(ctx context.Context) {
		w.inotifyReadLoop(ctx, fd)
	}, nil
}

// inotifyReadLoop polls the descriptor so the stop signal is observed at
// least every pollTimeout, and closes it on exit.
func (w *Watcher) inotifyReadLoop(ctx context.Context, fd int) {
	defer func() {
		_ = unix.Close(fd)
	}()

	buffer := make([]byte, readBufferSize)
	for !w.stopped(ctx) {
		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, pollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			slog.ErrorContext(ctx, "inotify poll failed", logging.ErrKey, err)
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			slog.ErrorContext(ctx, "inotify read failed", logging.ErrKey, err)
			return
		}

		names, overflow, removed := parseInotifyEvents(buffer[:bytesRead])
		if overflow {
			slog.WarnContext(ctx, "inotify queue overflowed, some files may not be reported")
		}
		for _, name := range names {
			if !w.emit(ctx, name) {
				return
			}
		}
		if removed {
			slog.WarnContext(ctx, "watched directory was removed")
			return
		}
	}
}

// parseInotifyEvents returns the names of completed files in a buffer of raw
// inotify events, whether the kernel queue overflowed, and whether the watch
// itself went away.
//
// Inotify event layout (from inotify(7)):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, padded to alignment
//	};
func parseInotifyEvents(buffer []byte) (names []string, overflow bool, removed bool) {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		mask := binary.NativeEndian.Uint32(buffer[offset+4 : offset+8])
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}

		switch {
		case mask&unix.IN_Q_OVERFLOW != 0:
			overflow = true
		case mask&unix.IN_IGNORED != 0:
			removed = true
		case mask&unix.IN_ISDIR != 0:
		case mask&inotifyMask != 0 && nameLength > 0:
			name := nullTerminatedString(buffer[offset+unix.SizeofInotifyEvent : offset+eventSize])
			if name != "" {
				names = append(names, name)
			}
		}

		offset += eventSize
	}
	return names, overflow, removed
}

// nullTerminatedString extracts a string from a null-padded byte slice.
func nullTerminatedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
